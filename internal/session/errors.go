// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package session

import "errors"

// Sentinel errors for the taxonomy carried by the gateway.
var (
	ErrInvalidSession     = errors.New("invalid session: unknown or inactive id")
	ErrQueueClosed        = errors.New("queue closed: session is inactive")
	ErrUpstreamValidation = errors.New("upstream rejected event sequence")
	ErrUpstreamTransient  = errors.New("upstream stream error")
	ErrToolFailure        = errors.New("tool invocation failed")
	ErrIdleTimeout        = errors.New("session idle timeout")
	ErrTeardownTimeout    = errors.New("session teardown timeout")
	ErrUnsupportedTool    = errors.New("unsupported tool")
	ErrInitiationTimeout  = errors.New("session initiation window elapsed")
)
