// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package prompt renders the default system prompt sent at session
// initiation when the client has not supplied one of its own.
package prompt

import (
	"time"

	"github.com/flosch/pongo2/v6"
)

const defaultTemplateSource = `You are a helpful, friendly voice assistant speaking with a user over a live audio call.
Keep responses conversational and brief, the way a person would speak out loud.
The current date and time where the assistant is hosted is {{ now }}.
If the user asks about the date, time, or weather, use the tools available to you instead of guessing.`

var defaultTemplate = pongo2.Must(pongo2.FromString(defaultTemplateSource))

// Default renders the built-in system prompt. It is only used when the
// client has not supplied a customSystemPrompt — a caller-supplied prompt
// is opaque text and is sent verbatim, never templated.
func Default() (string, error) {
	return defaultTemplate.Execute(pongo2.Context{
		"now": time.Now().Format("Monday, January 2, 2006 3:04 PM MST"),
	})
}
