// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package lifecycle

import (
	"context"
	"time"

	"github.com/rapidaai/voicegateway/internal/protocol"
	"github.com/rapidaai/voicegateway/internal/session"
)

// KindIdleTimeout is a local, non-wire kind dispatched to a session's
// registered handler before it is force-closed for inactivity, so a
// bridge can surface an "idle timeout" error to the client first.
const KindIdleTimeout protocol.Kind = "idleTimeout"

// StartSweeper runs the idle-session sweeper every m.cfg.SweepInterval
// until ctx is cancelled. Any session whose last activity is older than
// m.cfg.IdleTimeout is force-closed.
func (m *Manager) StartSweeper(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweepOnce()
		}
	}
}

func (m *Manager) sweepOnce() {
	idle := m.registry.Idle(m.cfg.IdleTimeout)
	for _, s := range idle {
		m.logger.Infow("force-closing idle session", "session", s.ID, "lastActivity", s.LastActivity())
		if h, ok := s.HandlerFor(KindIdleTimeout); ok {
			h(s, protocol.InboundEvent{Kind: KindIdleTimeout, RawKind: string(KindIdleTimeout)})
		}
		m.ForceClose(s)
	}
}
