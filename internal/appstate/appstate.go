// Package appstate holds runtime settings that administrators can change while the bot runs.
package appstate

import (
	"errors"
	"log/slog"
	"sync/atomic"

	"tomcat/internal/metrics"
)

// ErrPermissionDenied is returned when a non-administrator tries to change a setting.
var ErrPermissionDenied = errors.New("permission denied")

// Actor identifies who is changing a setting.
type Actor struct {
	ID      string
	IsAdmin bool
}

// State is the application context shared by the dispatcher and the message sender.
type State struct {
	silent atomic.Bool
	log    *slog.Logger
}

// New creates a State with silent mode initially set to silent.
func New(silent bool, log *slog.Logger) *State {
	s := &State{log: log}
	s.silent.Store(silent)
	setGauge(silent)
	return s
}

// SilentMode reports whether outbound messages are suppressed.
func (s *State) SilentMode() bool {
	return s.silent.Load()
}

// SetSilentMode turns silent mode on or off. Only administrators may change it.
func (s *State) SetSilentMode(actor Actor, on bool) error {
	if !actor.IsAdmin {
		s.log.Warn("permission_denied", "setting", "silent_mode", "user_id", actor.ID)
		return ErrPermissionDenied
	}
	prev := s.silent.Swap(on)
	setGauge(on)
	s.log.Info("silent mode changed", "user_id", actor.ID, "from", prev, "to", on)
	return nil
}

func setGauge(on bool) {
	if on {
		metrics.SilentMode.Set(1)
		return
	}
	metrics.SilentMode.Set(0)
}
