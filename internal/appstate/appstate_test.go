package appstate

import (
	"errors"
	"io"
	"log/slog"
	"testing"
)

func TestSetSilentMode(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name    string
		initial bool
		actor   Actor
		on      bool
		want    bool
		wantErr error
	}{
		{name: "admin turns on", actor: Actor{ID: "1", IsAdmin: true}, on: true, want: true},
		{name: "admin turns off", initial: true, actor: Actor{ID: "1", IsAdmin: true}, on: false, want: false},
		{name: "non-admin denied", actor: Actor{ID: "2"}, on: true, want: false, wantErr: ErrPermissionDenied},
		{name: "non-admin cannot turn off", initial: true, actor: Actor{ID: "2"}, on: false, want: true, wantErr: ErrPermissionDenied},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(tt.initial, log)
			err := s.SetSilentMode(tt.actor, tt.on)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if got := s.SilentMode(); got != tt.want {
				t.Errorf("SilentMode() = %v, want %v", got, tt.want)
			}
		})
	}
}
