package main

import (
	"errors"
	"testing"

	"github.com/beachsh/beach/internal/errs"
)

func TestExitCodeForError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, exitOK},
		{"authentication failed", errs.New(errs.KindAuthenticationFailed, "bad passphrase"), exitAuth},
		{"network", errs.New(errs.KindNetwork, "dial failed"), exitTransport},
		{"handshake", errs.New(errs.KindHandshake, "noise failed"), exitTransport},
		{"invalid config", errs.New(errs.KindInvalidConfig, "missing shell"), exitBadArgs},
		{"plain error", errors.New("cobra usage error"), exitBadArgs},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := exitCodeForError(tc.err); got != tc.want {
				t.Fatalf("exitCodeForError(%v): got %d want %d", tc.err, got, tc.want)
			}
		})
	}
}
