package main

import "github.com/beachsh/beach/internal/errs"

// Exit codes per spec §6.5: 0 success, 2 bad args, 3 transport failure,
// 4 auth failure.
const (
	exitOK        = 0
	exitBadArgs   = 2
	exitTransport = 3
	exitAuth      = 4
)

// exitCodeForError maps the stable error taxonomy (internal/errs) onto
// the CLI's exit code contract. Errors that aren't a *errs.Error at all
// (a cobra usage error, say) are treated as bad args.
func exitCodeForError(err error) int {
	if err == nil {
		return exitOK
	}
	switch errs.KindOf(err) {
	case errs.KindAuthenticationFailed:
		return exitAuth
	case errs.KindNetwork, errs.KindHTTPStatus, errs.KindServer, errs.KindTimeout,
		errs.KindHandshake, errs.KindCipher, errs.KindReplay, errs.KindSetup,
		errs.KindUnsupportedFrame, errs.KindInvalidFrame, errs.KindIncomplete,
		errs.KindChannelClosed:
		return exitTransport
	default:
		return exitBadArgs
	}
}
