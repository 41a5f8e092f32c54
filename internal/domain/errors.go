package domain

import "errors"

// ErrRetryDenied indicates the handler refused to retry a failed phase,
// which aborts the whole run.
var ErrRetryDenied = errors.New("retry denied by handler")

// ErrManifestUnreadable indicates no readable local manifest exists even
// after seed extraction was attempted.
var ErrManifestUnreadable = errors.New("local manifest unreadable")
