package fidsync

import "errors"

var (
	// ErrVerifyFailed is returned when the rewritten slot file disagrees with
	// the source about which rows exist. The original slot file is left in
	// place untouched.
	ErrVerifyFailed = errors.New("fidsync: rewritten slot file fails row-presence verification")
)
