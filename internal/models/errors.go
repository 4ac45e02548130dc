package models

import "errors"

var (
	// ErrPageLoadTimeout means a catalog or asset page did not render the expected elements in time
	ErrPageLoadTimeout = errors.New("page load timeout")

	// ErrExportUnavailable means the export control or a format option is missing or disabled
	ErrExportUnavailable = errors.New("export unavailable")

	// ErrConfirmTimeout means the download confirmation never became actionable
	ErrConfirmTimeout = errors.New("confirm timeout")

	// ErrParseFailure means an embedded JSON blob was absent or malformed
	ErrParseFailure = errors.New("embedded json parse failure")

	// ErrSessionUnavailable means the authenticated session could not be established
	ErrSessionUnavailable = errors.New("session unavailable")
)
