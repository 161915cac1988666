package internalerr

import "errors"

// Sentinel errors for common cases
var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrInvalidConfig    = errors.New("invalid configuration")

	// Invocation boundary
	ErrEmptyInput        = errors.New("empty input")
	ErrInvalidIdentifier = errors.New("invalid text identifier")
	ErrBusy              = errors.New("session busy")

	// Analyzer process
	ErrProcessLaunch        = errors.New("analyzer process failed")
	ErrEncoding             = errors.New("analyzer output is not valid UTF-8")
	ErrIdentifierExtraction = errors.New("no text identifier in analyzer report")

	// Reports
	ErrOutputDirectory   = errors.New("output directory unavailable")
	ErrNoData            = errors.New("no token data")
	ErrDataInconsistency = errors.New("data inconsistency")
)
