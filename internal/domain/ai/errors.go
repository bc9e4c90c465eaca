package ai

import "errors"

// ErrExtraction indicates the extraction service returned a non-success
// response. Callers treat it as a per-email failure and skip the email.
var ErrExtraction = errors.New("ai extraction failed")

// ErrQuotaExceeded indicates the AI provider returned a quota/limit error
// (HTTP 429 or similar).
var ErrQuotaExceeded = errors.New("ai quota exceeded")
