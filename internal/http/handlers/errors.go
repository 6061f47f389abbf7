package handlers

// Error codes carried in ErrorResponse.Code. Clients branch on these rather
// than on message text.
const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeConflict         = "conflict"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeUnavailable      = "unavailable"

	ErrCodeSummaryFailed  = "summary_failed"
	ErrCodeDeliveryFailed = "delivery_failed"
	ErrCodeCommandFailed  = "command_failed"
)
