package errors

// Error codes shared by HTTP responses and WebSocket error messages
const (
	// Identity errors
	ErrCodeUnauthorized           = "unauthorized"
	ErrCodeInvalidToken           = "invalid_token"
	ErrCodeTokenExpired           = "token_expired"
	ErrCodeAuthenticationRequired = "authentication_required"
	ErrCodeIdentityFailed         = "identity_failed"

	// Validation errors
	ErrCodeInvalidRequest = "invalid_request"
	ErrCodeMissingField   = "missing_field"

	// Room errors
	ErrCodeRoomNotFound   = "room_not_found"
	ErrCodeConflict       = "conflict"
	ErrCodeNotParticipant = "not_participant"

	// Question errors
	ErrCodeCategory    = "category_error"
	ErrCodeNoQuestions = "no_questions"

	// Matchmaking errors
	ErrCodeFetchInProgress      = "fetch_in_progress"
	ErrCodeMatchmakingTimeout   = "matchmaking_timeout"
	ErrCodeMatchmakingCancelled = "matchmaking_cancelled"
	ErrCodeMultiplayerDisabled  = "multiplayer_disabled"
	ErrCodeMatchmakingFailed    = "matchmaking_failed"

	// Game errors
	ErrCodeNoActiveGame  = "no_active_game"
	ErrCodeStartFailed   = "start_failed"
	ErrCodeSubmitFailed  = "submit_failed"
	ErrCodeResultsFailed = "results_failed"

	// WebSocket errors
	ErrCodeInvalidPayload     = "invalid_payload"
	ErrCodeUnknownMessageType = "unknown_message_type"

	// Server errors
	ErrCodeInternalError      = "internal_error"
	ErrCodeServiceUnavailable = "service_unavailable"
	ErrCodeUpstreamError      = "upstream_error"
)
