package websocket

// Request actions
const (
	ActionHealthCheck = "health.check"

	ActionCoordinatorState = "coordinator.state"
	ActionMessageSend      = "message.send"
	ActionInquiryDelay     = "inquiry.driver_delay"

	ActionDriverList      = "driver.list"
	ActionDriverGet       = "driver.get"
	ActionDriverSummary   = "driver.summary"
	ActionDriverPositions = "driver.positions"

	ActionLogList      = "log.list"
	ActionReasoningGet = "reasoning.get"

	// Narrow the notifications a client receives to matching bus subjects.
	ActionEventsSubscribe   = "events.subscribe"
	ActionEventsUnsubscribe = "events.unsubscribe"
)

// Error codes
const (
	ErrorCodeBadRequest    = "BAD_REQUEST"
	ErrorCodeNotFound      = "NOT_FOUND"
	ErrorCodeConflict      = "CONFLICT"
	ErrorCodeInternalError = "INTERNAL_ERROR"
	ErrorCodeValidation    = "VALIDATION_ERROR"
	ErrorCodeUnknownAction = "UNKNOWN_ACTION"
)
