package enums

// OutboxDLQErrorReason records why a relay gave up on an event.
type OutboxDLQErrorReason string

const (
	// OutboxDLQReasonMaxAttempts marks events that kept failing transiently.
	OutboxDLQReasonMaxAttempts OutboxDLQErrorReason = "max_attempts"
	// OutboxDLQReasonNonRetryable marks events that can never be published
	// as stored, such as unknown types or undecodable payloads.
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)
