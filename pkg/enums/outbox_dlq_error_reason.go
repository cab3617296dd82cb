package enums

// OutboxDLQErrorReason records why an event left the outbox unpublished.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
	// OutboxDLQReasonUnresolvable marks rows whose type or payload the relay
	// cannot decode.
	OutboxDLQReasonUnresolvable OutboxDLQErrorReason = "unresolvable"
	OutboxDLQReasonNoPublisher  OutboxDLQErrorReason = "no_publisher"
)

var dlqReasons = []OutboxDLQErrorReason{
	OutboxDLQReasonMaxAttempts,
	OutboxDLQReasonNonRetryable,
	OutboxDLQReasonUnresolvable,
	OutboxDLQReasonNoPublisher,
}

func (r OutboxDLQErrorReason) String() string { return string(r) }

func (r OutboxDLQErrorReason) IsValid() bool { return known(r, dlqReasons) }

func ParseOutboxDLQErrorReason(value string) (OutboxDLQErrorReason, error) {
	return parse(value, "outbox dlq reason", dlqReasons)
}
