package pipeline

import "fmt"

// AuthenticationError reports a webhook whose signature did not verify. It
// is terminal for the entire delivery; nothing in the payload is parsed.
type AuthenticationError struct {
	Platform  string
	ChannelID string
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("webhook signature verification failed for %s channel %s", e.Platform, e.ChannelID)
}

// DeliveryError reports a failed outbound send. The reply is already
// persisted when delivery is attempted, so the error is logged and swallowed
// rather than surfaced to the webhook caller.
type DeliveryError struct {
	Platform  string
	Recipient string
	Err       error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver reply to %s recipient %s: %v", e.Platform, e.Recipient, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}
