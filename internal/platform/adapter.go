package platform

import (
	"context"
	"fmt"
)

// NormalizationError reports a webhook payload an adapter could not parse.
// It is a per-item error: sibling messages in the same delivery continue.
type NormalizationError struct {
	Platform Platform
	Reason   string
	Err      error
}

func (e *NormalizationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("normalize %s payload: %s: %v", e.Platform, e.Reason, e.Err)
	}
	return fmt.Sprintf("normalize %s payload: %s", e.Platform, e.Reason)
}

func (e *NormalizationError) Unwrap() error {
	return e.Err
}

// Adapter is the interface every platform adapter must implement.
//
// ParsePayload turns a raw webhook body into zero or more canonical messages.
// A delivery that carries no user message (receipts, typing indicators)
// yields an empty slice and a nil error; an unrecognized shape yields a
// *NormalizationError.
//
// VerifySignature authenticates the raw body against the channel secret.
// It never returns an error: an unverifiable request is simply not authentic.
//
// SendReply delivers text back through the platform's send API.
type Adapter interface {
	Type() Platform
	ParsePayload(body []byte) ([]InboundMessage, error)
	VerifySignature(payload []byte, signature, secret string) bool
	SendReply(ctx context.Context, creds Credentials, recipientID, text string) error
}
