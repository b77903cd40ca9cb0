// Package notify is the outbound notification channel. A Sink delivers one
// message to one recipient and reports success or failure; the dispatcher
// treats any error (including timeout) as a failed delivery and leaves the
// run pending for retry.
package notify

import "context"

// Sink sends a notification text to a recipient target.
type Sink interface {
	Send(ctx context.Context, target, text string) error
}
