// Package mailtransport wraps the opaque MailTransport collaborator
// (§1: "an opaque MailTransport that accepts (from, to, templateName,
// vars, campaignTag) → messageId | error"). Body composition is a
// declared Non-goal, so the SES adapter sends via SES's own server-side
// template mechanism rather than rendering HTML itself.
package mailtransport

import "context"

// Transport is the MailTransport contract processEmailJob calls after
// the rate limiter admits the call (§4.5 step 5).
type Transport interface {
	Send(ctx context.Context, from, to, templateName string, vars map[string]string, campaignTag string) (messageID string, err error)
}
