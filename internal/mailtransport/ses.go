package mailtransport

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

// campaignTagName is the SES message tag the Event Ingestor reads back
// out of mail.tags on every webhook notification (§4.6).
const campaignTagName = "X-Campaign-ID"

// SESTransport is the reference MailTransport implementation, sending
// through AWS SES v2's templated-email API so that body composition
// stays entirely the mail provider's responsibility, grounded on the
// AWS SDK v2 client shape the teacher's esp_ses.go builds (generalized
// from a raw HTML Simple body to a server-side Template body, since this
// module never composes HTML itself).
type SESTransport struct {
	client *sesv2.Client
}

// NewSESTransport wraps an already-configured sesv2 client.
func NewSESTransport(client *sesv2.Client) *SESTransport {
	return &SESTransport{client: client}
}

// Send implements Transport by issuing a single SES templated send,
// tagging the message with the campaign id so the Event Ingestor can
// recover it from every SNS notification (§4.6).
func (s *SESTransport) Send(ctx context.Context, from, to, templateName string, vars map[string]string, campaignTag string) (string, error) {
	templateData, err := marshalTemplateData(vars)
	if err != nil {
		return "", fmt.Errorf("mailtransport: marshal template data: %w", err)
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(from),
		Destination:      &types.Destination{ToAddresses: []string{to}},
		Content: &types.EmailContent{
			Template: &types.Template{
				TemplateName: aws.String(templateName),
				TemplateData: aws.String(templateData),
			},
		},
		EmailTags: []types.MessageTag{
			{Name: aws.String(campaignTagName), Value: aws.String(campaignTag)},
		},
	}

	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return "", fmt.Errorf("mailtransport: ses send: %w", err)
	}
	if result.MessageId == nil {
		return "", fmt.Errorf("mailtransport: ses send: empty message id")
	}
	return *result.MessageId, nil
}
