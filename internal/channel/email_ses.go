// internal/channel/email_ses.go
package channel

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	"notification-service/internal/common/errors"
	"notification-service/internal/models"
)

// SESService is the slice of the SES API the adapter needs, kept as an
// interface for mocking.
type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESEmailAdapter delivers EMAIL notifications through AWS SES. Alternative
// to the SMTP adapter, selected by email.provider config.
type SESEmailAdapter struct {
	client SESService
	from   string
}

func NewSESEmailAdapter(client SESService, from string) *SESEmailAdapter {
	return &SESEmailAdapter{client: client, from: from}
}

func (a *SESEmailAdapter) Send(ctx context.Context, n *models.Notification) error {
	if a.client == nil || a.from == "" {
		return errors.NewChannelUnconfiguredError("email")
	}

	_, err := a.client.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{n.To},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(n.Subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(n.Message)},
			},
		},
		Source: aws.String(a.from),
	})
	if err != nil {
		return errors.NewEmailDeliveryError(err)
	}
	return nil
}
