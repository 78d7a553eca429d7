// internal/channel/sms.go
package channel

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"

	"notification-service/internal/common/errors"
	"notification-service/internal/models"
)

// SNSService is the slice of the SNS API the adapter needs, kept as an
// interface for mocking.
type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SMSAdapter delivers SMS notifications through AWS SNS direct publish.
type SMSAdapter struct {
	client   SNSService
	senderID string
}

func NewSMSAdapter(client SNSService, senderID string) *SMSAdapter {
	return &SMSAdapter{client: client, senderID: senderID}
}

// NewUnconfiguredSMSAdapter returns an SMS adapter with no provider.
func NewUnconfiguredSMSAdapter() *SMSAdapter {
	return &SMSAdapter{}
}

func (a *SMSAdapter) Send(ctx context.Context, n *models.Notification) error {
	if a.client == nil || a.senderID == "" {
		return errors.NewChannelUnconfiguredError("sms")
	}

	_, err := a.client.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(n.To),
		Message:     aws.String(n.Message),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"AWS.SNS.SMS.SenderID": {
				DataType:    aws.String("String"),
				StringValue: aws.String(a.senderID),
			},
		},
	})
	if err != nil {
		return errors.NewSMSDeliveryError(err)
	}
	return nil
}
