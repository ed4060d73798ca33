package notify

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

type SESSender interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SESBackend struct {
	Client SESSender
}

func (SESBackend) Name() string { return "ses" }

func (b SESBackend) Deliver(ctx context.Context, m Message) error {
	_, err := b.Client.SendEmail(ctx, &ses.SendEmailInput{
		Source:      aws.String(m.From),
		Destination: &sestypes.Destination{ToAddresses: m.To},
		Message: &sestypes.Message{
			Subject: &sestypes.Content{Data: aws.String(m.Subject)},
			Body: &sestypes.Body{
				Text: &sestypes.Content{Data: aws.String(m.Body)},
			},
		},
	})
	return err
}

type SNSPublisher interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSBackend fans notifications out to topic subscribers, tagged with the
// message kind so subscriptions can filter.
type SNSBackend struct {
	Client   SNSPublisher
	TopicArn string
}

func (SNSBackend) Name() string { return "sns" }

func (b SNSBackend) Deliver(ctx context.Context, m Message) error {
	body, err := json.Marshal(m.JSONB())
	if err != nil {
		return err
	}
	_, err = b.Client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(b.TopicArn),
		Subject:  aws.String(m.Subject),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"kind": {DataType: aws.String("String"), StringValue: aws.String(m.Kind)},
		},
	})
	return err
}
