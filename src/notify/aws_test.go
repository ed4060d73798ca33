package notify

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

type fakeSES struct{ input *ses.SendEmailInput }

func (f *fakeSES) SendEmail(_ context.Context, in *ses.SendEmailInput, _ ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	f.input = in
	return &ses.SendEmailOutput{}, nil
}

type fakeSNS struct{ input *sns.PublishInput }

func (f *fakeSNS) Publish(_ context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.input = in
	return &sns.PublishOutput{}, nil
}

func TestSESBackend(t *testing.T) {
	client := &fakeSES{}
	m := Message{From: "no-reply@example.com", To: []string{"ada@example.com"}, Subject: "hi", Body: "body"}
	require.NoError(t, SESBackend{Client: client}.Deliver(context.Background(), m))

	assert.Equal(t, "no-reply@example.com", *client.input.Source)
	assert.Equal(t, []string{"ada@example.com"}, client.input.Destination.ToAddresses)
	assert.Equal(t, "body", *client.input.Message.Body.Text.Data)
}

func TestSNSBackend(t *testing.T) {
	client := &fakeSNS{}
	m := Message{Kind: "checkin_confirmation", To: []string{"ada@example.com"}, Subject: "hi"}
	require.NoError(t, SNSBackend{Client: client, TopicArn: "arn:aws:sns:local:1:notifications"}.Deliver(context.Background(), m))

	assert.Equal(t, "arn:aws:sns:local:1:notifications", *client.input.TopicArn)
	assert.Equal(t, "checkin_confirmation", *client.input.MessageAttributes["kind"].StringValue)
	assert.Equal(t, "ada@example.com", gjson.Get(*client.input.Message, "to.0").String())
}
