package aws

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSQS struct {
	mu       sync.Mutex
	batches  [][]sqstypes.Message
	deleted  []string
	received chan struct{}
}

func (f *fakeSQS) GetQueueUrl(_ context.Context, in *sqs.GetQueueUrlInput, _ ...func(*sqs.Options)) (*sqs.GetQueueUrlOutput, error) {
	return &sqs.GetQueueUrlOutput{QueueUrl: aws.String("https://sqs.local/" + *in.QueueName)}, nil
}

func (f *fakeSQS) ReceiveMessage(ctx context.Context, _ *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	f.mu.Lock()
	if len(f.batches) > 0 {
		batch := f.batches[0]
		f.batches = f.batches[1:]
		f.mu.Unlock()
		return &sqs.ReceiveMessageOutput{Messages: batch}, nil
	}
	f.mu.Unlock()
	select {
	case f.received <- struct{}{}:
	default:
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

func (f *fakeSQS) DeleteMessage(_ context.Context, in *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, *in.ReceiptHandle)
	return &sqs.DeleteMessageOutput{}, nil
}

func TestSQSConsumerDeletesHandledMessages(t *testing.T) {
	logger, _ := test.NewNullLogger()
	client := &fakeSQS{
		received: make(chan struct{}, 1),
		batches: [][]sqstypes.Message{{
			{MessageId: aws.String("1"), ReceiptHandle: aws.String("r1"), Body: aws.String("ok")},
			{MessageId: aws.String("2"), ReceiptHandle: aws.String("r2"), Body: aws.String("fail")},
		}},
	}
	var handled []string
	consumer := NewSQSConsumer("PaymentResults", client, func(_ context.Context, body string) error {
		handled = append(handled, body)
		if body == "fail" {
			return errors.New("cannot process")
		}
		return nil
	}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- consumer.Listen(ctx) }()

	select {
	case <-client.received:
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not poll")
	}
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, []string{"ok", "fail"}, handled)
	assert.Equal(t, []string{"r1"}, client.deleted)
}

type fakeS3 struct {
	objects map[string]string
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	body, ok := f.objects[*in.Key]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(body))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	raw, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[*in.Key] = string(raw)
	return &s3.PutObjectOutput{}, nil
}

func TestAssetStore(t *testing.T) {
	dir := t.TempDir()
	store := NewAssetStore(&fakeS3{objects: map[string]string{}}, "assets")
	ctx := context.Background()

	found, err := store.Download(ctx, "missing.jpeg", filepath.Join(dir, "missing.jpeg"))
	require.NoError(t, err)
	assert.False(t, found)

	src := filepath.Join(dir, "src.jpeg")
	require.NoError(t, os.WriteFile(src, []byte("image"), 0o644))
	require.NoError(t, store.Upload(ctx, "t.jpeg", src))

	dest := filepath.Join(dir, "dest.jpeg")
	found, err = store.Download(ctx, "t.jpeg", dest)
	require.NoError(t, err)
	assert.True(t, found)
	raw, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "image", string(raw))
}
