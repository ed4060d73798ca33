package aws

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// AssetStore keeps rendered ticket images in a bucket.
type AssetStore struct {
	client S3API
	bucket string
}

func NewAssetStore(client S3API, bucket string) *AssetStore {
	return &AssetStore{client: client, bucket: bucket}
}

// Download writes the object to dest and reports false when the key does
// not exist.
func (a *AssetStore) Download(ctx context.Context, key, dest string) (bool, error) {
	result, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return false, nil
		}
		return false, err
	}
	defer result.Body.Close()
	file, err := os.Create(dest)
	if err != nil {
		return false, err
	}
	defer file.Close()
	if _, err := io.Copy(file, result.Body); err != nil {
		return false, err
	}
	return true, nil
}

func (a *AssetStore) Upload(ctx context.Context, key, src string) error {
	file, err := os.Open(src)
	if err != nil {
		return err
	}
	defer file.Close()
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        file,
		ContentType: aws.String("image/jpeg"),
	})
	return err
}
