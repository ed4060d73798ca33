package lib

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// AWSConfig loads the default chain and, when roleArn is set, swaps in
// credentials from an assumed role.
func AWSConfig(ctx context.Context, roleArn string) (aws.Config, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return aws.Config{}, err
	}
	if roleArn == "" {
		return cfg, nil
	}
	stsClient := sts.NewFromConfig(cfg)
	output, err := stsClient.AssumeRole(ctx, &sts.AssumeRoleInput{
		RoleArn:         aws.String(roleArn),
		RoleSessionName: aws.String("ticketing-api"),
	})
	if err != nil {
		return aws.Config{}, err
	}
	creds := output.Credentials
	return config.LoadDefaultConfig(ctx, config.WithCredentialsProvider(
		credentials.NewStaticCredentialsProvider(*creds.AccessKeyId, *creds.SecretAccessKey, *creds.SessionToken),
	))
}

func AWSGetSQSClient(cfg aws.Config) *sqs.Client {
	return sqs.NewFromConfig(cfg)
}

func AWSGetS3Client(cfg aws.Config) *s3.Client {
	return s3.NewFromConfig(cfg)
}

func AWSGetSESClient(cfg aws.Config) *ses.Client {
	return ses.NewFromConfig(cfg)
}

func AWSGetSNSClient(cfg aws.Config) *sns.Client {
	return sns.NewFromConfig(cfg)
}
