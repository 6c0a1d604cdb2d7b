// Package provision creates and tears down the AWS resources a Redshift
// warehouse needs: the IAM role the cluster assumes to read S3, the cluster
// itself and the ingress rule that makes its port reachable.
package provision

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"

	"sparkify/internal/config"
)

// AWSConfig builds an aws.Config from the static key, secret and region in rec.
func AWSConfig(ctx context.Context, rec config.Record) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(rec.Region),
	}
	if rec.Key != "" || rec.Secret != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(rec.Key, rec.Secret, "")),
		))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return cfg, nil
}
