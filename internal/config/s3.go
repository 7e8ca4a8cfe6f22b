package config

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// NewS3Client creates a new S3 client from the default AWS config, using Loader.Profile if given or the [s3] profile
// setting otherwise.
//
// The client is cached so subsequent calls return the same instance.
func (l *Loader) NewS3Client(ctx context.Context, optFns ...func(*s3.Options)) (*s3.Client, error) {
	profile := l.Profile
	if profile == "" {
		profile = l.ForS3().AWSProfile
	}

	if c, ok := l.s3clientCache.Load(profile); ok {
		return c.(*s3.Client), nil
	}

	cfg, err := config.LoadDefaultConfig(ctx, func(opts *config.LoadOptions) error {
		opts.SharedConfigProfile = profile
		return nil
	})
	if err != nil {
		return nil, err
	}

	c := s3.NewFromConfig(cfg, optFns...)
	l.s3clientCache.Store(profile, c)
	return c, nil
}

// NewS3Client calls Loader.NewS3Client on the DefaultLoader instance.
func NewS3Client(ctx context.Context, optFns ...func(*s3.Options)) (*s3.Client, error) {
	return DefaultLoader.NewS3Client(ctx, optFns...)
}
