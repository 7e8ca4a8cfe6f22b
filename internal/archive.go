package internal

import (
	"context"
	"fmt"
	"log"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/nguyengg/ustar"
	"github.com/nguyengg/ustar/internal/config"
	"github.com/nguyengg/ustar/s3stream"
	"github.com/nguyengg/ustar/stream"
)

// OpenArchive opens name as an archive in the given mode.
//
// If name is an s3://bucket/key URI, the object is opened through s3stream using the client and [s3] settings from
// config.DefaultLoader. Anything else is treated as a local file.
func OpenArchive(ctx context.Context, name string, mode ustar.Mode, logger *log.Logger) (*ustar.Archive, error) {
	withLogger := func(opts *ustar.Options) {
		opts.Logger = logger
	}

	if !IsS3URI(name) {
		return ustar.Open(name, mode, withLogger)
	}

	bucket, key, err := ParseS3URI(name)
	if err != nil {
		return nil, err
	}

	client, err := config.NewS3Client(ctx)
	if err != nil {
		return nil, fmt.Errorf("create s3 client error: %w", err)
	}

	s, err := OpenS3Stream(ctx, client, bucket, key, mode, config.ForS3(), logger)
	if err != nil {
		return nil, fmt.Errorf(`open "%s" error: %w`, name, err)
	}

	return ustar.OpenStream(s, mode, withLogger)
}

// S3Client is the union of the S3 APIs needed by OpenS3Stream.
type S3Client interface {
	s3stream.ReaderClient
	s3stream.WriterClient
}

// OpenS3Stream creates the s3stream backend appropriate for mode, applying cfg.ExpectedBucketOwner to every request.
//
// Uploaded parts are logged to logger if it is non-nil.
func OpenS3Stream(ctx context.Context, client S3Client, bucket, key string, mode ustar.Mode, cfg config.S3Config, logger *log.Logger) (stream.Stream, error) {
	if mode == ustar.ModeRead {
		return s3stream.NewReader(client, bucket, key, func(opts *s3stream.ReaderOptions) {
			opts.CtxFn = func() context.Context { return ctx }
			opts.ModifyGetObjectInput = func(input *s3.GetObjectInput) *s3.GetObjectInput {
				input.ExpectedBucketOwner = cfg.ExpectedBucketOwner
				return input
			}
			opts.ModifyHeadObjectInput = func(input *s3.HeadObjectInput) *s3.HeadObjectInput {
				input.ExpectedBucketOwner = cfg.ExpectedBucketOwner
				return input
			}
		})
	}

	return s3stream.NewWriter(ctx, client, bucket, key, func(opts *s3stream.WriterOptions) {
		opts.Preload = mode == ustar.ModeAppend
		opts.Logger = logger
		opts.ModifyGetObjectInput = func(input *s3.GetObjectInput) *s3.GetObjectInput {
			input.ExpectedBucketOwner = cfg.ExpectedBucketOwner
			return input
		}
		opts.ModifyPutObjectInput = func(input *s3.PutObjectInput) *s3.PutObjectInput {
			input.ExpectedBucketOwner = cfg.ExpectedBucketOwner
			return input
		}
	})
}
