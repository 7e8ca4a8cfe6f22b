package ustar

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/nguyengg/ustar/s3stream"
	"github.com/nguyengg/ustar/stream"
)

// S3Client abstracts the S3 APIs that are needed to implement OpenS3.
//
// *s3.Client satisfies it.
type S3Client interface {
	s3stream.ReaderClient
	s3stream.WriterClient
}

// OpenS3 opens the S3 object specified by bucket and key as an archive in the given mode.
//
// ModeRead streams the object with ranged GetObject calls. ModeWrite and ModeAppend keep the archive in memory and
// upload it on Close; ModeAppend starts from the existing object if there is one. The context is used for the initial
// download and the final upload.
func OpenS3(ctx context.Context, client S3Client, bucket, key string, mode Mode, optFns ...func(*Options)) (*Archive, error) {
	var (
		s   stream.Stream
		err error
	)

	switch mode {
	case ModeRead:
		s, err = s3stream.NewReader(client, bucket, key, func(opts *s3stream.ReaderOptions) {
			opts.CtxFn = func() context.Context { return ctx }
		})
	case ModeWrite, ModeAppend:
		s, err = s3stream.NewWriter(ctx, client, bucket, key, func(opts *s3stream.WriterOptions) {
			opts.Preload = mode == ModeAppend
		})
	default:
		return nil, fmt.Errorf("%w: unknown mode %v", ErrInvalidArgument, mode)
	}

	if err != nil {
		return nil, &IOError{Op: "open", Offset: -1, Err: err}
	}

	return OpenStream(s, mode, optFns...)
}

var _ S3Client = (*s3.Client)(nil)
