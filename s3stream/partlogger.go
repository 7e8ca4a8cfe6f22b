package s3stream

import (
	"context"
	"log"
	"sync/atomic"

	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// partLogger wraps a manager.UploadAPIClient to log every successfully uploaded part.
//
// UploadPart may be called from any of the goroutines that manager.Uploader uses to upload parts in parallel, so the
// tally is atomic.
type partLogger struct {
	manager.UploadAPIClient
	logger *log.Logger

	// partCount is the expected number of parts; if not positive, only the tally is logged.
	partCount int32
	n         atomic.Int32
}

func (l *partLogger) UploadPart(ctx context.Context, input *s3.UploadPartInput, optFns ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	o, err := l.UploadAPIClient.UploadPart(ctx, input, optFns...)
	if err != nil {
		return o, err
	}

	switch v := l.n.Add(1); {
	case l.partCount <= 0:
		l.logger.Printf("uploaded %d parts so far", v)
	case v == l.partCount:
		l.logger.Printf("uploaded %d/%d parts", v, l.partCount)
	default:
		l.logger.Printf("uploaded %d/%d parts so far", v, l.partCount)
	}

	return o, nil
}

var _ manager.UploadAPIClient = &partLogger{}
