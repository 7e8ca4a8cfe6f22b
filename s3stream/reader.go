// Package s3stream provides stream.Stream backends for archives stored as S3 objects.
package s3stream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/nguyengg/ustar/stream"
)

// ReaderClient abstracts the S3 APIs that are needed to implement NewReader.
type ReaderClient interface {
	GetObject(context.Context, *s3.GetObjectInput, ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(context.Context, *s3.HeadObjectInput, ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// DefaultBufferSize is the default value for ReaderOptions.BufferSize.
const DefaultBufferSize = 64 * 1024

// ReaderOptions customises NewReader.
type ReaderOptions struct {
	// BufferSize is used to provide buffered read-ahead for every Read call.
	//
	// Archive reads are mostly 512-byte headers, so without read-ahead every header would cost one GetObject.
	// Pass zero or a negative value to disable this feature.
	BufferSize int

	// CtxFn returns a context.Context to be used with every GetObject or HeadObject call.
	//
	// By default, context.Background is used.
	CtxFn func() context.Context

	// ModifyGetObjectInput can be used to modify the GetObject input parameters such as adding ExpectedBucketOwner.
	ModifyGetObjectInput func(*s3.GetObjectInput) *s3.GetObjectInput

	// ModifyHeadObjectInput can be used to modify the HeadObject input parameters such as adding
	// ExpectedBucketOwner.
	ModifyHeadObjectInput func(*s3.HeadObjectInput) *s3.HeadObjectInput
}

// NewReader returns a read-only Stream over the S3 object specified by bucket and key.
//
// A HeadObject call determines the object's size up front; every subsequent read is a ranged GetObject.
func NewReader(client ReaderClient, bucket, key string, optFns ...func(*ReaderOptions)) (stream.Stream, error) {
	opts := &ReaderOptions{
		BufferSize: DefaultBufferSize,
		CtxFn:      context.Background,
		ModifyGetObjectInput: func(input *s3.GetObjectInput) *s3.GetObjectInput {
			return input
		},
		ModifyHeadObjectInput: func(input *s3.HeadObjectInput) *s3.HeadObjectInput {
			return input
		},
	}
	for _, fn := range optFns {
		fn(opts)
	}

	headObjectOutput, err := client.HeadObject(opts.CtxFn(), opts.ModifyHeadObjectInput(&s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}))
	if err != nil {
		return nil, fmt.Errorf("determine object size error: %w", err)
	}

	return stream.New(&readSeeker{
		client:     client,
		bucket:     bucket,
		key:        key,
		ctxFn:      opts.CtxFn,
		goiFn:      opts.ModifyGetObjectInput,
		size:       aws.ToInt64(headObjectOutput.ContentLength),
		bufferSize: opts.BufferSize,
	}), nil
}

// ErrSeekBeforeFirstByte is returned when seeking to a negative offset.
var ErrSeekBeforeFirstByte = errors.New("seek ends up before first byte")

// ErrSeekPastEnd is returned when seeking beyond the end of the object.
var ErrSeekPastEnd = errors.New("seek ends up past end of object")

// readSeeker implements io.ReadSeeker with ranged GetObject calls.
//
// buf holds read-ahead bytes starting at off.
type readSeeker struct {
	client      ReaderClient
	bucket, key string
	ctxFn       func() context.Context
	goiFn       func(*s3.GetObjectInput) *s3.GetObjectInput
	off, size   int64
	buf         bytes.Buffer
	bufferSize  int
}

func (r *readSeeker) Read(p []byte) (n int, err error) {
	m := len(p)
	if m == 0 {
		return 0, nil
	}

	// always uses from buffer if possible.
	if r.buf.Len() >= m {
		n, err = r.buf.Read(p)
		r.off += int64(n)
		return
	}

	rangeStart := r.off + int64(r.buf.Len())
	if rangeStart >= r.size {
		if r.buf.Len() == 0 {
			return 0, io.EOF
		}

		// r.buf contains remaining bytes.
		n, err = r.buf.Read(p)
		r.off += int64(n)
		return
	}

	rangeEnd := min(r.size-1, r.off+int64(max(m, r.bufferSize))-1)
	getObjectOutput, err := r.client.GetObject(r.ctxFn(), r.goiFn(&s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(r.key),
		Range:  aws.String(fmt.Sprintf("bytes=%d-%d", rangeStart, rangeEnd)),
	}))
	if err != nil {
		return 0, err
	}

	_, err = r.buf.ReadFrom(getObjectOutput.Body)
	if _ = getObjectOutput.Body.Close(); err != nil {
		return 0, err
	}

	n, err = r.buf.Read(p)
	r.off += int64(n)
	return
}

func (r *readSeeker) Seek(offset int64, whence int) (int64, error) {
	var off int64
	switch whence {
	case io.SeekStart:
		off = offset
	case io.SeekCurrent:
		off = r.off + offset
	case io.SeekEnd:
		off = r.size + offset
	default:
		return r.off, fmt.Errorf("invalid whence: %d", whence)
	}

	switch {
	case off < 0:
		return r.off, ErrSeekBeforeFirstByte
	case off > r.size:
		return r.off, ErrSeekPastEnd
	}

	// keep read-ahead bytes if seeking forward within the buffer.
	if d := off - r.off; d >= 0 && d <= int64(r.buf.Len()) {
		r.buf.Next(int(d))
	} else {
		r.buf.Reset()
	}

	r.off = off
	return off, nil
}
