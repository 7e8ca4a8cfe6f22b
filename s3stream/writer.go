package s3stream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/nguyengg/ustar/stream"
)

// WriterClient abstracts the S3 APIs that are needed to implement NewWriter.
type WriterClient interface {
	GetObject(context.Context, *s3.GetObjectInput, ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Uploader abstracts manager.Uploader.
type Uploader interface {
	Upload(context.Context, *s3.PutObjectInput, ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// WriterOptions customises NewWriter.
type WriterOptions struct {
	// Preload downloads the existing object, if any, so that it can be read and appended to.
	//
	// If false, the Stream starts empty and the object is replaced on Close.
	Preload bool

	// Uploader uploads the content on Close.
	//
	// By default, manager.NewUploader is used if the client passed to NewWriter implements
	// manager.UploadAPIClient (as *s3.Client does).
	Uploader Uploader

	// Logger, if given, receives a line for every part uploaded by the default uploader.
	Logger *log.Logger

	// ContentType is the Content-Type of the uploaded object.
	//
	// Default to "application/x-tar".
	ContentType string

	// ModifyGetObjectInput can be used to modify the GetObject input parameters such as adding ExpectedBucketOwner.
	ModifyGetObjectInput func(*s3.GetObjectInput) *s3.GetObjectInput

	// ModifyPutObjectInput can be used to modify the upload input parameters such as adding StorageClass.
	ModifyPutObjectInput func(*s3.PutObjectInput) *s3.PutObjectInput
}

// NewWriter returns a read-write Stream that buffers the S3 object specified by bucket and key in memory.
//
// The object is uploaded when the Stream is closed, and only if the Stream was written to or truncated. The given
// context is used for the initial download and for the upload.
func NewWriter(ctx context.Context, client WriterClient, bucket, key string, optFns ...func(*WriterOptions)) (stream.Stream, error) {
	opts := &WriterOptions{
		ContentType: "application/x-tar",
		ModifyGetObjectInput: func(input *s3.GetObjectInput) *s3.GetObjectInput {
			return input
		},
		ModifyPutObjectInput: func(input *s3.PutObjectInput) *s3.PutObjectInput {
			return input
		},
	}
	for _, fn := range optFns {
		fn(opts)
	}

	w := &objectWriter{
		ctx:    ctx,
		bucket: bucket,
		key:    key,
		opts:   opts,
		mem:    &stream.Memory{},
	}

	if opts.Uploader == nil {
		c, ok := client.(manager.UploadAPIClient)
		if !ok {
			return nil, fmt.Errorf("client does not support uploading, use WriterOptions.Uploader")
		}

		w.client = c
	}

	if opts.Preload {
		if err := w.download(client); err != nil {
			return nil, err
		}
	}

	w.Stream = stream.New(w.mem)
	return w, nil
}

// objectWriter is a stream over an in-memory copy of the object.
type objectWriter struct {
	stream.Stream
	ctx         context.Context
	bucket, key string
	opts        *WriterOptions
	client      manager.UploadAPIClient
	mem         *stream.Memory
	dirty       bool
}

func (w *objectWriter) download(client WriterClient) error {
	getObjectOutput, err := client.GetObject(w.ctx, w.opts.ModifyGetObjectInput(&s3.GetObjectInput{
		Bucket: aws.String(w.bucket),
		Key:    aws.String(w.key),
	}))
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil
		}

		return fmt.Errorf(`download "s3://%s/%s" error: %w`, w.bucket, w.key, err)
	}
	defer getObjectOutput.Body.Close()

	data, err := io.ReadAll(getObjectOutput.Body)
	if err != nil {
		return fmt.Errorf(`download "s3://%s/%s" error: %w`, w.bucket, w.key, err)
	}

	w.mem = stream.NewMemory(data)
	return nil
}

func (w *objectWriter) WriteExact(p []byte) error {
	w.dirty = true
	return w.Stream.WriteExact(p)
}

func (w *objectWriter) Truncate(size int64) error {
	w.dirty = true
	return w.mem.Truncate(size)
}

func (w *objectWriter) Close() error {
	if !w.dirty {
		return nil
	}

	if _, err := w.uploader().Upload(w.ctx, w.opts.ModifyPutObjectInput(&s3.PutObjectInput{
		Bucket:      aws.String(w.bucket),
		Key:         aws.String(w.key),
		Body:        bytes.NewReader(w.mem.Bytes()),
		ContentType: aws.String(w.opts.ContentType),
	})); err != nil {
		return fmt.Errorf(`upload "s3://%s/%s" error: %w`, w.bucket, w.key, err)
	}

	w.dirty = false
	return nil
}

// uploader returns WriterOptions.Uploader if given, or a manager.Uploader that logs parts to WriterOptions.Logger.
func (w *objectWriter) uploader() Uploader {
	if w.opts.Uploader != nil {
		return w.opts.Uploader
	}

	if w.opts.Logger == nil {
		return manager.NewUploader(w.client)
	}

	return manager.NewUploader(&partLogger{
		UploadAPIClient: w.client,
		logger:          w.opts.Logger,
		partCount:       int32((int64(w.mem.Len()) + manager.DefaultUploadPartSize - 1) / manager.DefaultUploadPartSize),
	})
}
