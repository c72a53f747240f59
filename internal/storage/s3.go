// Package storage uploads remarketing media to an S3-compatible object store.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/jaupesca/remarketing-gateway/internal/idgen"
	"github.com/jaupesca/remarketing-gateway/internal/model"
)

// ErrExtensionNotAllowed is returned when a file's extension is not on the
// allow-list of its declared kind.
var ErrExtensionNotAllowed = errors.New("file extension not allowed")

// S3Options configures the S3 client. Endpoint is set for MinIO and other
// S3-compatible servers and switches the client to path-style addressing.
type S3Options struct {
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// NewS3Client builds an S3 client. Static credentials are used when both keys
// are set; otherwise the default AWS credential chain applies.
func NewS3Client(ctx context.Context, o S3Options) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(o.Region),
	}
	if o.AccessKeyID != "" && o.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(o.AccessKeyID, o.SecretAccessKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var s3opts []func(*s3.Options)
	if o.Endpoint != "" {
		s3opts = append(s3opts, func(so *s3.Options) {
			so.BaseEndpoint = aws.String(o.Endpoint)
			so.UsePathStyle = true
		})
	}
	return s3.NewFromConfig(cfg, s3opts...), nil
}

// PutObjectAPI is the subset of *s3.Client used for uploads.
type PutObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Object is a file to be stored.
type Object struct {
	Name        string // original file name; its extension is validated and kept
	Kind        model.BlockKind
	ContentType string
	Size        int64
	Body        io.Reader
}

// StoredObject describes where an upload landed.
type StoredObject struct {
	URL    string `json:"url"`
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

// Uploader stores an object and returns its public location.
type Uploader interface {
	Store(ctx context.Context, obj Object) (*StoredObject, error)
}

// S3Uploader stores objects in one bucket under fresh random keys.
type S3Uploader struct {
	client     PutObjectAPI
	bucket     string
	publicBase string
}

// Compile-time check that S3Uploader implements Uploader.
var _ Uploader = (*S3Uploader)(nil)

// NewS3Uploader returns an uploader writing to bucket. Public URLs are formed
// as <publicBase>/<bucket>/<key>.
func NewS3Uploader(client PutObjectAPI, bucket, publicBase string) *S3Uploader {
	return &S3Uploader{
		client:     client,
		bucket:     bucket,
		publicBase: strings.TrimRight(publicBase, "/"),
	}
}

// Store validates the object's extension against its kind and uploads it.
// Only the file name is checked; the content is not inspected.
func (u *S3Uploader) Store(ctx context.Context, obj Object) (*StoredObject, error) {
	if !obj.Kind.IsAttachment() {
		return nil, fmt.Errorf("%w: kind %q takes no file", ErrExtensionNotAllowed, obj.Kind)
	}
	ext := path.Ext(obj.Name)
	if !model.ExtensionAllowed(obj.Kind, ext) {
		return nil, fmt.Errorf("%w: %q for %s (allowed: %s)", ErrExtensionNotAllowed,
			ext, obj.Kind, strings.Join(model.AllowedExtensions(obj.Kind), ", "))
	}

	key, err := idgen.ObjectKey(obj.Name)
	if err != nil {
		return nil, err
	}

	contentType := obj.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	in := &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        obj.Body,
		ContentType: aws.String(contentType),
	}
	if obj.Size > 0 {
		in.ContentLength = aws.Int64(obj.Size)
	}
	if _, err := u.client.PutObject(ctx, in); err != nil {
		return nil, fmt.Errorf("s3 put object: %w", err)
	}

	return &StoredObject{
		URL:    u.publicBase + "/" + u.bucket + "/" + key,
		Bucket: u.bucket,
		Key:    key,
	}, nil
}
