// Package s3 keeps blobs as objects in an S3-compatible bucket (AWS S3,
// MinIO and similar).
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"procureflow/internal/blob/core"
)

const defaultRegion = "us-east-1"

// Config locates the bucket. Credentials fall back to the default AWS chain
// when AccessKeyID is empty.
type Config struct {
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	SessionToken    string `mapstructure:"session_token"`
	PathStyle       bool   `mapstructure:"path_style"`
}

// Store maps keys directly onto object keys in a single bucket.
type Store struct {
	client *s3.Client
	bucket string
}

// New builds the S3 client described by cfg. No request is made until the
// first Write, Read or Remove.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3: bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = defaultRegion
	}
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("s3: load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return &Store{client: client, bucket: cfg.Bucket}, nil
}

// Driver reports core.DriverS3.
func (s *Store) Driver() core.Driver { return core.DriverS3 }

// Write uploads data as a JSON object.
func (s *Store) Write(ctx context.Context, key string, data []byte) (core.Object, error) {
	if key == "" {
		return core.Object{}, fmt.Errorf("%w: empty key", core.ErrInvalidKey)
	}
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String("application/json"),
	})
	if err != nil {
		return core.Object{}, fmt.Errorf("s3: put %s: %w", key, err)
	}
	return core.Object{
		Key:     key,
		Data:    data,
		Size:    int64(len(data)),
		ETag:    core.ETag(data),
		ModTime: time.Now().UTC(),
	}, nil
}

// Read downloads the whole object. A 404 wraps core.ErrNotFound.
func (s *Store) Read(ctx context.Context, key string) (core.Object, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)})
	if err != nil {
		if isNotFound(err) {
			return core.Object{}, fmt.Errorf("%w: %s", core.ErrNotFound, key)
		}
		return core.Object{}, fmt.Errorf("s3: get %s: %w", key, err)
	}
	defer func() { _ = out.Body.Close() }()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return core.Object{}, fmt.Errorf("s3: read %s: %w", key, err)
	}
	obj := core.Object{Key: key, Data: data, Size: int64(len(data)), ETag: core.ETag(data)}
	if out.LastModified != nil {
		obj.ModTime = out.LastModified.UTC()
	}
	return obj, nil
}

// Remove deletes the object. S3 deletes are idempotent, so existence is
// checked with a HEAD first.
func (s *Store) Remove(ctx context.Context, key string) (bool, error) {
	if _, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)}); err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("s3: head %s: %w", key, err)
	}
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)}); err != nil {
		return false, fmt.Errorf("s3: delete %s: %w", key, err)
	}
	return true, nil
}

func isNotFound(err error) bool {
	var re *awshttp.ResponseError
	return errors.As(err, &re) && re.HTTPStatusCode() == http.StatusNotFound
}
