// Package filetransfer implements the agent's file upload/download
// capability: an optional backend, off by default, that lets an
// action handler or the sample cmd/agent application move a file to
// or from cloud object storage without the core pools or dispatcher
// knowing anything about the transfer itself.
package filetransfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// Backend uploads and downloads files against an S3-compatible bucket.
// The zero value is not usable; construct with New.
type Backend struct {
	client *s3.Client
	bucket string
	prefix string
}

// Config configures a Backend. Region and Bucket are required; Prefix
// is prepended to every object key so a single bucket can host
// multiple device fleets.
type Config struct {
	Bucket string
	Region string
	Prefix string
}

// New resolves the default AWS credential chain (environment,
// EC2/ECS instance role, shared config file) for Region and returns a
// Backend bound to Bucket.
func New(ctx context.Context, cfg Config) (*Backend, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("filetransfer: bucket is required")
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("filetransfer: load aws config: %w", err)
	}
	return &Backend{
		client: s3.NewFromConfig(awsCfg),
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}, nil
}

func (b *Backend) key(name string) string {
	if b.prefix == "" {
		return name
	}
	return b.prefix + "/" + name
}

// Upload streams localPath to the object named name under the
// backend's configured bucket/prefix.
func (b *Backend) Upload(ctx context.Context, name, localPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("filetransfer: open %s: %w", localPath, err)
	}
	defer f.Close()

	_, err = b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(name)),
		Body:   f,
	})
	if err != nil {
		return fmt.Errorf("filetransfer: upload %s: %w", name, err)
	}
	return nil
}

// Download fetches the object named name and writes it to localPath,
// creating or truncating the destination file.
func (b *Backend) Download(ctx context.Context, name, localPath string) error {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(name)),
	})
	if err != nil {
		return fmt.Errorf("filetransfer: download %s: %w", name, err)
	}
	defer out.Body.Close()

	f, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("filetransfer: create %s: %w", localPath, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, out.Body); err != nil {
		return fmt.Errorf("filetransfer: write %s: %w", localPath, err)
	}
	return nil
}

// Exists reports whether name has already been uploaded, via a
// lightweight HEAD request.
func (b *Backend) Exists(ctx context.Context, name string) (bool, error) {
	_, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(name)),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("filetransfer: head %s: %w", name, err)
	}
	return true, nil
}
