package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"ai_orchestrator/internal/models"
	"ai_orchestrator/internal/utils"
)

// ObjectPutter is the subset of the S3 client the archiver needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3ArchiverConfig configures where usage batches are written.
type S3ArchiverConfig struct {
	Bucket    string
	Region    string
	Prefix    string
	Endpoint  string // S3-compatible endpoint such as MinIO; empty means AWS
	AccessKey string
	SecretKey string
	PodName   string
}

// S3Archiver writes batches of usage entries to S3 as JSON Lines files.
// It satisfies storage.UsageArchiver.
type S3Archiver struct {
	client  ObjectPutter
	bucket  string
	prefix  string
	podName string
	now     func() time.Time
	logger  *utils.Logger
}

// NewS3Archiver builds an archiver from the default AWS credential chain,
// or from static credentials when an access key is configured.
func NewS3Archiver(ctx context.Context, cfg S3ArchiverConfig) (*S3Archiver, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return NewS3ArchiverWithClient(client, cfg), nil
}

// NewS3ArchiverWithClient wraps an existing client.
func NewS3ArchiverWithClient(client ObjectPutter, cfg S3ArchiverConfig) *S3Archiver {
	return &S3Archiver{
		client:  client,
		bucket:  cfg.Bucket,
		prefix:  cfg.Prefix,
		podName: cfg.PodName,
		now:     time.Now,
		logger:  utils.NewLogger("usage-archive"),
	}
}

// ArchiveUsage uploads entries as one object.
func (a *S3Archiver) ArchiveUsage(ctx context.Context, entries []models.UsageEntry) error {
	_, err := a.WriteBatch(ctx, entries)
	return err
}

// WriteBatch uploads entries and returns the key they were written to.
// An empty batch writes nothing and returns an empty key.
func (a *S3Archiver) WriteBatch(ctx context.Context, entries []models.UsageEntry) (string, error) {
	if len(entries) == 0 {
		return "", nil
	}

	key := a.objectKey(a.now().UTC())

	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	for i := range entries {
		if err := encoder.Encode(&entries[i]); err != nil {
			return "", fmt.Errorf("failed to encode usage entry %s: %w", entries[i].ID, err)
		}
	}

	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}

	a.logger.Debug("Archived usage batch", "key", key, "count", len(entries), "bytes", buf.Len())
	return key, nil
}

// objectKey formats usage/2026/10/19/orchestrator-0-20261019-143022-123456789.jsonl
func (a *S3Archiver) objectKey(now time.Time) string {
	return fmt.Sprintf("%s%04d/%02d/%02d/%s-%s-%d.jsonl",
		a.prefix,
		now.Year(),
		now.Month(),
		now.Day(),
		a.podName,
		now.Format("20060102-150405"),
		now.Nanosecond(),
	)
}
