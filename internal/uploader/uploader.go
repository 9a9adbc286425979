// Package uploader ships rotated snapshot archives to S3.
package uploader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/john/commander/internal/logging"
	"github.com/john/commander/internal/metrics"
	"github.com/john/commander/internal/recorder"
)

// ObjectPutter is the part of the S3 API the uploader needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Options configures an Uploader.
type Options struct {
	Bucket          string
	Region          string
	Endpoint        string // S3-compatible endpoint, optional
	RoleARN         string // OIDC web identity role; preferred over static keys
	TokenSocket     string // unix socket serving OIDC tokens, DefaultTokenSocket if empty
	AccessKeyID     string
	SecretAccessKey string
	DeleteAfter     bool
	MaxRetries      int
}

// Uploader handles uploading completed snapshot files to S3
type Uploader struct {
	client      ObjectPutter
	bucket      string
	deleteAfter bool
	maxRetries  int
	backoff     time.Duration

	wg sync.WaitGroup
}

// New builds an S3 client from opts. A role ARN selects OIDC web identity
// credentials, otherwise the static key pair is used.
func New(ctx context.Context, opts Options) (*Uploader, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(opts.Region)}
	if opts.RoleARN == "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	if opts.RoleARN != "" {
		provider := stscreds.NewWebIdentityRoleProvider(
			sts.NewFromConfig(cfg),
			opts.RoleARN,
			newSocketTokenRetriever(opts.TokenSocket, DefaultTokenAudience),
		)
		cfg.Credentials = aws.NewCredentialsCache(provider)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewWithClient(client, opts.Bucket, opts.DeleteAfter, opts.MaxRetries), nil
}

// NewWithClient creates an uploader around an existing S3 client.
func NewWithClient(client ObjectPutter, bucket string, deleteAfter bool, maxRetries int) *Uploader {
	return &Uploader{
		client:      client,
		bucket:      bucket,
		deleteAfter: deleteAfter,
		maxRetries:  maxRetries,
		backoff:     time.Second,
	}
}

// ScanAndUploadExisting uploads .jsonl files left in dir by a previous run.
func (u *Uploader) ScanAndUploadExisting(ctx context.Context, dir string) error {
	log := logging.Component("uploader")

	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read directory: %w", err)
	}

	var found int
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".jsonl") {
			continue
		}
		found++
		u.enqueue(ctx, filepath.Join(dir, entry.Name()))
	}
	log.Info().Int("files", found).Str("dir", dir).Msg("Queued existing files for upload")
	return nil
}

// Start uploads every path received on fileChan until ctx is cancelled, then
// waits for in-flight uploads.
func (u *Uploader) Start(ctx context.Context, fileChan <-chan string) error {
	for {
		select {
		case path := <-fileChan:
			u.enqueue(ctx, path)
		case <-ctx.Done():
			logging.Component("uploader").Info().Msg("Uploader shutting down...")
			u.wg.Wait()
			return ctx.Err()
		}
	}
}

// Wait blocks until all queued uploads have finished.
func (u *Uploader) Wait() { u.wg.Wait() }

func (u *Uploader) enqueue(ctx context.Context, path string) {
	u.wg.Add(1)
	go func() {
		defer u.wg.Done()
		u.uploadWithRetry(ctx, path)
	}()
}

func (u *Uploader) uploadWithRetry(ctx context.Context, localPath string) {
	log := logging.Component("uploader").With().Str("file", filepath.Base(localPath)).Logger()

	key, err := ObjectKey(filepath.Base(localPath))
	if err != nil {
		log.Error().Err(err).Msg("Cannot derive object key")
		metrics.UploadsTotal.WithLabelValues("invalid").Inc()
		return
	}

	for attempt := 0; attempt <= u.maxRetries; attempt++ {
		err := u.uploadFile(ctx, localPath, key)
		if err == nil {
			metrics.UploadsTotal.WithLabelValues("ok").Inc()
			log.Info().Str("key", key).Str("bucket", u.bucket).Msg("Uploaded snapshot file")
			if u.deleteAfter {
				if err := os.Remove(localPath); err != nil {
					log.Error().Err(err).Msg("Error deleting local file")
				}
			}
			return
		}

		if attempt == u.maxRetries {
			break
		}
		wait := u.backoff << uint(attempt)
		log.Warn().Err(err).Int("attempt", attempt+1).Dur("retry_in", wait).Msg("Upload failed, retrying")
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return
		}
	}

	metrics.UploadsTotal.WithLabelValues("failed").Inc()
	log.Error().Int("attempts", u.maxRetries+1).Msg("Giving up on upload")
}

func (u *Uploader) uploadFile(ctx context.Context, localPath, key string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        file,
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}

// ObjectKey maps an archive file name to its object key.
// Input: twitch_20251230_103000.jsonl
// Output: 2025/12/30/twitch/twitch_20251230_103000.jsonl
func ObjectKey(filename string) (string, error) {
	name := strings.TrimSuffix(filename, ".jsonl")
	if name == filename {
		return "", fmt.Errorf("invalid filename format: %s", filename)
	}

	// Source ids may contain underscores, so the timestamp is read from the end.
	parts := strings.Split(name, "_")
	if len(parts) < 3 {
		return "", fmt.Errorf("invalid filename format: %s", filename)
	}
	sourceID := strings.Join(parts[:len(parts)-2], "_")
	stamp := parts[len(parts)-2] + "_" + parts[len(parts)-1]

	t, err := time.Parse(recorder.FileTimeLayout, stamp)
	if err != nil {
		return "", fmt.Errorf("parse timestamp: %w", err)
	}
	return fmt.Sprintf("%04d/%02d/%02d/%s/%s", t.Year(), t.Month(), t.Day(), sourceID, filename), nil
}
