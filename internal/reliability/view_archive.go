// Package reliability keeps an off-host copy of every published opportunity view.
package reliability

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aristath/dealflow/internal/domain"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

const uploadTimeout = 30 * time.Second

// Uploader is the slice of the S3 upload manager the archive needs.
type Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Config locates the bucket views are archived to.
type S3Config struct {
	Bucket          string
	Endpoint        string // empty = AWS default resolution
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// NewS3Uploader builds an upload manager for an S3-compatible endpoint.
// Static credentials are used when given, otherwise the default AWS chain.
func NewS3Uploader(ctx context.Context, cfg S3Config) (*manager.Uploader, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load S3 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return manager.NewUploader(client), nil
}

// ArchiveStats counts archive outcomes.
type ArchiveStats struct {
	Uploaded int64 `json:"uploaded"`
	Failed   int64 `json:"failed"`
	Dropped  int64 `json:"dropped"`
}

// ViewArchive uploads published views as JSON documents. Uploads run on a
// background goroutine; when the queue is full new views are dropped, the next
// publication of the same investor supersedes them anyway.
type ViewArchive struct {
	uploader Uploader
	bucket   string
	prefix   string
	queue    chan *domain.OpportunityView

	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
	stats  struct{ uploaded, failed, dropped atomic.Int64 }

	log zerolog.Logger
}

// NewViewArchive creates an archive writing under prefix in bucket.
func NewViewArchive(uploader Uploader, bucket, prefix string, queueSize int, log zerolog.Logger) *ViewArchive {
	if queueSize <= 0 {
		queueSize = 256
	}
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &ViewArchive{
		uploader: uploader,
		bucket:   bucket,
		prefix:   prefix,
		queue:    make(chan *domain.OpportunityView, queueSize),
		log:      log.With().Str("service", "view_archive").Logger(),
	}
}

// Start launches the upload goroutine.
func (a *ViewArchive) Start() {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		for view := range a.queue {
			a.upload(view)
		}
	}()
	a.log.Info().Str("bucket", a.bucket).Str("prefix", a.prefix).Msg("View archive started")
}

// Stop drains the queue and waits for pending uploads.
func (a *ViewArchive) Stop() {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()
	a.wg.Wait()
}

// Archive queues view for upload without blocking.
func (a *ViewArchive) Archive(_ context.Context, view *domain.OpportunityView) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if view == nil || a.closed {
		return
	}
	select {
	case a.queue <- view:
	default:
		a.stats.dropped.Add(1)
		a.log.Warn().Str("investor_id", view.InvestorID).Msg("Archive queue full, dropping view")
	}
}

// Stats returns the archive counters.
func (a *ViewArchive) Stats() ArchiveStats {
	return ArchiveStats{
		Uploaded: a.stats.uploaded.Load(),
		Failed:   a.stats.failed.Load(),
		Dropped:  a.stats.dropped.Load(),
	}
}

// Key returns the object key a view is stored under.
func (a *ViewArchive) Key(view *domain.OpportunityView) string {
	return fmt.Sprintf("%s%s/v%06d/%s.json",
		a.prefix, view.InvestorID, view.FilterSetVersion,
		view.GeneratedAt.UTC().Format("20060102T150405.000000000Z"))
}

func (a *ViewArchive) upload(view *domain.OpportunityView) {
	body, err := json.Marshal(view)
	if err != nil {
		a.stats.failed.Add(1)
		a.log.Error().Err(err).Str("investor_id", view.InvestorID).Msg("Failed to encode view")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), uploadTimeout)
	defer cancel()

	key := a.Key(view)
	_, err = a.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		a.stats.failed.Add(1)
		a.log.Warn().Err(err).Str("key", key).Msg("View upload failed")
		return
	}

	a.stats.uploaded.Add(1)
	a.log.Debug().Str("key", key).Int("bytes", len(body)).Msg("View archived")
}
