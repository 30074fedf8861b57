package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/uchokoro/KodeCamp-task-grader/internal/observability"
	"github.com/uchokoro/KodeCamp-task-grader/internal/submission"
)

// SubmissionText is the gradeable text of a submission and where it came from.
type SubmissionText struct {
	Text       string `json:"text"`
	Downloader string `json:"downloader"`
}

// SubmissionTextSource turns a solution URL into grading text.
type SubmissionTextSource interface {
	Fetch(ctx context.Context, sourceURL, taskID, submissionID string) (SubmissionText, error)
}

// NewSubmissionTextSource downloads through the registry and caches the
// extracted text in Redis when a client is given.
func NewSubmissionTextSource(registry *submission.Registry, opts submission.Options, downloadDir string, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) SubmissionTextSource {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &submissionTextSource{
		registry:    registry,
		opts:        opts,
		downloadDir: downloadDir,
		cache:       cache,
		cacheTTL:    ttl,
		logger:      logger.With().Str("component", "submission_text").Logger(),
	}
}

type submissionTextSource struct {
	registry    *submission.Registry
	opts        submission.Options
	downloadDir string
	cache       *redis.Client
	cacheTTL    time.Duration
	logger      zerolog.Logger
}

func (s *submissionTextSource) Fetch(ctx context.Context, sourceURL, taskID, submissionID string) (SubmissionText, error) {
	cacheKey := submissionCacheKey(sourceURL)

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, cacheKey).Result()
		switch {
		case err == nil:
			var text SubmissionText
			if unmarshalErr := json.Unmarshal([]byte(cached), &text); unmarshalErr == nil {
				observability.SubmissionCache().WithLabelValues("hit").Inc()
				s.logger.Debug().Str("submission_id", submissionID).Msg("submission text cache hit")
				return text, nil
			}
		case !errors.Is(err, redis.Nil):
			s.logger.Warn().Err(err).Msg("failed to read submission text cache")
		}
		observability.SubmissionCache().WithLabelValues("miss").Inc()
	}

	key, downloader, err := s.registry.ForURL(sourceURL, s.opts)
	if err != nil {
		return SubmissionText{}, err
	}

	path, err := downloader.DownloadAs(ctx, sourceURL, filepath.Join(s.downloadDir, taskID), submissionID, submission.DefaultFormat)
	if err != nil {
		return SubmissionText{}, fmt.Errorf("download submission: %w", err)
	}

	body, err := submission.ReadText(path)
	if err != nil {
		return SubmissionText{}, err
	}

	text := SubmissionText{Text: body, Downloader: key}

	if s.cache != nil {
		if payload, err := json.Marshal(text); err == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store submission text cache")
			}
		}
	}

	return text, nil
}

func submissionCacheKey(sourceURL string) string {
	sum := sha256.Sum256([]byte(sourceURL))
	return "submission:text:" + hex.EncodeToString(sum[:])
}
