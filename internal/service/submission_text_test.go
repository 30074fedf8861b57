package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/uchokoro/KodeCamp-task-grader/internal/submission"
)

const docURL = "https://docs.google.com/document/d/DOC123/edit"

func newDocsExportServer(t *testing.T, body string) (*httptest.Server, *int) {
	t.Helper()
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestSubmissionTextSourceDownloadsAndCaches(t *testing.T) {
	mini, err := miniredis.Run()
	require.NoError(t, err)
	defer mini.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	srv, hits := newDocsExportServer(t, "\ufeffMy prompt solution\n")
	dir := t.TempDir()

	source := NewSubmissionTextSource(
		submission.DefaultRegistry(),
		submission.Options{HTTPClient: srv.Client(), ExportBaseURL: srv.URL, Logger: zerolog.Nop()},
		dir, redisClient, time.Minute, zerolog.Nop(),
	)

	text, err := source.Fetch(context.Background(), docURL, "task-1", "sub-7")
	require.NoError(t, err)
	require.Equal(t, "My prompt solution", text.Text)
	require.Equal(t, submission.GoogleDocsKey, text.Downloader)
	require.Equal(t, 1, *hits)

	_, err = os.Stat(filepath.Join(dir, "task-1", "sub-7.txt"))
	require.NoError(t, err)

	cached, err := source.Fetch(context.Background(), docURL, "task-1", "sub-7")
	require.NoError(t, err)
	require.Equal(t, text, cached)
	require.Equal(t, 1, *hits, "second fetch served from cache")

	ttl := mini.TTL(submissionCacheKey(docURL))
	require.Equal(t, time.Minute, ttl)
}

func TestSubmissionTextSourceWithoutCache(t *testing.T) {
	srv, hits := newDocsExportServer(t, "plain text")

	source := NewSubmissionTextSource(
		submission.DefaultRegistry(),
		submission.Options{HTTPClient: srv.Client(), ExportBaseURL: srv.URL},
		t.TempDir(), nil, 0, zerolog.Nop(),
	)

	for i := 0; i < 2; i++ {
		text, err := source.Fetch(context.Background(), docURL, "task-1", "sub-1")
		require.NoError(t, err)
		require.Equal(t, "plain text", text.Text)
	}
	require.Equal(t, 2, *hits)
}

func TestSubmissionTextSourceUnsupportedURL(t *testing.T) {
	source := NewSubmissionTextSource(submission.DefaultRegistry(), submission.Options{}, t.TempDir(), nil, 0, zerolog.Nop())

	_, err := source.Fetch(context.Background(), "https://github.com/trainee/repo", "task-1", "sub-1")
	require.ErrorIs(t, err, submission.ErrNoDownloaderForURL)
}
