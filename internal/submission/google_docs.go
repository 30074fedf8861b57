package submission

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
)

const (
	// GoogleDocsKey is the registry key of the Google Docs downloader.
	GoogleDocsKey = "google_docs"
	// DefaultDocsExportBaseURL is the host documents are exported from.
	DefaultDocsExportBaseURL = "https://docs.google.com"
	// DefaultFormat is the export format used when none is given.
	DefaultFormat = "txt"

	googleDocsDescription = "Download Google Docs document from its URL. Expects the doc to be publicly accessible (e.g. 'Anyone with the link can view')."
)

// ErrInvalidDocumentURL indicates a URL without a Google Docs document id.
var ErrInvalidDocumentURL = errors.New("could not extract document ID from URL")

var documentIDPattern = regexp.MustCompile(`/document/d/([a-zA-Z0-9_-]+)`)

// RetrievalError reports a non-success export response.
type RetrievalError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("failed to download Google Doc (status %d). URL: %s\nResponse text:\n%s", e.StatusCode, e.URL, e.Body)
}

// ExtractDocumentID returns the id in ".../document/d/<id>..." URLs.
func ExtractDocumentID(docURL string) (string, bool) {
	match := documentIDPattern.FindStringSubmatch(docURL)
	if match == nil {
		return "", false
	}
	return match[1], true
}

// GoogleDocsDownloader exports publicly shared Google Docs.
type GoogleDocsDownloader struct {
	client     *http.Client
	exportBase string
	logger     zerolog.Logger
}

// NewGoogleDocsDownloader builds a downloader. Zero options use
// http.DefaultClient and the public docs host.
func NewGoogleDocsDownloader(opts Options) *GoogleDocsDownloader {
	client := opts.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	base := strings.TrimSuffix(strings.TrimSpace(opts.ExportBaseURL), "/")
	if base == "" {
		base = DefaultDocsExportBaseURL
	}

	return &GoogleDocsDownloader{
		client:     client,
		exportBase: base,
		logger:     opts.Logger.With().Str("component", "google_docs_downloader").Logger(),
	}
}

// Description implements Downloader.
func (d *GoogleDocsDownloader) Description() string {
	return googleDocsDescription
}

// Matches implements URLMatcher.
func (d *GoogleDocsDownloader) Matches(sourceURL string) bool {
	_, ok := ExtractDocumentID(sourceURL)
	return ok
}

// ExportURL returns the export endpoint for a document id and format.
func (d *GoogleDocsDownloader) ExportURL(docID, format string) string {
	return fmt.Sprintf("%s/document/d/%s/export?format=%s", d.exportBase, docID, url.QueryEscape(format))
}

// DownloadAs implements Downloader. An empty filename falls back to the
// document id and an empty format to "txt".
func (d *GoogleDocsDownloader) DownloadAs(ctx context.Context, sourceURL, destDir, filename, format string) (string, error) {
	docID, ok := ExtractDocumentID(sourceURL)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrInvalidDocumentURL, sourceURL)
	}

	if format == "" {
		format = DefaultFormat
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.ExportURL(docID, format), nil)
	if err != nil {
		return "", fmt.Errorf("build export request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("export google doc %s: %w", docID, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read export body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &RetrievalError{URL: sourceURL, StatusCode: resp.StatusCode, Body: string(body)}
	}

	if filename == "" {
		filename = docID
	}

	path := filepath.Join(destDir, filepath.Base(filename)+"."+format)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create download dir: %w", err)
	}

	if err := os.WriteFile(path, body, 0o644); err != nil {
		return "", fmt.Errorf("write download: %w", err)
	}

	d.logger.Debug().Str("doc_id", docID).Str("path", path).Int("bytes", len(body)).Msg("google doc exported")

	return path, nil
}
