package submission

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

var (
	// ErrDownloaderNotRegistered indicates no downloader exists for a key.
	ErrDownloaderNotRegistered = errors.New("downloader not registered")
	// ErrNoDownloaderForURL indicates no registered downloader accepts a URL.
	ErrNoDownloaderForURL = errors.New("no downloader accepts url")
)

// Downloader fetches a submission from its URL and stores it on disk.
type Downloader interface {
	Description() string
	// DownloadAs saves the submission under destDir as "<filename>.<format>"
	// and returns the written path.
	DownloadAs(ctx context.Context, sourceURL, destDir, filename, format string) (string, error)
}

// URLMatcher is implemented by downloaders that can tell whether they
// handle a given URL.
type URLMatcher interface {
	Matches(sourceURL string) bool
}

// Options configures downloaders produced by a Factory.
type Options struct {
	HTTPClient    *http.Client
	ExportBaseURL string
	Logger        zerolog.Logger
}

// Factory builds a downloader for a set of options.
type Factory func(opts Options) Downloader

type registration struct {
	factory     Factory
	description string
}

// Registry maps keys to downloader factories.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]registration
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]registration)}
}

// DefaultRegistry returns a registry with every built-in downloader.
func DefaultRegistry() *Registry {
	registry := NewRegistry()
	registry.Register(GoogleDocsKey, func(opts Options) Downloader {
		return NewGoogleDocsDownloader(opts)
	}, "")
	return registry
}

// Register stores a factory under key, replacing any previous entry. An
// empty description is taken from a zero-option instance.
func (r *Registry) Register(key string, factory Factory, description string) {
	if description == "" && factory != nil {
		description = factory(Options{}).Description()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[key] = registration{factory: factory, description: description}
}

// Get builds the downloader registered under key.
func (r *Registry) Get(key string, opts Options) (Downloader, error) {
	r.mu.RLock()
	entry, ok := r.entries[key]
	r.mu.RUnlock()

	if !ok || entry.factory == nil {
		return nil, fmt.Errorf("%w: %s", ErrDownloaderNotRegistered, key)
	}
	return entry.factory(opts), nil
}

// IsRegistered reports whether key has an entry.
func (r *Registry) IsRegistered(key string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[key]
	return ok
}

// Describe returns the description stored for key.
func (r *Registry) Describe(key string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrDownloaderNotRegistered, key)
	}
	return entry.description, nil
}

// List returns key to description pairs.
func (r *Registry) List() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]string, len(r.entries))
	for key, entry := range r.entries {
		out[key] = entry.description
	}
	return out
}

// Keys returns registered keys in sorted order.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.entries))
	for key := range r.entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// ForURL returns the first downloader, in key order, that accepts sourceURL.
func (r *Registry) ForURL(sourceURL string, opts Options) (string, Downloader, error) {
	for _, key := range r.Keys() {
		downloader, err := r.Get(key, opts)
		if err != nil {
			continue
		}
		if matcher, ok := downloader.(URLMatcher); ok && matcher.Matches(sourceURL) {
			return key, downloader, nil
		}
	}
	return "", nil, fmt.Errorf("%w: %s", ErrNoDownloaderForURL, sourceURL)
}
