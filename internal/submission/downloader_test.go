package submission

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeDownloader struct {
	opts Options
}

func (f *fakeDownloader) Description() string { return "fake downloader" }

func (f *fakeDownloader) DownloadAs(context.Context, string, string, string, string) (string, error) {
	return "", nil
}

func TestRegistryRegisterAndGet(t *testing.T) {
	registry := DefaultRegistry()
	require.True(t, registry.IsRegistered(GoogleDocsKey))

	downloader, err := registry.Get(GoogleDocsKey, Options{ExportBaseURL: "http://export.local/"})
	require.NoError(t, err)
	gdocs, ok := downloader.(*GoogleDocsDownloader)
	require.True(t, ok)
	require.Equal(t, "http://export.local", gdocs.exportBase)
}

func TestRegistryUnknownKey(t *testing.T) {
	registry := NewRegistry()

	_, err := registry.Get("nonexistent", Options{})
	require.ErrorIs(t, err, ErrDownloaderNotRegistered)
	require.Contains(t, err.Error(), "nonexistent")

	_, err = registry.Describe("unknown")
	require.ErrorIs(t, err, ErrDownloaderNotRegistered)
	require.False(t, registry.IsRegistered("unknown"))
}

func TestRegistryDescriptionDefaultsToDownloader(t *testing.T) {
	registry := DefaultRegistry()

	desc, err := registry.Describe(GoogleDocsKey)
	require.NoError(t, err)
	require.Equal(t, NewGoogleDocsDownloader(Options{}).Description(), desc)
	require.Equal(t, map[string]string{GoogleDocsKey: desc}, registry.List())

	registry.Register("fake", func(opts Options) Downloader { return &fakeDownloader{opts: opts} }, "custom text")
	desc, err = registry.Describe("fake")
	require.NoError(t, err)
	require.Equal(t, "custom text", desc)
	require.Equal(t, []string{"fake", GoogleDocsKey}, registry.Keys())
}

func TestRegistryForURL(t *testing.T) {
	registry := DefaultRegistry()
	registry.Register("fake", func(opts Options) Downloader { return &fakeDownloader{opts: opts} }, "")

	key, downloader, err := registry.ForURL("https://docs.google.com/document/d/XYZ/edit", Options{})
	require.NoError(t, err)
	require.Equal(t, GoogleDocsKey, key)
	require.IsType(t, &GoogleDocsDownloader{}, downloader)

	_, _, err = registry.ForURL("https://github.com/trainee/repo", Options{})
	require.ErrorIs(t, err, ErrNoDownloaderForURL)
}
