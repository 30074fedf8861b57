package submission

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"github.com/gabriel-vasile/mimetype"
	"github.com/microcosm-cc/bluemonday"
)

// ErrUnsupportedContent indicates a downloaded file that cannot be graded as text.
var ErrUnsupportedContent = errors.New("unsupported submission content")

var (
	utf8BOM          = []byte("\xef\xbb\xbf")
	excessiveLinesRe = regexp.MustCompile(`\n{4,}`)

	htmlSanitizer = bluemonday.UGCPolicy()
	htmlConverter = newHTMLConverter()
)

func newHTMLConverter() *md.Converter {
	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())
	return converter
}

// ReadText loads a downloaded submission as grading text. Plain text is
// returned as-is and HTML is sanitised and converted to Markdown.
func ReadText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read submission: %w", err)
	}
	return ExtractText(data)
}

// ExtractText converts raw submission bytes into grading text.
func ExtractText(data []byte) (string, error) {
	mime := mimetype.Detect(data)

	switch {
	case mime.Is("text/html"):
		return htmlToMarkdown(data)
	case mime.Is("text/plain"):
		return strings.TrimSpace(string(bytes.TrimPrefix(data, utf8BOM))), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedContent, mime.String())
	}
}

func htmlToMarkdown(data []byte) (string, error) {
	cleaned := htmlSanitizer.SanitizeBytes(data)

	markdown, err := htmlConverter.ConvertString(string(cleaned))
	if err != nil {
		return "", fmt.Errorf("convert html submission: %w", err)
	}

	markdown = excessiveLinesRe.ReplaceAllString(markdown, "\n\n\n")
	return strings.TrimSpace(markdown), nil
}
