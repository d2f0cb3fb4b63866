package ingestion

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/encoding/charmap"
)

// ErrUnsupportedFormat is returned for sources extraction cannot read, PDF
// among them.
var ErrUnsupportedFormat = errors.New("ingestion: unsupported document format")

// maxSourceBytes caps how much of a single source is read.
const maxSourceBytes = 32 << 20

// Document is extracted plain text plus where it came from.
type Document struct {
	Source string
	Text   string
	Info   SourceInfo
}

// contentSelectors are tried in order to find the main text of a page.
var contentSelectors = []string{
	"main",
	"article",
	".content",
	"#content",
	".documentation",
	"#documentation",
}

// ReadFile extracts text from a local file.
func ReadFile(path string) (Document, error) {
	info := InferSource(path)
	if !info.Supported() {
		return Document{}, fmt.Errorf("%w: %s (%s)", ErrUnsupportedFormat, path, info.Format)
	}
	f, err := os.Open(path)
	if err != nil {
		return Document{}, fmt.Errorf("ingestion: open %s: %w", path, err)
	}
	defer f.Close()

	raw, err := io.ReadAll(io.LimitReader(f, maxSourceBytes))
	if err != nil {
		return Document{}, fmt.Errorf("ingestion: read %s: %w", path, err)
	}
	return extractBytes(raw, info)
}

// fetch downloads a URL and extracts its text.
func fetch(ctx context.Context, client *http.Client, userAgent, rawURL string) (Document, error) {
	info := InferSource(rawURL)
	if !info.Supported() {
		return Document{}, fmt.Errorf("%w: %s (%s)", ErrUnsupportedFormat, rawURL, info.Format)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Document{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html, text/plain, text/markdown")

	resp, err := client.Do(req)
	if err != nil {
		return Document{}, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Document{}, fmt.Errorf("unexpected status %d for %s", resp.StatusCode, rawURL)
	}

	ct := strings.ToLower(resp.Header.Get("Content-Type"))
	switch {
	case strings.Contains(ct, "application/pdf"):
		return Document{}, fmt.Errorf("%w: %s (%s)", ErrUnsupportedFormat, rawURL, FormatPDF)
	case strings.HasPrefix(ct, "text/plain"):
		info.Format = FormatText
	case strings.Contains(ct, "markdown"):
		info.Format = FormatMarkdown
	case strings.Contains(ct, "html"):
		info.Format = FormatHTML
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxSourceBytes))
	if err != nil {
		return Document{}, fmt.Errorf("reading body: %w", err)
	}
	return extractBytes(raw, info)
}

// extractBytes decodes raw into text according to info.Format.
func extractBytes(raw []byte, info SourceInfo) (Document, error) {
	info.Bytes = len(raw)
	var text string
	switch info.Format {
	case FormatHTML:
		t, err := htmlText(raw)
		if err != nil {
			return Document{}, fmt.Errorf("ingestion: parse html %s: %w", info.Location, err)
		}
		text = t
	case FormatText, FormatMarkdown:
		text = decodeText(raw)
	default:
		return Document{}, fmt.Errorf("%w: %s (%s)", ErrUnsupportedFormat, info.Location, info.Format)
	}
	return Document{Source: info.Location, Text: text, Info: info}, nil
}

// decodeText returns raw as UTF-8, reinterpreting it as Latin-1 when it is
// not valid UTF-8.
func decodeText(raw []byte) string {
	raw = bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))
	if utf8.Valid(raw) {
		return string(raw)
	}
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	if err != nil {
		return strings.ToValidUTF8(string(raw), "")
	}
	return string(out)
}

// htmlText extracts the main readable text of a page, falling back to the
// whole body. Block elements are separated by blank lines so the segmenter
// can still find paragraph breaks.
func htmlText(raw []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return "", err
	}
	doc.Find("script, style, noscript, nav, header, footer").Remove()

	root := doc.Find("body")
	for _, sel := range contentSelectors {
		if s := doc.Find(sel); s.Length() > 0 {
			root = s.First()
			break
		}
	}

	var paragraphs []string
	root.Find("h1, h2, h3, h4, h5, h6, p, li, pre, blockquote, td").Each(func(_ int, s *goquery.Selection) {
		if t := strings.Join(strings.Fields(s.Text()), " "); t != "" {
			paragraphs = append(paragraphs, t)
		}
	})
	if len(paragraphs) == 0 {
		return strings.Join(strings.Fields(root.Text()), " "), nil
	}
	return strings.Join(paragraphs, "\n\n"), nil
}
