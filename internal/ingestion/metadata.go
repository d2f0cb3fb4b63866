package ingestion

import (
	"net/url"
	"path/filepath"
	"strings"
)

// Source kinds.
const (
	KindFile = "file"
	KindURL  = "url"
)

// Document formats recognised by extraction.
const (
	FormatText     = "text"
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
	FormatPDF      = "pdf"
	FormatUnknown  = "unknown"
)

// SourceInfo is best-effort metadata inferred from a source location.
type SourceInfo struct {
	// Location is the path or URL as given.
	Location string `json:"location"`
	// Kind is KindFile or KindURL.
	Kind string `json:"kind"`
	// Format is inferred from the extension; pages without one are HTML.
	Format string `json:"format"`
	// Name is a short human label: the file name or host plus last segment.
	Name string `json:"name"`
	// Bytes is the raw size read, filled in by extraction.
	Bytes int `json:"bytes"`
}

// formatByExt maps lowercase extensions to formats.
var formatByExt = map[string]string{
	".txt":      FormatText,
	".text":     FormatText,
	".md":       FormatMarkdown,
	".markdown": FormatMarkdown,
	".html":     FormatHTML,
	".htm":      FormatHTML,
	".pdf":      FormatPDF,
}

// InferSource inspects a path or URL and returns its metadata. URLs whose
// path has no recognised extension are assumed to be HTML pages; files with
// an unknown extension get FormatUnknown.
func InferSource(location string) SourceInfo {
	info := SourceInfo{Location: location, Kind: KindFile, Format: FormatUnknown}

	if u, err := url.Parse(location); err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != "" {
		info.Kind = KindURL
		segments := trimSegments(u.Path)
		info.Name = strings.ToLower(u.Hostname())
		if len(segments) > 0 {
			info.Name += "/" + segments[len(segments)-1]
		}
		info.Format = FormatHTML
		if f, ok := formatByExt[strings.ToLower(filepath.Ext(u.Path))]; ok {
			info.Format = f
		}
		return info
	}

	info.Name = filepath.Base(location)
	if f, ok := formatByExt[strings.ToLower(filepath.Ext(location))]; ok {
		info.Format = f
	}
	return info
}

// Supported reports whether extraction can read the format.
func (s SourceInfo) Supported() bool {
	switch s.Format {
	case FormatText, FormatMarkdown, FormatHTML:
		return true
	}
	return false
}

// Labels renders the info as chunk metadata.
func (s SourceInfo) Labels() map[string]string {
	return map[string]string{
		"source":      s.Location,
		"source_kind": s.Kind,
		"format":      s.Format,
		"name":        s.Name,
	}
}

// trimSegments splits a URL path into non-empty lowercase segments.
func trimSegments(path string) []string {
	parts := strings.Split(strings.ToLower(path), "/")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
