package ingestion

import "testing"

func TestInferSource(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		location string
		kind     string
		format   string
		label    string
	}{
		// ── Files ────────────────────────────────────────────────────────
		{
			name:     "plain text file",
			location: "docs/notes.txt",
			kind:     KindFile,
			format:   FormatText,
			label:    "notes.txt",
		},
		{
			name:     "markdown file upper case ext",
			location: "/srv/papers/README.MD",
			kind:     KindFile,
			format:   FormatMarkdown,
			label:    "README.MD",
		},
		{
			name:     "markdown long ext",
			location: "guide.markdown",
			kind:     KindFile,
			format:   FormatMarkdown,
			label:    "guide.markdown",
		},
		{
			name:     "html file",
			location: "site/index.htm",
			kind:     KindFile,
			format:   FormatHTML,
			label:    "index.htm",
		},
		{
			name:     "pdf file",
			location: "2111.01888v1.pdf",
			kind:     KindFile,
			format:   FormatPDF,
			label:    "2111.01888v1.pdf",
		},
		{
			name:     "unknown file",
			location: "data.csv",
			kind:     KindFile,
			format:   FormatUnknown,
			label:    "data.csv",
		},
		// ── URLs ─────────────────────────────────────────────────────────
		{
			name:     "page without extension",
			location: "https://pt.wikipedia.org/wiki/Habeas_corpus",
			kind:     KindURL,
			format:   FormatHTML,
			label:    "pt.wikipedia.org/habeas_corpus",
		},
		{
			name:     "host only",
			location: "https://Example.COM",
			kind:     KindURL,
			format:   FormatHTML,
			label:    "example.com",
		},
		{
			name:     "remote markdown",
			location: "https://raw.githubusercontent.com/org/repo/main/README.md",
			kind:     KindURL,
			format:   FormatMarkdown,
			label:    "raw.githubusercontent.com/readme.md",
		},
		{
			name:     "remote pdf",
			location: "http://arxiv.org/pdf/2111.01888v1.pdf",
			kind:     KindURL,
			format:   FormatPDF,
			label:    "arxiv.org/2111.01888v1.pdf",
		},
		{
			name:     "not a web scheme",
			location: "ftp://host/file.txt",
			kind:     KindFile,
			format:   FormatText,
			label:    "file.txt",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := InferSource(tc.location)
			if got.Kind != tc.kind {
				t.Errorf("Kind = %q, want %q", got.Kind, tc.kind)
			}
			if got.Format != tc.format {
				t.Errorf("Format = %q, want %q", got.Format, tc.format)
			}
			if got.Name != tc.label {
				t.Errorf("Name = %q, want %q", got.Name, tc.label)
			}
			if got.Location != tc.location {
				t.Errorf("Location = %q, want %q", got.Location, tc.location)
			}
		})
	}
}

func TestSourceInfoSupported(t *testing.T) {
	t.Parallel()

	for format, want := range map[string]bool{
		FormatText:     true,
		FormatMarkdown: true,
		FormatHTML:     true,
		FormatPDF:      false,
		FormatUnknown:  false,
	} {
		if got := (SourceInfo{Format: format}).Supported(); got != want {
			t.Errorf("Supported(%s) = %v, want %v", format, got, want)
		}
	}
}
