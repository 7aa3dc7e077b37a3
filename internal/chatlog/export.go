package chatlog

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// Exporter writes a log in one output format.
type Exporter interface {
	Export(entries []Entry, w io.Writer) error
	Extension() string
}

// NewExporter creates an exporter for format.
func NewExporter(format string) (Exporter, error) {
	switch strings.ToLower(format) {
	case "json":
		return &JSONExporter{}, nil
	case "yaml", "yml":
		return &YAMLExporter{}, nil
	case "md", "markdown":
		return &MarkdownExporter{}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s (supported: json, yaml, md)", format)
	}
}

// JSONExporter writes the log exactly as it is stored.
type JSONExporter struct{}

func (e *JSONExporter) Export(entries []Entry, w io.Writer) error {
	if entries == nil {
		entries = []Entry{}
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(entries)
}

func (e *JSONExporter) Extension() string { return "json" }

// YAMLExporter writes the log as a YAML sequence.
type YAMLExporter struct{}

func (e *YAMLExporter) Export(entries []Entry, w io.Writer) error {
	enc := yaml.NewEncoder(w)
	defer func() { _ = enc.Close() }()

	if entries == nil {
		entries = []Entry{}
	}
	return enc.Encode(entries)
}

func (e *YAMLExporter) Extension() string { return "yaml" }

// MarkdownExporter writes a human-readable transcript with a summary header.
type MarkdownExporter struct{}

func (e *MarkdownExporter) Export(entries []Entry, w io.Writer) error {
	stats := Summarize(entries)
	if _, err := fmt.Fprintf(w, "# Mindly chat log\n\n**Interacciones:** %d\n", stats.Total); err != nil {
		return err
	}
	for _, c := range stats.Breakdown() {
		_, _ = fmt.Fprintf(w, "- %s: %d\n", c.Label, c.Count)
	}
	_, _ = fmt.Fprint(w, "\n")

	for i, en := range entries {
		_, _ = fmt.Fprintf(w, "## %d. %s (%s)\n\n", i+1, en.Timestamp.Format("2006-01-02 15:04:05"), en.Intent)
		_, _ = fmt.Fprintf(w, "**Usuario:**\n\n%s\n\n", quote(en.User))
		_, _ = fmt.Fprintf(w, "**Mindly:**\n\n%s\n\n", quote(en.Response))
	}
	return nil
}

func (e *MarkdownExporter) Extension() string { return "md" }

// quote renders text as a markdown blockquote so that headings or rules in a
// message cannot break the transcript layout.
func quote(text string) string {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	for i, l := range lines {
		lines[i] = "> " + l
	}
	return strings.Join(lines, "\n")
}
