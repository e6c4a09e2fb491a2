package agent

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"html/template"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var supportedFormats = map[string]bool{
	"json": true,
	"html": true,
	"csv":  true,
}

var reportTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>{{.Title}}</title>
<style>body{font-family:Arial,sans-serif;margin:40px;line-height:1.6}
table{border-collapse:collapse;width:100%;margin:20px 0}th,td{border:1px solid #ddd;padding:8px;text-align:left}
th{background-color:#f2f2f2}.section{margin:20px 0}</style>
</head><body><h1>{{.Title}}</h1>
{{range .Sections}}<div class="section"><h2>{{.Title}}</h2><pre>{{.Body}}</pre></div>
{{end}}<footer><p>Generated on {{.GeneratedAt}}</p></footer></body></html>
`))

type reportSection struct {
	Title string
	Body  string
}

// ArtifactSink receives rendered report files. The download reference
// returned to the caller points back into this store.
type ArtifactSink interface {
	Put(ctx context.Context, artifactID, format string, content []byte) error
}

// FormatterAgent renders the report components collected by earlier
// steps into a downloadable document.
type FormatterAgent struct {
	sink ArtifactSink
}

func NewFormatterAgent(sink ArtifactSink) *FormatterAgent {
	return &FormatterAgent{sink: sink}
}

func (a *FormatterAgent) Name() string { return "report_formatting" }

func (a *FormatterAgent) Execute(ctx context.Context, in Input) (Output, error) {
	components, _ := in["components"].([]map[string]any)
	if len(components) == 0 {
		if generic, ok := in["components"].([]any); ok {
			for _, item := range generic {
				if m, ok := item.(map[string]any); ok {
					components = append(components, m)
				}
			}
		}
	}
	if len(components) == 0 {
		return nil, &ValidationError{Field: "components"}
	}

	format := strings.ToLower(in.String("format"))
	if format == "" {
		format = "json"
	}
	if !supportedFormats[format] {
		return nil, &ValidationError{Field: "format", Reason: fmt.Sprintf("unsupported format %q", format)}
	}
	title := in.String("title")
	if title == "" {
		title = "Financial Report"
	}

	content, err := renderReport(components, format, title)
	if err != nil {
		return nil, err
	}

	artifactID := uuid.New().String()
	if a.sink != nil {
		if err := a.sink.Put(ctx, artifactID, format, content); err != nil {
			return nil, fmt.Errorf("store report artifact: %w", err)
		}
	}

	return Output{
		"artifact_id":  artifactID,
		"format":       format,
		"file_size":    len(content),
		"download_url": fmt.Sprintf("/api/v1/artifacts/%s", artifactID),
		"generated_at": time.Now().Format(time.RFC3339),
		"metadata": map[string]any{
			"title":           title,
			"component_count": len(components),
		},
	}, nil
}

func renderReport(components []map[string]any, format, title string) ([]byte, error) {
	switch format {
	case "json":
		return json.MarshalIndent(map[string]any{
			"metadata": map[string]any{
				"title":           title,
				"generated_at":    time.Now().Format(time.RFC3339),
				"component_count": len(components),
			},
			"components": components,
		}, "", "  ")
	case "html":
		sections := make([]reportSection, 0, len(components))
		for i, comp := range components {
			secTitle, _ := comp["title"].(string)
			if secTitle == "" {
				secTitle = fmt.Sprintf("Section %d", i+1)
			}
			body, err := json.MarshalIndent(comp["data"], "", "  ")
			if err != nil {
				return nil, err
			}
			sections = append(sections, reportSection{Title: secTitle, Body: string(body)})
		}
		var buf strings.Builder
		err := reportTemplate.Execute(&buf, map[string]any{
			"Title":       title,
			"Sections":    sections,
			"GeneratedAt": time.Now().Format("2006-01-02 15:04"),
		})
		if err != nil {
			return nil, err
		}
		return []byte(buf.String()), nil
	case "csv":
		var buf strings.Builder
		w := csv.NewWriter(&buf)
		if err := w.Write([]string{"section", "key", "value"}); err != nil {
			return nil, err
		}
		for i, comp := range components {
			secTitle, _ := comp["title"].(string)
			if secTitle == "" {
				secTitle = fmt.Sprintf("section_%d", i+1)
			}
			data, _ := comp["data"].(map[string]any)
			keys := make([]string, 0, len(data))
			for key := range data {
				keys = append(keys, key)
			}
			sort.Strings(keys)
			for _, key := range keys {
				raw, err := json.Marshal(data[key])
				if err != nil {
					return nil, err
				}
				if err := w.Write([]string{secTitle, key, string(raw)}); err != nil {
					return nil, err
				}
			}
		}
		w.Flush()
		if err := w.Error(); err != nil {
			return nil, err
		}
		return []byte(buf.String()), nil
	}
	return nil, fmt.Errorf("unsupported format %q", format)
}

// MemArtifactSink keeps rendered artifacts in memory, for tests and
// single-process runs.
type MemArtifactSink struct {
	mu        sync.Mutex
	artifacts map[string][]byte
}

func NewMemArtifactSink() *MemArtifactSink {
	return &MemArtifactSink{artifacts: make(map[string][]byte)}
}

func (s *MemArtifactSink) Put(ctx context.Context, artifactID, format string, content []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.artifacts[artifactID+"."+format] = content
	return nil
}

// Get returns a stored artifact by id and format.
func (s *MemArtifactSink) Get(artifactID, format string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	content, ok := s.artifacts[artifactID+"."+format]
	return content, ok
}
