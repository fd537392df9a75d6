// Package report renders a finished comparison run for people.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/template"
	"time"

	"github.com/FranksOps/shopwise/internal/model"
	"github.com/FranksOps/shopwise/internal/pipeline"
)

// Summary contains the figures and answer of one run.
type Summary struct {
	RunID           string                  `json:"run_id"`
	Query           string                  `json:"query"`
	Keywords        []string                `json:"keywords"`
	State           string                  `json:"state"`
	Outcome         string                  `json:"outcome"`
	TotalHits       int                     `json:"total_hits"`
	RecordsOK       int                     `json:"records_ok"`
	RecordsPartial  int                     `json:"records_partial"`
	RecordsFailed   int                     `json:"records_failed"`
	TotalDetections int                     `json:"total_detections"`
	DetectionsBySrc map[string]int          `json:"detections_by_src"`
	FromSnippets    bool                    `json:"from_snippets"`
	Truncated       bool                    `json:"truncated"`
	Sources         []string                `json:"sources"`
	Duration        time.Duration           `json:"duration"`
	Result          *model.ComparisonResult `json:"result,omitempty"`
	Fallback        *model.Fallback         `json:"fallback,omitempty"`
	Failures        map[string]string       `json:"failures,omitempty"`
}

// Summarize reduces run to a Summary.
func Summarize(run *pipeline.Run) Summary {
	s := Summary{
		DetectionsBySrc: make(map[string]int),
		Failures:        make(map[string]string),
	}
	if run == nil {
		return s
	}

	s.RunID = run.ID.String()
	s.Query = run.Query
	s.Keywords = run.Keywords
	s.State = run.State.String()
	s.Outcome = run.Outcome.Kind()
	s.TotalHits = len(run.Hits)
	s.FromSnippets = run.Context.FromSnippets
	s.Truncated = run.Context.Truncated
	s.Sources = run.Context.Sources
	s.Result = run.Outcome.Result
	s.Fallback = run.Outcome.Fallback
	if !run.FinishedAt.IsZero() {
		s.Duration = run.FinishedAt.Sub(run.StartedAt)
	}

	for _, rec := range run.Records {
		switch rec.Status {
		case model.StatusOK:
			s.RecordsOK++
		case model.StatusPartial:
			s.RecordsPartial++
		default:
			s.RecordsFailed++
			s.Failures[rec.SourceURL] = rec.Error
		}
		if rec.DetectedBot {
			s.TotalDetections++
			s.DetectionsBySrc[rec.DetectionSrc]++
		}
	}

	return s
}

// WriteJSON writes the summary to the provided writer in JSON format.
func WriteJSON(w io.Writer, summary Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(summary); err != nil {
		return fmt.Errorf("report: %w", err)
	}
	return nil
}

const textTmpl = `Query:     {{.Query}}
Keywords:  {{join .Keywords " "}}
Run:       {{.RunID}} ({{.State}}, {{.Duration}})
Pages:     {{.TotalHits}} hits, {{.RecordsOK}} ok, {{.RecordsPartial}} partial, {{.RecordsFailed}} failed
{{- if .FromSnippets}}
Context:   built from search snippets
{{- end}}
{{- if .Truncated}}
Context:   truncated to budget
{{- end}}
{{- if gt .TotalDetections 0}}
Blocked:   {{.TotalDetections}}
{{- range $src, $count := .DetectionsBySrc}}
  {{$src}}: {{$count}}
{{- end}}
{{- end}}
{{- range $url, $reason := .Failures}}
  failed {{$url}}: {{$reason}}
{{- end}}
{{with .Result}}
Best choice:    {{.Picks.BestChoice}}
Best value:     {{.Picks.BestValue}}
Best quality:   {{.Picks.BestQuality}}
Most features:  {{.Picks.MostFeatures}}
{{range $i, $p := .Comparisons}}
{{inc $i}}. {{$p.ProductName}} [{{$p.Brand}}] {{$p.Price}}  rating {{$p.Rating}}/10
   {{$p.Link}}
{{- range $p.Pros}}
   + {{.}}
{{- end}}
{{- range $p.Cons}}
   - {{.}}
{{- end}}
{{- end}}

{{.Analysis}}
{{else}}{{with .Fallback}}
{{- if .Error}}Structured answer could not be parsed ({{.Error}}).
{{end}}
{{.Response}}
{{end}}{{end}}`

var textTemplate = template.Must(template.New("textReport").Funcs(template.FuncMap{
	"inc":  func(i int) int { return i + 1 },
	"join": strings.Join,
}).Parse(textTmpl))

// WriteText writes a human-readable comparison to the provided writer.
func WriteText(w io.Writer, summary Summary) error {
	if err := textTemplate.Execute(w, summary); err != nil {
		return fmt.Errorf("report: %w", err)
	}
	return nil
}
