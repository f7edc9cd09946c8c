package suite

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Report formats.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

// Report aggregates the results of one run.
type Report struct {
	RunID     string    `json:"run_id"     yaml:"run_id"`
	StartedAt time.Time `json:"started_at" yaml:"started_at"`
	Passed    int       `json:"passed"     yaml:"passed"`
	Failed    int       `json:"failed"     yaml:"failed"`
	Results   []Result  `json:"results"    yaml:"results"`
}

// NewReport starts an empty report. An empty runID gets a fresh UUID.
func NewReport(runID string) *Report {
	if runID == "" {
		runID = uuid.NewString()
	}
	return &Report{RunID: runID, StartedAt: time.Now().UTC()}
}

// Add appends res and updates the counters.
func (r *Report) Add(res Result) {
	r.Results = append(r.Results, res)
	if res.Passed {
		r.Passed++
	} else {
		r.Failed++
	}
}

// OK reports whether every action passed.
func (r *Report) OK() bool { return r.Failed == 0 }

// Encode writes the report as json or yaml.
func (r *Report) Encode(w io.Writer, format string) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported report format %q (use json or yaml)", format)
	}
}
