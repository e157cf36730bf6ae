package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/driver733/qulice/internal/validation"
)

// reportDoc is the exported form of a run report.
type reportDoc struct {
	ID          string     `json:"id" yaml:"id"`
	Dir         string     `json:"dir" yaml:"dir"`
	State       string     `json:"state" yaml:"state"`
	FailedIndex int        `json:"failed_index" yaml:"failed_index"`
	Skipped     bool       `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	Started     time.Time  `json:"started" yaml:"started"`
	Finished    time.Time  `json:"finished" yaml:"finished"`
	Duration    string     `json:"duration" yaml:"duration"`
	Entries     []entryDoc `json:"entries" yaml:"entries"`
}

type entryDoc struct {
	Index     int      `json:"index" yaml:"index"`
	Validator string   `json:"validator" yaml:"validator"`
	Outcome   string   `json:"outcome" yaml:"outcome"`
	Duration  string   `json:"duration" yaml:"duration"`
	Message   string   `json:"message,omitempty" yaml:"message,omitempty"`
	Count     int      `json:"count,omitempty" yaml:"count,omitempty"`
	Details   []string `json:"details,omitempty" yaml:"details,omitempty"`
}

func newReportDoc(dir string, r *validation.Report) reportDoc {
	doc := reportDoc{
		ID:          r.ID,
		Dir:         dir,
		State:       string(r.State),
		FailedIndex: r.FailedIndex,
		Skipped:     r.Skipped,
		Started:     r.Started.UTC(),
		Finished:    r.Finished.UTC(),
		Duration:    r.Duration().String(),
		Entries:     []entryDoc{},
	}
	for _, e := range r.Entries {
		entry := entryDoc{
			Index:     e.Index,
			Validator: e.Validator,
			Outcome:   string(e.Outcome),
			Duration:  e.Duration.String(),
		}
		if e.Err != nil {
			entry.Message = e.Err.Error()
			if vf, ok := validation.AsValidationFailure(e.Err); ok {
				entry.Count = vf.Count
				entry.Details = vf.Details
			}
		}
		doc.Entries = append(doc.Entries, entry)
	}
	return doc
}

// writeReport exports the report as JSON or YAML, chosen by extension.
func writeReport(path, dir string, r *validation.Report) error {
	doc := newReportDoc(dir, r)

	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		data, err = json.MarshalIndent(doc, "", "  ")
		data = append(data, '\n')
	case ".yaml", ".yml":
		data, err = yaml.Marshal(doc)
	default:
		return fmt.Errorf("report %s: unsupported format (use .json or .yaml)", path)
	}
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
