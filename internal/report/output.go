package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

type Meta struct {
	GeneratedAt   string   `json:"generated_at"`
	Kind          Kind     `json:"kind"`
	Granularities []string `json:"granularities"`
	Keywords      []string `json:"keywords"`
	Countries     []string `json:"countries"`
	Records       int      `json:"records"`
}

type File struct {
	GeneratedAt string   `json:"generated_at"`
	Reports     []*Entry `json:"reports"`
}

type Entry struct {
	*Report
	Tables []Table `json:"tables"`
}

// NewFile wraps reports with their rendered tables for JSON output.
func NewFile(generatedAt time.Time, reports ...*Report) File {
	file := File{GeneratedAt: generatedAt.UTC().Format(time.RFC3339), Reports: make([]*Entry, 0, len(reports))}
	for _, report := range reports {
		file.Reports = append(file.Reports, &Entry{Report: report, Tables: report.Tables()})
	}
	return file
}

func WriteJSON(path string, value any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}
