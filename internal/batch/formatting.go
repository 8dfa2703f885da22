package batch

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Summary formats.
const (
	SummaryText = "text"
	SummaryJSON = "json"
	SummaryYAML = "yaml"
	SummaryCSV  = "csv"
)

// FormatSummary renders a batch result in the given format.
func FormatSummary(r *Result, format string) (string, error) {
	switch format {
	case SummaryJSON:
		b, err := json.MarshalIndent(r, "", "  ")
		return string(b), err
	case SummaryYAML:
		b, err := yaml.Marshal(r)
		return string(b), err
	case SummaryCSV:
		return formatCSV(r)
	case SummaryText, "":
		return formatText(r), nil
	default:
		return "", fmt.Errorf("unsupported summary format %q", format)
	}
}

func formatCSV(r *Result) (string, error) {
	var out strings.Builder
	w := csv.NewWriter(&out)
	rows := [][]string{{"base", "image", "output", "keys", "values", "etc", "duration_ms", "error"}}
	for _, d := range r.Documents {
		rows = append(rows, []string{
			d.Base,
			d.ImagePath,
			d.OutputFile,
			strconv.Itoa(d.KeyCount),
			strconv.Itoa(d.ValueCount),
			strconv.Itoa(d.EtcCount),
			strconv.FormatInt(d.Duration.Milliseconds(), 10),
			d.Error,
		})
	}
	if err := w.WriteAll(rows); err != nil {
		return "", err
	}
	return out.String(), nil
}

func formatText(r *Result) string {
	var out strings.Builder
	for _, d := range r.Documents {
		if d.Succeeded() {
			fmt.Fprintf(&out, "%s: %d keys, %d values, %d etc -> %s\n",
				d.Base, d.KeyCount, d.ValueCount, d.EtcCount, d.OutputFile)
		} else {
			fmt.Fprintf(&out, "%s: FAILED: %s\n", d.Base, d.Error)
		}
	}
	fmt.Fprintf(&out, "\n%d documents, %d succeeded, %d failed in %v (%d workers)\n",
		len(r.Documents), r.Succeeded(), r.Failed(), r.Duration.Round(time.Millisecond), r.Workers)
	return out.String()
}

// WriteSummary writes the formatted summary to path, or to w when path is empty.
func WriteSummary(w io.Writer, path string, r *Result, format string) error {
	s, err := FormatSummary(r, format)
	if err != nil {
		return err
	}
	if path == "" {
		_, err = io.WriteString(w, s)
		return err
	}
	if err := os.WriteFile(path, []byte(s), 0o644); err != nil {
		return fmt.Errorf("failed to write summary %s: %w", path, err)
	}
	return nil
}
