package cmd

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/MeKo-Tech/kvmap/internal/template"
)

// writeDocument renders an aligned document. json and yaml write the full
// template structure, text and csv list the annotations.
func writeDocument(w io.Writer, t *template.Template, format string, tplFormat template.Format) error {
	switch format {
	case "text":
		return writeText(w, t)
	case "csv":
		return writeCSV(w, t)
	case "json", "yaml", "":
		return template.Encode(w, t, tplFormat)
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}

func boxFields(a template.Annotation) []string {
	if a.BBox == nil {
		return []string{"", "", "", ""}
	}
	out := make([]string, 0, 4)
	for _, v := range a.BBox.Slice() {
		out = append(out, strconv.FormatFloat(v, 'f', -1, 64))
	}
	return out
}

func writeText(w io.Writer, t *template.Template) error {
	for _, a := range t.Annotations {
		b := boxFields(a)
		line := fmt.Sprintf("%-5s [%s, %s, %s, %s] %s", a.Type, b[0], b[1], b[2], b[3], a.Text)
		if a.Type == template.TypeValue && !a.KeyID.IsZero() {
			line += fmt.Sprintf(" (key %s, line %d)", a.KeyID, a.Order)
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func writeCSV(w io.Writer, t *template.Template) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"type", "x1", "y1", "x2", "y2", "text", "key_id", "order"}); err != nil {
		return err
	}
	for _, a := range t.Annotations {
		order := ""
		if a.Order > 0 {
			order = strconv.Itoa(a.Order)
		}
		row := append([]string{string(a.Type)}, boxFields(a)...)
		row = append(row, a.Text, a.KeyID.Key(), order)
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
