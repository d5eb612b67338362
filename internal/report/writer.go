package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatXLSX = "xlsx"
)

// Writer renders a Result.
type Writer interface {
	Write(w io.Writer, res *Result) error
	// ContentType is the MIME type of the rendered output.
	ContentType() string
}

// NewWriter returns the writer for format.
func NewWriter(format string) (Writer, error) {
	switch format {
	case FormatText, "":
		return TextWriter{}, nil
	case FormatJSON:
		return JSONWriter{Indent: "  "}, nil
	case FormatYAML:
		return YAMLWriter{}, nil
	case FormatXLSX:
		return XLSXWriter{}, nil
	default:
		return nil, fmt.Errorf("unsupported output format %q", format)
	}
}

// TextWriter prints one labelled section per selected report, the way the console report always has.
type TextWriter struct{}

func (TextWriter) ContentType() string { return "text/plain; charset=utf-8" }

func (TextWriter) Write(w io.Writer, res *Result) error {
	var buf bytes.Buffer
	s := res.Summary

	if s.TotalSales != nil {
		fmt.Fprintf(&buf, "Total Sales: %s\n", strconv.FormatFloat(*s.TotalSales, 'f', -1, 64))
	}

	sections := []struct {
		label string
		value interface{}
		set   bool
	}{
		{"Monthly Sales:", s.MonthlySales, s.MonthlySales != nil},
		{"Popular Items:", s.PopularItems, s.PopularItems != nil},
		{"Most Revenue Generating Items:", s.TopRevenueItems, s.TopRevenueItems != nil},
		{"Most Popular Item Details:", s.PopularItemStats, s.PopularItemStats != nil},
	}
	for _, sec := range sections {
		if !sec.set {
			continue
		}
		b, err := json.MarshalIndent(sec.value, "", "  ")
		if err != nil {
			return fmt.Errorf("render %s: %w", strings.TrimSuffix(sec.label, ":"), err)
		}
		fmt.Fprintf(&buf, "%s %s\n", sec.label, b)
	}

	_, err := w.Write(buf.Bytes())
	return err
}

// JSONWriter encodes the whole Result as JSON.
type JSONWriter struct {
	Indent string
}

func (JSONWriter) ContentType() string { return "application/json; charset=utf-8" }

func (jw JSONWriter) Write(w io.Writer, res *Result) error {
	enc := json.NewEncoder(w)
	if jw.Indent != "" {
		enc.SetIndent("", jw.Indent)
	}
	return enc.Encode(res)
}

// YAMLWriter encodes the whole Result as YAML, keeping ledger order of years and months.
type YAMLWriter struct{}

func (YAMLWriter) ContentType() string { return "application/yaml; charset=utf-8" }

func (YAMLWriter) Write(w io.Writer, res *Result) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(res); err != nil {
		return err
	}
	return enc.Close()
}
