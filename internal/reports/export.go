package reports

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"expenses/internal/core"

	"gopkg.in/yaml.v3"
)

// ErrNoData is returned by Export when a month has nothing to report.
var ErrNoData = errors.New("no data for month")

type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatCSV  Format = "csv"
)

// IsValid returns true if the format is supported
func (f Format) IsValid() bool {
	switch f {
	case FormatJSON, FormatYAML, FormatCSV:
		return true
	default:
		return false
	}
}

// Formats returns all supported formats
func Formats() []Format {
	return []Format{FormatJSON, FormatYAML, FormatCSV}
}

// Exporter writes one report file per month.
type Exporter struct {
	engine *Engine
	dir    string
	format Format
}

func NewExporter(engine *Engine, dir string, format Format) (*Exporter, error) {
	if !format.IsValid() {
		return nil, fmt.Errorf("unsupported report format: %s", format)
	}
	if dir == "" {
		return nil, fmt.Errorf("report directory is empty")
	}
	return &Exporter{engine: engine, dir: dir, format: format}, nil
}

// Path returns where the report for month is written.
func (x *Exporter) Path(month core.Month) string {
	return filepath.Join(x.dir, fmt.Sprintf("%s_report.%s", month, x.format))
}

// ExportedMonths lists the months that have a report file of this
// exporter's format in the reports directory. A missing directory yields
// no months.
func (x *Exporter) ExportedMonths() ([]core.Month, error) {
	suffix := "_report." + string(x.format)
	paths, err := filepath.Glob(filepath.Join(x.dir, "*"+suffix))
	if err != nil {
		return nil, fmt.Errorf("scan reports directory: %w", err)
	}

	months := make([]core.Month, 0, len(paths))
	for _, p := range paths {
		m, err := core.ParseMonth(strings.TrimSuffix(filepath.Base(p), suffix))
		if err != nil {
			continue
		}
		months = append(months, m)
	}
	return months, nil
}

// Export writes the report for month and returns its path. It returns
// ErrNoData, and writes nothing, when the month has no expenses and no
// applicable fixed expenses.
func (x *Exporter) Export(ctx context.Context, month core.Month) (string, error) {
	report, err := x.engine.MonthReport(ctx, month)
	if err != nil {
		return "", err
	}
	if report.IsEmpty() {
		return "", ErrNoData
	}

	body, err := x.encode(report)
	if err != nil {
		return "", fmt.Errorf("encode %s report: %w", x.format, err)
	}

	path := x.Path(month)
	if err := writeFileAtomic(path, body); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}

	slog.InfoContext(ctx, "Report written",
		"month", month.String(),
		"format", string(x.format),
		"path", path)

	return path, nil
}

func (x *Exporter) encode(r core.MonthReport) ([]byte, error) {
	switch x.format {
	case FormatJSON:
		return json.MarshalIndent(newDocument(r), "", "  ")
	case FormatYAML:
		return yaml.Marshal(newDocument(r))
	case FormatCSV:
		return encodeCSV(r)
	default:
		return nil, fmt.Errorf("unsupported report format: %s", x.format)
	}
}

// Document is the serialised shape of a month report. Amounts are cents.
type Document struct {
	Month      string        `json:"month" yaml:"month"`
	Salary     int64         `json:"salary_cents" yaml:"salary_cents"`
	Variable   int64         `json:"variable_cents" yaml:"variable_cents"`
	Fixed      int64         `json:"fixed_cents" yaml:"fixed_cents"`
	TotalSpend int64         `json:"total_spend_cents" yaml:"total_spend_cents"`
	Net        int64         `json:"net_cents" yaml:"net_cents"`
	Categories []DocumentRow `json:"categories" yaml:"categories"`
	Daily      []DocumentRow `json:"daily" yaml:"daily"`
}

type DocumentRow struct {
	Key   string `json:"key" yaml:"key"`
	Cents int64  `json:"cents" yaml:"cents"`
}

func newDocument(r core.MonthReport) Document {
	doc := Document{
		Month:      r.Month.String(),
		Salary:     r.Income.Salary.Cents,
		Variable:   r.Income.Variable.Cents,
		Fixed:      r.Income.Fixed.Cents,
		TotalSpend: r.Income.TotalSpend.Cents,
		Net:        r.Income.Net.Cents,
		Categories: make([]DocumentRow, 0, len(r.ByCategory)),
		Daily:      make([]DocumentRow, 0, len(r.Daily)),
	}
	for _, c := range r.ByCategory {
		doc.Categories = append(doc.Categories, DocumentRow{Key: c.Category, Cents: c.Amount.Cents})
	}
	for _, d := range r.Daily {
		doc.Daily = append(doc.Daily, DocumentRow{Key: d.Date.String(), Cents: d.Amount.Cents})
	}
	return doc
}

// encodeCSV writes rows of section,key,amount_cents.
func encodeCSV(r core.MonthReport) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	records := [][]string{
		{"section", "key", "amount_cents"},
		{"income", "salary", strconv.FormatInt(r.Income.Salary.Cents, 10)},
		{"income", "variable", strconv.FormatInt(r.Income.Variable.Cents, 10)},
		{"income", "fixed", strconv.FormatInt(r.Income.Fixed.Cents, 10)},
		{"income", "total_spend", strconv.FormatInt(r.Income.TotalSpend.Cents, 10)},
		{"income", "net", strconv.FormatInt(r.Income.Net.Cents, 10)},
	}
	for _, c := range r.ByCategory {
		records = append(records, []string{"category", c.Category, strconv.FormatInt(c.Amount.Cents, 10)})
	}
	for _, d := range r.Daily {
		records = append(records, []string{"daily", d.Date.String(), strconv.FormatInt(d.Amount.Cents, 10)})
	}

	if err := w.WriteAll(records); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeFileAtomic(path string, body []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".report-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
