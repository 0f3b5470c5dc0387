// Package helpers holds the output formatting and flag plumbing shared by
// the cssharp-interop commands.
package helpers

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"
)

// OutputFormat names a rendering of command results.
type OutputFormat string

const (
	FormatTable OutputFormat = "table"
	FormatJSON  OutputFormat = "json"
	FormatYAML  OutputFormat = "yaml"
	FormatCSV   OutputFormat = "csv"
)

// AllFormats lists every format NewFormatter understands.
var AllFormats = []OutputFormat{FormatTable, FormatJSON, FormatYAML, FormatCSV}

// Formatter renders command results.
type Formatter interface {
	Format(data any, writer io.Writer) error
}

var formatters = map[OutputFormat]Formatter{
	FormatTable: &TableFormatter{},
	FormatJSON:  &JSONFormatter{},
	FormatYAML:  &YAMLFormatter{},
	FormatCSV:   &CSVFormatter{},
}

// NewFormatter returns the Formatter for format.
func NewFormatter(format OutputFormat) (Formatter, error) {
	f, ok := formatters[format]
	if !ok {
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
	return f, nil
}

// Render formats data with the named format.
func Render(format string, data any, writer io.Writer) error {
	f, err := NewFormatter(OutputFormat(format))
	if err != nil {
		return err
	}
	return f.Format(data, writer)
}

type JSONFormatter struct{}

func (*JSONFormatter) Format(data any, writer io.Writer) error {
	enc := json.NewEncoder(writer)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

type YAMLFormatter struct{}

func (*YAMLFormatter) Format(data any, writer io.Writer) error {
	enc := yaml.NewEncoder(writer)
	enc.SetIndent(2)
	if err := enc.Encode(data); err != nil {
		return err
	}
	return enc.Close()
}

// TableFormatter aligns a slice of structs into columns. Only fields with a
// `header` tag are shown; an empty slice prints nothing.
type TableFormatter struct{}

func (*TableFormatter) Format(data any, writer io.Writer) error {
	g, err := gridOf(data)
	if err != nil || g == nil {
		return err
	}

	tw := tabwriter.NewWriter(writer, 0, 0, 3, ' ', 0)
	for _, line := range g.lines() {
		if _, err := io.WriteString(tw, strings.Join(line, "\t")+"\n"); err != nil {
			return err
		}
	}
	return tw.Flush()
}

// CSVFormatter writes the same columns as TableFormatter as CSV records.
type CSVFormatter struct{}

func (*CSVFormatter) Format(data any, writer io.Writer) error {
	g, err := gridOf(data)
	if err != nil || g == nil {
		return err
	}

	cw := csv.NewWriter(writer)
	if err := cw.WriteAll(g.lines()); err != nil {
		return err
	}
	return cw.Error()
}

// grid is a slice of structs flattened to its `header` tagged columns.
type grid struct {
	header []string
	cells  [][]string
}

func (g *grid) lines() [][]string {
	return append([][]string{g.header}, g.cells...)
}

// gridOf flattens data, which must be a slice of structs or struct
// pointers. An empty slice yields a nil grid.
func gridOf(data any) (*grid, error) {
	v := reflect.ValueOf(data)
	if v.Kind() != reflect.Slice {
		return nil, fmt.Errorf("data must be a slice, got %T", data)
	}
	if v.Len() == 0 {
		return nil, nil
	}

	elem := v.Type().Elem()
	if elem.Kind() == reflect.Pointer {
		elem = elem.Elem()
	}
	if elem.Kind() != reflect.Struct {
		return nil, fmt.Errorf("data must be a slice of structs, got %T", data)
	}

	g := &grid{}
	var cols []int
	for i := 0; i < elem.NumField(); i++ {
		if h := elem.Field(i).Tag.Get("header"); h != "" {
			g.header = append(g.header, h)
			cols = append(cols, i)
		}
	}

	g.cells = make([][]string, v.Len())
	for r := 0; r < v.Len(); r++ {
		row := reflect.Indirect(v.Index(r))
		cells := make([]string, len(cols))
		for c, i := range cols {
			cells[c] = fmt.Sprint(row.Field(i).Interface())
		}
		g.cells[r] = cells
	}
	return g, nil
}
