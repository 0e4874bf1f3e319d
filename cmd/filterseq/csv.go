package main

import (
	"context"
	"encoding/csv"
	"io"
	"slices"

	"github.com/pkg/errors"

	"github.com/askiada/go-filter-sequence/pkg/row"
	"github.com/askiada/go-filter-sequence/pkg/sequence"
)

var errHeaderMismatch = errors.New("header differs from the first input")

// csvSource reads rows from CSV text whose first line holds the column names. Empty cells are
// null.
type csvSource struct {
	reader *csv.Reader
	layout *row.Layout
	line   int
}

func newCSVSource(r io.Reader, comma rune, types map[string]row.Type) (*csvSource, error) {
	reader := csv.NewReader(r)
	reader.Comma = comma
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err != nil {
		return nil, errors.Wrap(err, "unable to read csv header")
	}

	layout := row.NewLayout()
	for _, name := range header {
		typ, ok := types[name]
		if !ok {
			typ = row.TypeString
		}
		layout.Add(row.Field{Name: name, Type: typ, Origin: "csv input"})
	}

	return &csvSource{reader: reader, layout: layout, line: 1}, nil
}

// sameHeader reports whether other has the columns of s, in the same order.
func (s *csvSource) sameHeader(other *csvSource) bool {
	return slices.Equal(s.layout.Names(), other.layout.Names())
}

func (s *csvSource) Layout() *row.Layout {
	return s.layout
}

func (s *csvSource) Next(ctx context.Context) (row.Record, bool, error) {
	if err := ctx.Err(); err != nil {
		return row.Record{}, false, err
	}

	cells, err := s.reader.Read()
	if errors.Is(err, io.EOF) {
		return row.Record{}, false, nil
	}
	if err != nil {
		return row.Record{}, false, errors.Wrap(err, "unable to read csv row")
	}
	s.line++

	values := make(row.Row, s.layout.Len())
	for i := range values {
		if i >= len(cells) || cells[i] == "" {
			continue
		}
		values[i], err = row.ParseValue(s.layout.Field(i).Type, cells[i])
		if err != nil {
			return row.Record{}, false, errors.Wrapf(err, "line %d, column %s", s.line, s.layout.Field(i).Name)
		}
	}

	return row.Record{Layout: s.layout, Values: values}, true, nil
}

// emit sends every row to out until the input is exhausted.
func (s *csvSource) emit(ctx context.Context, out chan<- row.Record) error {
	for {
		rec, ok, err := s.Next(ctx)
		if err != nil || !ok {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case out <- rec:
		}
	}
}

// csvSink writes rows as CSV text, header first.
type csvSink struct {
	writer *csv.Writer
	width  int
	err    error
}

func newCSVSink(w io.Writer, comma rune, layout *row.Layout) (*csvSink, error) {
	writer := csv.NewWriter(w)
	writer.Comma = comma

	err := writer.Write(layout.Names())
	if err != nil {
		return nil, errors.Wrap(err, "unable to write csv header")
	}

	return &csvSink{writer: writer, width: layout.Len()}, nil
}

// format renders rec as the cells of one line. Missing trailing values are empty cells.
func (s *csvSink) format(_ context.Context, rec row.Record) ([]string, error) {
	cells := make([]string, s.width)
	for i := range cells {
		if i < len(rec.Values) {
			cells[i] = row.FormatValue(rec.Values[i])
		}
	}

	return cells, nil
}

func (s *csvSink) write(_ context.Context, cells []string) error {
	err := s.writer.Write(cells)
	if err != nil {
		return errors.Wrap(err, "unable to write csv row")
	}

	return nil
}

// Done flushes the buffered rows. The flush error is returned by Err.
func (s *csvSink) Done() {
	s.writer.Flush()
	s.err = s.writer.Error()
}

func (s *csvSink) Err() error {
	return s.err
}

var _ sequence.RowSource = (*csvSource)(nil)
