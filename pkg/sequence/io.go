package sequence

import (
	"context"

	"github.com/askiada/go-filter-sequence/pkg/row"
)

// RowSource hands rows to a stage. Next returns false once the stream is exhausted.
type RowSource interface {
	Next(ctx context.Context) (row.Record, bool, error)
}

// RowSink receives the rows emitted by a stage. Done is called once the stage stops emitting.
type RowSink interface {
	Put(ctx context.Context, rec row.Record) error
	Done()
}

type chanSource struct {
	c <-chan row.Record
}

// NewChanSource reads rows from c until it is closed.
func NewChanSource(c <-chan row.Record) RowSource {
	return &chanSource{c: c}
}

func (s *chanSource) Next(ctx context.Context) (row.Record, bool, error) {
	select {
	case <-ctx.Done():
		return row.Record{}, false, ctx.Err()
	case rec, ok := <-s.c:
		return rec, ok, nil
	}
}

type chanSink struct {
	c chan<- row.Record
}

// NewChanSink writes rows to c. The channel is left open: its owner closes it.
func NewChanSink(c chan<- row.Record) RowSink {
	return &chanSink{c: c}
}

func (s *chanSink) Put(ctx context.Context, rec row.Record) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case s.c <- rec:
		return nil
	}
}

func (s *chanSink) Done() {}
