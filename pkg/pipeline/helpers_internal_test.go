package pipeline

import (
	"context"
	"testing"

	"github.com/askiada/go-filter-sequence/pkg/row"
)

func idLayout() *row.Layout {
	return row.NewLayout(row.Field{Name: "id", Type: row.TypeInteger, Origin: "rows"})
}

// sendRecords sends total records with ids 0 to total-1, then closes the channel. When cancel is
// set, it is called right before the record with id cancelAt is sent.
func sendRecords(t *testing.T, total, cancelAt int, cancel context.CancelFunc) chan row.Record {
	t.Helper()

	layout := idLayout()
	records := make(chan row.Record)

	go func() {
		defer close(records)

		for i := range total {
			if cancel != nil && i == cancelAt {
				cancel()
			}
			records <- row.Record{Layout: layout, Values: row.Row{int64(i)}}
		}
	}()

	return records
}

// receiveIDs returns the id of every record read from records until it is closed.
func receiveIDs(t *testing.T, records <-chan row.Record) []int64 {
	t.Helper()

	ids := []int64{}
	for rec := range records {
		id, ok := rec.Get("id")
		if !ok {
			t.Errorf("record %s has no id", rec)

			continue
		}
		ids = append(ids, id.(int64)) //nolint:forcetypeassert
	}

	return ids
}

func withField(name string) func(context.Context, row.Record) (row.Record, error) {
	return func(_ context.Context, rec row.Record) (row.Record, error) {
		layout := rec.Layout.Clone()
		layout.Add(row.Field{Name: name, Type: row.TypeInteger, Origin: "test"})
		id, _ := rec.Get("id")

		return row.Record{Layout: layout, Values: row.AddValue(rec.Values, layout.Len()-1, id.(int64)*2)}, nil //nolint:forcetypeassert
	}
}

// drain reads c until it is closed, so that its sender never blocks.
func drain(c <-chan row.Record) {
	for range c { //nolint:revive
	}
}
