package pipeline_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/askiada/go-filter-sequence/pkg/pipeline"
	"github.com/askiada/go-filter-sequence/pkg/pipeline/model"
)

func addRoot(t *testing.T, pipe *pipeline.Pipeline, total int) *model.Step[int] {
	t.Helper()

	root, err := pipeline.AddRootStep(pipe, "root", func(ctx context.Context, rootChan chan<- int) error {
		for i := range total {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case rootChan <- i:
			}
		}

		return nil
	})
	require.NoError(t, err)

	return root
}

type collected struct {
	mu  sync.Mutex
	got []int
}

func (c *collected) values() []int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]int{}, c.got...)
}

func addCollector(t *testing.T, pipe *pipeline.Pipeline, name string, input *model.Step[int]) *collected {
	t.Helper()

	res := &collected{}
	err := pipeline.AddSink(pipe, name, input, func(_ context.Context, in int) error {
		res.mu.Lock()
		defer res.mu.Unlock()
		res.got = append(res.got, in)

		return nil
	})
	require.NoError(t, err)

	return res
}

func seq(n int) []int {
	out := make([]int, n)
	for i := range n {
		out[i] = i
	}

	return out
}
