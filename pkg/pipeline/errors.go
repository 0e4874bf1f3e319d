package pipeline

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

var (
	ErrPipelineMustBeSet = errors.New("p must be set")
	ErrInputMustBeSet    = errors.New("input must be set")
	ErrSplitterTotal     = errors.New("total must be greater than 0")
	ErrMergerInputs      = errors.New("merger needs at least one input")
	ErrCopiesMustBeSet   = errors.New("at least one copy must be set")
)

type errorChans struct {
	mu   sync.Mutex
	list []*errorChan
}

func (ec *errorChans) add(errChan *errorChan) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	ec.list = append(ec.list, errChan)
}

type errorChan struct {
	c    <-chan error
	name string
}

func newErrorChan(name string, c <-chan error) *errorChan {
	return &errorChan{
		c:    c,
		name: name,
	}
}

// mergeErrors fans the error channels of every step into one channel, each error wrapped with
// the name of its step. The output holds one slot per input so that it never blocks once the
// reader stops early.
func mergeErrors(cs ...*errorChan) <-chan error {
	var wg sync.WaitGroup

	out := make(chan error, len(cs))

	output := func(c *errorChan) {
		defer wg.Done()
		if c.c == nil {
			return
		}
		for n := range c.c {
			out <- errors.Wrap(n, c.name)
		}
	}
	wg.Add(len(cs))
	for _, c := range cs {
		go output(c)
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	return out
}

// runAndReport runs fn and reports its error, if any, on a new error channel registered under
// name.
func (p *Pipeline) runAndReport(name string, fn func(ctx context.Context) error) {
	errC := make(chan error, 1)
	p.errcList.add(newErrorChan(name, errC))
	p.start(func(ctx context.Context) {
		defer close(errC)

		err := fn(ctx)
		if err != nil {
			errC <- err
		}
	})
}
