package segment

import (
	"context"
	"runtime"
	"sync"

	"github.com/parlaclarin/pipeline/internal/domain"
)

// Parser turns one source file into a protocol.
type Parser func(ctx context.Context, path string) (*domain.Protocol, error)

// Result is the outcome of exploding one file.
type Result struct {
	Path     string
	Protocol string
	Segments []domain.Segment
	Err      error
}

// PoolOptions tunes multi-file explosion.
type PoolOptions struct {
	// Workers is the number of concurrent file workers; <= 0 uses NumCPU.
	Workers int
	// PreserveOrder delivers results in submission order. Leave it off for
	// order-independent consumers (faster); turn it on when the downstream
	// merger relies on stream order.
	PreserveOrder bool
}

// ExplodeMany parses and explodes many files, one whole file per worker.
// Workers share nothing; within a file, segment order is always document
// order. Results stream on the returned channel, which closes when all
// files are done or ctx is cancelled. A file that fails to parse or explode
// is reported in its Result rather than aborting the batch.
func (e *Exploder) ExplodeMany(ctx context.Context, parse Parser, paths []string, opts PoolOptions) <-chan Result {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(paths) && len(paths) > 0 {
		workers = len(paths)
	}

	type indexed struct {
		idx int
		res Result
	}

	jobs := make(chan int)
	collected := make(chan indexed)
	out := make(chan Result)

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for idx := range jobs {
				res := e.explodeOne(ctx, parse, paths[idx])
				select {
				case collected <- indexed{idx: idx, res: res}:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i := range paths {
			select {
			case jobs <- i:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(collected)
	}()

	go func() {
		defer close(out)
		if !opts.PreserveOrder {
			for item := range collected {
				select {
				case out <- item.res:
				case <-ctx.Done():
					return
				}
			}
			return
		}

		// Reorder buffer: hold early finishers until their turn.
		pending := make(map[int]Result)
		next := 0
		for item := range collected {
			pending[item.idx] = item.res
			for {
				res, ok := pending[next]
				if !ok {
					break
				}
				delete(pending, next)
				select {
				case out <- res:
				case <-ctx.Done():
					return
				}
				next++
			}
		}
	}()

	return out
}

func (e *Exploder) explodeOne(ctx context.Context, parse Parser, path string) Result {
	protocol, err := parse(ctx, path)
	if err != nil {
		return Result{Path: path, Err: err}
	}
	segments, err := e.Explode(protocol)
	if err != nil {
		return Result{Path: path, Protocol: protocol.Name, Err: err}
	}
	return Result{Path: path, Protocol: protocol.Name, Segments: segments}
}
