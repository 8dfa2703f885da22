package batch

import (
	"context"
	"sync"
)

type job struct {
	index int
	doc   Document
}

type jobResult struct {
	index  int
	result *DocumentResult
}

// processAll aligns documents with a fixed worker pool and returns results
// in input order. Documents not started before ctx is cancelled are absent
// (nil) from the returned slice. Unless continueOnError is set, the first
// failure stops dispatching further documents.
func processAll(
	ctx context.Context,
	p *Processor,
	docs []Document,
	workers int,
	continueOnError bool,
	progress ProgressCallback,
) []*DocumentResult {
	if progress == nil {
		progress = NoOpProgressCallback{}
	}
	if workers <= 0 {
		workers = 1
	}
	if workers > len(docs) {
		workers = max(len(docs), 1)
	}

	progress.OnStart(len(docs))
	defer progress.OnComplete()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan job)
	results := make(chan jobResult, len(docs))

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				results <- jobResult{index: j.index, result: p.Process(j.doc)}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i, doc := range docs {
			select {
			case jobs <- job{index: i, doc: doc}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	ordered := make([]*DocumentResult, len(docs))
	done := 0
	for r := range results {
		ordered[r.index] = r.result
		done++
		if r.result.Err != nil {
			progress.OnError(r.index, r.result.Err)
			if !continueOnError {
				cancel()
			}
		}
		progress.OnProgress(done, len(docs))
	}
	return ordered
}
