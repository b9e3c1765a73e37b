package agents

import (
	"context"
	"sync"

	"github.com/natexcvi/go-llm-eval/records"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

const DefaultMaxBatchSize = 64

// ProcessMultiple runs agent over recs and returns the processed records
// in input order. Restricted models get one request at a time. Otherwise
// recs are split into batches of at most maxBatchSize, each batch runs
// fully concurrently and the next batch starts once it is done.
func ProcessMultiple(ctx context.Context, agent Agent, recs []*records.Record, maxBatchSize int) []*records.Record {
	processed := make([]*records.Record, 0, len(recs))
	if agent.Model().Restricted {
		log.WithField("agent", agent.Name()).Infof("%s is restricted, processing records one by one", agent.Model().Name)
		for _, rec := range recs {
			processed = append(processed, agent.Process(ctx, rec))
		}
		return processed
	}

	if maxBatchSize <= 0 {
		maxBatchSize = DefaultMaxBatchSize
	}
	for _, batch := range lo.Chunk(recs, maxBatchSize) {
		results := make([]*records.Record, len(batch))
		var wg sync.WaitGroup
		for i, rec := range batch {
			wg.Add(1)
			go func() {
				defer wg.Done()
				results[i] = agent.Process(ctx, rec)
			}()
		}
		wg.Wait()
		processed = append(processed, results...)
	}
	return processed
}

// ProcessAsync processes rec in the background. The channel receives the
// processed record and is then closed.
func ProcessAsync(ctx context.Context, agent Agent, rec *records.Record) <-chan *records.Record {
	out := make(chan *records.Record, 1)
	go func() {
		defer close(out)
		out <- agent.Process(ctx, rec)
	}()
	return out
}
