// Package search fans a single logical query out to every enabled source
// and merges the results, tolerating partial failure.
package search

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"fetcharr/internal/source"
)

// ErrorSink receives per-source failures so the health view can surface the
// last error a source produced.
type ErrorSink interface {
	RecordSourceError(sourceID, message string)
}

// Aggregator dispatches queries concurrently to every enabled source.
type Aggregator struct {
	registry *source.Registry
	logger   zerolog.Logger
	sink     ErrorSink
}

// NewAggregator builds an aggregator over the registry. sink may be nil.
func NewAggregator(registry *source.Registry, sink ErrorSink, logger zerolog.Logger) *Aggregator {
	return &Aggregator{registry: registry, logger: logger, sink: sink}
}

// Search queries every enabled source whose categories intersect cats (all
// of them when cats is empty), one concurrent task per source. A failing or
// empty source contributes zero records; the call returns only after every
// task has finished.
func (a *Aggregator) Search(ctx context.Context, query string, cats []string) []source.Result {
	return a.fanOut(ctx, func(s source.Source) ([]source.Result, error) {
		var results []source.Result
		for _, cat := range s.Categories() {
			if len(cats) > 0 && !lo.Contains(cats, cat) {
				continue
			}
			res, err := s.Search(ctx, query, cat)
			if err != nil {
				return results, err
			}
			results = append(results, res...)
		}
		return results, nil
	})
}

// TestSearch runs each enabled source's own test query, honoring the
// category filter. Clients use this to verify the indexer is alive.
func (a *Aggregator) TestSearch(ctx context.Context, cats []string) []source.Result {
	return a.fanOut(ctx, func(s source.Source) ([]source.Result, error) {
		var results []source.Result
		for _, cat := range s.Categories() {
			if len(cats) > 0 && !lo.Contains(cats, cat) {
				continue
			}
			res, err := s.Search(ctx, s.TestQuery(), cat)
			if err != nil {
				return results, err
			}
			results = append(results, res...)
		}
		return results, nil
	})
}

// Feed triggers every enabled source's passive feed, for periodic sync
// requests that carry no query. Sources without a feed contribute nothing.
func (a *Aggregator) Feed(ctx context.Context) []source.Result {
	return a.fanOut(ctx, func(s source.Source) ([]source.Result, error) {
		feeder, ok := s.(source.Feeder)
		if !ok {
			return nil, nil
		}
		return feeder.Feed(ctx)
	})
}

// fanOut runs task once per enabled source in parallel and merges the
// outputs. Task failures are logged and isolated, never propagated.
func (a *Aggregator) fanOut(ctx context.Context, task func(source.Source) ([]source.Result, error)) []source.Result {
	var (
		mu     sync.Mutex
		merged []source.Result
	)
	var g errgroup.Group
	for _, s := range a.registry.EnabledSources() {
		s := s
		g.Go(func() error {
			results, err := task(s)
			if err != nil {
				a.logger.Warn().Err(err).Str("source_id", s.ID()).Msg("search: source failed")
				if a.sink != nil {
					a.sink.RecordSourceError(s.ID(), err.Error())
				}
			}
			if len(results) == 0 {
				return nil
			}
			mu.Lock()
			merged = append(merged, results...)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return merged
}
