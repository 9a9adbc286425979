// Package aggregator fans a listing request out to every configured source,
// waits for all of them and ranks each source's streams by viewer count.
package aggregator

import (
	"context"
	"errors"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/john/commander/internal/logging"
	"github.com/john/commander/internal/metrics"
	"github.com/john/commander/internal/source"
)

// Aggregator runs the fetch, normalize and rank pipeline for a fixed set of sources.
type Aggregator struct {
	sources []source.Config
	fetcher source.Fetcher
}

// New creates an aggregator over sources, in the order results are reported.
func New(fetcher source.Fetcher, sources []source.Config) *Aggregator {
	return &Aggregator{
		sources: append([]source.Config(nil), sources...),
		fetcher: fetcher,
	}
}

// Sources returns the configured sources in report order.
func (a *Aggregator) Sources() []source.Config {
	return append([]source.Config(nil), a.sources...)
}

// Aggregate fetches every source concurrently and returns one Result per source,
// in configuration order. It never fails as a whole: a failed source yields a
// Result with no records and Err set.
func (a *Aggregator) Aggregate(ctx context.Context) []source.Result {
	log := logging.Ctx(ctx)
	results := make([]source.Result, len(a.sources))

	var g errgroup.Group
	g.SetLimit(max(len(a.sources), 1))
	for i, src := range a.sources {
		g.Go(func() error {
			results[i] = a.collect(ctx, src)
			return nil
		})
	}
	_ = g.Wait()

	log.Info().Int("sources", len(results)).Msg("Loaded stream listings")
	return results
}

// ByID indexes results by source id.
func ByID(results []source.Result) map[string]source.Result {
	out := make(map[string]source.Result, len(results))
	for _, r := range results {
		out[r.Source.ID] = r
	}
	return out
}

func (a *Aggregator) collect(ctx context.Context, src source.Config) source.Result {
	log := logging.Ctx(ctx).With().Str(logging.FieldSource, src.ID).Logger()

	start := time.Now()
	raw, err := a.fetcher.Fetch(ctx, src.URL, src.Timeout)
	metrics.SourceFetchDuration.WithLabelValues(src.ID).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.SourceFetches.WithLabelValues(src.ID, metrics.ResultFetchError).Inc()
		ev := log.Warn().Err(err)
		var fe *source.FetchError
		if errors.As(err, &fe) {
			ev = ev.Str("kind", string(fe.Kind))
		}
		ev.Msg("Listing fetch failed, skipping source")
		return source.Result{Source: src, Records: []source.StreamRecord{}, Err: err}
	}

	records, err := source.Normalize(src, raw)
	if err != nil {
		metrics.SourceFetches.WithLabelValues(src.ID, metrics.ResultDecodeError).Inc()
		log.Warn().Err(err).Msg("Listing decode failed, skipping source")
		return source.Result{Source: src, Records: []source.StreamRecord{}, Err: err}
	}

	metrics.SourceFetches.WithLabelValues(src.ID, metrics.ResultOK).Inc()
	Rank(records)
	log.Info().Int("streams", len(records)).Msgf("Got %d %s streams.", len(records), src.Label)
	return source.Result{Source: src, Records: records}
}

// Rank sorts records by viewer count, highest first. Ties keep input order.
func Rank(records []source.StreamRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Viewers > records[j].Viewers
	})
}
