package importer

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/cleared-dev/ledgerfeed/internal/logctx"
)

// FeedResult records the files processed for one feed.
type FeedResult struct {
	Feed  string
	Err   error // listing the source location failed
	Files []FileResult
	// Interrupted is set when the run was canceled before every file was seen.
	Interrupted bool
}

// RunReport collects the results of every feed in configuration order.
type RunReport struct {
	Feeds []FeedResult
}

// Totals summarizes a RunReport.
type Totals struct {
	Feeds        int
	FeedFailures int
	Files        int
	Archived     int
	Skipped      int
	Failed       int
	Imported     int
	Dropped      int
}

// Totals counts outcomes across all feeds.
func (r *RunReport) Totals() Totals {
	t := Totals{Feeds: len(r.Feeds)}
	for _, f := range r.Feeds {
		if f.Err != nil {
			t.FeedFailures++
		}
		for _, res := range f.Files {
			t.Files++
			t.Dropped += res.Dropped
			switch res.State {
			case StateArchived:
				t.Archived++
				t.Imported += res.Imported
			case StateSkipped:
				t.Skipped++
			case StateFailed:
				t.Failed++
			default:
				t.Imported += res.Imported
			}
		}
	}
	return t
}

// OK reports whether no feed or file failed.
func (r *RunReport) OK() bool {
	t := r.Totals()
	return t.Failed == 0 && t.FeedFailures == 0
}

// Run imports every feed. Feeds are processed in order; with Concurrency > 1,
// feeds writing to different destinations run in parallel while feeds that
// share a destination stay sequential. Files within a feed are always
// processed one at a time, in listing order, so each watermark read sees the
// previous file's append.
//
// Run only returns an error when ctx is done before the run completes; the
// partial report is returned with it.
func (e *Engine) Run(ctx context.Context, feeds []Feed) (*RunReport, error) {
	report := &RunReport{Feeds: make([]FeedResult, len(feeds))}

	var order []string
	groups := make(map[string][]int)
	for i, f := range feeds {
		d := f.destination()
		if _, ok := groups[d]; !ok {
			order = append(order, d)
		}
		groups[d] = append(groups[d], i)
	}

	runGroup := func(idx []int) {
		for _, i := range idx {
			report.Feeds[i] = e.RunFeed(ctx, feeds[i])
		}
	}

	if e.concurrency <= 1 {
		for i, f := range feeds {
			report.Feeds[i] = e.RunFeed(ctx, f)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(e.concurrency)
		for _, d := range order {
			idx := groups[d]
			g.Go(func() error {
				runGroup(idx)
				return nil
			})
		}
		_ = g.Wait()
	}

	t := report.Totals()
	log := logctx.FromContext(ctx)
	log.Info().
		Int("feeds", t.Feeds).
		Int("feed_failures", t.FeedFailures).
		Int("files", t.Files).
		Int("archived", t.Archived).
		Int("skipped", t.Skipped).
		Int("failed", t.Failed).
		Int("imported", t.Imported).
		Bool("dry_run", e.dryRun).
		Msg("run complete")

	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("run interrupted: %w", err)
	}
	return report, nil
}

// RunFeed lists the feed's source location and processes each CSV file.
func (e *Engine) RunFeed(ctx context.Context, feed Feed) FeedResult {
	res := FeedResult{Feed: feed.Name}
	ctx = logctx.WithStr(ctx, "feed", feed.Name)
	log := logctx.FromContext(ctx)
	log.Info().Str("table", feed.Table).Str("source", feed.Source).Msg("processing feed")

	files := retryFiles{next: feed.Files, policy: e.retry}
	listed, err := files.List(ctx, feed.Source)
	if err != nil {
		res.Err = fmt.Errorf("%w: listing %s: %w", ErrRemoteCall, feed.Source, err)
		log.Error().Err(res.Err).Msg("listing source failed, feed skipped")
		return res
	}

	for _, h := range listed {
		if !h.IsCSV() {
			log.Debug().Str("file", h.Name).Msg("not a CSV file, ignored")
			continue
		}
		if ctx.Err() != nil {
			res.Interrupted = true
			log.Warn().Msg("run canceled, remaining files left for the next run")
			break
		}
		res.Files = append(res.Files, e.ProcessFile(ctx, feed, h))
	}
	return res
}

// ImportedAmount totals the amount column across the feed's files.
func (f FeedResult) ImportedAmount() (decimal.Decimal, bool) {
	total := decimal.Zero
	found := false
	for _, r := range f.Files {
		if r.HasAmount && r.State != StateFailed {
			total = total.Add(r.Amount)
			found = true
		}
	}
	return total, found
}
