package importer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/cleared-dev/ledgerfeed/internal/logctx"
	"github.com/cleared-dev/ledgerfeed/internal/model"
	"github.com/cleared-dev/ledgerfeed/internal/store"
)

// FileState is a step of the per-file pipeline.
type FileState string

const (
	StateListed            FileState = "listed"
	StateMetadataStripped  FileState = "metadata_stripped"
	StateTargetResolved    FileState = "target_resolved"
	StateWatermarkResolved FileState = "watermark_resolved"
	StateFiltered          FileState = "filtered"
	StateAppended          FileState = "appended"
	StateArchived          FileState = "archived"
	StateSkipped           FileState = "skipped"
	StateFailed            FileState = "failed"
)

// Feed is one source location imported into one destination table.
type Feed struct {
	Name         string
	Table        string
	Source       string
	Archive      string
	DateColumn   string
	MetadataRows int
	AmountColumn string // optional

	Files  store.FileStore
	Tables store.TabularStore
	// Destination identifies the table across feeds; feeds sharing it are
	// never run concurrently. Defaults to Table.
	Destination string
}

func (f Feed) destination() string {
	if f.Destination != "" {
		return f.Destination
	}
	return f.Table
}

// FileResult records what happened to one file.
type FileResult struct {
	Feed  string
	File  string
	State FileState
	// Reached is the last pipeline state completed before a failure or skip.
	Reached   FileState
	Reason    string
	Err       error
	Watermark model.DateKey
	Parsed    int // data rows after metadata removal
	Imported  int // rows appended, or that would be in a dry run
	Dropped   int // undated rows excluded by a non-empty watermark
	Amount    decimal.Decimal
	HasAmount bool
	DryRun    bool
}

// Class is the failure class of a failed file, or "".
func (r FileResult) Class() string {
	return Classify(r.Err)
}

func (r *FileResult) advance(s FileState) { r.State = s }

func (r *FileResult) fail(err error) {
	r.Reached = r.State
	r.State = StateFailed
	r.Err = err
	r.Reason = err.Error()
}

func (r *FileResult) skip(reason string) {
	r.Reached = r.State
	r.State = StateSkipped
	r.Reason = reason
}

// Options configures an Engine.
type Options struct {
	Location    *time.Location
	Retry       RetryPolicy
	DryRun      bool
	Concurrency int // destinations processed in parallel; <= 1 is sequential
}

// Engine runs the import pipeline.
type Engine struct {
	norm        *Normalizer
	retry       RetryPolicy
	dryRun      bool
	concurrency int
}

// New creates an Engine.
func New(opts Options) *Engine {
	return &Engine{
		norm:        NewNormalizer(opts.Location),
		retry:       opts.Retry,
		dryRun:      opts.DryRun,
		concurrency: max(opts.Concurrency, 1),
	}
}

// Normalizer returns the engine's date normalizer.
func (e *Engine) Normalizer() *Normalizer { return e.norm }

// ProcessFile runs one listed file through the pipeline. It never returns an
// error: every outcome, including a panic, is recorded on the result.
func (e *Engine) ProcessFile(ctx context.Context, feed Feed, h model.FileHandle) (res FileResult) {
	res = FileResult{Feed: feed.Name, File: h.Name, State: StateListed, DryRun: e.dryRun}
	ctx = logctx.WithStr(ctx, "file", h.Name)
	log := logctx.FromContext(ctx)

	defer func() {
		if r := recover(); r != nil {
			res.fail(fmt.Errorf("%w: panic: %v", ErrTransform, r))
		}
		logResult(log, res)
	}()

	files := retryFiles{next: feed.Files, policy: e.retry}
	tables := retryTables{next: feed.Tables, policy: e.retry}

	if err := e.process(ctx, feed, files, tables, h, &res); err != nil {
		res.fail(err)
	}
	return res
}

func (e *Engine) process(ctx context.Context, feed Feed, files store.FileStore, tables store.TabularStore, h model.FileHandle, res *FileResult) error {
	log := logctx.FromContext(ctx)
	log.Debug().Msg("processing file")

	data, err := files.Read(ctx, h)
	if err != nil {
		return fmt.Errorf("%w: reading %s: %w", ErrRemoteCall, h.Name, err)
	}
	rows, err := ParseCSV(data)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrTransform, h.Name, err)
	}

	if len(rows) <= feed.MetadataRows {
		res.skip(fmt.Sprintf("file too short: %d rows, %d metadata rows to skip", len(rows), feed.MetadataRows))
		return nil
	}
	batch := model.ImportBatch(rows[feed.MetadataRows:])
	res.Parsed = len(batch)
	res.advance(StateMetadataStripped)

	header, err := ResolveTarget(ctx, tables, feed.Table)
	if err != nil {
		return err
	}
	res.advance(StateTargetResolved)

	wm, err := watermarkFor(ctx, tables, feed.Table, feed.DateColumn, header, e.norm)
	if err != nil {
		return err
	}
	res.Watermark = wm.Key
	res.advance(StateWatermarkResolved)

	filtered := FilterNewRows(batch, wm.Column, wm.Key, e.norm)
	res.Imported = len(filtered.Rows)
	res.Dropped = filtered.Dropped(wm.Key)
	res.advance(StateFiltered)
	if res.Dropped > 0 {
		log.Warn().Int("dropped", res.Dropped).Msg("rows without a usable date were not imported")
	}
	e.total(ctx, feed, wm.Header, filtered.Rows, res)

	if e.dryRun {
		return nil
	}

	if len(filtered.Rows) > 0 {
		if err := e.appendRows(ctx, feed, batch, filtered.Rows); err != nil {
			return appendError(feed.Table, err)
		}
		res.advance(StateAppended)
	}

	if err := files.Move(ctx, h, feed.Source, feed.Archive); err != nil {
		return fmt.Errorf("%w: archiving %s: %w", ErrRemoteCall, h.Name, err)
	}
	res.advance(StateArchived)
	return nil
}

// appendRows appends rows under the retry policy. A failed append may still
// have landed, so every retry re-reads the watermark and re-filters batch
// before writing again.
func (e *Engine) appendRows(ctx context.Context, feed Feed, batch model.ImportBatch, rows []model.RawRow) error {
	tables := feed.Tables
	attempt := 0
	return e.retry.Do(ctx, "append", func() error {
		attempt++
		if attempt > 1 {
			header, err := ResolveTarget(ctx, tables, feed.Table)
			if err != nil {
				return err
			}
			wm, err := watermarkFor(ctx, tables, feed.Table, feed.DateColumn, header, e.norm)
			if err != nil {
				return err
			}
			rows = FilterNewRows(batch, wm.Column, wm.Key, e.norm).Rows
			if len(rows) == 0 {
				log := logctx.FromContext(ctx)
				log.Warn().Msg("rows found in table after a failed append, not written again")
				return nil
			}
		}
		return tables.Append(ctx, feed.Table, rows)
	})
}

// total sums the feed's amount column over the rows being imported.
func (e *Engine) total(ctx context.Context, feed Feed, header []string, rows []model.RawRow, res *FileResult) {
	if feed.AmountColumn == "" {
		return
	}
	log := logctx.FromContext(ctx)
	col := store.ColumnIndex(header, feed.AmountColumn)
	if col < 0 {
		log.Warn().Str("amount_column", feed.AmountColumn).Msg("amount column not in table header, no total")
		return
	}
	total, bad := sumAmounts(rows, col)
	if bad > 0 {
		log.Debug().Int("unreadable", bad).Msg("amount cells ignored in total")
	}
	res.Amount = total
	res.HasAmount = true
}

func appendError(table string, err error) error {
	switch {
	case errors.Is(err, store.ErrRowRejected):
		return fmt.Errorf("%w: appending to %s: %w", ErrTransform, table, err)
	case errors.Is(err, store.ErrTableNotFound):
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	default:
		return fmt.Errorf("%w: appending to %s: %w", ErrRemoteCall, table, err)
	}
}

func logResult(log zerolog.Logger, res FileResult) {
	switch res.State {
	case StateFailed:
		log.Error().Err(res.Err).
			Str("class", res.Class()).
			Str("reached", string(res.Reached)).
			Msg("file failed, left in source location")
	case StateSkipped:
		log.Info().Str("reason", res.Reason).Msg("file skipped")
	default:
		ev := log.Info().
			Str("state", string(res.State)).
			Stringer("watermark", res.Watermark).
			Int("parsed", res.Parsed).
			Int("imported", res.Imported).
			Bool("dry_run", res.DryRun)
		if res.HasAmount {
			ev = ev.Str("amount", res.Amount.StringFixed(2))
		}
		if res.Imported == 0 {
			ev.Msg("no new rows")
			return
		}
		ev.Msg("imported rows")
	}
}
