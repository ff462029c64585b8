package importer

import (
	"context"
	"time"

	"github.com/cleared-dev/ledgerfeed/internal/logctx"
	"github.com/cleared-dev/ledgerfeed/internal/model"
	"github.com/cleared-dev/ledgerfeed/internal/store"
)

// RetryPolicy bounds retries of remote calls with exponential backoff.
// Attempts <= 1 means every call is tried once.
type RetryPolicy struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// Do runs fn until it succeeds, fails permanently, attempts run out or ctx
// is done.
func (p RetryPolicy) Do(ctx context.Context, op string, fn func() error) error {
	attempts := max(p.Attempts, 1)
	delay := p.BaseDelay

	var err error
	for i := 1; ; i++ {
		if err = fn(); err == nil || permanent(err) || i >= attempts {
			return err
		}
		log := logctx.FromContext(ctx)
		log.Warn().Err(err).Str("op", op).Int("attempt", i).Dur("backoff", delay).Msg("retrying")

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return err
		case <-t.C:
		}
		delay *= 2
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}
}

// retryFiles applies a RetryPolicy to every FileStore call.
type retryFiles struct {
	next   store.FileStore
	policy RetryPolicy
}

func (r retryFiles) List(ctx context.Context, location string) (files []model.FileHandle, err error) {
	err = r.policy.Do(ctx, "list", func() error {
		files, err = r.next.List(ctx, location)
		return err
	})
	return files, err
}

func (r retryFiles) Read(ctx context.Context, h model.FileHandle) (data []byte, err error) {
	err = r.policy.Do(ctx, "read", func() error {
		data, err = r.next.Read(ctx, h)
		return err
	})
	return data, err
}

func (r retryFiles) Move(ctx context.Context, h model.FileHandle, from, to string) error {
	return r.policy.Do(ctx, "move", func() error {
		return r.next.Move(ctx, h, from, to)
	})
}

// retryTables applies a RetryPolicy to the TabularStore reads. Append is
// passed through once; the engine retries appends itself after re-filtering.
type retryTables struct {
	next   store.TabularStore
	policy RetryPolicy
}

func (r retryTables) Header(ctx context.Context, table string) (header []string, err error) {
	err = r.policy.Do(ctx, "header", func() error {
		header, err = r.next.Header(ctx, table)
		return err
	})
	return header, err
}

func (r retryTables) LastValue(ctx context.Context, table, column string) (v any, err error) {
	err = r.policy.Do(ctx, "last_value", func() error {
		v, err = r.next.LastValue(ctx, table, column)
		return err
	})
	return v, err
}

func (r retryTables) Append(ctx context.Context, table string, rows []model.RawRow) error {
	return r.next.Append(ctx, table, rows)
}
