package mohu

import (
	"context"
	"errors"
	"log/slog"

	"github.com/njoerd114/mohucal/internal/model"
	"github.com/njoerd114/mohucal/internal/retry"
)

type fetcher interface {
	Fetch(ctx context.Context, addr model.AddressConstraint, category model.Category) (*model.FetchResult, error)
}

// RetryingFetcher re-runs the whole cascade, each time in a fresh session,
// when it failed with a [*TransportError]. Resolution and structural errors
// are returned at once since repeating the query cannot change them.
type RetryingFetcher struct {
	next     fetcher
	attempts int
	log      *slog.Logger
}

// NewRetryingFetcher wraps next. attempts below 1 means a single try.
func NewRetryingFetcher(next fetcher, attempts int, logger *slog.Logger) *RetryingFetcher {
	return &RetryingFetcher{next: next, attempts: attempts, log: logger}
}

func (f *RetryingFetcher) Fetch(ctx context.Context, addr model.AddressConstraint, category model.Category) (*model.FetchResult, error) {
	var (
		res *model.FetchResult
		try int
	)
	err := retry.Do(ctx, f.attempts, func() error {
		try++
		var err error
		res, err = f.next.Fetch(ctx, addr, category)
		if err == nil {
			return nil
		}
		var te *TransportError
		if !errors.As(err, &te) {
			return retry.Permanent(err)
		}
		if try < f.attempts {
			f.log.Warn("address query failed, retrying", "attempt", try, "of", f.attempts, "error", err)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
