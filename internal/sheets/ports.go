// Package sheets defines where raw payment tables come from. Adapters live
// in subpackages; caching and freshness policy live here, outside the core.
package sheets

import (
	"context"
	"errors"

	"github.com/kina2711/subscription-analytics/internal/table"
)

var ErrSourceUnavailable = errors.New("source unavailable")

// Ports for outbound adapters.
type (
	// TransactionSource returns the raw payment table.
	TransactionSource interface {
		Fetch(ctx context.Context) (table.Table, error)
		// Name identifies the source in logs and the run log.
		Name() string
	}

	// Versioned is implemented by sources that can tell callers whether
	// the table changed. Equal non-zero versions mean the same table.
	Versioned interface {
		FetchVersion(ctx context.Context) (table.Table, uint64, error)
	}

	// Invalidator is implemented by sources holding a cached copy.
	Invalidator interface {
		Invalidate()
	}
)
