package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kina2711/subscription-analytics/internal/core"
	"github.com/kina2711/subscription-analytics/internal/duration"
	"github.com/kina2711/subscription-analytics/internal/log"
	"github.com/kina2711/subscription-analytics/internal/table"
)

var ErrAmountNotNumeric = errors.New("amount column is not numeric")

// Recorder receives the outcome of every successful Process call.
type Recorder interface {
	ObserveRun(r Report, elapsed time.Duration)
}

// Processor cleans raw payment tables and expands them into the ledger.
// It holds no state between calls and is safe for concurrent use.
type Processor struct {
	resolver *duration.Resolver
	workers  int
	logger   *log.Logger
	recorder Recorder
}

type Option func(*Processor)

// WithWorkers bounds the number of transactions expanded concurrently.
// Values below 2 expand inline.
func WithWorkers(n int) Option {
	return func(p *Processor) { p.workers = n }
}

func WithLogger(l *log.Logger) Option {
	return func(p *Processor) {
		if l != nil {
			p.logger = l.WithComponent(log.ComponentLedger)
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(p *Processor) { p.recorder = r }
}

// NewProcessor returns a processor resolving durations with resolver, or the
// built-in table when resolver is nil.
func NewProcessor(resolver *duration.Resolver, opts ...Option) *Processor {
	if resolver == nil {
		resolver = duration.Default()
	}
	p := &Processor{
		resolver: resolver,
		workers:  1,
		logger:   log.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process cleans t and expands the surviving rows into the daily ledger.
//
// Rows with a missing or unparseable payment date are dropped. Rows whose
// product resolves to no duration are dropped. Unreadable amounts count as
// zero revenue. Role resolution failures and a majority of amount cells
// without any digit fail the whole call.
func (p *Processor) Process(ctx context.Context, t table.Table, roles table.Roles) (Result, error) {
	start := time.Now()
	if t.Empty() {
		return Result{}, nil
	}
	schema, err := roles.Resolve(t)
	if err != nil {
		return Result{}, err
	}

	rep := Report{RowsIn: t.Len()}
	dated := make([]core.Transaction, 0, t.Len())
	for i := range t.Rows {
		d, err := core.ParseDate(t.Cell(i, schema.Date))
		if err != nil {
			rep.InvalidDate++
			continue
		}
		tx := core.Transaction{
			ID:          i + 1,
			PaymentDate: d,
			Product:     t.Cell(i, schema.Product),
			AmountRaw:   t.Cell(i, schema.Amount),
			CustomerID:  core.UnknownCustomer,
		}
		if schema.HasCustomer() {
			tx.CustomerID = core.NormalizeCustomerID(t.Cell(i, schema.Customer))
		}
		dated = append(dated, tx)
	}

	if err := checkNumeric(dated, schema.AmountName); err != nil {
		return Result{}, err
	}

	cleaned := make([]core.CleanedTransaction, 0, len(dated))
	for _, tx := range dated {
		days := p.resolver.Resolve(tx.Product)
		if days == duration.Unresolved {
			rep.UnresolvedDuration++
			p.logger.DebugContext(ctx, "Unresolved product duration", "row", tx.ID, "product", tx.Product)
			continue
		}
		ct := core.NewCleanedTransaction(tx, days)
		if ct.Amount == 0 {
			rep.ZeroAmount++
		}
		cleaned = append(cleaned, ct)
	}
	rep.RowsKept = len(cleaned)

	rows, err := p.expandAll(ctx, cleaned)
	if err != nil {
		return Result{}, err
	}
	rep.LedgerRows = len(rows)

	p.logger.InfoContext(ctx, "Processed transactions", rep.fields().ToSlice()...)
	if p.recorder != nil {
		p.recorder.ObserveRun(rep, time.Since(start))
	}
	return Result{
		Transactions: cleaned,
		Ledger:       rows,
		Report:       rep,
		HasCustomer:  schema.HasCustomer(),
	}, nil
}

// expandAll expands each transaction into its own slot and concatenates the
// slots in transaction order, so the ledger does not depend on scheduling.
func (p *Processor) expandAll(ctx context.Context, txs []core.CleanedTransaction) ([]core.LedgerRow, error) {
	slots := make([][]core.LedgerRow, len(txs))
	if p.workers < 2 {
		for i, tx := range txs {
			rows, err := Expand(tx)
			if err != nil {
				return nil, err
			}
			slots[i] = rows
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(p.workers)
		for i, tx := range txs {
			i, tx := i, tx
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				rows, err := Expand(tx)
				if err != nil {
					return err
				}
				slots[i] = rows
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	total := 0
	for _, s := range slots {
		total += len(s)
	}
	out := make([]core.LedgerRow, 0, total)
	for _, s := range slots {
		out = append(out, s...)
	}
	return out, nil
}

func checkNumeric(txs []core.Transaction, column string) error {
	if len(txs) == 0 {
		return nil
	}
	bad := 0
	for _, tx := range txs {
		if !core.HasDigits(tx.AmountRaw) {
			bad++
		}
	}
	if bad*2 > len(txs) {
		return fmt.Errorf("%w: %d of %d values in column %q have no digits", ErrAmountNotNumeric, bad, len(txs), column)
	}
	return nil
}

// ToTable renders cleaned transactions as a raw table with the default
// headers, so it can be fed back through Process.
func ToTable(txs []core.CleanedTransaction) table.Table {
	rows := make([][]string, 0, len(txs))
	for _, tx := range txs {
		rows = append(rows, []string{
			tx.PaymentDate.DayFirst(),
			tx.Product,
			core.FormatAmount(tx.Amount),
			tx.CustomerID,
		})
	}
	return table.New([]string{
		table.DefaultDateColumn,
		table.DefaultProductColumn,
		table.DefaultAmountColumn,
		table.DefaultCustomerColumn,
	}, rows)
}
