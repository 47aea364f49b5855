package storage

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type Payment struct {
	ID          int64
	PaymentDate string
	Product     string
	Amount      string
	CustomerID  string
	ImportedAt  string
}

const deletePayments = `DELETE FROM payments`

func (q *Queries) DeletePayments(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, deletePayments)
	return err
}

const insertPayment = `INSERT INTO payments (payment_date, product, amount, customer_id, imported_at)
VALUES (?, ?, ?, ?, ?)`

type InsertPaymentParams struct {
	PaymentDate string
	Product     string
	Amount      string
	CustomerID  string
	ImportedAt  string
}

func (q *Queries) InsertPayment(ctx context.Context, arg InsertPaymentParams) error {
	_, err := q.db.ExecContext(ctx, insertPayment,
		arg.PaymentDate,
		arg.Product,
		arg.Amount,
		arg.CustomerID,
		arg.ImportedAt,
	)
	return err
}

const listPayments = `SELECT id, payment_date, product, amount, customer_id, imported_at
FROM payments ORDER BY id`

func (q *Queries) ListPayments(ctx context.Context) ([]Payment, error) {
	rows, err := q.db.QueryContext(ctx, listPayments)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Payment
	for rows.Next() {
		var i Payment
		if err := rows.Scan(
			&i.ID,
			&i.PaymentDate,
			&i.Product,
			&i.Amount,
			&i.CustomerID,
			&i.ImportedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const countPayments = `SELECT COUNT(*) FROM payments`

func (q *Queries) CountPayments(ctx context.Context) (int64, error) {
	row := q.db.QueryRowContext(ctx, countPayments)
	var count int64
	err := row.Scan(&count)
	return count, err
}

type RunRow struct {
	ID                 string
	Source             string
	StartedAt          string
	FinishedAt         string
	RowsIn             int64
	InvalidDate        int64
	UnresolvedDuration int64
	ZeroAmount         int64
	RowsKept           int64
	LedgerRows         int64
	Status             string
	Error              string
}

const insertRun = `INSERT INTO runs (id, source, started_at, finished_at, rows_in, invalid_date,
    unresolved_duration, zero_amount, rows_kept, ledger_rows, status, error)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) InsertRun(ctx context.Context, arg RunRow) error {
	_, err := q.db.ExecContext(ctx, insertRun,
		arg.ID,
		arg.Source,
		arg.StartedAt,
		arg.FinishedAt,
		arg.RowsIn,
		arg.InvalidDate,
		arg.UnresolvedDuration,
		arg.ZeroAmount,
		arg.RowsKept,
		arg.LedgerRows,
		arg.Status,
		arg.Error,
	)
	return err
}

const listRuns = `SELECT id, source, started_at, finished_at, rows_in, invalid_date,
    unresolved_duration, zero_amount, rows_kept, ledger_rows, status, error
FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`

func (q *Queries) ListRuns(ctx context.Context, limit int64) ([]RunRow, error) {
	rows, err := q.db.QueryContext(ctx, listRuns, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []RunRow
	for rows.Next() {
		var i RunRow
		if err := rows.Scan(
			&i.ID,
			&i.Source,
			&i.StartedAt,
			&i.FinishedAt,
			&i.RowsIn,
			&i.InvalidDate,
			&i.UnresolvedDuration,
			&i.ZeroAmount,
			&i.RowsKept,
			&i.LedgerRows,
			&i.Status,
			&i.Error,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
