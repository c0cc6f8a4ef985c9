package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver

	"peer-review/api/internal/ledger"
)

const schema = `
create table if not exists submissions (
  id               bigserial primary key,
  created_at       timestamptz not null default now(),
  module           text not null,
  group_number     text not null,
  included_figures boolean not null default false,
  unique (module, group_number)
)`

// SubmissionRepo is the Postgres-backed ledger. Uniqueness of
// (module, group_number) is enforced by the table itself.
type SubmissionRepo struct{ DB *sql.DB }

var _ ledger.Store = (*SubmissionRepo)(nil)

func NewSubmissionRepo(db *sql.DB) *SubmissionRepo { return &SubmissionRepo{DB: db} }

// Open connects through the pgx stdlib driver and pings the server.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(1 * time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db.Ping: %w", err)
	}
	return db, nil
}

func (r *SubmissionRepo) EnsureSchema(ctx context.Context) error {
	_, err := r.DB.ExecContext(ctx, schema)
	return err
}

func (r *SubmissionRepo) Load(ctx context.Context) ([]ledger.Record, error) {
	const q = `select created_at, module, group_number, included_figures
	           from submissions order by created_at, id`
	rows, err := r.DB.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []ledger.Record{}
	for rows.Next() {
		var rec ledger.Record
		if err := rows.Scan(&rec.Timestamp, &rec.Module, &rec.GroupNumber, &rec.IncludedFigures); err != nil {
			return nil, err
		}
		rec.Timestamp = rec.Timestamp.UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Save replaces the table contents in one transaction.
func (r *SubmissionRepo) Save(ctx context.Context, records []ledger.Record) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `delete from submissions`); err != nil {
		return err
	}
	const ins = `insert into submissions (created_at, module, group_number, included_figures)
	             values ($1,$2,$3,$4)`
	for _, rec := range records {
		if _, err := tx.ExecContext(ctx, ins, rec.Timestamp, rec.Module, rec.GroupNumber, rec.IncludedFigures); err != nil {
			return fmt.Errorf("insert %s: %w", rec.Key(), err)
		}
	}
	return tx.Commit()
}

func (r *SubmissionRepo) HasSubmitted(ctx context.Context, group, module string) (bool, error) {
	const q = `select exists(select 1 from submissions where module=$1 and group_number=$2)`
	var ok bool
	if err := r.DB.QueryRowContext(ctx, q, module, group).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

func (r *SubmissionRepo) Append(ctx context.Context, module, group string, includedFigures bool) (ledger.Record, error) {
	const q = `insert into submissions (module, group_number, included_figures)
	           values ($1,$2,$3)
	           on conflict (module, group_number) do nothing
	           returning created_at`
	rec := ledger.Record{Module: module, GroupNumber: group, IncludedFigures: includedFigures}
	err := r.DB.QueryRowContext(ctx, q, module, group, includedFigures).Scan(&rec.Timestamp)
	if err == sql.ErrNoRows {
		return ledger.Record{}, fmt.Errorf("%w: %s", ledger.ErrDuplicate, rec.Key())
	}
	if err != nil {
		return ledger.Record{}, err
	}
	rec.Timestamp = rec.Timestamp.UTC()
	return rec, nil
}

// DeleteByIndex uses the same ordering as Load.
func (r *SubmissionRepo) DeleteByIndex(ctx context.Context, i int) (ledger.Record, error) {
	if i < 0 {
		return ledger.Record{}, fmt.Errorf("%w: %d", ledger.ErrIndexOutOfRange, i)
	}
	const q = `
delete from submissions where id = (
  select id from submissions order by created_at, id offset $1 limit 1
)
returning created_at, module, group_number, included_figures`
	var rec ledger.Record
	err := r.DB.QueryRowContext(ctx, q, i).Scan(&rec.Timestamp, &rec.Module, &rec.GroupNumber, &rec.IncludedFigures)
	if err == sql.ErrNoRows {
		return ledger.Record{}, fmt.Errorf("%w: %d", ledger.ErrIndexOutOfRange, i)
	}
	if err != nil {
		return ledger.Record{}, err
	}
	rec.Timestamp = rec.Timestamp.UTC()
	return rec, nil
}

func (r *SubmissionRepo) DeleteRecord(ctx context.Context, rec ledger.Record) (bool, error) {
	const q = `delete from submissions where module=$1 and group_number=$2 and created_at=$3`
	res, err := r.DB.ExecContext(ctx, q, rec.Module, rec.GroupNumber, rec.Timestamp)
	if err != nil {
		return false, err
	}
	aff, _ := res.RowsAffected()
	return aff > 0, nil
}

func (r *SubmissionRepo) DeleteByKey(ctx context.Context, group, module string) (int, error) {
	const q = `delete from submissions where group_number=$1 and ($2 = '' or module=$2)`
	res, err := r.DB.ExecContext(ctx, q, group, module)
	if err != nil {
		return 0, err
	}
	aff, _ := res.RowsAffected()
	return int(aff), nil
}

func (r *SubmissionRepo) Clear(ctx context.Context) error {
	_, err := r.DB.ExecContext(ctx, `delete from submissions`)
	return err
}
