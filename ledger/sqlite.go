package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/caflow/caflow/recon"
)

// SQLiteStore is a single-file ledger database.
//
// Voucher writes are transactional: the voucher and all of its entries
// commit together or not at all. WAL mode is enabled for concurrent
// reads. Use ":memory:" for throwaway databases in tests.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the ledger database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger database: %w", err)
	}

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	for _, stmt := range []string{
		`CREATE TABLE IF NOT EXISTS vouchers (
			id TEXT PRIMARY KEY,
			org_id TEXT NOT NULL,
			date TIMESTAMP NOT NULL,
			type TEXT NOT NULL,
			ref_no TEXT,
			narration TEXT,
			source TEXT,
			amount REAL NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS ledger_entries (
			id TEXT PRIMARY KEY,
			org_id TEXT NOT NULL,
			voucher_id TEXT NOT NULL REFERENCES vouchers(id),
			date TIMESTAMP NOT NULL,
			account_code TEXT NOT NULL,
			party TEXT,
			description TEXT,
			debit REAL NOT NULL DEFAULT 0,
			credit REAL NOT NULL DEFAULT 0,
			tags TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_org_date ON ledger_entries(org_id, date)`,
		`CREATE TABLE IF NOT EXISTS bank_transactions (
			id TEXT PRIMARY KEY,
			org_id TEXT NOT NULL,
			date TIMESTAMP NOT NULL,
			amount REAL NOT NULL,
			description TEXT,
			type TEXT,
			seq INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_bank_org_date ON bank_transactions(org_id, date)`,
	} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("create ledger schema: %w", err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// CreateVoucher writes the voucher and its entries in one transaction.
func (s *SQLiteStore) CreateVoucher(ctx context.Context, v Voucher, entries []Entry) (Voucher, error) {
	total, err := checkBalanced(entries)
	if err != nil {
		return Voucher{}, err
	}
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	v.Amount = total

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Voucher{}, fmt.Errorf("begin voucher transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO vouchers (id, org_id, date, type, ref_no, narration, source, amount)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID.String(), v.OrgID.String(), v.Date, v.Type, v.RefNo, v.Narration, v.Source, v.Amount)
	if err != nil {
		return Voucher{}, fmt.Errorf("insert voucher: %w", err)
	}

	for _, e := range entries {
		if e.ID == uuid.Nil {
			e.ID = uuid.New()
		}
		if e.Date.IsZero() {
			e.Date = v.Date
		}
		var tags []byte
		if len(e.Tags) > 0 {
			tags, err = json.Marshal(e.Tags)
			if err != nil {
				return Voucher{}, fmt.Errorf("marshal entry tags: %w", err)
			}
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO ledger_entries (id, org_id, voucher_id, date, account_code, party, description, debit, credit, tags)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.ID.String(), v.OrgID.String(), v.ID.String(), e.Date, e.AccountCode,
			e.Party, e.Description, e.Debit, e.Credit, string(tags))
		if err != nil {
			return Voucher{}, fmt.Errorf("insert ledger entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Voucher{}, fmt.Errorf("commit voucher: %w", err)
	}
	return v, nil
}

// Entries returns the organization's entries in the range, date-ordered.
func (s *SQLiteStore) Entries(ctx context.Context, orgID uuid.UUID, from, to time.Time) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, voucher_id, date, account_code, party, description, debit, credit, tags
		FROM ledger_entries
		WHERE org_id = ? AND date >= ? AND date <= ?
		ORDER BY date`, orgID.String(), from, to)
	if err != nil {
		return nil, fmt.Errorf("query ledger entries: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var id, voucherID string
		var party, desc, tags sql.NullString
		if err := rows.Scan(&id, &voucherID, &e.Date, &e.AccountCode, &party, &desc, &e.Debit, &e.Credit, &tags); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		e.ID, _ = uuid.Parse(id)
		e.VoucherID, _ = uuid.Parse(voucherID)
		e.OrgID = orgID
		e.Party = party.String
		e.Description = desc.String
		if tags.String != "" {
			if err := json.Unmarshal([]byte(tags.String), &e.Tags); err != nil {
				return nil, fmt.Errorf("unmarshal entry tags: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// BankTransactions returns statement lines in import order.
func (s *SQLiteStore) BankTransactions(ctx context.Context, orgID uuid.UUID, from, to time.Time) ([]recon.BankTransaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, date, amount, description, type
		FROM bank_transactions
		WHERE org_id = ? AND date >= ? AND date <= ?
		ORDER BY seq`, orgID.String(), from, to)
	if err != nil {
		return nil, fmt.Errorf("query bank transactions: %w", err)
	}
	defer rows.Close()

	var out []recon.BankTransaction
	for rows.Next() {
		var t recon.BankTransaction
		var desc, typ sql.NullString
		if err := rows.Scan(&t.ID, &t.Date, &t.Amount, &desc, &typ); err != nil {
			return nil, fmt.Errorf("scan bank transaction: %w", err)
		}
		t.Description = desc.String
		t.Type = typ.String
		out = append(out, t)
	}
	return out, rows.Err()
}

// ImportBankTransactions appends statement lines, preserving order.
func (s *SQLiteStore) ImportBankTransactions(ctx context.Context, orgID uuid.UUID, txns []recon.BankTransaction) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin import transaction: %w", err)
	}
	defer tx.Rollback()

	var seq int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM bank_transactions WHERE org_id = ?`,
		orgID.String()).Scan(&seq); err != nil {
		return fmt.Errorf("read statement sequence: %w", err)
	}

	for _, t := range txns {
		seq++
		id := t.ID
		if id == "" {
			id = uuid.NewString()
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO bank_transactions (id, org_id, date, amount, description, type, seq)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			id, orgID.String(), t.Date, t.Amount, t.Description, t.Type, seq)
		if err != nil {
			return fmt.Errorf("insert bank transaction: %w", err)
		}
	}
	return tx.Commit()
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
