// Package ledgerdb persists the portfolio ledger in a SQLite database: the
// single balance row plus the append-only trade, snapshot and price point logs.
package ledgerdb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/agentfolio/agentfolio/internal/domain"
)

// Store is the ledger persistence layer. Trade application is a single
// transaction with a compare-and-swap on the balance version, so the balance
// mutation and the trade append are durably recorded together or not at all.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the ledger database at path and seeds the balance
// row with the initial cash endowment if it does not exist yet.
func Open(path string, initialCash decimal.Decimal) (*Store, error) {
	// _txlock=immediate makes trade transactions take the write lock up
	// front, so concurrent applications queue instead of deadlocking on the
	// read-to-write upgrade.
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_busy_timeout=5000&_txlock=immediate&_loc=UTC", path))
	if err != nil {
		return nil, storageErr(err, "open ledger db")
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, storageErr(err, "apply ledger schema")
	}

	_, err = db.Exec(`INSERT OR IGNORE INTO balance (id, base_qty, quote_qty, version, updated_at) VALUES (1, ?, ?, 0, ?)`,
		decimal.Zero.String(), initialCash.String(), time.Now().UTC())
	if err != nil {
		db.Close()
		return nil, storageErr(err, "seed balance")
	}

	return &Store{db: db}, nil
}

// Close flushes and closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// ApplyTrade validates the trade against the current balance and records it.
// The read, the guarded balance update and the trade insert happen inside one
// transaction; a version conflict surfaces as ErrConcurrentModification and
// leaves the ledger untouched.
func (s *Store) ApplyTrade(ctx context.Context, side domain.Side, qty, price, fee decimal.Decimal, rationale, marketContext string) (domain.Trade, error) {
	if !side.Valid() {
		return domain.Trade{}, errors.Errorf("unknown trade side %q", side)
	}
	if qty.LessThanOrEqual(decimal.Zero) {
		return domain.Trade{}, errors.Errorf("trade quantity must be positive, got %s", qty.String())
	}
	if price.LessThanOrEqual(decimal.Zero) {
		return domain.Trade{}, errors.Errorf("trade price must be positive, got %s", price.String())
	}
	if fee.LessThan(decimal.Zero) {
		return domain.Trade{}, errors.Errorf("trade fee must not be negative, got %s", fee.String())
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Trade{}, storageErr(err, "begin trade tx")
	}
	defer tx.Rollback()

	bal, err := scanBalance(tx.QueryRowContext(ctx, `SELECT base_qty, quote_qty, version, updated_at FROM balance WHERE id = 1`))
	if err != nil {
		return domain.Trade{}, err
	}

	gross := qty.Mul(price)
	newBase, newQuote := bal.BaseQty, bal.QuoteQty

	switch side {
	case domain.SideBuy:
		cost := gross.Add(fee)
		if bal.QuoteQty.LessThan(cost) {
			return domain.Trade{}, errors.Wrapf(domain.ErrInsufficientFunds,
				"have %s, need %s", bal.QuoteQty.String(), cost.String())
		}
		newQuote = bal.QuoteQty.Sub(cost)
		newBase = bal.BaseQty.Add(qty)
	case domain.SideSell:
		if bal.BaseQty.LessThan(qty) {
			return domain.Trade{}, errors.Wrapf(domain.ErrInsufficientHoldings,
				"have %s, need %s", bal.BaseQty.String(), qty.String())
		}
		newBase = bal.BaseQty.Sub(qty)
		newQuote = bal.QuoteQty.Add(gross).Sub(fee)
	}

	now := time.Now().UTC()

	res, err := tx.ExecContext(ctx,
		`UPDATE balance SET base_qty = ?, quote_qty = ?, version = version + 1, updated_at = ? WHERE id = 1 AND version = ?`,
		newBase.String(), newQuote.String(), now, bal.Version)
	if err != nil {
		return domain.Trade{}, storageErr(err, "update balance")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Trade{}, storageErr(err, "update balance")
	}
	if affected != 1 {
		return domain.Trade{}, errors.Wrapf(domain.ErrConcurrentModification, "balance version %d is stale", bal.Version)
	}

	res, err = tx.ExecContext(ctx,
		`INSERT INTO trades (ts, side, base_qty, price, fee, quote_qty, rationale, market_context) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		now, string(side), qty.String(), price.String(), fee.String(), gross.String(), rationale, marketContext)
	if err != nil {
		return domain.Trade{}, storageErr(err, "append trade")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.Trade{}, storageErr(err, "trade id")
	}

	if err := tx.Commit(); err != nil {
		return domain.Trade{}, storageErr(err, "commit trade tx")
	}

	return domain.Trade{
		ID:            id,
		Timestamp:     now,
		Side:          side,
		BaseQty:       qty,
		Price:         price,
		Fee:           fee,
		QuoteQty:      gross,
		Rationale:     rationale,
		MarketContext: marketContext,
	}, nil
}

// Balance returns the current balance row.
func (s *Store) Balance(ctx context.Context) (domain.Balance, error) {
	return scanBalance(s.db.QueryRowContext(ctx, `SELECT base_qty, quote_qty, version, updated_at FROM balance WHERE id = 1`))
}

// Trades returns the full trade log in chronological order.
func (s *Store) Trades(ctx context.Context) ([]domain.Trade, error) {
	return s.queryTrades(ctx, `SELECT id, ts, side, base_qty, price, fee, quote_qty, rationale, market_context FROM trades ORDER BY ts ASC, id ASC`)
}

// TradeHistory returns up to limit trades, most recent first. A non-positive
// limit returns the whole log.
func (s *Store) TradeHistory(ctx context.Context, limit int) ([]domain.Trade, error) {
	if limit <= 0 {
		return s.queryTrades(ctx, `SELECT id, ts, side, base_qty, price, fee, quote_qty, rationale, market_context FROM trades ORDER BY ts DESC, id DESC`)
	}
	return s.queryTrades(ctx, `SELECT id, ts, side, base_qty, price, fee, quote_qty, rationale, market_context FROM trades ORDER BY ts DESC, id DESC LIMIT ?`, limit)
}

func (s *Store) queryTrades(ctx context.Context, query string, args ...any) ([]domain.Trade, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr(err, "query trades")
	}
	defer rows.Close()

	var out []domain.Trade
	for rows.Next() {
		var (
			t                          domain.Trade
			side                       string
			qtyS, priceS, feeS, quoteS string
		)
		if err := rows.Scan(&t.ID, &t.Timestamp, &side, &qtyS, &priceS, &feeS, &quoteS, &t.Rationale, &t.MarketContext); err != nil {
			return nil, storageErr(err, "scan trade")
		}
		t.Side = domain.Side(side)
		if t.BaseQty, err = decimal.NewFromString(qtyS); err != nil {
			return nil, errors.Wrap(err, "decode trade quantity")
		}
		if t.Price, err = decimal.NewFromString(priceS); err != nil {
			return nil, errors.Wrap(err, "decode trade price")
		}
		if t.Fee, err = decimal.NewFromString(feeS); err != nil {
			return nil, errors.Wrap(err, "decode trade fee")
		}
		if t.QuoteQty, err = decimal.NewFromString(quoteS); err != nil {
			return nil, errors.Wrap(err, "decode trade quote amount")
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(err, "iterate trades")
	}
	return out, nil
}

// AppendSnapshot records a point-in-time valuation.
func (s *Store) AppendSnapshot(ctx context.Context, snap domain.Snapshot) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO snapshots (ts, base_qty, quote_qty, price, total_value) VALUES (?, ?, ?, ?, ?)`,
		snap.Timestamp, snap.BaseQty.String(), snap.QuoteQty.String(), snap.Price.String(), snap.TotalValue.String())
	if err != nil {
		return storageErr(err, "append snapshot")
	}
	return nil
}

// Snapshots returns the full snapshot log in chronological order.
func (s *Store) Snapshots(ctx context.Context) ([]domain.Snapshot, error) {
	return s.querySnapshots(ctx, `SELECT ts, base_qty, quote_qty, price, total_value FROM snapshots ORDER BY ts ASC`)
}

// SnapshotHistory returns up to limit snapshots, most recent first. A
// non-positive limit returns the whole log.
func (s *Store) SnapshotHistory(ctx context.Context, limit int) ([]domain.Snapshot, error) {
	if limit <= 0 {
		return s.querySnapshots(ctx, `SELECT ts, base_qty, quote_qty, price, total_value FROM snapshots ORDER BY ts DESC`)
	}
	return s.querySnapshots(ctx, `SELECT ts, base_qty, quote_qty, price, total_value FROM snapshots ORDER BY ts DESC LIMIT ?`, limit)
}

func (s *Store) querySnapshots(ctx context.Context, query string, args ...any) ([]domain.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr(err, "query snapshots")
	}
	defer rows.Close()

	var out []domain.Snapshot
	for rows.Next() {
		var (
			snap                          domain.Snapshot
			baseS, quoteS, priceS, totalS string
		)
		if err := rows.Scan(&snap.Timestamp, &baseS, &quoteS, &priceS, &totalS); err != nil {
			return nil, storageErr(err, "scan snapshot")
		}
		if snap.BaseQty, err = decimal.NewFromString(baseS); err != nil {
			return nil, errors.Wrap(err, "decode snapshot base quantity")
		}
		if snap.QuoteQty, err = decimal.NewFromString(quoteS); err != nil {
			return nil, errors.Wrap(err, "decode snapshot quote quantity")
		}
		if snap.Price, err = decimal.NewFromString(priceS); err != nil {
			return nil, errors.Wrap(err, "decode snapshot price")
		}
		if snap.TotalValue, err = decimal.NewFromString(totalS); err != nil {
			return nil, errors.Wrap(err, "decode snapshot total value")
		}
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(err, "iterate snapshots")
	}
	return out, nil
}

// AppendPricePoint records a market price observation.
func (s *Store) AppendPricePoint(ctx context.Context, p domain.PricePoint) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO price_points (ts, price) VALUES (?, ?)`,
		p.Timestamp, p.Price.String())
	if err != nil {
		return storageErr(err, "append price point")
	}
	return nil
}

// LatestPricePoint returns the most recent price observation, or nil when the
// log is empty.
func (s *Store) LatestPricePoint(ctx context.Context) (*domain.PricePoint, error) {
	var (
		p      domain.PricePoint
		priceS string
	)
	err := s.db.QueryRowContext(ctx, `SELECT ts, price FROM price_points ORDER BY ts DESC LIMIT 1`).Scan(&p.Timestamp, &priceS)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr(err, "query latest price point")
	}
	if p.Price, err = decimal.NewFromString(priceS); err != nil {
		return nil, errors.Wrap(err, "decode price point")
	}
	return &p, nil
}

// RecentPrices returns up to limit most recent observed prices in
// chronological order, oldest first.
func (s *Store) RecentPrices(ctx context.Context, limit int) ([]decimal.Decimal, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT price FROM (SELECT ts, price FROM price_points ORDER BY ts DESC LIMIT ?) ORDER BY ts ASC`, limit)
	if err != nil {
		return nil, storageErr(err, "query recent prices")
	}
	defer rows.Close()

	var out []decimal.Decimal
	for rows.Next() {
		var priceS string
		if err := rows.Scan(&priceS); err != nil {
			return nil, storageErr(err, "scan price")
		}
		price, err := decimal.NewFromString(priceS)
		if err != nil {
			return nil, errors.Wrap(err, "decode price point")
		}
		out = append(out, price)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(err, "iterate prices")
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBalance(row rowScanner) (domain.Balance, error) {
	var (
		bal           domain.Balance
		baseS, quoteS string
	)
	if err := row.Scan(&baseS, &quoteS, &bal.Version, &bal.UpdatedAt); err != nil {
		return domain.Balance{}, storageErr(err, "read balance")
	}

	var err error
	if bal.BaseQty, err = decimal.NewFromString(baseS); err != nil {
		return domain.Balance{}, errors.Wrap(err, "decode base quantity")
	}
	if bal.QuoteQty, err = decimal.NewFromString(quoteS); err != nil {
		return domain.Balance{}, errors.Wrap(err, "decode quote quantity")
	}
	return bal, nil
}

// storageErr tags a driver error with ErrStorageUnavailable so callers can
// branch on the taxonomy while keeping the underlying message.
func storageErr(err error, op string) error {
	return errors.Wrapf(domain.ErrStorageUnavailable, "%s: %v", op, err)
}
