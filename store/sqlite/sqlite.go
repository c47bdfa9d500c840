/*
Package sqlite provides a SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements payment.Repository and payment.EventSink using SQLite. In
  production the same patterns apply to PostgreSQL - only minor SQL dialect
  differences.

KEY TABLES:
  orders:         One row per order; the payment schedule is an owned JSON
                  column replaced wholesale on every ledger mutation, never
                  persisted per-installment.
  payment_events: Append-only activity log of paid/refused/refunded events.

CONCURRENCY:
  Orders carry a version column. SaveOrder only writes when the caller's
  version matches the stored one, so concurrent gateway events for the same
  order serialize: the loser gets payment.ErrConcurrentModification and
  retries against a fresh read. Ledger mutation and state derivation land in
  a single UPDATE and are observed as one atomic step.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency.

READ-BACK:
  Malformed persisted amounts or dates surface payment.InvalidConversionError
  and fail that order's read; they are never silently repaired.
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/openfun/payplan/payment"
)

// Store implements payment.Repository and payment.EventSink using SQLite.
type Store struct {
	db *sql.DB
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps ":memory:" databases coherent and serializes
	// writers, which SQLite requires anyway.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		total_value TEXT NOT NULL,
		total_currency TEXT NOT NULL,
		product_type TEXT NOT NULL,
		state TEXT NOT NULL,
		contract_signed_on TEXT,
		schedule_json TEXT NOT NULL,
		version INTEGER NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_orders_state ON orders(state);

	-- Append-only activity log of payment events
	CREATE TABLE IF NOT EXISTS payment_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		event_type TEXT NOT NULL,
		order_id TEXT NOT NULL,
		installment_id TEXT NOT NULL,
		order_state TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_payment_events_order ON payment_events(order_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// REPOSITORY
// =============================================================================

// GetOrder loads an order and its schedule. Read-back conversion failures
// surface payment.InvalidConversionError.
func (s *Store) GetOrder(ctx context.Context, id string) (*payment.Order, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, total_value, total_currency, product_type, state,
		       contract_signed_on, schedule_json, version
		FROM orders WHERE id = ?`, id)

	var (
		order       payment.Order
		totalValue  string
		currency    string
		productType string
		state       string
		signedOn    sql.NullString
		scheduleRaw string
	)
	err := row.Scan(&order.ID, &totalValue, &currency, &productType, &state,
		&signedOn, &scheduleRaw, &order.Version)
	if err == sql.ErrNoRows {
		return nil, payment.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load order %s: %w", id, err)
	}

	total, err := payment.NewMoney(totalValue, currency)
	if err != nil {
		return nil, err
	}
	order.Total = total
	order.ProductType = payment.ProductType(productType)
	order.State = payment.OrderState(state)

	if signedOn.Valid {
		signed, err := payment.ParseDate(signedOn.String)
		if err != nil {
			return nil, &payment.InvalidConversionError{Field: "contract_signed_on", Raw: signedOn.String, Err: err}
		}
		order.ContractSignedOn = &signed
	}

	if err := json.Unmarshal([]byte(scheduleRaw), &order.Schedule); err != nil {
		return nil, &payment.InvalidConversionError{Field: "payment_schedule", Raw: scheduleRaw, Err: err}
	}
	return &order, nil
}

// SaveOrder persists the order wholesale. Existing orders must be saved with
// the version they were read at; on mismatch the write is rejected with
// payment.ErrConcurrentModification.
func (s *Store) SaveOrder(ctx context.Context, order *payment.Order) error {
	scheduleRaw, err := json.Marshal(order.Schedule)
	if err != nil {
		return fmt.Errorf("failed to encode schedule for order %s: %w", order.ID, err)
	}

	var signedOn any
	if order.ContractSignedOn != nil {
		signedOn = order.ContractSignedOn.String()
	}
	now := time.Now().UTC().Format(time.RFC3339)

	res, err := s.db.ExecContext(ctx, `
		UPDATE orders
		SET total_value = ?, total_currency = ?, product_type = ?, state = ?,
		    contract_signed_on = ?, schedule_json = ?, version = version + 1,
		    updated_at = ?
		WHERE id = ? AND version = ?`,
		order.Total.Value.String(), order.Total.Currency, string(order.ProductType),
		string(order.State), signedOn, string(scheduleRaw), now,
		order.ID, order.Version)
	if err != nil {
		return fmt.Errorf("failed to save order %s: %w", order.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 1 {
		order.Version++
		return nil
	}

	// No row updated: either the order is new or the version is stale.
	var exists int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM orders WHERE id = ?`, order.ID).Scan(&exists); err != nil {
		return err
	}
	if exists > 0 {
		return payment.ErrConcurrentModification
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO orders (id, total_value, total_currency, product_type, state,
		                    contract_signed_on, schedule_json, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.ID, order.Total.Value.String(), order.Total.Currency,
		string(order.ProductType), string(order.State), signedOn,
		string(scheduleRaw), order.Version+1, now, now)
	if err != nil {
		return fmt.Errorf("failed to insert order %s: %w", order.ID, err)
	}
	order.Version++
	return nil
}

// ListOrders returns all orders, oldest first. Used by the reminder scan.
func (s *Store) ListOrders(ctx context.Context) ([]*payment.Order, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM orders ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	orders := make([]*payment.Order, 0, len(ids))
	for _, id := range ids {
		order, err := s.GetOrder(ctx, id)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, nil
}

// =============================================================================
// EVENT SINK - Append-only activity log
// =============================================================================

// Record appends a payment event to the activity log.
func (s *Store) Record(ctx context.Context, ev payment.Event) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO payment_events (event_type, order_id, installment_id, order_state, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		string(ev.Type), ev.OrderID, ev.InstallmentID, string(ev.OrderState),
		time.Now().UTC().Format(time.RFC3339))
	return err
}

// EventsForOrder returns the recorded events for one order, oldest first.
func (s *Store) EventsForOrder(ctx context.Context, orderID string) ([]payment.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT event_type, order_id, installment_id, order_state
		FROM payment_events WHERE order_id = ? ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []payment.Event
	for rows.Next() {
		var ev payment.Event
		var evType, state string
		if err := rows.Scan(&evType, &ev.OrderID, &ev.InstallmentID, &state); err != nil {
			return nil, err
		}
		ev.Type = payment.EventType(evType)
		ev.OrderState = payment.OrderState(state)
		events = append(events, ev)
	}
	return events, rows.Err()
}
