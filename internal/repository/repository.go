package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"shipmentportal/internal/apperr"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// translate maps driver errors onto apperr kinds. what names the missing
// entity for not-found errors; conflict is the duplicate-key message.
func translate(err error, what, conflict string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound(what)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			if conflict != "" {
				return apperr.Conflict(conflict)
			}
		case pgForeignKeyViolation:
			return apperr.NotFound("Shipment")
		}
	}
	return err
}

// inTx runs fn inside a transaction and commits when fn succeeds.
func inTx(ctx context.Context, db *pgxpool.Pool, fn func(tx pgx.Tx) error) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// lockShipment takes a row lock so concurrent milestone writers for the same
// shipment apply one after another. Returns the booking number.
func lockShipment(ctx context.Context, tx pgx.Tx, shipmentID int64) (string, error) {
	var booking string
	err := tx.QueryRow(ctx,
		`SELECT booking_number FROM shipments WHERE shipment_id = $1 FOR UPDATE`,
		shipmentID,
	).Scan(&booking)
	if err != nil {
		return "", translate(err, "Shipment", "")
	}
	return booking, nil
}

func parseDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

func int64Ptr(v int64) *int64 { return &v }
