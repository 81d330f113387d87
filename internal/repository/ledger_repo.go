package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"streetparking/internal/db"
)

// LedgerStore persists car balances, parking sessions, fines and the custody
// totals. Every method that moves money runs in a single transaction so a
// failed operation leaves no partial state behind.
type LedgerStore interface {
	EnsureAccount(plate string) error
	Account(plate string) (*db.CarAccount, error)
	CreditBalance(plate string, amount int64) error
	StartSession(plate string, at time.Time, declaredMinutes int, ratePerMinute int64) error
	SettleSession(plate string, deduct, fineAdded int64) error
	PayOutBalance(plate, recipient string, amount int64) error
	SettleFine(plate string, payment int64) error
	PayOutSurplus(recipient string, amount int64) error
	Totals() (*db.LedgerTotals, error)
	Rates() (*db.LedgerRates, error)
	UpdateRates(r *db.LedgerRates) error
	CreateTopUp(t *db.TopUp) error
	CreditTopUp(stripeSessionID string) (*db.TopUp, error)
}

type ledgerRepository struct {
	db *sql.DB
}

func NewLedgerRepository(database *sql.DB) LedgerStore {
	return &ledgerRepository{db: database}
}

func (r *ledgerRepository) EnsureAccount(plate string) error {
	query := `
		INSERT INTO car_accounts (plate, balance, fine, updated_at)
		VALUES ($1, 0, 0, NOW())
		ON CONFLICT (plate) DO NOTHING`
	_, err := r.db.Exec(query, plate)
	return err
}

func (r *ledgerRepository) Account(plate string) (*db.CarAccount, error) {
	var a db.CarAccount
	query := `
		SELECT plate, balance, fine, parked_at, declared_minutes, rate_per_minute, overtime_notified, updated_at
		FROM car_accounts WHERE plate = $1`
	err := r.db.QueryRow(query, plate).Scan(
		&a.Plate, &a.Balance, &a.Fine, &a.ParkedAt, &a.DeclaredMinutes,
		&a.RatePerMinute, &a.OvertimeNotified, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("error querying account '%s': %w", plate, err)
	}
	return &a, nil
}

// CreditBalance adds a deposit to the car balance, the total-car-balances
// accumulator and the custody total together.
func (r *ledgerRepository) CreditBalance(plate string, amount int64) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := creditBalanceTx(tx, plate, amount); err != nil {
		return err
	}
	return tx.Commit()
}

func creditBalanceTx(tx *sql.Tx, plate string, amount int64) error {
	if _, err := tx.Exec(`UPDATE car_accounts SET balance = balance + $2, updated_at = NOW() WHERE plate = $1`, plate, amount); err != nil {
		return fmt.Errorf("error crediting balance for '%s': %w", plate, err)
	}
	if _, err := tx.Exec(`
		UPDATE ledger_totals
		SET custody = custody + $1, total_car_balances = total_car_balances + $1
		WHERE id = 1`, amount); err != nil {
		return fmt.Errorf("error updating ledger totals: %w", err)
	}
	return nil
}

func (r *ledgerRepository) StartSession(plate string, at time.Time, declaredMinutes int, ratePerMinute int64) error {
	query := `
		UPDATE car_accounts
		SET parked_at = $2, declared_minutes = $3, rate_per_minute = $4, overtime_notified = FALSE, updated_at = NOW()
		WHERE plate = $1`
	_, err := r.db.Exec(query, plate, at, declaredMinutes, ratePerMinute)
	return err
}

// SettleSession closes the active session: the fee moves out of the car
// balance (custody is untouched, the fee becomes surplus) and any late fine is
// added to the outstanding amount.
func (r *ledgerRepository) SettleSession(plate string, deduct, fineAdded int64) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		UPDATE car_accounts
		SET balance = balance - $2,
		    fine = fine + $3,
		    parked_at = NULL,
		    declared_minutes = 0,
		    rate_per_minute = 0,
		    overtime_notified = FALSE,
		    updated_at = NOW()
		WHERE plate = $1`
	if _, err := tx.Exec(query, plate, deduct, fineAdded); err != nil {
		return fmt.Errorf("error settling session for '%s': %w", plate, err)
	}
	if _, err := tx.Exec(`UPDATE ledger_totals SET total_car_balances = total_car_balances - $1 WHERE id = 1`, deduct); err != nil {
		return fmt.Errorf("error updating ledger totals: %w", err)
	}
	return tx.Commit()
}

// PayOutBalance zeroes the car balance, decrements both totals and records the
// payout, all in one transaction. The books are settled before anything is
// reported as paid out.
func (r *ledgerRepository) PayOutBalance(plate, recipient string, amount int64) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`UPDATE car_accounts SET balance = 0, updated_at = NOW() WHERE plate = $1`, plate); err != nil {
		return fmt.Errorf("error zeroing balance for '%s': %w", plate, err)
	}
	if _, err := tx.Exec(`
		UPDATE ledger_totals
		SET custody = custody - $1, total_car_balances = total_car_balances - $1
		WHERE id = 1`, amount); err != nil {
		return fmt.Errorf("error updating ledger totals: %w", err)
	}
	if _, err := tx.Exec(`
		INSERT INTO payouts (recipient, amount, kind, created_at)
		VALUES ($1, $2, $3, NOW())`, recipient, amount, db.PayoutKindBalance); err != nil {
		return fmt.Errorf("error recording payout: %w", err)
	}
	return tx.Commit()
}

// SettleFine zeroes the outstanding fine; the payment stays in custody as
// operator surplus rather than being credited to the car balance.
func (r *ledgerRepository) SettleFine(plate string, payment int64) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`UPDATE car_accounts SET fine = 0, updated_at = NOW() WHERE plate = $1`, plate); err != nil {
		return fmt.Errorf("error clearing fine for '%s': %w", plate, err)
	}
	if _, err := tx.Exec(`UPDATE ledger_totals SET custody = custody + $1 WHERE id = 1`, payment); err != nil {
		return fmt.Errorf("error updating ledger totals: %w", err)
	}
	return tx.Commit()
}

func (r *ledgerRepository) PayOutSurplus(recipient string, amount int64) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`UPDATE ledger_totals SET custody = custody - $1 WHERE id = 1`, amount); err != nil {
		return fmt.Errorf("error updating ledger totals: %w", err)
	}
	if _, err := tx.Exec(`
		INSERT INTO payouts (recipient, amount, kind, created_at)
		VALUES ($1, $2, $3, NOW())`, recipient, amount, db.PayoutKindSurplus); err != nil {
		return fmt.Errorf("error recording payout: %w", err)
	}
	return tx.Commit()
}

func (r *ledgerRepository) Totals() (*db.LedgerTotals, error) {
	var t db.LedgerTotals
	err := r.db.QueryRow(`SELECT custody, total_car_balances FROM ledger_totals WHERE id = 1`).Scan(&t.Custody, &t.TotalCarBalances)
	if err != nil {
		return nil, fmt.Errorf("error querying ledger totals: %w", err)
	}
	return &t, nil
}

func (r *ledgerRepository) Rates() (*db.LedgerRates, error) {
	var rates db.LedgerRates
	err := r.db.QueryRow(`SELECT park_fee_per_minute, late_fine FROM ledger_rates WHERE id = 1`).Scan(&rates.ParkFeePerMinute, &rates.LateFine)
	if err != nil {
		return nil, fmt.Errorf("error querying ledger rates: %w", err)
	}
	return &rates, nil
}

func (r *ledgerRepository) UpdateRates(rates *db.LedgerRates) error {
	query := `UPDATE ledger_rates SET park_fee_per_minute = $1, late_fine = $2 WHERE id = 1`
	_, err := r.db.Exec(query, rates.ParkFeePerMinute, rates.LateFine)
	return err
}

func (r *ledgerRepository) CreateTopUp(t *db.TopUp) error {
	query := `
		INSERT INTO top_ups (plate, amount, stripe_session_id, status, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING id`
	return r.db.QueryRow(query, t.Plate, t.Amount, t.StripeSessionID, t.Status).Scan(&t.ID)
}

// CreditTopUp marks a pending top-up as credited and applies the deposit in
// the same transaction. Returns (nil, nil) when the session is unknown or was
// already credited, so webhook retries stay idempotent.
func (r *ledgerRepository) CreditTopUp(stripeSessionID string) (*db.TopUp, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var t db.TopUp
	query := `
		UPDATE top_ups SET status = $2
		WHERE stripe_session_id = $1 AND status = $3
		RETURNING id, plate, amount, stripe_session_id, status, created_at`
	err = tx.QueryRow(query, stripeSessionID, db.TopUpStatusCredited, db.TopUpStatusPending).Scan(
		&t.ID, &t.Plate, &t.Amount, &t.StripeSessionID, &t.Status, &t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("error crediting top-up '%s': %w", stripeSessionID, err)
	}

	if err := creditBalanceTx(tx, t.Plate, t.Amount); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &t, nil
}
