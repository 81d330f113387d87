package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// OverdueSession is a parked car whose metered cost has outrun its prepaid
// balance, together with the owner contact for the warning notice.
type OverdueSession struct {
	Plate      string
	Owner      string
	OwnerEmail string
	OwnerPhone string
	ParkedAt   time.Time
	Balance    int64
}

type JobRepository struct {
	DB *sql.DB
}

func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{DB: db}
}

// GetOverdueSessions lists parked cars whose accrued minute fees exceed their
// balance and that have not been warned yet.
func (r *JobRepository) GetOverdueSessions() ([]OverdueSession, error) {
	query := `
		SELECT a.plate, c.owner, c.owner_email, c.owner_phone, a.parked_at, a.balance
		FROM car_accounts a
		JOIN cars c ON c.plate = a.plate
		WHERE a.parked_at IS NOT NULL
		  AND a.overtime_notified = FALSE
		  AND (EXTRACT(EPOCH FROM (NOW() - a.parked_at))::bigint / 60) * a.rate_per_minute > a.balance`
	rows, err := r.DB.Query(query)
	if err != nil {
		return nil, fmt.Errorf("error querying overdue sessions: %w", err)
	}
	defer rows.Close()

	var sessions []OverdueSession
	for rows.Next() {
		var s OverdueSession
		if err := rows.Scan(&s.Plate, &s.Owner, &s.OwnerEmail, &s.OwnerPhone, &s.ParkedAt, &s.Balance); err != nil {
			return nil, fmt.Errorf("error scanning overdue session: %w", err)
		}
		sessions = append(sessions, s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error after iterating overdue sessions: %w", err)
	}
	return sessions, nil
}

// MarkOvertimeNotified flags sessions as warned so the sweep does not repeat
// the notice every minute.
func (r *JobRepository) MarkOvertimeNotified(plates []string) error {
	if len(plates) == 0 {
		return nil
	}
	query := `UPDATE car_accounts SET overtime_notified = TRUE WHERE plate = ANY($1)`
	_, err := r.DB.Exec(query, pq.Array(plates))
	if err != nil {
		return fmt.Errorf("error marking overtime notices: %w", err)
	}
	return nil
}
