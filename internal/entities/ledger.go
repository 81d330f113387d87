package entities

import "time"

// AccountView is the public read of a car's ledger record.
type AccountView struct {
	Plate       string     `json:"plate"`
	Balance     int64      `json:"balance"`
	Fine        int64      `json:"fine"`
	Parked      bool       `json:"parked"`
	ParkedSince *time.Time `json:"parked_since,omitempty"`
}

// ParkingReceipt summarizes a settled parking session.
type ParkingReceipt struct {
	Plate          string `json:"plate"`
	ElapsedMinutes int64  `json:"elapsed_minutes"`
	AmountCharged  int64  `json:"amount_charged"`
	FineAdded      int64  `json:"fine_added"`
	Balance        int64  `json:"balance"`
	Fine           int64  `json:"fine"`
}

// LedgerStats is the operator view of the custody accounting.
type LedgerStats struct {
	Custody          int64 `json:"custody"`
	TotalCarBalances int64 `json:"total_car_balances"`
	Surplus          int64 `json:"surplus"`
}

// TopUpSession is the response to a Stripe top-up request.
type TopUpSession struct {
	Plate     string `json:"plate"`
	Amount    int64  `json:"amount"`
	URL       string `json:"url"`
	SessionID string `json:"session_id"`
}
