package db

import "time"

// Car is a registered vehicle. ID doubles as the token id issued at mint time;
// Plate is the unique external identifier.
type Car struct {
	ID         int64
	Plate      string
	Owner      string
	OwnerEmail string
	OwnerPhone string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// RegistryPricing is the fee schedule for registry operations.
type RegistryPricing struct {
	MintPrice         int64
	AddPersonPrice    int64
	RemovePersonPrice int64
	TransferPrice     int64
}

// CarAccount is the per-car ledger record. A non-nil ParkedAt means the car is
// currently parked; RatePerMinute is the fee captured when the session started.
type CarAccount struct {
	Plate            string
	Balance          int64
	Fine             int64
	ParkedAt         *time.Time
	DeclaredMinutes  int
	RatePerMinute    int64
	OvertimeNotified bool
	UpdatedAt        time.Time
}

// LedgerRates are the ledger-side prices: the per-minute parking fee and the
// flat fine for unparking past the prepaid time.
type LedgerRates struct {
	ParkFeePerMinute int64
	LateFine         int64
}

// LedgerTotals tracks all funds held in custody and the portion earmarked as
// car balances. The difference is the operator-withdrawable surplus.
type LedgerTotals struct {
	Custody          int64
	TotalCarBalances int64
}

// Payout records money leaving custody, either a car-balance withdrawal or an
// operator surplus sweep.
type Payout struct {
	ID        int64
	Recipient string
	Amount    int64
	Kind      string
	CreatedAt time.Time
}

const (
	PayoutKindBalance = "balance"
	PayoutKindSurplus = "surplus"
)

// TopUp is a pending or credited Stripe balance deposit.
type TopUp struct {
	ID              int64
	Plate           string
	Amount          int64
	StripeSessionID string
	Status          string
	CreatedAt       time.Time
}

const (
	TopUpStatusPending  = "pending"
	TopUpStatusCredited = "credited"
)

// Operator is a back-office administrator account.
type Operator struct {
	ID           int
	Email        string
	PasswordHash string
}
