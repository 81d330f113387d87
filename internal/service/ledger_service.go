package service

import (
	"log"
	"sync"
	"time"

	"streetparking/internal/db"
	"streetparking/internal/entities"
	apperrors "streetparking/internal/errors"
	"streetparking/internal/repository"
)

// CarAuthorizer is the registry surface the ledger depends on. The ledger
// presents its own service id with every state-changing authorization query
// and must be allow-listed by the registry operator beforehand.
type CarAuthorizer interface {
	AuthorizedForService(serviceID, plate, person string) (bool, error)
	OwnerOf(plate string) (string, error)
}

// FineNotifier is told when a late fine lands on a car.
type FineNotifier interface {
	FineIssued(plate string, amount int64)
}

// LedgerService custodies prepaid car balances, meters parking sessions and
// levies flat fines for late checkout.
//
// Operations are serialized under one mutex, and every money mutation goes
// through a single-transaction store method, so a rejected operation has zero
// effect on state. Payouts are reported only after the books are settled.
type LedgerService struct {
	mu        sync.Mutex
	repo      repository.LedgerStore
	registry  CarAuthorizer
	serviceID string
	stripe    *StripeService
	notifier  FineNotifier

	nowFunc func() time.Time
}

func NewLedgerService(repo repository.LedgerStore, registry CarAuthorizer, serviceID string) *LedgerService {
	return &LedgerService{
		repo:      repo,
		registry:  registry,
		serviceID: serviceID,
		nowFunc:   time.Now,
	}
}

// WithStripe attaches the Stripe top-up flow.
func (s *LedgerService) WithStripe(stripe *StripeService) *LedgerService {
	s.stripe = stripe
	return s
}

// WithNotifier attaches the fine notice sender.
func (s *LedgerService) WithNotifier(n FineNotifier) *LedgerService {
	s.notifier = n
	return s
}

// StartParking opens a session for the car. The declared duration is a
// pre-check only: the caller must have that much parking prepaid, but billing
// at stop time uses the real elapsed time. The per-minute rate is captured
// here and kept for the whole session.
func (s *LedgerService) StartParking(caller, plate string, durationMinutes int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if durationMinutes <= 0 {
		return apperrors.InvalidRequest("duration must be at least one minute")
	}

	authorized, err := s.registry.AuthorizedForService(s.serviceID, plate, caller)
	if err != nil {
		return err
	}
	if !authorized {
		return apperrors.Unauthorized("You are not allowed to use this car")
	}

	if err := s.repo.EnsureAccount(plate); err != nil {
		return err
	}
	account, err := s.repo.Account(plate)
	if err != nil {
		return err
	}
	if account.ParkedAt != nil {
		return apperrors.AlreadyParked("Car is already parked")
	}

	rates, err := s.repo.Rates()
	if err != nil {
		return err
	}
	if account.Balance < int64(durationMinutes)*rates.ParkFeePerMinute {
		return apperrors.InsufficientBalance("Insufficient amount to park that long")
	}

	return s.repo.StartSession(plate, s.nowFunc().UTC(), durationMinutes, rates.ParkFeePerMinute)
}

// StopParking settles the active session. The fee is the captured per-minute
// rate times the whole minutes elapsed, deducted from the car balance but
// never past zero; if the uncapped fee exceeds the balance the flat late fine
// is added on top. Custody is unchanged either way: the fee moves from the car
// balance to the operator surplus.
func (s *LedgerService) StopParking(caller, plate string) (*entities.ParkingReceipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	authorized, err := s.registry.AuthorizedForService(s.serviceID, plate, caller)
	if err != nil {
		return nil, err
	}
	if !authorized {
		return nil, apperrors.Unauthorized("You are not allowed to unpark this car")
	}

	account, err := s.repo.Account(plate)
	if err != nil {
		return nil, err
	}
	if account == nil || account.ParkedAt == nil {
		return nil, apperrors.NotParked("Car is not parked")
	}

	elapsedMinutes := int64(s.nowFunc().UTC().Sub(*account.ParkedAt) / time.Minute)
	amountDue := elapsedMinutes * account.RatePerMinute

	deduct := amountDue
	var fineAdded int64
	if amountDue > account.Balance {
		deduct = account.Balance
		rates, err := s.repo.Rates()
		if err != nil {
			return nil, err
		}
		fineAdded = rates.LateFine
	}

	if err := s.repo.SettleSession(plate, deduct, fineAdded); err != nil {
		return nil, err
	}
	if fineAdded > 0 && s.notifier != nil {
		s.notifier.FineIssued(plate, account.Fine+fineAdded)
	}

	return &entities.ParkingReceipt{
		Plate:          plate,
		ElapsedMinutes: elapsedMinutes,
		AmountCharged:  deduct,
		FineAdded:      fineAdded,
		Balance:        account.Balance - deduct,
		Fine:           account.Fine + fineAdded,
	}, nil
}

// AddBalance credits a deposit to the car's prepaid balance. Anyone may pay
// into any registered car.
func (s *LedgerService) AddBalance(caller, plate string, payment int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if payment <= 0 {
		return apperrors.InvalidPayment("Deposit amount must be greater than zero")
	}
	if _, err := s.registry.OwnerOf(plate); err != nil {
		return err
	}
	if err := s.repo.EnsureAccount(plate); err != nil {
		return err
	}
	return s.repo.CreditBalance(plate, payment)
}

// WithdrawBalance pays the full prepaid balance back to the car owner and
// returns the amount paid out.
func (s *LedgerService) WithdrawBalance(caller, plate string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	owner, err := s.registry.OwnerOf(plate)
	if err != nil {
		return 0, err
	}
	if caller != owner {
		return 0, apperrors.Unauthorized("You are not the owner of this car")
	}

	account, err := s.repo.Account(plate)
	if err != nil {
		return 0, err
	}
	if account == nil || account.Balance == 0 {
		return 0, apperrors.NothingToWithdraw("There is no balance to withdraw for this car")
	}

	if err := s.repo.PayOutBalance(plate, caller, account.Balance); err != nil {
		return 0, err
	}
	return account.Balance, nil
}

// PayFine settles the car's outstanding fine. The payment is kept in custody
// as operator surplus, not credited to the car balance.
func (s *LedgerService) PayFine(caller, plate string, payment int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, err := s.repo.Account(plate)
	if err != nil {
		return err
	}
	if account == nil || account.Fine == 0 {
		return apperrors.NoFine("This car has no fines")
	}
	if payment < account.Fine {
		return apperrors.InvalidPayment("Insufficient amount to pay the fine")
	}
	return s.repo.SettleFine(plate, payment)
}

// SetRates replaces the per-minute fee and the late fine. In-flight sessions
// keep the rate captured when they started.
func (s *LedgerService) SetRates(rates db.LedgerRates) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rates.ParkFeePerMinute < 0 || rates.LateFine < 0 {
		return apperrors.InvalidRequest("rates must not be negative")
	}
	return s.repo.UpdateRates(&rates)
}

// WithdrawSurplus sweeps everything in custody that is not earmarked as a car
// balance and returns the amount paid out.
func (s *LedgerService) WithdrawSurplus(recipient string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	totals, err := s.repo.Totals()
	if err != nil {
		return 0, err
	}
	surplus := totals.Custody - totals.TotalCarBalances
	if surplus <= 0 {
		return 0, apperrors.NoSurplus("There is no balance to withdraw at this time")
	}
	if err := s.repo.PayOutSurplus(recipient, surplus); err != nil {
		return 0, err
	}
	return surplus, nil
}

// Account returns the public view of a car's ledger record.
func (s *LedgerService) Account(plate string) (*entities.AccountView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, err := s.repo.Account(plate)
	if err != nil {
		return nil, err
	}
	view := &entities.AccountView{Plate: plate}
	if account != nil {
		view.Balance = account.Balance
		view.Fine = account.Fine
		view.Parked = account.ParkedAt != nil
		view.ParkedSince = account.ParkedAt
	}
	return view, nil
}

// Stats returns the custody totals and the operator-withdrawable surplus.
func (s *LedgerService) Stats() (*entities.LedgerStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	totals, err := s.repo.Totals()
	if err != nil {
		return nil, err
	}
	return &entities.LedgerStats{
		Custody:          totals.Custody,
		TotalCarBalances: totals.TotalCarBalances,
		Surplus:          totals.Custody - totals.TotalCarBalances,
	}, nil
}

// CreateTopUp opens a Stripe Checkout session for a balance deposit. The
// balance is credited by the webhook once the payment completes.
func (s *LedgerService) CreateTopUp(plate string, amount int64) (*entities.TopUpSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stripe == nil {
		return nil, apperrors.InvalidRequest("card top-ups are not enabled")
	}
	if amount <= 0 {
		return nil, apperrors.InvalidPayment("Deposit amount must be greater than zero")
	}
	if _, err := s.registry.OwnerOf(plate); err != nil {
		return nil, err
	}
	if err := s.repo.EnsureAccount(plate); err != nil {
		return nil, err
	}

	url, sessionID, err := s.stripe.CreateTopUpSession(amount, plate)
	if err != nil {
		return nil, err
	}
	topUp := &db.TopUp{
		Plate:           plate,
		Amount:          amount,
		StripeSessionID: sessionID,
		Status:          db.TopUpStatusPending,
	}
	if err := s.repo.CreateTopUp(topUp); err != nil {
		return nil, err
	}
	return &entities.TopUpSession{
		Plate:     plate,
		Amount:    amount,
		URL:       url,
		SessionID: sessionID,
	}, nil
}

// CreditTopUp applies a completed Stripe payment to the car balance. Safe to
// call more than once per session; repeats are no-ops.
func (s *LedgerService) CreditTopUp(stripeSessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	topUp, err := s.repo.CreditTopUp(stripeSessionID)
	if err != nil {
		return err
	}
	if topUp == nil {
		log.Printf("Stripe session %s already credited or unknown, skipping", stripeSessionID)
		return nil
	}
	log.Printf("Credited top-up of %d to car %s (stripe session %s)", topUp.Amount, topUp.Plate, stripeSessionID)
	return nil
}
