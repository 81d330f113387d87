package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streetparking/internal/auth"
	"streetparking/internal/db"
	"streetparking/internal/entities"
	"streetparking/internal/service"
)

// In-memory stores in the shape of the Postgres repositories.

type stubRegistryStore struct {
	cars     map[string]*db.Car
	allowed  map[string][]string
	services map[string]bool
	pricing  db.RegistryPricing
	fees     int64
	nextID   int64
}

func newStubRegistryStore() *stubRegistryStore {
	return &stubRegistryStore{
		cars:     make(map[string]*db.Car),
		allowed:  make(map[string][]string),
		services: make(map[string]bool),
		pricing: db.RegistryPricing{
			MintPrice:         100,
			AddPersonPrice:    50,
			RemovePersonPrice: 50,
			TransferPrice:     50,
		},
	}
}

func (s *stubRegistryStore) GetCar(plate string) (*db.Car, error) {
	car, ok := s.cars[plate]
	if !ok {
		return nil, nil
	}
	copied := *car
	return &copied, nil
}

func (s *stubRegistryStore) CreateCar(car *db.Car) (int64, error) {
	s.nextID++
	car.ID = s.nextID
	copied := *car
	s.cars[car.Plate] = &copied
	return car.ID, nil
}

func (s *stubRegistryStore) AllowedPeople(plate string) ([]string, error) {
	return append([]string(nil), s.allowed[plate]...), nil
}

func (s *stubRegistryStore) AddAllowedPerson(plate, person string) error {
	for _, p := range s.allowed[plate] {
		if p == person {
			return nil
		}
	}
	s.allowed[plate] = append(s.allowed[plate], person)
	return nil
}

func (s *stubRegistryStore) RemoveAllowedPerson(plate, person string) error {
	people := s.allowed[plate]
	for i, p := range people {
		if p == person {
			s.allowed[plate] = append(people[:i], people[i+1:]...)
			break
		}
	}
	return nil
}

func (s *stubRegistryStore) TransferCar(plate, newOwner string) error {
	s.cars[plate].Owner = newOwner
	delete(s.allowed, plate)
	return nil
}

func (s *stubRegistryStore) IsServiceCaller(address string) (bool, error) {
	return s.services[address], nil
}

func (s *stubRegistryStore) AddServiceCaller(address string) error {
	s.services[address] = true
	return nil
}

func (s *stubRegistryStore) Pricing() (*db.RegistryPricing, error) {
	p := s.pricing
	return &p, nil
}

func (s *stubRegistryStore) UpdatePricing(p *db.RegistryPricing) error {
	s.pricing = *p
	return nil
}

func (s *stubRegistryStore) AddCollectedFees(amount int64) error {
	s.fees += amount
	return nil
}

func (s *stubRegistryStore) CollectedFees() (int64, error) {
	return s.fees, nil
}

type stubLedgerStore struct {
	accounts map[string]*db.CarAccount
	totals   db.LedgerTotals
	rates    db.LedgerRates
}

func newStubLedgerStore() *stubLedgerStore {
	return &stubLedgerStore{
		accounts: make(map[string]*db.CarAccount),
		rates:    db.LedgerRates{ParkFeePerMinute: 1, LateFine: 500},
	}
}

func (s *stubLedgerStore) EnsureAccount(plate string) error {
	if _, ok := s.accounts[plate]; !ok {
		s.accounts[plate] = &db.CarAccount{Plate: plate}
	}
	return nil
}

func (s *stubLedgerStore) Account(plate string) (*db.CarAccount, error) {
	account, ok := s.accounts[plate]
	if !ok {
		return nil, nil
	}
	copied := *account
	if account.ParkedAt != nil {
		at := *account.ParkedAt
		copied.ParkedAt = &at
	}
	return &copied, nil
}

func (s *stubLedgerStore) CreditBalance(plate string, amount int64) error {
	s.accounts[plate].Balance += amount
	s.totals.Custody += amount
	s.totals.TotalCarBalances += amount
	return nil
}

func (s *stubLedgerStore) StartSession(plate string, at time.Time, declaredMinutes int, ratePerMinute int64) error {
	account := s.accounts[plate]
	account.ParkedAt = &at
	account.DeclaredMinutes = declaredMinutes
	account.RatePerMinute = ratePerMinute
	return nil
}

func (s *stubLedgerStore) SettleSession(plate string, deduct, fineAdded int64) error {
	account := s.accounts[plate]
	account.Balance -= deduct
	account.Fine += fineAdded
	account.ParkedAt = nil
	account.RatePerMinute = 0
	s.totals.TotalCarBalances -= deduct
	return nil
}

func (s *stubLedgerStore) PayOutBalance(plate, recipient string, amount int64) error {
	s.accounts[plate].Balance = 0
	s.totals.Custody -= amount
	s.totals.TotalCarBalances -= amount
	return nil
}

func (s *stubLedgerStore) SettleFine(plate string, payment int64) error {
	s.accounts[plate].Fine = 0
	s.totals.Custody += payment
	return nil
}

func (s *stubLedgerStore) PayOutSurplus(recipient string, amount int64) error {
	s.totals.Custody -= amount
	return nil
}

func (s *stubLedgerStore) Totals() (*db.LedgerTotals, error) {
	t := s.totals
	return &t, nil
}

func (s *stubLedgerStore) Rates() (*db.LedgerRates, error) {
	r := s.rates
	return &r, nil
}

func (s *stubLedgerStore) UpdateRates(r *db.LedgerRates) error {
	s.rates = *r
	return nil
}

func (s *stubLedgerStore) CreateTopUp(t *db.TopUp) error { return nil }

func (s *stubLedgerStore) CreditTopUp(stripeSessionID string) (*db.TopUp, error) {
	return nil, nil
}

// callerMiddleware stands in for the JWT middleware in tests.
func callerMiddleware(address string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(auth.WithCaller(r.Context(), address)))
		})
	}
}

func newTestRouter(t *testing.T, caller string) *mux.Router {
	t.Helper()

	registry := service.NewRegistryService(newStubRegistryStore())
	_, err := registry.Mint("ownerA", "AAA-123", 100, entities.OwnerContact{})
	require.NoError(t, err)
	require.NoError(t, registry.RegisterServiceCaller("parking-test"))

	ledger := service.NewLedgerService(newStubLedgerStore(), registry, "parking-test")

	registryHandler := NewRegistryHandler(registry, ledger)
	parkingHandler := NewParkingHandler(ledger)

	r := mux.NewRouter()
	r.Use(callerMiddleware(caller))
	r.HandleFunc("/api/cars/{plate}", registryHandler.GetCarInfo).Methods("GET")
	r.HandleFunc("/api/parking/{plate}/start", parkingHandler.StartParking).Methods("POST")
	r.HandleFunc("/api/parking/{plate}/stop", parkingHandler.StopParking).Methods("POST")
	r.HandleFunc("/api/parking/{plate}/balance", parkingHandler.AddBalance).Methods("POST")
	return r
}

func postJSON(t *testing.T, router *mux.Router, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestParkingRoundTrip(t *testing.T) {
	router := newTestRouter(t, "ownerA")

	rec := postJSON(t, router, "/api/parking/AAA-123/balance", PaymentRequest{Payment: 10})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = postJSON(t, router, "/api/parking/AAA-123/start", StartParkingRequest{DurationMinutes: 5})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = postJSON(t, router, "/api/parking/AAA-123/stop", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var receipt entities.ParkingReceipt
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &receipt))
	assert.Equal(t, "AAA-123", receipt.Plate)
	assert.Equal(t, int64(0), receipt.FineAdded)
	assert.Equal(t, int64(10)-receipt.AmountCharged, receipt.Balance)
}

func TestStopWhileIdleReturnsStableCode(t *testing.T) {
	router := newTestRouter(t, "ownerA")

	rec := postJSON(t, router, "/api/parking/AAA-123/stop", nil)
	require.Equal(t, http.StatusConflict, rec.Code)

	var payload map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, "NOT_PARKED", payload["code"])
	assert.Equal(t, "Car is not parked", payload["error"])
}

func TestStartByStrangerIsRejected(t *testing.T) {
	router := newTestRouter(t, "stranger")

	rec := postJSON(t, router, "/api/parking/AAA-123/balance", PaymentRequest{Payment: 10})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = postJSON(t, router, "/api/parking/AAA-123/start", StartParkingRequest{DurationMinutes: 5})
	require.Equal(t, http.StatusForbidden, rec.Code)

	var payload map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, "UNAUTHORIZED", payload["code"])
}

func TestGetCarInfoListsOwnerFirst(t *testing.T) {
	router := newTestRouter(t, "ownerA")

	rec := postJSON(t, router, "/api/parking/AAA-123/balance", PaymentRequest{Payment: 10})
	require.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/cars/aaa-123", nil)
	getRec := httptest.NewRecorder()
	router.ServeHTTP(getRec, req)
	require.Equal(t, http.StatusOK, getRec.Code)

	var info entities.CarInfo
	require.NoError(t, json.Unmarshal(getRec.Body.Bytes(), &info))
	assert.Equal(t, "AAA-123", info.Plate)
	assert.Equal(t, "ownerA", info.Owner)
	assert.Equal(t, []string{"ownerA"}, info.AllowedPeople)
	assert.Equal(t, 1, info.AllowedCount)
	assert.False(t, info.Parked)
	assert.Equal(t, int64(0), info.Fine)
}
