package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streetparking/internal/db"
	"streetparking/internal/entities"
	apperrors "streetparking/internal/errors"
)

// fakeRegistryStore is an in-memory RegistryStore for service tests.
type fakeRegistryStore struct {
	cars     map[string]*db.Car
	allowed  map[string][]string
	services map[string]bool
	pricing  db.RegistryPricing
	fees     int64
	nextID   int64
}

func newFakeRegistryStore(pricing db.RegistryPricing) *fakeRegistryStore {
	return &fakeRegistryStore{
		cars:     make(map[string]*db.Car),
		allowed:  make(map[string][]string),
		services: make(map[string]bool),
		pricing:  pricing,
	}
}

func (f *fakeRegistryStore) GetCar(plate string) (*db.Car, error) {
	car, ok := f.cars[plate]
	if !ok {
		return nil, nil
	}
	copied := *car
	return &copied, nil
}

func (f *fakeRegistryStore) CreateCar(car *db.Car) (int64, error) {
	f.nextID++
	car.ID = f.nextID
	copied := *car
	f.cars[car.Plate] = &copied
	return car.ID, nil
}

func (f *fakeRegistryStore) AllowedPeople(plate string) ([]string, error) {
	return append([]string(nil), f.allowed[plate]...), nil
}

func (f *fakeRegistryStore) AddAllowedPerson(plate, person string) error {
	for _, p := range f.allowed[plate] {
		if p == person {
			return nil
		}
	}
	f.allowed[plate] = append(f.allowed[plate], person)
	return nil
}

func (f *fakeRegistryStore) RemoveAllowedPerson(plate, person string) error {
	people := f.allowed[plate]
	for i, p := range people {
		if p == person {
			f.allowed[plate] = append(people[:i], people[i+1:]...)
			return nil
		}
	}
	return nil
}

func (f *fakeRegistryStore) TransferCar(plate, newOwner string) error {
	f.cars[plate].Owner = newOwner
	delete(f.allowed, plate)
	return nil
}

func (f *fakeRegistryStore) IsServiceCaller(address string) (bool, error) {
	return f.services[address], nil
}

func (f *fakeRegistryStore) AddServiceCaller(address string) error {
	f.services[address] = true
	return nil
}

func (f *fakeRegistryStore) Pricing() (*db.RegistryPricing, error) {
	p := f.pricing
	return &p, nil
}

func (f *fakeRegistryStore) UpdatePricing(p *db.RegistryPricing) error {
	f.pricing = *p
	return nil
}

func (f *fakeRegistryStore) AddCollectedFees(amount int64) error {
	f.fees += amount
	return nil
}

func (f *fakeRegistryStore) CollectedFees() (int64, error) {
	return f.fees, nil
}

// Prices mirror the production defaults: the smallest unit here is a
// thousandth of the headline currency, so mint 0.1 -> 100.
var testPricing = db.RegistryPricing{
	MintPrice:         100,
	AddPersonPrice:    50,
	RemovePersonPrice: 50,
	TransferPrice:     50,
}

func TestMintCar(t *testing.T) {
	registry := NewRegistryService(newFakeRegistryStore(testPricing))

	tokenID, err := registry.Mint("ownerA", "AAA-123", 100, entities.OwnerContact{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), tokenID)

	owner, err := registry.OwnerOf("AAA-123")
	require.NoError(t, err)
	assert.Equal(t, "ownerA", owner)

	_, err = registry.Mint("ownerB", "BBB-123", 50, entities.OwnerContact{})
	assert.Equal(t, apperrors.CodeInvalidPayment, apperrors.CodeOf(err))

	_, err = registry.Mint("ownerB", "AAA-123", 100, entities.OwnerContact{})
	assert.Equal(t, apperrors.CodeDuplicateCar, apperrors.CodeOf(err))

	_, err = registry.OwnerOf("ZZZ-999")
	assert.Equal(t, apperrors.CodeNotFound, apperrors.CodeOf(err))
}

func TestAllowedPeople(t *testing.T) {
	store := newFakeRegistryStore(testPricing)
	registry := NewRegistryService(store)
	_, err := registry.Mint("ownerA", "AAA-123", 100, entities.OwnerContact{})
	require.NoError(t, err)

	err = registry.AddAllowedPerson("stranger", "AAA-123", "personB", 50)
	assert.Equal(t, apperrors.CodeUnauthorized, apperrors.CodeOf(err))

	err = registry.AddAllowedPerson("ownerA", "AAA-123", "personB", 25)
	assert.Equal(t, apperrors.CodeInvalidPayment, apperrors.CodeOf(err))

	require.NoError(t, registry.AddAllowedPerson("ownerA", "AAA-123", "personB", 50))

	ok, err := registry.IsAuthorized("AAA-123", "personB")
	require.NoError(t, err)
	assert.True(t, ok)

	// Re-granting an existing delegate succeeds and is charged again.
	feesBefore, _ := store.CollectedFees()
	require.NoError(t, registry.AddAllowedPerson("ownerA", "AAA-123", "personB", 50))
	feesAfter, _ := store.CollectedFees()
	assert.Equal(t, feesBefore+50, feesAfter)

	// Removing a non-member also succeeds and is charged.
	require.NoError(t, registry.RemoveAllowedPerson("ownerA", "AAA-123", "nobody", 50))
	feesFinal, _ := store.CollectedFees()
	assert.Equal(t, feesAfter+50, feesFinal)

	require.NoError(t, registry.RemoveAllowedPerson("ownerA", "AAA-123", "personB", 50))
	ok, err = registry.IsAuthorized("AAA-123", "personB")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOwnerIsAlwaysAuthorized(t *testing.T) {
	registry := NewRegistryService(newFakeRegistryStore(testPricing))
	_, err := registry.Mint("ownerA", "AAA-123", 100, entities.OwnerContact{})
	require.NoError(t, err)

	ok, err := registry.IsAuthorized("AAA-123", "ownerA")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = registry.IsAuthorized("AAA-123", "stranger")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = registry.IsAuthorized("ZZZ-999", "ownerA")
	assert.Equal(t, apperrors.CodeNotFound, apperrors.CodeOf(err))
}

func TestTransferClearsAllowedList(t *testing.T) {
	registry := NewRegistryService(newFakeRegistryStore(testPricing))
	_, err := registry.Mint("ownerA", "AAA-123", 100, entities.OwnerContact{})
	require.NoError(t, err)
	require.NoError(t, registry.AddAllowedPerson("ownerA", "AAA-123", "personB", 50))

	err = registry.Transfer("stranger", "AAA-123", "ownerB", 50)
	assert.Equal(t, apperrors.CodeUnauthorized, apperrors.CodeOf(err))

	err = registry.Transfer("ownerA", "AAA-123", "ownerB", 10)
	assert.Equal(t, apperrors.CodeInvalidPayment, apperrors.CodeOf(err))

	require.NoError(t, registry.Transfer("ownerA", "AAA-123", "ownerB", 50))

	car, allowed, err := registry.CarDetails("AAA-123")
	require.NoError(t, err)
	assert.Equal(t, "ownerB", car.Owner)
	// Only the new owner remains; delegation does not survive a transfer.
	assert.Equal(t, []string{"ownerB"}, allowed)

	ok, err := registry.IsAuthorized("AAA-123", "personB")
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = registry.IsAuthorized("AAA-123", "ownerA")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCarDetailsListsOwnerFirst(t *testing.T) {
	registry := NewRegistryService(newFakeRegistryStore(testPricing))
	_, err := registry.Mint("ownerA", "AAA-123", 100, entities.OwnerContact{})
	require.NoError(t, err)
	require.NoError(t, registry.AddAllowedPerson("ownerA", "AAA-123", "personB", 50))
	require.NoError(t, registry.AddAllowedPerson("ownerA", "AAA-123", "personC", 50))

	_, allowed, err := registry.CarDetails("AAA-123")
	require.NoError(t, err)
	assert.Equal(t, []string{"ownerA", "personB", "personC"}, allowed)
}

func TestAuthorizedForServiceRequiresAllowList(t *testing.T) {
	registry := NewRegistryService(newFakeRegistryStore(testPricing))
	_, err := registry.Mint("ownerA", "AAA-123", 100, entities.OwnerContact{})
	require.NoError(t, err)

	_, err = registry.AuthorizedForService("parking-1", "AAA-123", "ownerA")
	assert.Equal(t, apperrors.CodeForbidden, apperrors.CodeOf(err))

	require.NoError(t, registry.RegisterServiceCaller("parking-1"))

	ok, err := registry.AuthorizedForService("parking-1", "AAA-123", "ownerA")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSetCostsAppliesProspectively(t *testing.T) {
	registry := NewRegistryService(newFakeRegistryStore(testPricing))

	require.NoError(t, registry.SetCosts(db.RegistryPricing{
		MintPrice:         200,
		AddPersonPrice:    50,
		RemovePersonPrice: 50,
		TransferPrice:     50,
	}))

	_, err := registry.Mint("ownerA", "AAA-123", 100, entities.OwnerContact{})
	assert.Equal(t, apperrors.CodeInvalidPayment, apperrors.CodeOf(err))

	_, err = registry.Mint("ownerA", "AAA-123", 200, entities.OwnerContact{})
	require.NoError(t, err)

	err = registry.SetCosts(db.RegistryPricing{MintPrice: -1})
	assert.Equal(t, apperrors.CodeInvalidRequest, apperrors.CodeOf(err))
}
