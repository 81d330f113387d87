package service

import (
	"log"
	"sync"

	"streetparking/internal/db"
	"streetparking/internal/entities"
	apperrors "streetparking/internal/errors"
	"streetparking/internal/repository"
)

// RegistryService is the single source of truth for car ownership and
// delegated access. All priced mutations validate the attached payment before
// touching state; payments are non-refundable and excess is kept.
//
// Operations are serialized under one mutex: every call observes the registry
// either before or after any other call, never in between.
type RegistryService struct {
	mu   sync.Mutex
	repo repository.RegistryStore
}

func NewRegistryService(repo repository.RegistryStore) *RegistryService {
	return &RegistryService{repo: repo}
}

// Mint registers a new car owned by the caller and issues its token id.
func (s *RegistryService) Mint(caller, plate string, payment int64, contact entities.OwnerContact) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pricing, err := s.repo.Pricing()
	if err != nil {
		return 0, err
	}
	if payment < pricing.MintPrice {
		return 0, apperrors.InvalidPayment("Insufficient amount to mint a car")
	}

	existing, err := s.repo.GetCar(plate)
	if err != nil {
		return 0, err
	}
	if existing != nil {
		return 0, apperrors.DuplicateCar("Car is already registered")
	}

	car := &db.Car{
		Plate:      plate,
		Owner:      caller,
		OwnerEmail: contact.Email,
		OwnerPhone: contact.Phone,
	}
	tokenID, err := s.repo.CreateCar(car)
	if err != nil {
		return 0, err
	}
	if err := s.repo.AddCollectedFees(payment); err != nil {
		log.Printf("Error recording mint fee for car %s: %v", plate, err)
	}
	return tokenID, nil
}

// AddAllowedPerson grants a delegate access to the car. Re-granting an
// existing delegate succeeds and still charges the fee.
func (s *RegistryService) AddAllowedPerson(caller, plate, person string, payment int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	car, err := s.ownedCar(caller, plate)
	if err != nil {
		return err
	}
	pricing, err := s.repo.Pricing()
	if err != nil {
		return err
	}
	if payment < pricing.AddPersonPrice {
		return apperrors.InvalidPayment("Insufficient amount to add allowed people")
	}
	if person == "" {
		return apperrors.InvalidRequest("person is required")
	}

	if err := s.repo.AddAllowedPerson(car.Plate, person); err != nil {
		return err
	}
	return s.repo.AddCollectedFees(payment)
}

// RemoveAllowedPerson revokes a delegate. Removing someone who was never on
// the list succeeds and still charges the fee.
func (s *RegistryService) RemoveAllowedPerson(caller, plate, person string, payment int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	car, err := s.ownedCar(caller, plate)
	if err != nil {
		return err
	}
	pricing, err := s.repo.Pricing()
	if err != nil {
		return err
	}
	if payment < pricing.RemovePersonPrice {
		return apperrors.InvalidPayment("Insufficient amount to remove allowed people")
	}

	if err := s.repo.RemoveAllowedPerson(car.Plate, person); err != nil {
		return err
	}
	return s.repo.AddCollectedFees(payment)
}

// Transfer reassigns ownership. The delegated-access list is cleared with the
// transfer: access grants never carry over to the new owner.
func (s *RegistryService) Transfer(caller, plate, newOwner string, payment int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	car, err := s.ownedCar(caller, plate)
	if err != nil {
		return err
	}
	pricing, err := s.repo.Pricing()
	if err != nil {
		return err
	}
	if payment < pricing.TransferPrice {
		return apperrors.InvalidPayment("Insufficient amount to transfer the car")
	}
	if newOwner == "" {
		return apperrors.InvalidRequest("new owner is required")
	}

	if err := s.repo.TransferCar(car.Plate, newOwner); err != nil {
		return err
	}
	return s.repo.AddCollectedFees(payment)
}

// IsAuthorized reports whether person may use the car: the owner always may,
// delegates may until revoked.
func (s *RegistryService) IsAuthorized(plate, person string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isAuthorized(plate, person)
}

// AuthorizedForService answers the same question for a ledger instance that
// wants to act on the answer. Only allow-listed service callers may ask.
func (s *RegistryService) AuthorizedForService(serviceID, plate, person string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	allowed, err := s.repo.IsServiceCaller(serviceID)
	if err != nil {
		return false, err
	}
	if !allowed {
		return false, apperrors.Forbidden("Only an allowed parking service can call this function")
	}
	return s.isAuthorized(plate, person)
}

// OwnerOf returns the current owner of the car.
func (s *RegistryService) OwnerOf(plate string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	car, err := s.repo.GetCar(plate)
	if err != nil {
		return "", err
	}
	if car == nil {
		return "", apperrors.NotFound("Car is not registered")
	}
	return car.Owner, nil
}

// CarDetails returns the registry half of the car info view: owner, token id
// and the allowed list with the owner first.
func (s *RegistryService) CarDetails(plate string) (*db.Car, []string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	car, err := s.repo.GetCar(plate)
	if err != nil {
		return nil, nil, err
	}
	if car == nil {
		return nil, nil, apperrors.NotFound("Car is not registered")
	}
	people, err := s.repo.AllowedPeople(plate)
	if err != nil {
		return nil, nil, err
	}
	return car, append([]string{car.Owner}, people...), nil
}

// SetCosts replaces the registry fee schedule. Changes apply prospectively.
func (s *RegistryService) SetCosts(pricing db.RegistryPricing) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if pricing.MintPrice < 0 || pricing.AddPersonPrice < 0 || pricing.RemovePersonPrice < 0 || pricing.TransferPrice < 0 {
		return apperrors.InvalidRequest("prices must not be negative")
	}
	return s.repo.UpdatePricing(&pricing)
}

// RegisterServiceCaller allow-lists a ledger instance for privileged
// authorization queries.
func (s *RegistryService) RegisterServiceCaller(address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if address == "" {
		return apperrors.InvalidRequest("address is required")
	}
	return s.repo.AddServiceCaller(address)
}

// CollectedFees returns the registry revenue accumulated so far.
func (s *RegistryService) CollectedFees() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repo.CollectedFees()
}

func (s *RegistryService) isAuthorized(plate, person string) (bool, error) {
	car, err := s.repo.GetCar(plate)
	if err != nil {
		return false, err
	}
	if car == nil {
		return false, apperrors.NotFound("Car is not registered")
	}
	if person == car.Owner {
		return true, nil
	}
	people, err := s.repo.AllowedPeople(plate)
	if err != nil {
		return false, err
	}
	for _, p := range people {
		if p == person {
			return true, nil
		}
	}
	return false, nil
}

func (s *RegistryService) ownedCar(caller, plate string) (*db.Car, error) {
	car, err := s.repo.GetCar(plate)
	if err != nil {
		return nil, err
	}
	if car == nil {
		return nil, apperrors.NotFound("Car is not registered")
	}
	if car.Owner != caller {
		return nil, apperrors.Unauthorized("You are not the owner of this car")
	}
	return car, nil
}
