package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"streetparking/internal/db"
)

// RegistryStore persists car ownership, delegated access and the registry fee
// schedule. GetCar returns (nil, nil) for an unknown plate.
type RegistryStore interface {
	GetCar(plate string) (*db.Car, error)
	CreateCar(car *db.Car) (int64, error)
	AllowedPeople(plate string) ([]string, error)
	AddAllowedPerson(plate, person string) error
	RemoveAllowedPerson(plate, person string) error
	TransferCar(plate, newOwner string) error
	IsServiceCaller(address string) (bool, error)
	AddServiceCaller(address string) error
	Pricing() (*db.RegistryPricing, error)
	UpdatePricing(p *db.RegistryPricing) error
	AddCollectedFees(amount int64) error
	CollectedFees() (int64, error)
}

type registryRepository struct {
	db *sql.DB
}

func NewRegistryRepository(database *sql.DB) RegistryStore {
	return &registryRepository{db: database}
}

func (r *registryRepository) GetCar(plate string) (*db.Car, error) {
	var car db.Car
	query := `
		SELECT id, plate, owner, owner_email, owner_phone, created_at, updated_at
		FROM cars WHERE plate = $1`
	err := r.db.QueryRow(query, plate).Scan(
		&car.ID, &car.Plate, &car.Owner, &car.OwnerEmail, &car.OwnerPhone,
		&car.CreatedAt, &car.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("error querying car '%s': %w", plate, err)
	}
	return &car, nil
}

func (r *registryRepository) CreateCar(car *db.Car) (int64, error) {
	query := `
		INSERT INTO cars (plate, owner, owner_email, owner_phone, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING id`
	var id int64
	err := r.db.QueryRow(query, car.Plate, car.Owner, car.OwnerEmail, car.OwnerPhone).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("error creating car '%s': %w", car.Plate, err)
	}
	car.ID = id
	return id, nil
}

func (r *registryRepository) AllowedPeople(plate string) ([]string, error) {
	query := `SELECT person FROM allowed_people WHERE car_plate = $1 ORDER BY position`
	rows, err := r.db.Query(query, plate)
	if err != nil {
		return nil, fmt.Errorf("error querying allowed people for '%s': %w", plate, err)
	}
	defer rows.Close()

	var people []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		people = append(people, p)
	}
	return people, rows.Err()
}

func (r *registryRepository) AddAllowedPerson(plate, person string) error {
	// Re-granting an existing delegate is a priced no-op, so conflicts are fine.
	query := `
		INSERT INTO allowed_people (car_plate, person)
		VALUES ($1, $2)
		ON CONFLICT (car_plate, person) DO NOTHING`
	_, err := r.db.Exec(query, plate, person)
	return err
}

func (r *registryRepository) RemoveAllowedPerson(plate, person string) error {
	_, err := r.db.Exec(`DELETE FROM allowed_people WHERE car_plate = $1 AND person = $2`, plate, person)
	return err
}

// TransferCar reassigns ownership and wipes the delegated-access list in one
// transaction: access grants never survive an ownership change.
func (r *registryRepository) TransferCar(plate, newOwner string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`UPDATE cars SET owner = $2, updated_at = NOW() WHERE plate = $1`, plate, newOwner); err != nil {
		return fmt.Errorf("error transferring car '%s': %w", plate, err)
	}
	if _, err := tx.Exec(`DELETE FROM allowed_people WHERE car_plate = $1`, plate); err != nil {
		return fmt.Errorf("error clearing allowed people for '%s': %w", plate, err)
	}
	return tx.Commit()
}

func (r *registryRepository) IsServiceCaller(address string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(`SELECT EXISTS (SELECT 1 FROM service_callers WHERE address = $1)`, address).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (r *registryRepository) AddServiceCaller(address string) error {
	query := `INSERT INTO service_callers (address) VALUES ($1) ON CONFLICT (address) DO NOTHING`
	_, err := r.db.Exec(query, address)
	return err
}

func (r *registryRepository) Pricing() (*db.RegistryPricing, error) {
	var p db.RegistryPricing
	query := `
		SELECT mint_price, add_person_price, remove_person_price, transfer_price
		FROM registry_pricing WHERE id = 1`
	err := r.db.QueryRow(query).Scan(&p.MintPrice, &p.AddPersonPrice, &p.RemovePersonPrice, &p.TransferPrice)
	if err != nil {
		return nil, fmt.Errorf("error querying registry pricing: %w", err)
	}
	return &p, nil
}

func (r *registryRepository) UpdatePricing(p *db.RegistryPricing) error {
	query := `
		UPDATE registry_pricing
		SET mint_price = $1, add_person_price = $2, remove_person_price = $3, transfer_price = $4
		WHERE id = 1`
	_, err := r.db.Exec(query, p.MintPrice, p.AddPersonPrice, p.RemovePersonPrice, p.TransferPrice)
	return err
}

func (r *registryRepository) AddCollectedFees(amount int64) error {
	_, err := r.db.Exec(`UPDATE registry_pricing SET fees_collected = fees_collected + $1 WHERE id = 1`, amount)
	return err
}

func (r *registryRepository) CollectedFees() (int64, error) {
	var fees int64
	err := r.db.QueryRow(`SELECT fees_collected FROM registry_pricing WHERE id = 1`).Scan(&fees)
	return fees, err
}
