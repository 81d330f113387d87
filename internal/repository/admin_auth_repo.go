package repository

import (
	"database/sql"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"streetparking/internal/db"
)

// OperatorAuthRepository stores back-office operator credentials.
type OperatorAuthRepository interface {
	GetByEmail(email string) (*db.Operator, error)
	CreateOperator(email, password string) error
}

type operatorAuthRepository struct {
	db *sql.DB
}

func NewOperatorAuthRepository(database *sql.DB) OperatorAuthRepository {
	return &operatorAuthRepository{db: database}
}

func (r *operatorAuthRepository) GetByEmail(email string) (*db.Operator, error) {
	var op db.Operator
	err := r.db.QueryRow("SELECT id, email, password_hash FROM operators WHERE email = $1", normalizeEmail(email)).
		Scan(&op.ID, &op.Email, &op.PasswordHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &op, nil
}

func (r *operatorAuthRepository) CreateOperator(email, password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	query := "INSERT INTO operators (email, password_hash) VALUES ($1, $2)"
	_, err = r.db.Exec(query, normalizeEmail(email), hashedPassword)
	return err
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
