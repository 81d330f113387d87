package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	apperrors "streetparking/internal/errors"
)

// Payment amounts ride in request bodies as integers in the smallest currency
// unit, mirroring how the ledger books them.

type MintCarRequest struct {
	Plate      string `json:"plate"`
	Payment    int64  `json:"payment"`
	OwnerEmail string `json:"owner_email"`
	OwnerPhone string `json:"owner_phone"`
}

type AllowedPersonRequest struct {
	Person  string `json:"person"`
	Payment int64  `json:"payment"`
}

type TransferCarRequest struct {
	NewOwner string `json:"new_owner"`
	Payment  int64  `json:"payment"`
}

type StartParkingRequest struct {
	DurationMinutes int `json:"duration_minutes"`
}

type PaymentRequest struct {
	Payment int64 `json:"payment"`
}

type TopUpRequest struct {
	Amount int64 `json:"amount"`
}

type SetCostsRequest struct {
	MintPrice         int64 `json:"mint_price"`
	AddPersonPrice    int64 `json:"add_person_price"`
	RemovePersonPrice int64 `json:"remove_person_price"`
	TransferPrice     int64 `json:"transfer_price"`
}

type SetRatesRequest struct {
	ParkFeePerMinute int64 `json:"park_fee_per_minute"`
	LateFine         int64 `json:"late_fine"`
}

type ServiceCallerRequest struct {
	Address string `json:"address"`
}

type WithdrawSurplusRequest struct {
	Recipient string `json:"recipient"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeServiceError maps a rejected operation onto its HTTP status and a
// stable {code, error} body. Anything that is not a ServiceError is a 500.
func writeServiceError(w http.ResponseWriter, err error) {
	var se *apperrors.ServiceError
	if errors.As(err, &se) {
		writeJSON(w, se.Status, map[string]string{
			"code":  se.Code,
			"error": se.Message,
		})
		return
	}
	log.Printf("Internal error: %v", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{
		"code":  "INTERNAL",
		"error": "internal server error",
	})
}
