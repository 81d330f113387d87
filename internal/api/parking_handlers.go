package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"streetparking/internal/auth"
	"streetparking/internal/service"
	"streetparking/internal/utils"
)

type ParkingHandler struct {
	Ledger *service.LedgerService
}

func NewParkingHandler(ledger *service.LedgerService) *ParkingHandler {
	return &ParkingHandler{Ledger: ledger}
}

func (h *ParkingHandler) StartParking(w http.ResponseWriter, r *http.Request) {
	plate := utils.NormalizePlate(mux.Vars(r)["plate"])
	var req StartParkingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	caller := auth.CallerFromContext(r.Context())
	if err := h.Ledger.StartParking(caller, plate, req.DurationMinutes); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Parking started"})
}

func (h *ParkingHandler) StopParking(w http.ResponseWriter, r *http.Request) {
	plate := utils.NormalizePlate(mux.Vars(r)["plate"])

	caller := auth.CallerFromContext(r.Context())
	receipt, err := h.Ledger.StopParking(caller, plate)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

func (h *ParkingHandler) AddBalance(w http.ResponseWriter, r *http.Request) {
	plate := utils.NormalizePlate(mux.Vars(r)["plate"])
	var req PaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	caller := auth.CallerFromContext(r.Context())
	if err := h.Ledger.AddBalance(caller, plate, req.Payment); err != nil {
		writeServiceError(w, err)
		return
	}
	account, err := h.Ledger.Account(plate)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

func (h *ParkingHandler) WithdrawBalance(w http.ResponseWriter, r *http.Request) {
	plate := utils.NormalizePlate(mux.Vars(r)["plate"])

	caller := auth.CallerFromContext(r.Context())
	amount, err := h.Ledger.WithdrawBalance(caller, plate)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":   "Balance withdrawn",
		"amount":    amount,
		"recipient": caller,
	})
}

func (h *ParkingHandler) PayFine(w http.ResponseWriter, r *http.Request) {
	plate := utils.NormalizePlate(mux.Vars(r)["plate"])
	var req PaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	caller := auth.CallerFromContext(r.Context())
	if err := h.Ledger.PayFine(caller, plate, req.Payment); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Fine paid"})
}

func (h *ParkingHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	plate := utils.NormalizePlate(mux.Vars(r)["plate"])

	account, err := h.Ledger.Account(plate)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

// CreateTopUp opens a Stripe Checkout session; the webhook credits the car
// balance once the payment completes.
func (h *ParkingHandler) CreateTopUp(w http.ResponseWriter, r *http.Request) {
	plate := utils.NormalizePlate(mux.Vars(r)["plate"])
	var req TopUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	topUp, err := h.Ledger.CreateTopUp(plate, req.Amount)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, topUp)
}
