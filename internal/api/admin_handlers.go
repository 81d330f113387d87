package api

import (
	"encoding/json"
	"net/http"

	"streetparking/internal/db"
	"streetparking/internal/service"
)

type AdminHandler struct {
	Registry *service.RegistryService
	Ledger   *service.LedgerService
}

func NewAdminHandler(registry *service.RegistryService, ledger *service.LedgerService) *AdminHandler {
	return &AdminHandler{Registry: registry, Ledger: ledger}
}

// SetCosts replaces the registry fee schedule. Prospective only.
func (h *AdminHandler) SetCosts(w http.ResponseWriter, r *http.Request) {
	var req SetCostsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	err := h.Registry.SetCosts(db.RegistryPricing{
		MintPrice:         req.MintPrice,
		AddPersonPrice:    req.AddPersonPrice,
		RemovePersonPrice: req.RemovePersonPrice,
		TransferPrice:     req.TransferPrice,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Registry costs updated"})
}

// SetRates replaces the per-minute fee and the late fine. Sessions already
// running keep the rate captured at start.
func (h *AdminHandler) SetRates(w http.ResponseWriter, r *http.Request) {
	var req SetRatesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	err := h.Ledger.SetRates(db.LedgerRates{
		ParkFeePerMinute: req.ParkFeePerMinute,
		LateFine:         req.LateFine,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Parking rates updated"})
}

// RegisterServiceCaller allow-lists a ledger instance on the registry.
func (h *AdminHandler) RegisterServiceCaller(w http.ResponseWriter, r *http.Request) {
	var req ServiceCallerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if err := h.Registry.RegisterServiceCaller(req.Address); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Service caller registered"})
}

// WithdrawSurplus sweeps the custody funds not earmarked as car balances.
func (h *AdminHandler) WithdrawSurplus(w http.ResponseWriter, r *http.Request) {
	var req WithdrawSurplusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	amount, err := h.Ledger.WithdrawSurplus(req.Recipient)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":   "Surplus withdrawn",
		"amount":    amount,
		"recipient": req.Recipient,
	})
}

// GetStats reports the custody totals, the surplus and the registry revenue.
func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Ledger.Stats()
	if err != nil {
		writeServiceError(w, err)
		return
	}
	fees, err := h.Registry.CollectedFees()
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"custody":            stats.Custody,
		"total_car_balances": stats.TotalCarBalances,
		"surplus":            stats.Surplus,
		"registry_fees":      fees,
	})
}
