package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"streetparking/internal/auth"
	"streetparking/internal/entities"
	"streetparking/internal/service"
	"streetparking/internal/utils"
)

type RegistryHandler struct {
	Registry *service.RegistryService
	Ledger   *service.LedgerService
}

func NewRegistryHandler(registry *service.RegistryService, ledger *service.LedgerService) *RegistryHandler {
	return &RegistryHandler{Registry: registry, Ledger: ledger}
}

func (h *RegistryHandler) MintCar(w http.ResponseWriter, r *http.Request) {
	var req MintCarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	plate := utils.NormalizePlate(req.Plate)
	if plate == "" {
		http.Error(w, "plate is required", http.StatusBadRequest)
		return
	}

	caller := auth.CallerFromContext(r.Context())
	tokenID, err := h.Registry.Mint(caller, plate, req.Payment, entities.OwnerContact{
		Email: req.OwnerEmail,
		Phone: req.OwnerPhone,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"plate":    plate,
		"token_id": tokenID,
		"owner":    caller,
	})
}

func (h *RegistryHandler) AddAllowedPerson(w http.ResponseWriter, r *http.Request) {
	plate := utils.NormalizePlate(mux.Vars(r)["plate"])
	var req AllowedPersonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	caller := auth.CallerFromContext(r.Context())
	if err := h.Registry.AddAllowedPerson(caller, plate, req.Person, req.Payment); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Person allowed"})
}

func (h *RegistryHandler) RemoveAllowedPerson(w http.ResponseWriter, r *http.Request) {
	plate := utils.NormalizePlate(mux.Vars(r)["plate"])
	var req AllowedPersonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	caller := auth.CallerFromContext(r.Context())
	if err := h.Registry.RemoveAllowedPerson(caller, plate, req.Person, req.Payment); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Person removed"})
}

func (h *RegistryHandler) TransferCar(w http.ResponseWriter, r *http.Request) {
	plate := utils.NormalizePlate(mux.Vars(r)["plate"])
	var req TransferCarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	caller := auth.CallerFromContext(r.Context())
	if err := h.Registry.Transfer(caller, plate, req.NewOwner, req.Payment); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message":   "Car transferred",
		"new_owner": req.NewOwner,
	})
}

// GetCarInfo composes the registry and ledger views of one car: owner and
// token id, whether it is parked, its outstanding fine and the allowed list
// with the owner first.
func (h *RegistryHandler) GetCarInfo(w http.ResponseWriter, r *http.Request) {
	plate := utils.NormalizePlate(mux.Vars(r)["plate"])

	car, allowed, err := h.Registry.CarDetails(plate)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	account, err := h.Ledger.Account(plate)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, entities.CarInfo{
		Plate:         car.Plate,
		TokenID:       car.ID,
		Owner:         car.Owner,
		Parked:        account.Parked,
		Fine:          account.Fine,
		AllowedCount:  len(allowed),
		AllowedPeople: allowed,
	})
}

func (h *RegistryHandler) IsAuthorized(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	plate := utils.NormalizePlate(vars["plate"])
	person := vars["person"]

	authorized, err := h.Registry.IsAuthorized(plate, person)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"plate":      plate,
		"person":     person,
		"authorized": authorized,
	})
}
