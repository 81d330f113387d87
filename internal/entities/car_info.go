package entities

// CarInfo combines registry and ledger state for one car. AllowedPeople lists
// the owner first, then delegates in the order they were granted.
type CarInfo struct {
	Plate         string   `json:"plate"`
	TokenID       int64    `json:"token_id"`
	Owner         string   `json:"owner"`
	Parked        bool     `json:"parked"`
	Fine          int64    `json:"fine"`
	AllowedCount  int      `json:"allowed_count"`
	AllowedPeople []string `json:"allowed_people"`
}

// OwnerContact is the optional contact information captured at mint time, used
// for fine and overtime notices.
type OwnerContact struct {
	Email string `json:"email"`
	Phone string `json:"phone"`
}
