package pet

import "time"

type Pet struct {
	ID          string    `json:"id"`
	Nickname    string    `json:"nickname"`
	Age         int       `json:"age"`
	Vaccinated  bool      `json:"vaccinated"`
	Description string    `json:"description"`
	OwnerID     *string   `json:"owner_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type PetInput struct {
	Nickname    string  `json:"nickname"`
	Age         int     `json:"age"`
	Vaccinated  bool    `json:"vaccinated"`
	Description string  `json:"description"`
	OwnerID     *string `json:"owner_id"`
}

type VaccinatedInput struct {
	Vaccinated bool `json:"vaccinated"`
}

// ListFilter narrows List results. Vaccinated is a tri-state: nil matches
// both vaccinated and unvaccinated pets.
type ListFilter struct {
	OwnerID    string
	Vaccinated *bool
	Limit      int
	Offset     int
}
