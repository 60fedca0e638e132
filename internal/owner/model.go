package owner

import "time"

type Owner struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

type OwnerInput struct {
	Email string `json:"email"`
}
