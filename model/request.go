package model

// CreateAccountRequest defines the payload for creating a new bank account.
// It includes validation tags to ensure data integrity at the entry point.
// The id is client-supplied; creating an id that already exists is a conflict,
// not an overwrite.
type CreateAccountRequest struct {
	ID          int64   `json:"id" validate:"required"`
	Amount      float64 `json:"amount" validate:"gte=0"`
	AccountType string  `json:"accountType" validate:"required"`
	Owner       string  `json:"owner" validate:"required"`
}
