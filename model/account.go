package model

// Account is a bank account as stored and as serialized over the wire.
// The id is client-supplied on creation; amount is the current balance and
// never goes negative.
type Account struct {
	ID          int64   `json:"id"`
	Amount      float64 `json:"amount"`
	AccountType string  `json:"accountType"`
	Owner       string  `json:"owner"`
}
