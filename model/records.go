package model

import "time"

// DepositRecord is the payload of a deposit request. It is applied once and
// discarded, never persisted. The account operated on is named by the URL
// path; TargetID is carried for compatibility with the original payload shape
// and is not consulted.
type DepositRecord struct {
	TargetID int64     `json:"targetId"`
	Amount   float64   `json:"amount" validate:"required,gt=0"`
	Date     time.Time `json:"date"`
}

// WithdrawalRecord is the payload of a withdrawal request. Same shape and
// lifecycle as DepositRecord; the amount must not exceed the current balance.
type WithdrawalRecord struct {
	TargetID int64     `json:"targetId"`
	Amount   float64   `json:"amount" validate:"required,gt=0"`
	Date     time.Time `json:"date"`
}

// TransferenceRecord is the payload of a transfer request: a withdrawal from
// the account in the URL path and a deposit into DestinationID, applied
// atomically.
type TransferenceRecord struct {
	DestinationID int64     `json:"destinationId" validate:"required"`
	Amount        float64   `json:"amount" validate:"required,gt=0"`
	Date          time.Time `json:"date"`
}
