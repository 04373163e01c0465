package models

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Both backends speak plain JSON numbers for money fields.
	decimal.MarshalJSONWithoutQuotes = true
}

// User represents a wallet account holder. Balance is authoritative only as
// reported by the backend; it is never computed client-side.
type User struct {
	ID        string          `json:"id"`
	FirstName string          `json:"firstName"`
	LastName  string          `json:"lastName"`
	Email     string          `json:"email"`
	Balance   decimal.Decimal `json:"balance"`
}

// TransactionType classifies a transaction as presented to the user.
type TransactionType string

const (
	// TxSend is money leaving the wallet towards another user or a bank account.
	TxSend TransactionType = "send"
	// TxReceive is money arriving from another wallet user.
	TxReceive TransactionType = "receive"
	// TxDebin is money pulled into the wallet through a DEBIN request.
	TxDebin TransactionType = "debin"
	// TxLoad is money loaded from an external bank account.
	TxLoad TransactionType = "load"
)

// TransactionStatus is the settlement state reported by the backend.
type TransactionStatus string

const (
	StatusCompleted TransactionStatus = "completed"
	StatusPending   TransactionStatus = "pending"
	StatusFailed    TransactionStatus = "failed"
)

// Transaction is a single wallet movement. Amount is signed: outgoing
// movements are negative, incoming ones positive.
type Transaction struct {
	ID             string            `json:"id"`
	Amount         decimal.Decimal   `json:"amount"`
	Description    string            `json:"description"`
	Status         TransactionStatus `json:"status"`
	Date           time.Time         `json:"date"`
	Type           TransactionType   `json:"type"`
	RecipientEmail string            `json:"recipientEmail,omitempty"`
}

// Contact is an entry in the user's favorites list. ID maps to a distinct
// backend user id.
type Contact struct {
	ID         string `json:"id"`
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	Email      string `json:"email"`
	IsFavorite bool   `json:"isFavorite"`
}
