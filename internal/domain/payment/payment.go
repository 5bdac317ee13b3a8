// Package payment defines the payment gateway event and the mirrored
// payment record it updates.
package payment

import (
	"errors"
	"strings"
	"time"
)

// Status is the gateway transaction status.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusApproved  Status = "APPROVED"
	StatusDeclined  Status = "DECLINED"
	StatusCancelled Status = "CANCELLED"
	StatusFailed    Status = "FAILED"
)

var validStatuses = map[Status]bool{
	StatusPending:   true,
	StatusApproved:  true,
	StatusDeclined:  true,
	StatusCancelled: true,
	StatusFailed:    true,
}

// ParseStatus normalizes a gateway status string. The gateway spells
// cancellation "VOIDED" in some event types; it is folded into CANCELLED.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	if st == "VOIDED" {
		st = StatusCancelled
	}
	if !validStatuses[st] {
		return "", errors.New("unknown payment status: " + s)
	}
	return st, nil
}

// LineItem is an optional structured purchase line carried by newer
// checkout flows.
type LineItem struct {
	SKU      string `json:"sku"`
	Quantity int    `json:"quantity,omitempty"`
}

// Event is a verified gateway notification. It is received, never owned.
type Event struct {
	Type          string     `json:"event"`
	TransactionID string     `json:"transaction_id"`
	Reference     string     `json:"reference"`
	Status        Status     `json:"status"`
	AmountInCents int64      `json:"amount_in_cents"`
	Currency      string     `json:"currency"`
	CustomerEmail string     `json:"customer_email"`
	CustomerName  string     `json:"customer_name"`
	CustomerPhone string     `json:"customer_phone"`
	LineItems     []LineItem `json:"line_items,omitempty"`
	Timestamp     time.Time  `json:"timestamp"`
}

// Validate checks the fields every event needs before it can touch state.
func (e *Event) Validate() error {
	if e.Reference == "" {
		return errors.New("reference is required")
	}
	if !validStatuses[e.Status] {
		return errors.New("invalid status")
	}
	if e.Status == StatusApproved && e.CustomerEmail == "" {
		return errors.New("customer email is required for approved payments")
	}
	return nil
}

// Payment is the internal mirror of a gateway transaction, matched by reference.
type Payment struct {
	ID            string     `json:"id"`
	Reference     string     `json:"reference"`
	Status        Status     `json:"status"`
	AmountInCents int64      `json:"amount_in_cents"`
	Currency      string     `json:"currency"`
	CustomerEmail string     `json:"customer_email"`
	CustomerName  string     `json:"customer_name"`
	CustomerPhone string     `json:"customer_phone"`
	TransactionID string     `json:"transaction_id,omitempty"`
	// TenantID is set once provisioning has created or matched a tenant, so
	// a retried delivery reuses it instead of creating another.
	TenantID      int64      `json:"tenant_id,omitempty"`
	Modules       []string   `json:"modules,omitempty"`
	ProvisionedAt *time.Time `json:"provisioned_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// CheckoutRequest starts a purchase of one or more modules.
type CheckoutRequest struct {
	CustomerEmail string   `json:"customerEmail"`
	CustomerName  string   `json:"customerName"`
	CustomerPhone string   `json:"customerPhone,omitempty"`
	Modules       []string `json:"modules"`
}

// CheckoutResponse carries what the gateway widget needs to collect payment.
type CheckoutResponse struct {
	Reference          string `json:"reference"`
	AmountInCents      int64  `json:"amountInCents"`
	Currency           string `json:"currency"`
	PublicKey          string `json:"publicKey"`
	IntegritySignature string `json:"integritySignature"`
	CheckoutURL        string `json:"checkoutUrl"`
}
