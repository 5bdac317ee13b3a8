// Package webhook decodes payment gateway notifications into domain events.
package webhook

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jegasuite/jega/internal/domain/payment"
	"github.com/jegasuite/jega/internal/domain/user"
)

// ErrMalformed wraps every decode failure so handlers can answer 400.
var ErrMalformed = errors.New("malformed gateway event")

// Envelope is the gateway's outer JSON shape.
type Envelope struct {
	Event     string          `json:"event"`
	Data      Transaction     `json:"data"`
	Timestamp json.RawMessage `json:"timestamp"`
}

// Transaction is the "data" object of an Envelope.
type Transaction struct {
	ID            string             `json:"id"`
	Reference     string             `json:"reference"`
	Status        string             `json:"status"`
	AmountInCents int64              `json:"amountInCents"`
	Currency      string             `json:"currency"`
	CustomerEmail string             `json:"customerEmail"`
	Customer      Customer           `json:"customer"`
	LineItems     []payment.LineItem `json:"lineItems"`
}

// Customer holds the payer details.
type Customer struct {
	FullName    string `json:"fullName"`
	PhoneNumber string `json:"phoneNumber"`
}

// Decode parses the raw webhook body into a validated payment.Event.
func Decode(raw []byte) (*payment.Event, error) {
	var env Envelope
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	status, err := payment.ParseStatus(env.Data.Status)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	ts, err := parseTimestamp(env.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	ev := &payment.Event{
		Type:          env.Event,
		TransactionID: env.Data.ID,
		Reference:     env.Data.Reference,
		Status:        status,
		AmountInCents: env.Data.AmountInCents,
		Currency:      env.Data.Currency,
		CustomerEmail: user.NormalizeEmail(env.Data.CustomerEmail),
		CustomerName:  env.Data.Customer.FullName,
		CustomerPhone: env.Data.Customer.PhoneNumber,
		LineItems:     env.Data.LineItems,
		Timestamp:     ts,
	}
	if err := ev.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return ev, nil
}

// parseTimestamp accepts unix seconds or an RFC 3339 string. A missing
// timestamp decodes to the zero time.
func parseTimestamp(raw json.RawMessage) (time.Time, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return time.Time{}, nil
	}
	if n, err := strconv.ParseInt(string(raw), 10, 64); err == nil {
		return time.Unix(n, 0).UTC(), nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return time.Time{}, fmt.Errorf("timestamp: %w", err)
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("timestamp: %w", err)
	}
	return t, nil
}
