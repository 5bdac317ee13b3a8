package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jegasuite/jega/internal/domain/payment"
)

const paymentColumns = `id, reference, status, amount_in_cents, currency, customer_email, customer_name,
	customer_phone, transaction_id, tenant_id, modules, provisioned_at, created_at, updated_at`

func scanPayment(row scannable) (payment.Payment, error) {
	var p payment.Payment
	var tenantID *int64
	err := row.Scan(&p.ID, &p.Reference, &p.Status, &p.AmountInCents, &p.Currency, &p.CustomerEmail,
		&p.CustomerName, &p.CustomerPhone, &p.TransactionID, &tenantID, &p.Modules, &p.ProvisionedAt,
		&p.CreatedAt, &p.UpdatedAt)
	if tenantID != nil {
		p.TenantID = *tenantID
	}
	return p, err
}

// UpsertPayment records the gateway state of a payment by reference. An
// APPROVED status is final: later events for the same reference never
// downgrade it. Empty incoming fields keep the stored values.
func (s *Store) UpsertPayment(ctx context.Context, p *payment.Payment) (*payment.Payment, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO payments (reference, status, amount_in_cents, currency, customer_email,
			customer_name, customer_phone, transaction_id, modules)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (reference) DO UPDATE SET
			status = CASE WHEN payments.status = 'APPROVED' THEN payments.status ELSE EXCLUDED.status END,
			amount_in_cents = CASE WHEN EXCLUDED.amount_in_cents <> 0 THEN EXCLUDED.amount_in_cents ELSE payments.amount_in_cents END,
			currency = COALESCE(NULLIF(EXCLUDED.currency, ''), payments.currency),
			customer_email = COALESCE(NULLIF(EXCLUDED.customer_email, ''), payments.customer_email),
			customer_name = COALESCE(NULLIF(EXCLUDED.customer_name, ''), payments.customer_name),
			customer_phone = COALESCE(NULLIF(EXCLUDED.customer_phone, ''), payments.customer_phone),
			transaction_id = COALESCE(NULLIF(EXCLUDED.transaction_id, ''), payments.transaction_id),
			modules = CASE WHEN cardinality(EXCLUDED.modules) > 0 THEN EXCLUDED.modules ELSE payments.modules END,
			updated_at = now()
		RETURNING `+paymentColumns,
		p.Reference, p.Status, p.AmountInCents, p.Currency, p.CustomerEmail,
		p.CustomerName, p.CustomerPhone, p.TransactionID, pgTextArray(p.Modules),
	)
	stored, err := scanPayment(row)
	if err != nil {
		return nil, conflictWrap(err, "upsert payment %s", p.Reference)
	}
	return &stored, nil
}

func (s *Store) GetPaymentByReference(ctx context.Context, reference string) (*payment.Payment, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE reference = $1`, reference)
	p, err := scanPayment(row)
	if err != nil {
		return nil, notFoundWrap(err, "get payment %s", reference)
	}
	return &p, nil
}

func (s *Store) SetPaymentTenant(ctx context.Context, reference string, tenantID int64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE payments SET tenant_id = $2, updated_at = now() WHERE reference = $1`, reference, tenantID)
	return execExpectOne(tag, err, "set tenant of payment %s", reference)
}

func (s *Store) MarkPaymentProvisioned(ctx context.Context, reference string, modules []string, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE payments SET modules = $2, provisioned_at = $3, updated_at = now() WHERE reference = $1`,
		reference, pgTextArray(modules), at)
	return execExpectOne(tag, err, "mark payment %s provisioned", reference)
}

func (s *Store) NextReferenceSeq(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT nextval('payment_reference_seq')`).Scan(&n); err != nil {
		return 0, fmt.Errorf("next reference sequence: %w", err)
	}
	return n, nil
}
