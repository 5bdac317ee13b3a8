package service

import (
	"context"
	"errors"
	"testing"

	"github.com/jegasuite/jega/internal/domain"
	"github.com/jegasuite/jega/internal/domain/module"
	"github.com/jegasuite/jega/internal/domain/payment"
)

func newTestCheckout(t *testing.T) (*CheckoutService, *mockStore, *Verifier) {
	t.Helper()
	catalog, err := module.NewCatalog(module.DefaultDefinitions(), module.ExtraHours)
	if err != nil {
		t.Fatal(err)
	}
	store := newMockStore()
	v := NewVerifier(func() string { return "integrity-key" }, false)
	svc := NewCheckoutService(store, catalog, v, CheckoutConfig{
		PublicKey:   "pub_test_123",
		CheckoutURL: "https://checkout.test/",
		Currency:    "COP",
	})
	return svc, store, v
}

func TestCheckoutService_Start(t *testing.T) {
	svc, store, v := newTestCheckout(t)
	ctx := context.Background()

	resp, err := svc.Start(ctx, payment.CheckoutRequest{
		CustomerEmail: " Owner@Acme.test",
		CustomerName:  "Acme Logistics",
		Modules:       []string{module.ReportBuilder, module.ExtraHours, module.ExtraHours},
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if resp.Reference != "JEGA-EXTRAHOURS-REPORTS-001" {
		t.Errorf("reference = %q", resp.Reference)
	}
	if resp.AmountInCents != 9_900_000+7_900_000 {
		t.Errorf("amount = %d", resp.AmountInCents)
	}
	if resp.PublicKey != "pub_test_123" || resp.CheckoutURL != "https://checkout.test/" || resp.Currency != "COP" {
		t.Errorf("unexpected widget params %+v", resp)
	}
	if want := v.IntegritySignature(resp.Reference, resp.AmountInCents, "COP"); resp.IntegritySignature != want {
		t.Errorf("integrity = %q, want %q", resp.IntegritySignature, want)
	}

	stored, err := store.GetPaymentByReference(ctx, resp.Reference)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != payment.StatusPending || stored.CustomerEmail != "owner@acme.test" {
		t.Errorf("stored payment = %+v", stored)
	}
}

func TestCheckoutService_SequenceAdvances(t *testing.T) {
	svc, _, _ := newTestCheckout(t)
	req := payment.CheckoutRequest{CustomerEmail: "a@acme.test", CustomerName: "A", Modules: []string{module.ExtraHours}}

	first, err := svc.Start(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	second, err := svc.Start(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if first.Reference != "JEGA-EXTRAHOURS-001" || second.Reference != "JEGA-EXTRAHOURS-002" {
		t.Fatalf("references = %q, %q", first.Reference, second.Reference)
	}
}

func TestCheckoutService_Validation(t *testing.T) {
	svc, _, _ := newTestCheckout(t)
	cases := []struct {
		name string
		req  payment.CheckoutRequest
	}{
		{"bad email", payment.CheckoutRequest{CustomerEmail: "nope", CustomerName: "A", Modules: []string{module.ExtraHours}}},
		{"no name", payment.CheckoutRequest{CustomerEmail: "a@acme.test", Modules: []string{module.ExtraHours}}},
		{"no modules", payment.CheckoutRequest{CustomerEmail: "a@acme.test", CustomerName: "A"}},
		{"unknown module", payment.CheckoutRequest{CustomerEmail: "a@acme.test", CustomerName: "A", Modules: []string{"payroll"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Start(context.Background(), tc.req)
			if !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
		})
	}
}
