package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/jegasuite/jega/internal/domain"
	"github.com/jegasuite/jega/internal/domain/module"
	"github.com/jegasuite/jega/internal/domain/payment"
	"github.com/jegasuite/jega/internal/domain/user"
	"github.com/jegasuite/jega/internal/port/database"
)

// CheckoutConfig holds the gateway values handed to the payment widget.
type CheckoutConfig struct {
	PublicKey   string
	CheckoutURL string
	Currency    string
}

// CheckoutService starts purchases: it reserves a reference, records a
// pending payment and signs the widget parameters.
type CheckoutService struct {
	store    database.Store
	catalog  *module.Catalog
	verifier *Verifier
	cfg      CheckoutConfig
}

// NewCheckoutService creates a CheckoutService.
func NewCheckoutService(store database.Store, catalog *module.Catalog, verifier *Verifier, cfg CheckoutConfig) *CheckoutService {
	return &CheckoutService{store: store, catalog: catalog, verifier: verifier, cfg: cfg}
}

// Start validates req and returns the parameters for the gateway widget.
func (s *CheckoutService) Start(ctx context.Context, req payment.CheckoutRequest) (*payment.CheckoutResponse, error) {
	email := user.NormalizeEmail(req.CustomerEmail)
	if err := user.ValidateEmail(email); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	if strings.TrimSpace(req.CustomerName) == "" {
		return nil, fmt.Errorf("%w: customerName is required", domain.ErrValidation)
	}
	modules := dedupe(req.Modules)
	if len(modules) == 0 {
		return nil, fmt.Errorf("%w: at least one module is required", domain.ErrValidation)
	}
	for _, m := range modules {
		if _, ok := s.catalog.Lookup(m); !ok {
			return nil, fmt.Errorf("%w: unknown module %q", domain.ErrValidation, m)
		}
	}

	seq, err := s.store.NextReferenceSeq(ctx)
	if err != nil {
		return nil, fmt.Errorf("next reference: %w", err)
	}
	ref, err := s.catalog.Reference(modules, fmt.Sprintf("%03d", seq))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	amount := s.catalog.Price(modules)

	_, err = s.store.UpsertPayment(ctx, &payment.Payment{
		Reference:     ref,
		Status:        payment.StatusPending,
		AmountInCents: amount,
		Currency:      s.cfg.Currency,
		CustomerEmail: email,
		CustomerName:  strings.TrimSpace(req.CustomerName),
		CustomerPhone: req.CustomerPhone,
		Modules:       modules,
	})
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, fmt.Errorf("reference %s already in use: %w", ref, err)
		}
		return nil, fmt.Errorf("record checkout %s: %w", ref, err)
	}

	slog.InfoContext(ctx, "checkout started", "reference", ref, "modules", modules, "amount_in_cents", amount)
	return &payment.CheckoutResponse{
		Reference:          ref,
		AmountInCents:      amount,
		Currency:           s.cfg.Currency,
		PublicKey:          s.cfg.PublicKey,
		IntegritySignature: s.verifier.IntegritySignature(ref, amount, s.cfg.Currency),
		CheckoutURL:        s.cfg.CheckoutURL,
	}, nil
}

func dedupe(in []string) []string {
	var out []string
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s != "" && !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}
