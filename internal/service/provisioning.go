package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	jotel "github.com/jegasuite/jega/internal/adapter/otel"
	"github.com/jegasuite/jega/internal/domain"
	"github.com/jegasuite/jega/internal/domain/module"
	"github.com/jegasuite/jega/internal/domain/payment"
	"github.com/jegasuite/jega/internal/domain/tenant"
	"github.com/jegasuite/jega/internal/domain/user"
	"github.com/jegasuite/jega/internal/port/database"
	"github.com/jegasuite/jega/internal/port/messagequeue"
	"github.com/jegasuite/jega/internal/port/mirror"
	"github.com/jegasuite/jega/internal/port/notifier"
)

// maxSlugAttempts bounds the slug collision loop.
const maxSlugAttempts = 100

// Outcome classifies what a payment event did.
type Outcome string

const (
	OutcomeStatusUpdated Outcome = "status_updated"
	OutcomeModulesAdded  Outcome = "modules_added"
	OutcomeTenantCreated Outcome = "tenant_created"
	OutcomeDuplicate     Outcome = "duplicate"
)

// ProvisioningResult describes the effect of one payment event.
type ProvisioningResult struct {
	Outcome   Outcome  `json:"outcome"`
	Reference string   `json:"reference"`
	TenantID  int64    `json:"tenant_id,omitempty"`
	UserID    string   `json:"user_id,omitempty"`
	Modules   []string `json:"modules,omitempty"`
	Added     []string `json:"added,omitempty"`
	Mirrored  bool     `json:"mirrored,omitempty"`
	Notified  bool     `json:"notified,omitempty"`
	// RaceLost is set when a concurrent delivery created the identity first
	// and this delivery's tenant was deactivated.
	RaceLost bool `json:"race_lost,omitempty"`
}

// ProvisionerConfig holds provisioning settings.
type ProvisionerConfig struct {
	DashboardURL         string
	BcryptCost           int
	MirrorLegacyIdentity bool
}

// Provisioner turns approved payments into tenants, admin users and module
// grants. Side effects after persistence are best effort.
type Provisioner struct {
	store    database.Store
	resolver module.Resolver
	notify   *NotificationService
	mirror   mirror.Mirror
	queue    messagequeue.Queue
	metrics  *jotel.Metrics
	cfg      ProvisionerConfig

	now           func() time.Time
	newCredential func() (string, error)
}

// NewProvisioner creates a Provisioner. notify, mirror and queue may be nil.
func NewProvisioner(
	store database.Store,
	resolver module.Resolver,
	notify *NotificationService,
	mir mirror.Mirror,
	queue messagequeue.Queue,
	cfg ProvisionerConfig,
) *Provisioner {
	return &Provisioner{
		store:         store,
		resolver:      resolver,
		notify:        notify,
		mirror:        mir,
		queue:         queue,
		cfg:           cfg,
		now:           time.Now,
		newCredential: GenerateTemporaryCredential,
	}
}

// SetMetrics attaches metric instruments.
func (p *Provisioner) SetMetrics(m *jotel.Metrics) { p.metrics = m }

// HandlePaymentEvent mirrors the event onto the payment record and, for
// approved payments, provisions the customer. Repeated delivery of an
// already provisioned reference is a no-op. A returned error means state
// may be partially written and the gateway should redeliver.
func (p *Provisioner) HandlePaymentEvent(ctx context.Context, ev *payment.Event) (*ProvisioningResult, error) {
	start := p.now()
	ctx, span := jotel.StartProvisioningSpan(ctx, ev.Reference, string(ev.Status))
	defer span.End()

	res, err := p.handle(ctx, ev)
	outcome := "failed"
	if err == nil {
		outcome = string(res.Outcome)
	} else {
		span.RecordError(err)
	}
	p.metrics.RecordProvisioning(ctx, outcome, p.now().Sub(start))
	return res, err
}

func (p *Provisioner) handle(ctx context.Context, ev *payment.Event) (*ProvisioningResult, error) {
	if err := ev.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	stored, err := p.store.UpsertPayment(ctx, &payment.Payment{
		Reference:     ev.Reference,
		Status:        ev.Status,
		AmountInCents: ev.AmountInCents,
		Currency:      ev.Currency,
		CustomerEmail: user.NormalizeEmail(ev.CustomerEmail),
		CustomerName:  ev.CustomerName,
		CustomerPhone: ev.CustomerPhone,
		TransactionID: ev.TransactionID,
	})
	if err != nil {
		slog.ErrorContext(ctx, "payment upsert failed", "reference", ev.Reference, "error", err)
		return nil, fmt.Errorf("upsert payment %s: %w", ev.Reference, err)
	}

	if ev.Status != payment.StatusApproved {
		slog.InfoContext(ctx, "payment status updated", "reference", ev.Reference, "status", ev.Status)
		return &ProvisioningResult{Outcome: OutcomeStatusUpdated, Reference: ev.Reference}, nil
	}
	if stored.ProvisionedAt != nil {
		slog.InfoContext(ctx, "payment already provisioned", "reference", ev.Reference, "provisioned_at", stored.ProvisionedAt)
		return &ProvisioningResult{
			Outcome:   OutcomeDuplicate,
			Reference: ev.Reference,
			TenantID:  stored.TenantID,
			Modules:   stored.Modules,
		}, nil
	}

	res, err := p.provisionApproved(ctx, ev, stored)
	if err != nil {
		slog.ErrorContext(ctx, "provisioning failed", "reference", ev.Reference, "error", err)
		return nil, err
	}

	if err := p.store.MarkPaymentProvisioned(ctx, ev.Reference, res.Modules, p.now().UTC()); err != nil {
		slog.ErrorContext(ctx, "mark payment provisioned failed", "reference", ev.Reference, "error", err)
		return nil, fmt.Errorf("mark payment %s provisioned: %w", ev.Reference, err)
	}

	slog.InfoContext(ctx, "payment provisioned",
		"reference", ev.Reference,
		"outcome", res.Outcome,
		"tenant_id", res.TenantID,
		"modules", res.Modules,
		"added", res.Added,
	)
	return res, nil
}

// provisionApproved augments the tenant of an existing identity or creates
// a new tenant for a first-time customer.
func (p *Provisioner) provisionApproved(ctx context.Context, ev *payment.Event, stored *payment.Payment) (*ProvisioningResult, error) {
	modules := p.resolver.Resolve(ev)
	email := user.NormalizeEmail(ev.CustomerEmail)

	existing, err := p.store.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		return p.augment(ctx, ev, existing, modules)
	case errors.Is(err, domain.ErrNotFound):
		return p.createTenant(ctx, ev, stored, email, modules)
	default:
		return nil, fmt.Errorf("lookup user %s: %w", email, err)
	}
}

// augment adds the missing grants to the tenant owning u.
func (p *Provisioner) augment(ctx context.Context, ev *payment.Event, u *user.User, modules []string) (*ProvisioningResult, error) {
	if err := p.store.SetPaymentTenant(ctx, ev.Reference, u.TenantID); err != nil {
		return nil, fmt.Errorf("link payment %s to tenant %d: %w", ev.Reference, u.TenantID, err)
	}
	added, err := p.grant(ctx, u.TenantID, modules)
	if err != nil {
		return nil, err
	}

	res := &ProvisioningResult{
		Outcome:   OutcomeModulesAdded,
		Reference: ev.Reference,
		TenantID:  u.TenantID,
		UserID:    u.ID,
		Modules:   modules,
		Added:     added,
	}
	if len(added) == 0 {
		return res, nil
	}

	res.Notified = p.notify.Notify(ctx, notifier.Notification{
		Kind:    notifier.KindModulesAdded,
		To:      u.Email,
		Subject: "New modules are available in your Jega account",
		Body: fmt.Sprintf("Hello %s,\n\nThe following modules are now active for your company: %s.\n\nSign in at %s with %s.\n",
			displayName(u.Name, u.Email), strings.Join(added, ", "), p.cfg.DashboardURL, u.Email),
	})
	p.publish(ctx, messagequeue.SubjectTenantModulesAdded, messagequeue.TenantModulesAddedPayload{
		TenantID:   u.TenantID,
		Added:      added,
		Reference:  ev.Reference,
		OccurredAt: p.now().UTC(),
	})
	return res, nil
}

// createTenant provisions a first-time customer. Each step is persisted on
// its own so a retry resumes where the previous attempt stopped.
func (p *Provisioner) createTenant(ctx context.Context, ev *payment.Event, stored *payment.Payment, email string, modules []string) (*ProvisioningResult, error) {
	t, err := p.tenantForPayment(ctx, ev, stored, email)
	if err != nil {
		return nil, err
	}

	added, err := p.grant(ctx, t.ID, modules)
	if err != nil {
		return nil, err
	}

	credential, err := p.newCredential()
	if err != nil {
		return nil, err
	}
	hash, err := hashPassword(credential, p.cfg.BcryptCost)
	if err != nil {
		return nil, err
	}

	now := p.now().UTC()
	admin := &user.User{
		ID:                 uuid.NewString(),
		TenantID:           t.ID,
		Email:              email,
		Name:               displayName(ev.CustomerName, email),
		PasswordHash:       hash,
		Role:               user.RoleAdmin,
		Active:             true,
		MustChangePassword: true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := p.store.CreateUser(ctx, admin); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return p.yieldToWinner(ctx, ev, t, email, modules)
		}
		return nil, fmt.Errorf("create admin user %s: %w", email, err)
	}

	res := &ProvisioningResult{
		Outcome:   OutcomeTenantCreated,
		Reference: ev.Reference,
		TenantID:  t.ID,
		UserID:    admin.ID,
		Modules:   modules,
		Added:     added,
	}

	if p.mirror != nil && p.cfg.MirrorLegacyIdentity {
		err := p.mirror.MirrorCredential(ctx, mirror.Credential{
			TenantID:     t.ID,
			Email:        email,
			Name:         admin.Name,
			PasswordHash: hash,
			Role:         string(user.RoleAdmin),
		})
		if err != nil {
			slog.WarnContext(ctx, "legacy identity mirror failed", "reference", ev.Reference, "tenant_id", t.ID, "error", err)
		} else {
			res.Mirrored = true
		}
	}

	res.Notified = p.notify.Notify(ctx, notifier.Notification{
		Kind:    notifier.KindWelcome,
		To:      email,
		Subject: "Welcome to Jega",
		Body: fmt.Sprintf("Hello %s,\n\nYour company account %q is ready.\n\nDashboard: %s\nLogin email: %s\nTemporary password: %s\n\nYou will be asked to change it after the first sign-in.\n",
			admin.Name, t.Name, p.cfg.DashboardURL, email, credential),
	})
	p.publish(ctx, messagequeue.SubjectTenantProvisioned, messagequeue.TenantProvisionedPayload{
		TenantID:   t.ID,
		TenantSlug: t.Slug,
		AdminEmail: email,
		Modules:    modules,
		Reference:  ev.Reference,
		OccurredAt: now,
	})
	return res, nil
}

// tenantForPayment reuses the tenant a previous attempt created for this
// payment, or creates one with a unique slug.
func (p *Provisioner) tenantForPayment(ctx context.Context, ev *payment.Event, stored *payment.Payment, email string) (*tenant.Tenant, error) {
	if stored != nil && stored.TenantID > 0 {
		t, err := p.store.GetTenant(ctx, stored.TenantID)
		if err != nil {
			return nil, fmt.Errorf("get tenant %d: %w", stored.TenantID, err)
		}
		slog.InfoContext(ctx, "resuming provisioning with existing tenant", "reference", ev.Reference, "tenant_id", t.ID)
		return t, nil
	}

	name := strings.TrimSpace(ev.CustomerName)
	if name == "" {
		name = email
	}
	base := tenant.BaseSlug(name)

	for n := 1; n <= maxSlugAttempts; n++ {
		candidate := tenant.SlugCandidate(base, n)
		taken, err := p.store.SlugExists(ctx, candidate)
		if err != nil {
			return nil, fmt.Errorf("check slug %s: %w", candidate, err)
		}
		if taken {
			continue
		}
		t, err := p.store.CreateTenant(ctx, tenant.CreateRequest{Name: name, Slug: candidate})
		if errors.Is(err, domain.ErrConflict) {
			// Another delivery took the slug between the check and the insert.
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("create tenant %s: %w", candidate, err)
		}
		if err := p.store.SetPaymentTenant(ctx, ev.Reference, t.ID); err != nil {
			return nil, fmt.Errorf("link payment %s to tenant %d: %w", ev.Reference, t.ID, err)
		}
		slog.InfoContext(ctx, "tenant created", "reference", ev.Reference, "tenant_id", t.ID, "slug", t.Slug)
		return t, nil
	}
	return nil, fmt.Errorf("no free slug for %q after %d attempts: %w", base, maxSlugAttempts, domain.ErrConflict)
}

// yieldToWinner handles a lost race on the unique email: the tenant this
// delivery created is deactivated and the winner's tenant gets the grants.
func (p *Provisioner) yieldToWinner(ctx context.Context, ev *payment.Event, orphan *tenant.Tenant, email string, modules []string) (*ProvisioningResult, error) {
	slog.WarnContext(ctx, "concurrent provisioning detected, deactivating duplicate tenant",
		"reference", ev.Reference, "tenant_id", orphan.ID, "email", email)

	if err := p.store.DeactivateTenant(ctx, orphan.ID); err != nil {
		slog.ErrorContext(ctx, "deactivate duplicate tenant failed", "tenant_id", orphan.ID, "error", err)
	}

	winner, err := p.store.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("lookup winning user %s: %w", email, err)
	}
	res, err := p.augment(ctx, ev, winner, modules)
	if err != nil {
		return nil, err
	}
	res.RaceLost = true
	return res, nil
}

// grant inserts the grants tenantID does not hold yet and returns the
// module names actually added.
func (p *Provisioner) grant(ctx context.Context, tenantID int64, modules []string) ([]string, error) {
	existing, err := p.store.ListModuleGrants(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list grants for tenant %d: %w", tenantID, err)
	}
	held := make(map[string]bool, len(existing))
	for _, g := range existing {
		held[g.ModuleName] = true
	}

	now := p.now().UTC()
	var added []string
	for _, m := range modules {
		if held[m] {
			continue
		}
		inserted, err := p.store.GrantModule(ctx, tenantID, m, now)
		if err != nil {
			return nil, fmt.Errorf("grant %s to tenant %d: %w", m, tenantID, err)
		}
		if inserted && !slices.Contains(added, m) {
			added = append(added, m)
		}
	}
	return added, nil
}

func (p *Provisioner) publish(ctx context.Context, subject string, payload any) {
	if p.queue == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		slog.WarnContext(ctx, "marshal event failed", "subject", subject, "error", err)
		return
	}
	if err := p.queue.Publish(ctx, subject, data); err != nil {
		slog.WarnContext(ctx, "publish event failed", "subject", subject, "error", err)
	}
}

func displayName(name, email string) string {
	if n := strings.TrimSpace(name); n != "" {
		return n
	}
	if i := strings.IndexByte(email, '@'); i > 0 {
		return email[:i]
	}
	return email
}
