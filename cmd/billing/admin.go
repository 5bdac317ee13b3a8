package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"golang.org/x/term"

	"github.com/jegasuite/jega/internal/adapter/postgres"
	"github.com/jegasuite/jega/internal/config"
	"github.com/jegasuite/jega/internal/domain/payment"
	"github.com/jegasuite/jega/internal/secrets"
	"github.com/jegasuite/jega/internal/service"
)

// runAdmin dispatches admin subcommands.
func runAdmin(args []string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "--help" {
		printAdminHelp()
		return nil
	}

	switch args[0] {
	case "provision":
		return runAdminProvision(args[1:])
	case "list-tenants":
		return runAdminListTenants(args[1:])
	case "sign-webhook":
		return runAdminSignWebhook(args[1:])
	case "mint-token":
		return runAdminMintToken(args[1:])
	case "migrate":
		return runAdminMigrate(args[1:])
	default:
		printAdminHelp()
		return fmt.Errorf("unknown admin command: %s", args[0])
	}
}

func printAdminHelp() {
	fmt.Fprintf(os.Stderr, `Usage: billing admin <command> [options]

Commands:
  provision      Provision a tenant as if an approved payment had arrived
  list-tenants   List all tenants
  sign-webhook   Print the X-Integrity signature for a webhook body
  mint-token     Issue an access token for an existing user
  migrate        Show the schema version or roll back migrations
  help           Show this help message

Examples:
  billing admin provision --email owner@acme.test --name "Acme Logistics" --modules extra-hours,report-builder
  billing admin list-tenants
  billing admin sign-webhook --file event.json
  billing admin mint-token --email owner@acme.test
  billing admin migrate status
  billing admin migrate down 1
`)
}

func loadAdminApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return buildApp(ctx, cfg)
}

func runAdminProvision(args []string) error {
	fs := flag.NewFlagSet("provision", flag.ContinueOnError)
	email := fs.String("email", "", "customer email address (required)")
	name := fs.String("name", "", "customer or company name (required)")
	modules := fs.String("modules", "", "comma-separated module names (default: the default module)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" || *name == "" {
		return errors.New("--email and --name are required")
	}

	ctx := context.Background()
	a, err := loadAdminApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	mods := splitList(*modules)
	if len(mods) == 0 {
		mods = []string{a.catalog.Default()}
	}

	co, err := a.checkout.Start(ctx, payment.CheckoutRequest{CustomerEmail: *email, CustomerName: *name, Modules: mods})
	if err != nil {
		return fmt.Errorf("open payment: %w", err)
	}
	res, err := a.provisioner.HandlePaymentEvent(ctx, &payment.Event{
		Type:          "admin.provision",
		TransactionID: "admin-" + uuid.NewString(),
		Reference:     co.Reference,
		Status:        payment.StatusApproved,
		AmountInCents: co.AmountInCents,
		Currency:      co.Currency,
		CustomerEmail: *email,
		CustomerName:  *name,
		Timestamp:     time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("provision: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Provisioned %s: outcome=%s tenant=%d modules=%s\n",
		res.Reference, res.Outcome, res.TenantID, strings.Join(res.Modules, ","))
	return nil
}

func runAdminListTenants(args []string) error {
	fs := flag.NewFlagSet("list-tenants", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx := context.Background()
	a, err := loadAdminApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	tenants, err := a.tenants.List(ctx)
	if err != nil {
		return fmt.Errorf("list tenants: %w", err)
	}
	if len(tenants) == 0 {
		fmt.Println("No tenants found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSLUG\tNAME\tACTIVE\tCREATED")
	for i := range tenants {
		t := &tenants[i]
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%t\t%s\n", t.ID, t.Slug, t.Name, t.Active, t.CreatedAt.Format(time.RFC3339))
	}
	return w.Flush()
}

// runAdminSignWebhook signs a body the way the gateway does, for replaying
// events against a running service. It needs no database.
func runAdminSignWebhook(args []string) error {
	fs := flag.NewFlagSet("sign-webhook", flag.ContinueOnError)
	file := fs.String("file", "-", "file holding the exact body to sign (- for stdin)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var body []byte
	var err error
	if *file == "-" {
		body, err = io.ReadAll(bufio.NewReader(os.Stdin))
	} else {
		body, err = os.ReadFile(*file)
	}
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	vault, err := newVault(cfg)
	if err != nil {
		return err
	}
	key := vault.Get(secrets.GatewayIntegrityKey)
	if key == "" {
		key, err = promptSecret("Integrity key: ")
		if err != nil {
			return fmt.Errorf("read key: %w", err)
		}
	}

	v := service.NewVerifier(func() string { return key }, true)
	fmt.Println(v.Sign(body))
	return nil
}

func runAdminMintToken(args []string) error {
	fs := flag.NewFlagSet("mint-token", flag.ContinueOnError)
	email := fs.String("email", "", "user email address (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" {
		return errors.New("--email is required")
	}

	ctx := context.Background()
	a, err := loadAdminApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	u, err := a.store.GetUserByEmail(ctx, *email)
	if err != nil {
		return fmt.Errorf("find user: %w", err)
	}
	tok, exp, err := a.tokens.Issue(u)
	if err != nil {
		return fmt.Errorf("issue token: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Token for %s (tenant %d) expires %s\n", u.Email, u.TenantID, exp.Format(time.RFC3339))
	fmt.Println(tok)
	return nil
}

func runAdminMigrate(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: migrate status | migrate down <steps>")
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	ctx := context.Background()

	switch args[0] {
	case "status":
		v, err := postgres.MigrationVersion(ctx, cfg.Postgres.DSN)
		if err != nil {
			return err
		}
		fmt.Printf("schema version %d\n", v)
		return nil
	case "down":
		steps := 1
		if len(args) > 1 {
			steps, err = strconv.Atoi(args[1])
			if err != nil || steps < 1 {
				return fmt.Errorf("invalid step count %q", args[1])
			}
		}
		if err := postgres.RollbackMigrations(ctx, cfg.Postgres.DSN, steps); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Rolled back %d migration(s)\n", steps)
		return nil
	default:
		return fmt.Errorf("unknown migrate command: %s", args[0])
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// promptSecret reads a secret from the terminal without echoing.
func promptSecret(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(syscall.Stdin)) //nolint:unconvert // int conversion needed on some platforms
	fmt.Fprintln(os.Stderr)                         // newline after input
	if err != nil {
		return "", err
	}
	return string(b), nil
}
