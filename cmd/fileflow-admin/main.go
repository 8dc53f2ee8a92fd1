// Command fileflow-admin runs maintenance tasks against the fileflow database.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/dukerupert/fileflow/internal/access"
	"github.com/dukerupert/fileflow/internal/blob"
	"github.com/dukerupert/fileflow/internal/config"
	"github.com/dukerupert/fileflow/internal/database"
	"github.com/dukerupert/fileflow/internal/entitlement"
	"github.com/dukerupert/fileflow/internal/logging"
	"github.com/dukerupert/fileflow/internal/model"
	"github.com/dukerupert/fileflow/internal/password"
	"github.com/dukerupert/fileflow/internal/payment"
	"github.com/dukerupert/fileflow/internal/payment/stripe"
	"github.com/dukerupert/fileflow/internal/store"
	"github.com/dukerupert/fileflow/internal/upload"
)

const usage = `Usage: fileflow-admin <command> [flags]

Commands:
  create-superuser   create a staff superuser account
  create-plan        create a subscription plan and sync it to Stripe
  backfill-metadata  recompute missing file size, type and extension
  prune-sessions     delete expired login sessions
  deactivate-user    disable an account, end its sessions and subscriptions
`

// app holds what the subcommands share.
type app struct {
	db        *sql.DB
	cfg       *config.Config
	blobs     blob.Store
	processor payment.Processor
	out       io.Writer
	logger    *slog.Logger
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load(".env")
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.Setup(cfg.Log.Level, cfg.Log.Format)

	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	a := &app{db: db, cfg: cfg, out: os.Stdout, logger: logger}
	if cfg.Stripe.SecretKey != "" {
		a.processor = stripe.NewClient(stripe.Config{
			SecretKey:     cfg.Stripe.SecretKey,
			WebhookSecret: cfg.Stripe.WebhookSecret,
			Currency:      cfg.Stripe.Currency,
		})
	}

	if err := a.run(context.Background(), os.Args[1], os.Args[2:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "%s: %v\n", os.Args[1], err)
		os.Exit(1)
	}
}

func (a *app) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "create-superuser":
		return a.createSuperuser(args)
	case "create-plan":
		return a.createPlan(ctx, args)
	case "backfill-metadata":
		return a.backfillMetadata(ctx)
	case "prune-sessions":
		return a.pruneSessions()
	case "deactivate-user":
		return a.deactivateUser(args)
	default:
		fmt.Fprint(a.out, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func (a *app) createSuperuser(args []string) error {
	fs := flag.NewFlagSet("create-superuser", flag.ContinueOnError)
	email := fs.String("email", "", "account email")
	username := fs.String("username", "admin", "account username")
	pass := fs.String("password", os.Getenv("FILEFLOW_ADMIN_PASSWORD"), "account password (default $FILEFLOW_ADMIN_PASSWORD)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" {
		return errors.New("-email is required")
	}
	if len(*pass) < password.MinLength {
		return password.ErrTooShort
	}

	hash, err := password.Hash(*pass)
	if err != nil {
		return err
	}
	users := store.NewUserStore(a.db)
	u, err := users.Create(store.CreateUserParams{
		Email:        *email,
		Username:     *username,
		PasswordHash: hash,
		IsStaff:      true,
		IsSuperuser:  true,
	})
	if errors.Is(err, store.ErrDuplicate) {
		return fmt.Errorf("email %q or username %q is already taken", *email, *username)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Superuser %s created (id %d)\n", u.Username, u.ID)
	return nil
}

func (a *app) createPlan(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("create-plan", flag.ContinueOnError)
	name := fs.String("name", "Basic Subscription", "plan name")
	description := fs.String("description", "Доступ к премиум-функциям загрузки файлов на 30 дней.", "plan description")
	price := fs.Int64("price", 500, "price in cents")
	days := fs.Int("days", 30, "subscription length in days")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *price <= 0 || *days <= 0 {
		return errors.New("-price and -days must be positive")
	}

	plans := store.NewPlanStore(a.db)
	plan, err := plans.GetByName(*name)
	if err != nil {
		return err
	}
	if plan != nil {
		fmt.Fprintf(a.out, "Plan %q already exists (id %d)\n", plan.Name, plan.ID)
	} else {
		plan, err = plans.Create(&model.SubscriptionPlan{
			Name:         *name,
			Description:  *description,
			PriceCents:   *price,
			DurationDays: *days,
			IsActive:     true,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Plan %q created (id %d)\n", plan.Name, plan.ID)
	}

	if a.processor == nil {
		fmt.Fprintln(a.out, "STRIPE_SECRET_KEY not set, skipping Stripe sync")
		return nil
	}
	payments := payment.NewService(plans, store.NewSubscriptionStore(a.db), store.NewUserStore(a.db),
		entitlement.NewResolver(store.NewSubscriptionStore(a.db)), a.processor, a.logger)
	created, err := payments.SyncPlan(ctx, plan)
	if err != nil {
		return err
	}
	if created {
		fmt.Fprintf(a.out, "Stripe price %s created\n", plan.StripePriceID)
	} else {
		fmt.Fprintf(a.out, "Stripe price %s already set\n", plan.StripePriceID)
	}
	return nil
}

func (a *app) backfillMetadata(ctx context.Context) error {
	blobs := a.blobs
	if blobs == nil {
		var err error
		blobs, err = blob.Open(a.cfg.Storage.Backend, a.cfg.Storage.Dir, blob.S3Config{
			Endpoint:  a.cfg.Storage.S3Endpoint,
			Bucket:    a.cfg.Storage.S3Bucket,
			Region:    a.cfg.Storage.S3Region,
			AccessKey: a.cfg.Storage.S3AccessKey,
			SecretKey: a.cfg.Storage.S3SecretKey,
			Prefix:    a.cfg.Storage.S3Prefix,
		})
		if err != nil {
			return err
		}
	}

	subs := store.NewSubscriptionStore(a.db)
	svc := upload.NewService(store.NewFileStore(a.db), blobs, entitlement.NewResolver(subs), access.Policy{}, a.logger)
	res, err := svc.Backfill(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Updated %d files, %d missing from storage\n", res.Updated, res.Missing)
	return nil
}

func (a *app) pruneSessions() error {
	n, err := store.NewSessionStore(a.db).DeleteExpired(time.Now())
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Deleted %d expired sessions\n", n)
	return nil
}

func (a *app) deactivateUser(args []string) error {
	fs := flag.NewFlagSet("deactivate-user", flag.ContinueOnError)
	login := fs.String("login", "", "email or username")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *login == "" {
		return errors.New("-login is required")
	}

	users := store.NewUserStore(a.db)
	u, err := users.GetByLogin(*login)
	if err != nil {
		return err
	}
	if u == nil {
		return fmt.Errorf("no user %q", *login)
	}
	if err := users.SetActive(u.ID, false); err != nil {
		return err
	}
	if err := store.NewSessionStore(a.db).DeleteByUserID(u.ID); err != nil {
		return err
	}

	subs := store.NewSubscriptionStore(a.db)
	history, err := subs.ListByUser(u.ID)
	if err != nil {
		return err
	}
	ended := 0
	for _, sub := range history {
		if !sub.IsActive {
			continue
		}
		if err := subs.Deactivate(sub.ID); err != nil {
			return err
		}
		ended++
	}
	fmt.Fprintf(a.out, "User %s deactivated, %d subscriptions ended\n", u.Username, ended)
	return nil
}
