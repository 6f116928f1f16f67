package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"golang.org/x/crypto/bcrypt"

	"familyregistry/internal/config"
	"familyregistry/internal/database"
	"familyregistry/internal/logger"
	"familyregistry/internal/models"
	"familyregistry/internal/pubsub"
	"familyregistry/internal/repository"
	"familyregistry/internal/retry"
	"familyregistry/internal/service"
	"familyregistry/internal/validation"
)

// app holds everything a subcommand needs
type app struct {
	log      *logger.Logger
	db       *database.DB
	repos    service.AdminRepos
	families *service.FamilyService
	admin    *service.AdminService
	settings *service.SettingsCache
	bus      *pubsub.RedisBus
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg := config.Load()
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to start", "error", err)
	}
	defer a.close()

	if err := a.run(ctx, os.Args[1], os.Args[2:]); err != nil {
		log.Error("Command failed", "command", os.Args[1], "error", err)
		os.Exit(1)
	}
}

func newApp(ctx context.Context, cfg *config.Config, log *logger.Logger) (*app, error) {
	db, err := database.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	log.Info("Database connection established", "type", cfg.DatabaseType)

	policy := &retry.Policy{
		MaxAttempts:     cfg.RetryMaxAttempts,
		InitialInterval: cfg.RetryInitialInterval,
		MaxInterval:     cfg.RetryMaxInterval,
		Log:             log,
	}

	repos := service.AdminRepos{
		Users:         repository.NewUserRepository(db, policy, log),
		Families:      repository.NewFamilyRepository(db, policy, log),
		Wives:         repository.NewWifeRepository(db, policy, log),
		Members:       repository.NewMemberRepository(db, policy, log),
		Requests:      repository.NewRequestRepository(db, policy, log),
		Documents:     repository.NewDocumentRepository(db, policy, log),
		Notifications: repository.NewNotificationRepository(db, policy, log),
		Logs:          repository.NewLogRepository(db, policy, log),
		Settings:      repository.NewSettingsRepository(db, policy, log),
		Vouchers:      repository.NewVoucherRepository(db, policy, log),
		Recipients:    repository.NewVoucherRecipientRepository(db, policy, log),
	}

	a := &app{log: log, db: db, repos: repos}

	opts := service.Options{TTL: cfg.SettingsCacheTTL, Log: log}
	if cfg.RedisURL != "" {
		bus, err := pubsub.NewRedisBus(ctx, cfg.RedisURL, cfg.RedisChannel, log)
		if err != nil {
			// settings still work, other processes just see changes after their TTL
			log.Warn("Redis unavailable, settings changes will not be broadcast", "error", err)
		} else {
			a.bus = bus
			opts.Bus = bus
		}
	}
	a.settings = service.NewSettingsCache(repos.Settings, opts)

	registry := service.NewRegistryService(service.RegistryReaders{
		Families:   repos.Families,
		Members:    repos.Members,
		Requests:   repos.Requests,
		Users:      repos.Users,
		Vouchers:   repos.Vouchers,
		Recipients: repos.Recipients,
	}, log)
	a.families = service.NewFamilyService(db, service.FamilyRepos{
		Users:     repos.Users,
		Families:  repos.Families,
		Wives:     repos.Wives,
		Members:   repos.Members,
		Requests:  repos.Requests,
		Documents: repos.Documents,
	}, policy, log)
	a.admin = service.NewAdminService(db, repos, registry, a.settings, log)

	return a, nil
}

func (a *app) close() {
	if a.bus != nil {
		a.bus.Close()
	}
	a.db.Close()
}

func (a *app) run(ctx context.Context, command string, args []string) error {
	// the schema is brought up to date before any command runs
	if _, err := a.db.RunMigrations(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	switch command {
	case "migrate":
		a.log.Info("Migrations completed successfully")
		return nil
	case "export":
		return a.export(ctx, args)
	case "clear":
		return a.clear(ctx, args)
	case "reset":
		return a.reset(ctx, args)
	case "delete-family":
		return a.deleteFamily(ctx, args)
	case "settings":
		return a.settingsCmd(ctx, args)
	case "seed-admin":
		return a.seedAdmin(ctx, args)
	default:
		printUsage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func (a *app) export(ctx context.Context, args []string) error {
	cmd := flag.NewFlagSet("export", flag.ExitOnError)
	output := cmd.String("output", "", "Output file path (default: snapshot_YYYYMMDD_HHMMSS.json)")
	cmd.Parse(args)

	path := *output
	if path == "" {
		path = fmt.Sprintf("snapshot_%s.json", time.Now().Format("20060102_150405"))
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := a.admin.ExportSnapshot(ctx, f); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	if info, err := os.Stat(path); err == nil {
		a.log.Info("Export complete", "path", path, "bytes", info.Size())
	}
	return nil
}

func (a *app) clear(ctx context.Context, args []string) error {
	cmd := flag.NewFlagSet("clear", flag.ExitOnError)
	table := cmd.String("table", "", "Table to clear: "+strings.Join(service.ClearableTables(), ", "))
	cmd.Parse(args)

	if *table == "" {
		cmd.PrintDefaults()
		return errors.New("-table is required")
	}
	return a.admin.Clear(ctx, *table)
}

func (a *app) reset(ctx context.Context, args []string) error {
	cmd := flag.NewFlagSet("reset", flag.ExitOnError)
	yes := cmd.Bool("yes", false, "Skip the confirmation prompt")
	cmd.Parse(args)

	if !*yes && !confirm("WARNING: This will delete all existing data. Type 'yes' to confirm: ") {
		a.log.Info("Reset cancelled")
		return nil
	}
	return a.admin.ResetAll(ctx)
}

func (a *app) deleteFamily(ctx context.Context, args []string) error {
	cmd := flag.NewFlagSet("delete-family", flag.ExitOnError)
	id := cmd.Int64("id", 0, "Family id (required)")
	cmd.Parse(args)

	if *id <= 0 {
		cmd.PrintDefaults()
		return errors.New("-id is required")
	}

	before, err := a.families.ChildCounts(ctx, *id)
	if err != nil {
		return err
	}
	deleted, err := a.families.DeleteFamily(ctx, *id)
	if err != nil {
		return err
	}
	if !deleted {
		fmt.Printf("Family %d not found\n", *id)
		return nil
	}
	fmt.Printf("Deleted family %d (%d wives, %d members, %d requests, %d documents)\n",
		*id, before.Wives, before.Members, before.Requests, before.Documents)
	return nil
}

func (a *app) settingsCmd(ctx context.Context, args []string) error {
	if len(args) == 0 {
		printUsage()
		return errors.New("settings needs a subcommand")
	}

	switch args[0] {
	case "list":
		all, err := a.settings.GetAll(ctx)
		if err != nil {
			return err
		}
		for _, s := range all {
			if s.Description != nil {
				fmt.Printf("%s=%s\t# %s\n", s.Key, s.Value, *s.Description)
			} else {
				fmt.Printf("%s=%s\n", s.Key, s.Value)
			}
		}
		return nil

	case "get":
		if len(args) != 2 {
			return errors.New("usage: settings get <key>")
		}
		value, ok, err := a.settings.Get(ctx, args[1])
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("setting %q not found", args[1])
		}
		fmt.Println(value)
		return nil

	case "set":
		cmd := flag.NewFlagSet("settings set", flag.ExitOnError)
		description := cmd.String("description", "", "Description stored with the setting")
		cmd.Parse(args[1:])
		if cmd.NArg() != 2 {
			return errors.New("usage: settings set [-description text] <key> <value>")
		}

		var desc *string
		if *description != "" {
			desc = description
		}
		key, value := cmd.Arg(0), cmd.Arg(1)
		if err := a.settings.Set(ctx, key, value, desc); err != nil {
			return err
		}
		a.log.Info("Setting updated", "key", key)
		return nil

	default:
		return fmt.Errorf("unknown settings subcommand %q", args[0])
	}
}

func (a *app) seedAdmin(ctx context.Context, args []string) error {
	cmd := flag.NewFlagSet("seed-admin", flag.ExitOnError)
	username := cmd.String("username", "", "Admin username (required)")
	password := cmd.String("password", "", "Admin password (required)")
	cmd.Parse(args)

	if err := validation.ValidateUsername(*username); err != nil {
		cmd.PrintDefaults()
		return err
	}
	if err := validation.ValidatePassword(*password); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(*password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := a.repos.Users.CreateUser(ctx, models.User{
		Username:     *username,
		PasswordHash: string(hash),
		Role:         models.RoleRoot,
	})
	if errors.Is(err, repository.ErrUsernameTaken) {
		return fmt.Errorf("user %q already exists", *username)
	}
	if err != nil {
		return err
	}

	a.log.Info("Admin user created", "user_id", user.ID, "username", user.Username)
	return nil
}

func confirm(prompt string) bool {
	fmt.Print(prompt)
	line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	return strings.TrimSpace(line) == "yes"
}

func printUsage() {
	fmt.Println("Family Registry Admin Tool")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  registryctl migrate                       Apply pending migrations")
	fmt.Println("  registryctl export [-output file]         Export the registry as JSON")
	fmt.Println("  registryctl clear -table <name>           Empty one table")
	fmt.Println("  registryctl reset [-yes]                  Empty every table")
	fmt.Println("  registryctl delete-family -id <id>        Delete a family and everything under it")
	fmt.Println("  registryctl settings list")
	fmt.Println("  registryctl settings get <key>")
	fmt.Println("  registryctl settings set [-description text] <key> <value>")
	fmt.Println("  registryctl seed-admin -username <name> -password <secret>")
	fmt.Println()
	fmt.Println("Clearable tables:", strings.Join(service.ClearableTables(), ", "))
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  DATABASE_TYPE           Database type: sqlite, postgres, or mysql (default: sqlite)")
	fmt.Println("  DB_PATH                 SQLite database path (default: ./familyregistry.db)")
	fmt.Println("  DATABASE_URL            PostgreSQL or MySQL connection URL")
	fmt.Println("  REDIS_URL               Redis URL for settings change broadcasts (optional)")
	fmt.Println("  SETTINGS_CACHE_TTL      Settings cache lifetime (default: 5m)")
	fmt.Println("  APP_ENV                 production for JSON logs")
}
