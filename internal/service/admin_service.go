package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"familyregistry/internal/database"
	"familyregistry/internal/logger"
	"familyregistry/internal/models"
	"familyregistry/internal/repository"
)

// SnapshotVersion identifies the layout written by ExportSnapshot
const SnapshotVersion = "1"

// ErrUnknownTable is returned by Clear for a table it cannot clear
var ErrUnknownTable = errors.New("unknown table")

// AdminRepos are the repositories an AdminService clears and exports
type AdminRepos struct {
	Users         *repository.UserRepository
	Families      *repository.FamilyRepository
	Wives         *repository.WifeRepository
	Members       *repository.MemberRepository
	Requests      *repository.RequestRepository
	Documents     *repository.DocumentRepository
	Notifications *repository.NotificationRepository
	Logs          *repository.LogRepository
	Settings      *repository.SettingsRepository
	Vouchers      *repository.VoucherRepository
	Recipients    *repository.VoucherRecipientRepository
}

// Snapshot is the JSON document written by ExportSnapshot
type Snapshot struct {
	Version       string                      `json:"version"`
	ExportedAt    time.Time                   `json:"exported_at"`
	DatabaseType  string                      `json:"database_type"`
	Users         []models.User               `json:"users"`
	Families      []models.FamilyWithMembers  `json:"families"`
	Requests      []models.RequestWithFamily  `json:"requests"`
	Vouchers      []models.VoucherWithDetails `json:"vouchers"`
	Notifications []models.Notification       `json:"notifications"`
	Settings      []models.Setting            `json:"settings"`
}

// AdminService backs the administrative tooling: bulk clears, full resets
// and JSON exports
type AdminService struct {
	db       *database.DB
	repos    AdminRepos
	registry *RegistryService
	settings *SettingsCache
	log      *logger.Logger
}

// NewAdminService creates a new admin service. settings may be nil; when set
// it is invalidated after the settings table is cleared.
func NewAdminService(db *database.DB, repos AdminRepos, registry *RegistryService, settings *SettingsCache, log *logger.Logger) *AdminService {
	if log == nil {
		log = logger.Nop()
	}
	return &AdminService{
		db:       db,
		repos:    repos,
		registry: registry,
		settings: settings,
		log:      log.With("service", "AdminService"),
	}
}

func (s *AdminService) ClearLogs(ctx context.Context) error {
	return s.repos.Logs.ClearLogs(ctx)
}

func (s *AdminService) ClearNotifications(ctx context.Context) error {
	return s.repos.Notifications.ClearNotifications(ctx)
}

func (s *AdminService) ClearRequests(ctx context.Context) error {
	return s.repos.Requests.ClearRequests(ctx)
}

func (s *AdminService) ClearMembers(ctx context.Context) error {
	return s.repos.Members.ClearMembers(ctx)
}

// ClearFamilies removes every family. It fails while rows of wives, members,
// requests or documents still reference a family.
func (s *AdminService) ClearFamilies(ctx context.Context) error {
	return s.repos.Families.ClearFamilies(ctx)
}

// ClearUsers removes every user. It fails while families or vouchers still
// reference a user.
func (s *AdminService) ClearUsers(ctx context.Context) error {
	return s.repos.Users.ClearUsers(ctx)
}

func (s *AdminService) ClearSettings(ctx context.Context) error {
	if err := s.repos.Settings.ClearSettings(ctx); err != nil {
		return err
	}
	if s.settings != nil {
		s.settings.Invalidate()
	}
	return nil
}

// Clear clears one table by name
func (s *AdminService) Clear(ctx context.Context, table string) error {
	clears := map[string]func(context.Context) error{
		"logs":          s.ClearLogs,
		"notifications": s.ClearNotifications,
		"requests":      s.ClearRequests,
		"members":       s.ClearMembers,
		"families":      s.ClearFamilies,
		"users":         s.ClearUsers,
		"settings":      s.ClearSettings,
	}
	fn, ok := clears[table]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}
	if err := fn(ctx); err != nil {
		return err
	}
	s.log.Info("table cleared", "table", table)
	return nil
}

// ClearableTables lists the table names Clear accepts
func ClearableTables() []string {
	tables := []string{"logs", "notifications", "requests", "members", "families", "users", "settings"}
	sort.Strings(tables)
	return tables
}

// ResetAll empties every table in reverse dependency order inside one transaction
func (s *AdminService) ResetAll(ctx context.Context) error {
	err := s.db.WithTx(ctx, func(tx *database.Tx) error {
		steps := []struct {
			table string
			run   func(context.Context) error
		}{
			{"voucher_recipients", s.repos.Recipients.WithTx(tx).ClearRecipients},
			{"support_vouchers", s.repos.Vouchers.WithTx(tx).ClearVouchers},
			{"documents", s.repos.Documents.WithTx(tx).ClearDocuments},
			{"requests", s.repos.Requests.WithTx(tx).ClearRequests},
			{"members", s.repos.Members.WithTx(tx).ClearMembers},
			{"wives", s.repos.Wives.WithTx(tx).ClearWives},
			{"families", s.repos.Families.WithTx(tx).ClearFamilies},
			{"notifications", s.repos.Notifications.WithTx(tx).ClearNotifications},
			{"logs", s.repos.Logs.WithTx(tx).ClearLogs},
			{"settings", s.repos.Settings.WithTx(tx).ClearSettings},
			{"users", s.repos.Users.WithTx(tx).ClearUsers},
		}
		for _, step := range steps {
			if err := step.run(ctx); err != nil {
				return err
			}
			s.log.Debug("cleared table", "table", step.table)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to reset database: %w", err)
	}

	if s.settings != nil {
		s.settings.Invalidate()
	}
	s.log.Info("database reset")
	return nil
}

// ExportSnapshot writes the registry as one indented JSON document
func (s *AdminService) ExportSnapshot(ctx context.Context, w io.Writer) error {
	snap := Snapshot{
		Version:      SnapshotVersion,
		ExportedAt:   time.Now().UTC(),
		DatabaseType: s.db.GetDialect().DriverName(),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		snap.Users, err = s.repos.Users.ListUsers(gctx, true)
		return err
	})
	g.Go(func() error {
		var err error
		snap.Families, err = s.registry.FamiliesWithMembers(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		snap.Requests, err = s.registry.RequestsWithFamilies(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		snap.Vouchers, err = s.registry.VouchersWithDetails(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		snap.Notifications, err = s.repos.Notifications.ListNotifications(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		snap.Settings, err = s.repos.Settings.ListSettings(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("failed to collect snapshot: %w", err)
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(snap); err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	s.log.Info("snapshot exported",
		"users", len(snap.Users),
		"families", len(snap.Families),
		"requests", len(snap.Requests),
		"vouchers", len(snap.Vouchers),
	)
	return nil
}
