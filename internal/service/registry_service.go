package service

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"familyregistry/internal/batch"
	"familyregistry/internal/logger"
	"familyregistry/internal/models"
)

// FamilyReader is the subset of FamilyRepository the registry views read from
type FamilyReader interface {
	GetFamilyByID(ctx context.Context, id int64) (*models.Family, error)
	ListFamilies(ctx context.Context) ([]models.Family, error)
	ListFamiliesByIDs(ctx context.Context, ids []int64) ([]models.Family, error)
}

type MemberReader interface {
	ListMembers(ctx context.Context) ([]models.Member, error)
	ListMembersByFamilyID(ctx context.Context, familyID int64) ([]models.Member, error)
}

type RequestReader interface {
	ListRequests(ctx context.Context) ([]models.Request, error)
}

type UserReader interface {
	ListUsers(ctx context.Context, includeDeleted bool) ([]models.User, error)
}

type VoucherReader interface {
	ListVouchers(ctx context.Context) ([]models.SupportVoucher, error)
}

type RecipientReader interface {
	ListRecipients(ctx context.Context) ([]models.VoucherRecipient, error)
	ListRecipientsByVoucherID(ctx context.Context, voucherID int64) ([]models.VoucherRecipient, error)
}

// RegistryReaders groups the readers a RegistryService needs
type RegistryReaders struct {
	Families   FamilyReader
	Members    MemberReader
	Requests   RequestReader
	Users      UserReader
	Vouchers   VoucherReader
	Recipients RecipientReader
}

// RegistryService builds the nested registry views. Each view issues at most
// one read per entity type and joins the results in memory. The reads run
// concurrently and share no snapshot, so a write landing between them can be
// visible in one collection and not yet in another.
type RegistryService struct {
	r   RegistryReaders
	log *logger.Logger
}

// NewRegistryService creates a new registry service
func NewRegistryService(readers RegistryReaders, log *logger.Logger) *RegistryService {
	if log == nil {
		log = logger.Nop()
	}
	return &RegistryService{r: readers, log: log.With("service", "RegistryService")}
}

func familyID(f models.Family) int64 { return f.ID }
func memberFamilyID(m models.Member) int64 { return m.FamilyID }
func userID(u models.User) int64 { return u.ID }
func recipientVoucherID(r models.VoucherRecipient) int64 { return r.VoucherID }
func recipientFamilyID(r models.VoucherRecipient) int64 { return r.FamilyID }

func (s *RegistryService) familiesByID() batch.Loader[int64, models.Family] {
	return batch.FromAll(s.r.Families.ListFamilies, familyID)
}

// FamiliesWithMembers lists every family, newest first, each with its members
func (s *RegistryService) FamiliesWithMembers(ctx context.Context) ([]models.FamilyWithMembers, error) {
	var (
		families []models.Family
		members  map[int64][]models.Member
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		families, err = s.r.Families.ListFamilies(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		members, err = batch.FromAll(s.r.Members.ListMembers, memberFamilyID).Load(gctx, nil)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load families with members: %w", err)
	}

	result := make([]models.FamilyWithMembers, 0, len(families))
	for _, f := range families {
		result = append(result, withMembers(f, members[f.ID]))
	}

	s.log.Debug("families with members loaded", "families", len(families))
	return result, nil
}

// FamilyWithMembers returns one family with its members, or nil when the
// family does not exist
func (s *RegistryService) FamilyWithMembers(ctx context.Context, id int64) (*models.FamilyWithMembers, error) {
	var (
		family  *models.Family
		members []models.Member
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		family, err = s.r.Families.GetFamilyByID(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		members, err = s.r.Members.ListMembersByFamilyID(gctx, id)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load family %d: %w", id, err)
	}
	if family == nil {
		return nil, nil
	}

	view := withMembers(*family, members)
	return &view, nil
}

func withMembers(f models.Family, members []models.Member) models.FamilyWithMembers {
	if members == nil {
		members = []models.Member{}
	}
	return models.FamilyWithMembers{Family: f, Members: members}
}

// RequestsWithFamilies lists every request, newest first, with its family.
// A request whose family is gone carries a nil Family.
func (s *RegistryService) RequestsWithFamilies(ctx context.Context) ([]models.RequestWithFamily, error) {
	var (
		requests []models.Request
		families map[int64][]models.Family
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		requests, err = s.r.Requests.ListRequests(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		families, err = s.familiesByID().Load(gctx, nil)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load requests with families: %w", err)
	}

	result := make([]models.RequestWithFamily, 0, len(requests))
	missing := 0
	for _, req := range requests {
		view := models.RequestWithFamily{Request: req}
		if f, ok := batch.First(families, req.FamilyID); ok {
			view.Family = &f
		} else {
			missing++
		}
		result = append(result, view)
	}

	if missing > 0 {
		s.log.Warn("requests reference missing families", "count", missing)
	}
	return result, nil
}

// VouchersWithDetails lists every voucher, newest first, with its creator and
// the recipients whose family still exists. Creators are resolved among all
// users, soft-deleted included.
func (s *RegistryService) VouchersWithDetails(ctx context.Context) ([]models.VoucherWithDetails, error) {
	var (
		vouchers   []models.SupportVoucher
		users      map[int64][]models.User
		families   map[int64][]models.Family
		recipients map[int64][]models.VoucherRecipient
	)

	listAllUsers := func(ctx context.Context) ([]models.User, error) {
		return s.r.Users.ListUsers(ctx, true)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		vouchers, err = s.r.Vouchers.ListVouchers(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		users, err = batch.FromAll(listAllUsers, userID).Load(gctx, nil)
		return err
	})
	g.Go(func() error {
		var err error
		families, err = s.familiesByID().Load(gctx, nil)
		return err
	})
	g.Go(func() error {
		var err error
		recipients, err = batch.FromAll(s.r.Recipients.ListRecipients, recipientVoucherID).Load(gctx, nil)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load vouchers with details: %w", err)
	}

	result := make([]models.VoucherWithDetails, 0, len(vouchers))
	for _, v := range vouchers {
		view := models.VoucherWithDetails{
			SupportVoucher: v,
			Recipients:     resolveRecipients(recipients[v.ID], families),
		}
		if u, ok := batch.First(users, v.CreatedBy); ok {
			view.Creator = &u
		}
		result = append(result, view)
	}
	return result, nil
}

// VoucherRecipients lists the recipients of one voucher with their families
func (s *RegistryService) VoucherRecipients(ctx context.Context, voucherID int64) ([]models.RecipientWithFamily, error) {
	recipients, err := s.r.Recipients.ListRecipientsByVoucherID(ctx, voucherID)
	if err != nil {
		return nil, fmt.Errorf("failed to load recipients of voucher %d: %w", voucherID, err)
	}
	if len(recipients) == 0 {
		return []models.RecipientWithFamily{}, nil
	}

	ids := batch.UniqueKeys(recipients, recipientFamilyID)
	families, err := batch.FromKeys(s.r.Families.ListFamiliesByIDs, familyID).Load(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load recipient families of voucher %d: %w", voucherID, err)
	}
	return resolveRecipients(recipients, families), nil
}

// resolveRecipients attaches families to recipients, dropping recipients
// whose family no longer exists
func resolveRecipients(recipients []models.VoucherRecipient, families map[int64][]models.Family) []models.RecipientWithFamily {
	out := make([]models.RecipientWithFamily, 0, len(recipients))
	for _, rec := range recipients {
		f, ok := batch.First(families, rec.FamilyID)
		if !ok {
			continue
		}
		out = append(out, models.RecipientWithFamily{VoucherRecipient: rec, Family: f})
	}
	return out
}
