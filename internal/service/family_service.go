package service

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"familyregistry/internal/database"
	"familyregistry/internal/logger"
	"familyregistry/internal/models"
	"familyregistry/internal/repository"
	"familyregistry/internal/retry"
	"familyregistry/internal/validation"
)

// ErrOwnerNotFound is returned when a family is registered for a missing or deleted user
var ErrOwnerNotFound = errors.New("family owner not found")

// Cascade steps, in the order they run
const (
	StepWives     = "wives"
	StepMembers   = "members"
	StepRequests  = "requests"
	StepDocuments = "documents"
	StepFamily    = "family"
)

// CascadeError reports the step at which a family delete failed. The delete
// runs in one transaction, so nothing was removed.
type CascadeError struct {
	FamilyID int64
	Step     string
	Err      error
}

func (e *CascadeError) Error() string {
	return fmt.Sprintf("delete family %d: %s step failed: %v", e.FamilyID, e.Step, e.Err)
}

func (e *CascadeError) Unwrap() error {
	return e.Err
}

// FamilyRepos are the repositories a FamilyService works with
type FamilyRepos struct {
	Users     *repository.UserRepository
	Families  *repository.FamilyRepository
	Wives     *repository.WifeRepository
	Members   *repository.MemberRepository
	Requests  *repository.RequestRepository
	Documents *repository.DocumentRepository
}

// ChildCounts is the size of each collection hanging off a family
type ChildCounts struct {
	Wives     int `json:"wives"`
	Members   int `json:"members"`
	Requests  int `json:"requests"`
	Documents int `json:"documents"`
}

// FamilyService handles family lifecycle logic
type FamilyService struct {
	db    *database.DB
	repos FamilyRepos
	retry *retry.Policy
	log   *logger.Logger
}

// NewFamilyService creates a new family service. policy governs retries of
// the whole delete transaction.
func NewFamilyService(db *database.DB, repos FamilyRepos, policy *retry.Policy, log *logger.Logger) *FamilyService {
	if log == nil {
		log = logger.Nop()
	}
	return &FamilyService{
		db:    db,
		repos: repos,
		retry: policy,
		log:   log.With("service", "FamilyService"),
	}
}

// CreateFamilyForUser registers a family owned by a live user
func (s *FamilyService) CreateFamilyForUser(ctx context.Context, userID int64, family models.Family) (*models.Family, error) {
	if err := validation.ValidateName("husband_name", family.HusbandName); err != nil {
		return nil, err
	}
	if err := validation.ValidatePhone(family.PrimaryPhone); err != nil {
		return nil, err
	}

	owner, err := s.repos.Users.GetUserByID(ctx, userID, false)
	if err != nil {
		return nil, fmt.Errorf("failed to load owner: %w", err)
	}
	if owner == nil {
		return nil, ErrOwnerNotFound
	}

	family.UserID = owner.ID
	created, err := s.repos.Families.CreateFamily(ctx, family)
	if err != nil {
		return nil, err
	}

	s.log.Info("family created", "family_id", created.ID, "user_id", owner.ID)
	return created, nil
}

// DeleteFamily removes a family together with its wives, members, requests
// and documents, in that order, inside one transaction. It reports whether
// the family row existed. The whole transaction is retried only when the
// failure proves nothing was committed.
func (s *FamilyService) DeleteFamily(ctx context.Context, id int64) (bool, error) {
	deleted, err := retry.Do(ctx, s.retry.Writes(), func() (bool, error) {
		var deleted bool
		err := s.db.WithTx(ctx, func(tx *database.Tx) error {
			var err error
			deleted, err = s.cascade(ctx, tx, id)
			return err
		})
		return deleted, err
	})
	if err != nil {
		s.log.Error("family delete rolled back", "family_id", id, "error", err)
		return false, err
	}

	s.log.Info("family delete finished", "family_id", id, "deleted", deleted)
	return deleted, nil
}

func (s *FamilyService) cascade(ctx context.Context, tx *database.Tx, id int64) (bool, error) {
	children := []struct {
		step string
		del  func(context.Context, int64) (int64, error)
	}{
		{StepWives, s.repos.Wives.WithTx(tx).DeleteWivesByFamilyID},
		{StepMembers, s.repos.Members.WithTx(tx).DeleteMembersByFamilyID},
		{StepRequests, s.repos.Requests.WithTx(tx).DeleteRequestsByFamilyID},
		{StepDocuments, s.repos.Documents.WithTx(tx).DeleteDocumentsByFamilyID},
	}

	for _, c := range children {
		n, err := c.del(ctx, id)
		if err != nil {
			return false, &CascadeError{FamilyID: id, Step: c.step, Err: err}
		}
		s.log.Debug("cascade step done", "family_id", id, "step", c.step, "deleted", n)
	}

	deleted, err := s.repos.Families.WithTx(tx).DeleteFamily(ctx, id)
	if err != nil {
		return false, &CascadeError{FamilyID: id, Step: StepFamily, Err: err}
	}
	return deleted, nil
}

// ChildCounts counts the rows that still reference a family
func (s *FamilyService) ChildCounts(ctx context.Context, id int64) (ChildCounts, error) {
	var counts ChildCounts

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		wives, err := s.repos.Wives.ListWivesByFamilyID(gctx, id)
		counts.Wives = len(wives)
		return err
	})
	g.Go(func() error {
		members, err := s.repos.Members.ListMembersByFamilyID(gctx, id)
		counts.Members = len(members)
		return err
	})
	g.Go(func() error {
		requests, err := s.repos.Requests.ListRequestsByFamilyID(gctx, id)
		counts.Requests = len(requests)
		return err
	})
	g.Go(func() error {
		docs, err := s.repos.Documents.ListDocumentsByFamilyID(gctx, id)
		counts.Documents = len(docs)
		return err
	})
	if err := g.Wait(); err != nil {
		return ChildCounts{}, fmt.Errorf("failed to count children of family %d: %w", id, err)
	}
	return counts, nil
}
