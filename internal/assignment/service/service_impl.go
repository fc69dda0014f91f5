package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/territorial/internal/assignment/domain"
	"github.com/smallbiznis/territorial/internal/clock"
	"github.com/smallbiznis/territorial/internal/lock"
	"github.com/smallbiznis/territorial/internal/observability/metrics"
	"github.com/smallbiznis/territorial/internal/record"
	territorydomain "github.com/smallbiznis/territorial/internal/territory/domain"
	"github.com/smallbiznis/territorial/pkg/db"
	"github.com/smallbiznis/territorial/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	keyAssignLock = "territorial:assign:%s:%s"
	lockTTL       = 5 * time.Second
	lockWait      = 2 * time.Second
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Repo        domain.Repository
	Territories territorydomain.Service
	Clock       clock.Clock      `optional:"true"`
	Locker      *lock.Locker     `optional:"true"`
	Metrics     *metrics.Metrics `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	repo        domain.Repository
	territories territorydomain.Service
	clock       clock.Clock
	locker      *lock.Locker
	metrics     *metrics.Metrics
}

func New(p Params) domain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("assignment.service"),
		genID:       p.GenID,
		repo:        p.Repo,
		territories: p.Territories,
		clock:       clk,
		locker:      p.Locker,
		metrics:     p.Metrics,
	}
}

// Create records an assignment. Automatic requests go through
// CreateAutomaticOnce, so a repeat returns the existing row.
func (s *Service) Create(ctx context.Context, req domain.CreateAssignmentRequest) (domain.Assignment, error) {
	if domain.AssignmentType(strings.ToLower(strings.TrimSpace(req.AssignmentType))) == domain.AssignmentTypeAutomatic {
		assignment, _, err := s.CreateAutomaticOnce(ctx, req)
		return assignment, err
	}

	assignment, err := s.prepare(ctx, req, domain.AssignmentTypeManual)
	if err != nil {
		return domain.Assignment{}, err
	}

	if err := s.repo.Insert(ctx, s.db, &assignment); err != nil {
		return domain.Assignment{}, err
	}

	s.metrics.RecordAssignmentCreated(ctx, string(assignment.AssignmentType), string(assignment.AssignableType))
	s.log.Info("assignment created",
		zap.String("assignment_id", assignment.ID.String()),
		zap.String("territory_id", assignment.TerritoryID.String()),
		zap.String("assignment_type", string(assignment.AssignmentType)),
		zap.String("assignable_type", string(assignment.AssignableType)),
	)
	return assignment, nil
}

func (s *Service) CreateAutomaticOnce(ctx context.Context, req domain.CreateAssignmentRequest) (domain.Assignment, bool, error) {
	req.AssignmentType = string(domain.AssignmentTypeAutomatic)
	assignment, err := s.prepare(ctx, req, domain.AssignmentTypeAutomatic)
	if err != nil {
		return domain.Assignment{}, false, err
	}
	ref := assignment.Assignable()

	if s.locker.Enabled() {
		key := fmt.Sprintf(keyAssignLock, ref.Kind, ref.ID)
		token, acquired, lockErr := s.locker.Acquire(ctx, key, lockTTL, lockWait)
		switch {
		case lockErr != nil:
			s.log.Warn("assignment lock unavailable", zap.String("assignable_type", string(ref.Kind)), zap.Error(lockErr))
		case !acquired:
			s.log.Warn("assignment lock wait exceeded", zap.String("assignable_type", string(ref.Kind)))
		default:
			defer func() {
				if err := s.locker.Release(context.WithoutCancel(ctx), key, token); err != nil {
					s.log.Warn("assignment lock release failed", zap.Error(err))
				}
			}()
		}
	}

	var existing *domain.Assignment
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		found, err := s.repo.FindAutomatic(ctx, tx, ref, assignment.TerritoryID)
		if err != nil {
			return err
		}
		if found != nil {
			existing = found
			return nil
		}
		return s.repo.Insert(ctx, tx, &assignment)
	})
	if err != nil {
		if !db.IsDuplicateKeyErr(err) {
			return domain.Assignment{}, false, err
		}
		// Lost the insert race; the winner's row is authoritative.
		found, findErr := s.repo.FindAutomatic(ctx, s.db, ref, assignment.TerritoryID)
		if findErr != nil {
			return domain.Assignment{}, false, findErr
		}
		if found == nil {
			return domain.Assignment{}, false, err
		}
		s.metrics.RecordDuplicateSkipped(ctx, string(ref.Kind), "race")
		return *found, false, nil
	}

	if existing != nil {
		s.metrics.RecordDuplicateSkipped(ctx, string(ref.Kind), "existing")
		s.log.Debug("automatic assignment already exists",
			zap.String("assignment_id", existing.ID.String()),
			zap.String("territory_id", existing.TerritoryID.String()),
		)
		return *existing, false, nil
	}

	s.metrics.RecordAssignmentCreated(ctx, string(assignment.AssignmentType), string(assignment.AssignableType))
	s.log.Info("automatic assignment created",
		zap.String("assignment_id", assignment.ID.String()),
		zap.String("territory_id", assignment.TerritoryID.String()),
		zap.String("assignable_type", string(assignment.AssignableType)),
	)
	return assignment, true, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (domain.Assignment, error) {
	if id == 0 {
		return domain.Assignment{}, domain.ErrInvalidID
	}
	item, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Assignment{}, err
	}
	if item == nil {
		return domain.Assignment{}, domain.ErrNotFound
	}
	return *item, nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) (domain.ListResponse, error) {
	page := pagination.Pagination{
		PageToken: strings.TrimSpace(req.PageToken),
		PageSize:  req.PageSize,
	}.Normalize()
	if err := page.Validate(); err != nil {
		return domain.ListResponse{}, err
	}

	items, err := s.repo.List(ctx, s.db, req.Scopes, page)
	if err != nil {
		return domain.ListResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, page.PageSize, func(assignment *domain.Assignment) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        assignment.ID.String(),
			CreatedAt: assignment.AssignedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if len(items) > page.PageSize {
		items = items[:page.PageSize]
	}

	assignments := make([]domain.Assignment, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		assignments = append(assignments, *item)
	}

	resp := domain.ListResponse{Assignments: assignments}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func (s *Service) prepare(ctx context.Context, req domain.CreateAssignmentRequest, fallback domain.AssignmentType) (domain.Assignment, error) {
	if req.TerritoryID == 0 {
		return domain.Assignment{}, domain.ErrInvalidTerritory
	}
	kind, err := record.ParseKind(req.AssignableType)
	if err != nil {
		return domain.Assignment{}, domain.ErrInvalidAssignableType
	}
	assignableID := strings.TrimSpace(req.AssignableID)
	if assignableID == "" {
		return domain.Assignment{}, domain.ErrInvalidAssignableID
	}
	assignedBy := strings.TrimSpace(req.AssignedBy)
	if assignedBy == "" {
		return domain.Assignment{}, domain.ErrInvalidAssignedBy
	}
	assignmentType := fallback
	if value := strings.ToLower(strings.TrimSpace(req.AssignmentType)); value != "" {
		assignmentType = domain.AssignmentType(value)
	}
	if !assignmentType.Valid() {
		return domain.Assignment{}, domain.ErrInvalidAssignmentType
	}

	if _, err := s.territories.Get(ctx, req.TerritoryID); err != nil {
		if errors.Is(err, territorydomain.ErrNotFound) {
			return domain.Assignment{}, domain.ErrTerritoryNotFound
		}
		return domain.Assignment{}, err
	}

	return domain.Assignment{
		ID:             s.genID.Generate(),
		TerritoryID:    req.TerritoryID,
		AssignableType: kind,
		AssignableID:   assignableID,
		AssignedBy:     assignedBy,
		AssignmentType: assignmentType,
		AssignedAt:     s.clock.Now(),
	}, nil
}
