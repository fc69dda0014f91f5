package service

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/smallbiznis/territorial/internal/clock"
	"github.com/smallbiznis/territorial/internal/observability/metrics"
	"github.com/smallbiznis/territorial/internal/territory/domain"
	"github.com/smallbiznis/territorial/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Repo    domain.Repository
	Clock   clock.Clock      `optional:"true"`
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	repo    domain.Repository
	clock   clock.Clock
	metrics *metrics.Metrics
}

func New(p Params) domain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("territory.service"),
		genID:   p.GenID,
		repo:    p.Repo,
		clock:   clk,
		metrics: p.Metrics,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateTerritoryRequest) (domain.Territory, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Territory{}, domain.ErrInvalidName
	}

	code := strings.TrimSpace(req.Code)
	if code == "" {
		code = slug.Make(name)
	}
	if code == "" {
		return domain.Territory{}, domain.ErrInvalidCode
	}

	territoryType, err := parseType(req.Type)
	if err != nil {
		return domain.Territory{}, err
	}
	status, err := parseStatus(req.Status)
	if err != nil {
		return domain.Territory{}, err
	}
	boundaries, err := parseBoundaries(req.Boundaries)
	if err != nil {
		return domain.Territory{}, err
	}

	now := s.clock.Now()
	territory := domain.Territory{
		ID:          s.genID.Generate(),
		OrgID:       req.OrgID,
		Name:        name,
		Code:        code,
		Type:        territoryType,
		Status:      status,
		Boundaries:  boundaries,
		OwnerID:     strings.TrimSpace(req.OwnerID),
		Description: strings.TrimSpace(req.Description),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if req.ParentID != nil {
			parent, err := s.repo.FindByID(ctx, tx, *req.ParentID)
			if err != nil {
				return err
			}
			if parent == nil {
				return domain.ErrParentNotFound
			}
			parentID := parent.ID
			territory.ParentID = &parentID
		}

		existing, err := s.repo.FindByCode(ctx, tx, code)
		if err != nil {
			return err
		}
		if existing != nil {
			return domain.ErrCodeTaken
		}

		if err := s.repo.Insert(ctx, tx, &territory); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrCodeTaken
			}
			return err
		}
		return nil
	})
	if err != nil {
		return domain.Territory{}, err
	}

	s.metrics.RecordHierarchyChange(ctx, "create")
	s.log.Info("territory created",
		zap.String("territory_id", territory.ID.String()),
		zap.String("code", territory.Code),
	)
	return territory, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateTerritoryRequest) (domain.Territory, error) {
	if req.ID == 0 {
		return domain.Territory{}, domain.ErrInvalidID
	}

	var (
		updated    domain.Territory
		reparented bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.repo.FindByID(ctx, tx, req.ID)
		if err != nil {
			return err
		}
		if current == nil {
			return domain.ErrNotFound
		}
		item := *current

		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				return domain.ErrInvalidName
			}
			item.Name = name
		}
		if req.Code != nil {
			code := strings.TrimSpace(*req.Code)
			if code == "" {
				return domain.ErrInvalidCode
			}
			if code != item.Code {
				existing, err := s.repo.FindByCode(ctx, tx, code)
				if err != nil {
					return err
				}
				if existing != nil && existing.ID != item.ID {
					return domain.ErrCodeTaken
				}
			}
			item.Code = code
		}
		if req.Type != nil {
			territoryType, err := parseType(*req.Type)
			if err != nil {
				return err
			}
			item.Type = territoryType
		}
		if req.Status != nil {
			status, err := parseStatus(*req.Status)
			if err != nil {
				return err
			}
			item.Status = status
		}
		if req.Boundaries != nil {
			boundaries, err := parseBoundaries(req.Boundaries)
			if err != nil {
				return err
			}
			item.Boundaries = boundaries
		}
		if req.OwnerID != nil {
			item.OwnerID = strings.TrimSpace(*req.OwnerID)
		}
		if req.Description != nil {
			item.Description = strings.TrimSpace(*req.Description)
		}

		switch {
		case req.ClearParent:
			reparented = item.ParentID != nil
			item.ParentID = nil
		case req.ParentID != nil:
			if err := s.checkReparent(ctx, tx, item.ID, *req.ParentID); err != nil {
				return err
			}
			parentID := *req.ParentID
			reparented = item.ParentID == nil || *item.ParentID != parentID
			item.ParentID = &parentID
		}

		item.UpdatedAt = s.clock.Now()
		if err := s.repo.Update(ctx, tx, &item); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrCodeTaken
			}
			return err
		}
		updated = item
		return nil
	})
	if err != nil {
		return domain.Territory{}, err
	}

	if reparented {
		s.metrics.RecordHierarchyChange(ctx, "reparent")
	} else {
		s.metrics.RecordHierarchyChange(ctx, "update")
	}
	return updated, nil
}

// checkReparent rejects a new parent that is the territory itself, missing,
// or one of its descendants.
func (s *Service) checkReparent(ctx context.Context, tx *gorm.DB, id, parentID snowflake.ID) error {
	if parentID == id {
		return domain.ErrInvalidParent
	}
	parent, err := s.repo.FindByID(ctx, tx, parentID)
	if err != nil {
		return err
	}
	if parent == nil {
		return domain.ErrParentNotFound
	}

	visited := map[snowflake.ID]struct{}{}
	cursor := parent
	for cursor != nil {
		if cursor.ID == id {
			return domain.ErrCycle
		}
		if _, seen := visited[cursor.ID]; seen {
			return domain.ErrCycle
		}
		visited[cursor.ID] = struct{}{}
		if cursor.ParentID == nil {
			return nil
		}
		cursor, err = s.repo.FindByID(ctx, tx, *cursor.ParentID)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (domain.Territory, error) {
	if id == 0 {
		return domain.Territory{}, domain.ErrInvalidID
	}
	item, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Territory{}, err
	}
	if item == nil {
		return domain.Territory{}, domain.ErrNotFound
	}
	return *item, nil
}

func (s *Service) List(ctx context.Context, req domain.ListTerritoryRequest) ([]domain.Territory, error) {
	filter := domain.ListFilter{
		ParentID:  req.ParentID,
		RootsOnly: req.RootsOnly,
	}
	if value := strings.TrimSpace(req.Status); value != "" {
		status := domain.Status(strings.ToLower(value))
		if !status.Valid() {
			return nil, domain.ErrInvalidStatus
		}
		filter.Status = status
	}
	if value := strings.TrimSpace(req.Type); value != "" {
		territoryType := domain.Type(strings.ToLower(value))
		if !territoryType.Valid() {
			return nil, domain.ErrInvalidType
		}
		filter.Type = territoryType
	}

	items, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return nil, err
	}
	return values(items), nil
}

func (s *Service) Roots(ctx context.Context, status domain.Status) ([]domain.Territory, error) {
	return s.List(ctx, domain.ListTerritoryRequest{Status: string(status), RootsOnly: true})
}

func (s *Service) Children(ctx context.Context, id snowflake.ID) ([]domain.Territory, error) {
	items, err := s.repo.ListChildren(ctx, s.db, []snowflake.ID{id})
	if err != nil {
		return nil, err
	}
	return values(items), nil
}

// Descendants walks the tree breadth first, one query per level. The visited
// set guarantees termination even if stored data were cyclic.
func (s *Service) Descendants(ctx context.Context, id snowflake.ID) ([]domain.Territory, error) {
	visited := map[snowflake.ID]struct{}{id: {}}
	out := make([]domain.Territory, 0)
	frontier := []snowflake.ID{id}
	for len(frontier) > 0 {
		children, err := s.repo.ListChildren(ctx, s.db, frontier)
		if err != nil {
			return nil, err
		}
		next := make([]snowflake.ID, 0, len(children))
		for _, child := range children {
			if child == nil {
				continue
			}
			if _, seen := visited[child.ID]; seen {
				continue
			}
			visited[child.ID] = struct{}{}
			out = append(out, *child)
			next = append(next, child.ID)
		}
		frontier = next
	}
	return out, nil
}

func (s *Service) Ancestors(ctx context.Context, id snowflake.ID) ([]domain.Territory, error) {
	item, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrNotFound
	}

	out := make([]domain.Territory, 0)
	visited := map[snowflake.ID]struct{}{item.ID: {}}
	for item.ParentID != nil {
		parent, err := s.repo.FindByID(ctx, s.db, *item.ParentID)
		if err != nil {
			return nil, err
		}
		if parent == nil {
			break
		}
		if _, seen := visited[parent.ID]; seen {
			break
		}
		visited[parent.ID] = struct{}{}
		out = append(out, *parent)
		item = parent
	}
	return out, nil
}

func (s *Service) Parent(ctx context.Context, id snowflake.ID) (*domain.Territory, error) {
	item, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrNotFound
	}
	if item.ParentID == nil {
		return nil, nil
	}
	return s.repo.FindByID(ctx, s.db, *item.ParentID)
}

// Delete soft-deletes a territory and detaches its direct children in one
// transaction. Children are never deleted with their parent.
func (s *Service) Delete(ctx context.Context, id snowflake.ID) error {
	if id == 0 {
		return domain.ErrInvalidID
	}

	var detached int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := s.repo.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if item == nil {
			return domain.ErrNotFound
		}

		now := s.clock.Now()
		detached, err = s.repo.DetachChildren(ctx, tx, id, now)
		if err != nil {
			return err
		}
		affected, err := s.repo.SoftDelete(ctx, tx, id, now)
		if err != nil {
			return err
		}
		if affected == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.metrics.RecordHierarchyChange(ctx, "delete")
	s.log.Info("territory deleted",
		zap.String("territory_id", id.String()),
		zap.Int64("children_detached", detached),
	)
	return nil
}

// Restore undeletes a territory. Its former children stay detached, and a
// parent that is gone by now is cleared.
func (s *Service) Restore(ctx context.Context, id snowflake.ID) (domain.Territory, error) {
	if id == 0 {
		return domain.Territory{}, domain.ErrInvalidID
	}

	var restored domain.Territory
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		deleted, err := s.repo.FindDeletedByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if deleted == nil {
			live, err := s.repo.FindByID(ctx, tx, id)
			if err != nil {
				return err
			}
			if live != nil {
				return domain.ErrNotDeleted
			}
			return domain.ErrNotFound
		}

		now := s.clock.Now()
		if _, err := s.repo.Restore(ctx, tx, id, now); err != nil {
			return err
		}

		item, err := s.repo.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if item == nil {
			return domain.ErrNotFound
		}
		if item.ParentID != nil {
			parent, err := s.repo.FindByID(ctx, tx, *item.ParentID)
			if err != nil {
				return err
			}
			if parent == nil {
				item.ParentID = nil
				item.UpdatedAt = now
				if err := s.repo.Update(ctx, tx, item); err != nil {
					return err
				}
			}
		}
		restored = *item
		return nil
	})
	if err != nil {
		return domain.Territory{}, err
	}

	s.metrics.RecordHierarchyChange(ctx, "restore")
	return restored, nil
}

func (s *Service) SetStatus(ctx context.Context, id snowflake.ID, status domain.Status) (domain.Territory, error) {
	if !status.Valid() {
		return domain.Territory{}, domain.ErrInvalidStatus
	}
	value := string(status)
	return s.Update(ctx, domain.UpdateTerritoryRequest{ID: id, Status: &value})
}

func (s *Service) ListActive(ctx context.Context) ([]domain.Territory, error) {
	items, err := s.repo.List(ctx, s.db, domain.ListFilter{Status: domain.StatusActive})
	if err != nil {
		return nil, err
	}
	return values(items), nil
}

func parseType(value string) (domain.Type, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return domain.TypeGeographic, nil
	}
	territoryType := domain.Type(strings.ReplaceAll(value, "-", "_"))
	if !territoryType.Valid() {
		return "", domain.ErrInvalidType
	}
	return territoryType, nil
}

func parseStatus(value string) (domain.Status, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return domain.StatusActive, nil
	}
	status := domain.Status(value)
	if !status.Valid() {
		return "", domain.ErrInvalidStatus
	}
	return status, nil
}

func parseBoundaries(raw json.RawMessage) (datatypes.JSON, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	if !json.Valid(raw) {
		return nil, domain.ErrInvalidBoundary
	}
	return datatypes.JSON(raw), nil
}

func values(items []*domain.Territory) []domain.Territory {
	out := make([]domain.Territory, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		out = append(out, *item)
	}
	return out
}
