package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/territorial/internal/clock"
	"github.com/smallbiznis/territorial/internal/rule/domain"
	territorydomain "github.com/smallbiznis/territorial/internal/territory/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Repo        domain.Repository
	Territories territorydomain.Service
	Clock       clock.Clock `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	repo        domain.Repository
	territories territorydomain.Service
	clock       clock.Clock
}

func New(p Params) domain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("rule.service"),
		genID:       p.GenID,
		repo:        p.Repo,
		territories: p.Territories,
		clock:       clk,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRuleRequest) (domain.Rule, error) {
	if req.TerritoryID == 0 {
		return domain.Rule{}, domain.ErrInvalidTerritory
	}

	ruleType, err := parseRuleType(req.RuleType)
	if err != nil {
		return domain.Rule{}, err
	}
	fieldName := strings.TrimSpace(req.FieldName)
	if fieldName == "" {
		return domain.Rule{}, domain.ErrInvalidFieldName
	}
	operator, err := parseOperator(req.Operator)
	if err != nil {
		return domain.Rule{}, err
	}
	if !operator.AcceptsOperands(len(req.Value)) {
		return domain.Rule{}, domain.ErrInvalidOperands
	}
	value, err := domain.EncodeOperands(req.Value)
	if err != nil {
		return domain.Rule{}, domain.ErrInvalidOperands
	}

	if err := s.ensureTerritory(ctx, req.TerritoryID); err != nil {
		return domain.Rule{}, err
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	now := s.clock.Now()
	rule := domain.Rule{
		ID:          s.genID.Generate(),
		TerritoryID: req.TerritoryID,
		RuleType:    ruleType,
		FieldName:   fieldName,
		Operator:    operator,
		Value:       value,
		Priority:    req.Priority,
		IsActive:    active,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Insert(ctx, s.db, &rule); err != nil {
		return domain.Rule{}, err
	}

	s.log.Info("rule created",
		zap.String("rule_id", rule.ID.String()),
		zap.String("territory_id", rule.TerritoryID.String()),
		zap.String("operator", string(rule.Operator)),
	)
	return rule, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateRuleRequest) (domain.Rule, error) {
	if req.ID == 0 {
		return domain.Rule{}, domain.ErrInvalidID
	}

	var updated domain.Rule
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.repo.FindByID(ctx, tx, req.ID)
		if err != nil {
			return err
		}
		if current == nil {
			return domain.ErrNotFound
		}
		item := *current

		if req.RuleType != nil {
			ruleType, err := parseRuleType(*req.RuleType)
			if err != nil {
				return err
			}
			item.RuleType = ruleType
		}
		if req.FieldName != nil {
			fieldName := strings.TrimSpace(*req.FieldName)
			if fieldName == "" {
				return domain.ErrInvalidFieldName
			}
			item.FieldName = fieldName
		}
		if req.Operator != nil {
			operator, err := parseOperator(*req.Operator)
			if err != nil {
				return err
			}
			item.Operator = operator
		}
		if req.Value != nil {
			value, err := domain.EncodeOperands(*req.Value)
			if err != nil {
				return domain.ErrInvalidOperands
			}
			item.Value = value
		}
		if req.Priority != nil {
			item.Priority = *req.Priority
		}

		// Operator and operands may change independently, so the pair is
		// checked after both are applied.
		operands, err := item.Operands()
		if err != nil || !item.Operator.AcceptsOperands(len(operands)) {
			return domain.ErrInvalidOperands
		}

		item.UpdatedAt = s.clock.Now()
		if err := s.repo.Update(ctx, tx, &item); err != nil {
			return err
		}
		updated = item
		return nil
	})
	if err != nil {
		return domain.Rule{}, err
	}
	return updated, nil
}

func (s *Service) SetActive(ctx context.Context, id snowflake.ID, active bool) (domain.Rule, error) {
	if id == 0 {
		return domain.Rule{}, domain.ErrInvalidID
	}

	var updated domain.Rule
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.repo.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if current == nil {
			return domain.ErrNotFound
		}
		item := *current
		item.IsActive = active
		item.UpdatedAt = s.clock.Now()
		if err := s.repo.Update(ctx, tx, &item); err != nil {
			return err
		}
		updated = item
		return nil
	})
	if err != nil {
		return domain.Rule{}, err
	}

	s.log.Info("rule activation changed",
		zap.String("rule_id", id.String()),
		zap.Bool("is_active", active),
	)
	return updated, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (domain.Rule, error) {
	if id == 0 {
		return domain.Rule{}, domain.ErrInvalidID
	}
	item, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Rule{}, err
	}
	if item == nil {
		return domain.Rule{}, domain.ErrNotFound
	}
	return *item, nil
}

func (s *Service) ListByTerritory(ctx context.Context, territoryID snowflake.ID, activeOnly bool) ([]domain.Rule, error) {
	if territoryID == 0 {
		return nil, domain.ErrInvalidTerritory
	}
	items, err := s.repo.ListByTerritory(ctx, s.db, territoryID, activeOnly)
	if err != nil {
		return nil, err
	}
	return values(items), nil
}

func (s *Service) ListActiveByTerritoryIDs(ctx context.Context, territoryIDs []snowflake.ID) (map[snowflake.ID][]domain.Rule, error) {
	items, err := s.repo.ListActiveByTerritoryIDs(ctx, s.db, territoryIDs)
	if err != nil {
		return nil, err
	}
	grouped := make(map[snowflake.ID][]domain.Rule, len(territoryIDs))
	for _, item := range items {
		if item == nil {
			continue
		}
		grouped[item.TerritoryID] = append(grouped[item.TerritoryID], *item)
	}
	return grouped, nil
}

func (s *Service) ensureTerritory(ctx context.Context, id snowflake.ID) error {
	if _, err := s.territories.Get(ctx, id); err != nil {
		if errors.Is(err, territorydomain.ErrNotFound) {
			return domain.ErrTerritoryNotFound
		}
		return err
	}
	return nil
}

func parseRuleType(value string) (domain.RuleType, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return domain.RuleTypeCustom, nil
	}
	ruleType := domain.RuleType(value)
	if !ruleType.Valid() {
		return "", domain.ErrInvalidRuleType
	}
	return ruleType, nil
}

func parseOperator(value string) (domain.Operator, error) {
	operator := domain.Operator(strings.ToLower(strings.TrimSpace(value)))
	if !operator.Valid() {
		return "", domain.ErrInvalidOperator
	}
	return operator, nil
}

func values(items []*domain.Rule) []domain.Rule {
	out := make([]domain.Rule, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		out = append(out, *item)
	}
	return out
}
