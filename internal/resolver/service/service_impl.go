package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	assignmentdomain "github.com/smallbiznis/territorial/internal/assignment/domain"
	"github.com/smallbiznis/territorial/internal/config"
	"github.com/smallbiznis/territorial/internal/observability/logger"
	"github.com/smallbiznis/territorial/internal/observability/metrics"
	"github.com/smallbiznis/territorial/internal/observability/tracing"
	"github.com/smallbiznis/territorial/internal/record"
	"github.com/smallbiznis/territorial/internal/resolver/domain"
	ruledomain "github.com/smallbiznis/territorial/internal/rule/domain"
	"github.com/smallbiznis/territorial/internal/rule/evaluator"
	territorydomain "github.com/smallbiznis/territorial/internal/territory/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const tracerName = "github.com/smallbiznis/territorial/internal/resolver"

const (
	degradedTerritoryList = "territory_list"
	degradedRuleRead      = "rule_read"
	degradedEvaluation    = "evaluation_panic"
)

type Params struct {
	fx.In

	Log         *zap.Logger
	Territories territorydomain.Service
	Rules       ruledomain.Service
	Assignments assignmentdomain.Service
	Config      *config.ResolverConfigHolder `optional:"true"`
	Metrics     *metrics.ResolverMetrics     `optional:"true"`
}

type Option func(*Service)

// WithTieBreaker pins the tie-break policy, ignoring configuration.
func WithTieBreaker(tb domain.TieBreaker) Option {
	return func(s *Service) {
		s.tieBreak = tb
	}
}

type Service struct {
	log         *zap.Logger
	territories territorydomain.Service
	rules       ruledomain.Service
	assignments assignmentdomain.Service
	config      *config.ResolverConfigHolder
	metrics     *metrics.ResolverMetrics
	tracer      trace.Tracer
	tieBreak    domain.TieBreaker
}

func New(p Params) domain.Service {
	return NewService(p)
}

func NewService(p Params, opts ...Option) *Service {
	s := &Service{
		log:         p.Log.Named("resolver.service"),
		territories: p.Territories,
		rules:       p.Rules,
		assignments: p.Assignments,
		config:      p.Config,
		metrics:     p.Metrics,
		tracer:      otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// candidate is an active territory together with its active rules.
type candidate struct {
	territory territorydomain.Territory
	rules     []ruledomain.Rule
}

func (s *Service) Resolve(ctx context.Context, rec record.Record) (domain.Resolution, error) {
	if err := s.checkRecord(rec); err != nil {
		return domain.Resolution{}, err
	}
	return s.resolve(ctx, rec), nil
}

func (s *Service) AssignIfMatched(ctx context.Context, rec record.Record, actor string) (domain.AssignOutcome, error) {
	ctx, span := s.tracer.Start(ctx, "resolver.AssignIfMatched")
	defer span.End()

	started := time.Now()
	if err := s.checkRecord(rec); err != nil {
		kind := ""
		if rec != nil {
			kind = string(rec.Kind())
		}
		s.metrics.ObserveResolution(kind, metrics.ResolutionOutcomeUnsupported, time.Since(started))
		span.SetStatus(codes.Error, err.Error())
		return domain.AssignOutcome{}, err
	}

	kind := string(rec.Kind())
	log := logger.WithContext(ctx, s.log).With(zap.String("assignable_type", kind))
	span.SetAttributes(tracing.SafeAttributes(
		attribute.String("assignable_type", kind),
		attribute.String("assignable_id", rec.ID()),
	)...)

	resolution := s.resolve(ctx, rec)
	span.SetAttributes(
		attribute.Int("territories.evaluated", resolution.Evaluated),
		attribute.Int("territories.matched", len(resolution.Matches)),
		attribute.Int("territories.degraded", len(resolution.Degraded)),
	)

	outcome := domain.AssignOutcome{Resolution: resolution}
	if !resolution.Matched() {
		s.metrics.ObserveResolution(kind, metrics.ResolutionOutcomeNoMatch, time.Since(started))
		log.Debug("no territory matched", zap.Int("evaluated", resolution.Evaluated))
		return outcome, nil
	}

	actor = strings.TrimSpace(actor)
	if actor == "" {
		actor = s.config.Get().SystemActor
	}

	territoryID := *resolution.TerritoryID
	assignment, created, err := s.assignments.CreateAutomaticOnce(ctx, assignmentdomain.CreateAssignmentRequest{
		TerritoryID:    territoryID,
		AssignableType: kind,
		AssignableID:   rec.ID(),
		AssignedBy:     actor,
		AssignmentType: string(assignmentdomain.AssignmentTypeAutomatic),
	})
	if err != nil {
		s.metrics.ObserveResolution(kind, metrics.ResolutionOutcomeError, time.Since(started))
		span.RecordError(tracing.SafeError(err))
		span.SetStatus(codes.Error, "assignment write failed")
		log.Error("assignment write failed", zap.String("territory_id", territoryID.String()), zap.Error(err))
		return outcome, fmt.Errorf("write assignment: %w", err)
	}

	outcome.Assignment = &assignment
	outcome.Created = created
	if created {
		s.metrics.ObserveResolution(kind, metrics.ResolutionOutcomeMatched, time.Since(started))
		log.Info("territory assigned",
			zap.String("territory_id", territoryID.String()),
			zap.String("assignment_id", assignment.ID.String()),
			zap.String("assigned_by", actor),
		)
	} else {
		s.metrics.ObserveResolution(kind, metrics.ResolutionOutcomeDuplicate, time.Since(started))
		log.Info("territory assignment already recorded",
			zap.String("territory_id", territoryID.String()),
			zap.String("assignment_id", assignment.ID.String()),
		)
	}
	span.SetAttributes(attribute.Bool("assignment.created", created))
	return outcome, nil
}

func (s *Service) checkRecord(rec record.Record) error {
	if rec == nil {
		return domain.ErrNilRecord
	}
	kind := rec.Kind()
	if _, err := record.ParseKind(string(kind)); err != nil {
		return domain.ErrUnsupportedKind
	}
	allowed := s.config.Get().AssignableTypes
	if len(allowed) == 0 {
		return nil
	}
	for _, name := range allowed {
		if strings.EqualFold(name, string(kind)) {
			return nil
		}
	}
	return domain.ErrUnsupportedKind
}

// resolve scans every active territory before choosing a winner. Read
// failures degrade the affected territories to non-matching.
func (s *Service) resolve(ctx context.Context, rec record.Record) domain.Resolution {
	log := logger.WithContext(ctx, s.log)
	resolution := domain.Resolution{Matches: []domain.Match{}}

	candidates, degraded := s.loadCandidates(ctx, log)
	resolution.Degraded = degraded

	matchedRules, rejectedRules := 0, 0
	for _, c := range candidates {
		resolution.Evaluated++
		match, ok, matched, rejected, panicked := s.evaluateTerritory(c, rec)
		matchedRules += matched
		rejectedRules += rejected
		if panicked {
			resolution.Degraded = append(resolution.Degraded, c.territory.ID)
			s.metrics.IncDegraded(degradedEvaluation)
			log.Warn("territory evaluation failed", zap.String("territory_id", c.territory.ID.String()))
			continue
		}
		if ok {
			resolution.Matches = append(resolution.Matches, match)
		}
		log.Debug("territory evaluated",
			zap.String("territory_id", c.territory.ID.String()),
			zap.Bool("matched", ok),
			zap.Int("rules", len(c.rules)),
		)
	}
	s.metrics.AddEvaluations(matchedRules, rejectedRules)

	if len(resolution.Matches) == 0 {
		return resolution
	}

	domain.Rank(resolution.Matches, s.tieBreaker())
	winner := resolution.Matches[0].TerritoryID
	resolution.TerritoryID = &winner
	return resolution
}

func (s *Service) tieBreaker() domain.TieBreaker {
	if s.tieBreak != nil {
		return s.tieBreak
	}
	return domain.TieBreakerFor(s.config.Get().TieBreak)
}

// loadCandidates reads active territories and their active rules. Rules are
// read in one batch; when the batch fails each territory is retried on its
// own so one bad read only degrades that territory.
func (s *Service) loadCandidates(ctx context.Context, log *zap.Logger) ([]candidate, []snowflake.ID) {
	territories, err := s.territories.ListActive(ctx)
	if err != nil {
		s.metrics.IncDegraded(degradedTerritoryList)
		log.Warn("active territories unavailable", zap.Error(err))
		return nil, nil
	}
	if len(territories) == 0 {
		return nil, nil
	}

	ids := make([]snowflake.ID, 0, len(territories))
	for _, t := range territories {
		ids = append(ids, t.ID)
	}

	grouped, err := s.rules.ListActiveByTerritoryIDs(ctx, ids)
	if err != nil {
		log.Warn("batch rule read failed, reading per territory", zap.Error(err))
		grouped = nil
	}

	var degraded []snowflake.ID
	candidates := make([]candidate, 0, len(territories))
	for _, t := range territories {
		if !t.IsActive() {
			continue
		}
		var rules []ruledomain.Rule
		if grouped != nil {
			rules = grouped[t.ID]
		} else {
			rules, err = s.rules.ListByTerritory(ctx, t.ID, true)
			if err != nil {
				degraded = append(degraded, t.ID)
				s.metrics.IncDegraded(degradedRuleRead)
				log.Warn("territory rules unavailable",
					zap.String("territory_id", t.ID.String()),
					zap.Error(err),
				)
				continue
			}
		}
		candidates = append(candidates, candidate{territory: t, rules: rules})
	}
	return candidates, degraded
}

// evaluateTerritory applies the AND of a territory's active rules. A
// territory without active rules never matches. A panicking record
// accessor is contained and reported.
func (s *Service) evaluateTerritory(c candidate, rec record.Record) (match domain.Match, ok bool, matched, rejected int, panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			panicked = true
		}
	}()

	active := 0
	priority := 0
	for _, r := range c.rules {
		if !r.IsActive || r.TerritoryID != c.territory.ID {
			continue
		}
		if !evaluator.Evaluate(r, rec) {
			rejected++
			return domain.Match{}, false, matched, rejected, false
		}
		matched++
		if active == 0 || r.Priority > priority {
			priority = r.Priority
		}
		active++
	}
	if active == 0 {
		return domain.Match{}, false, matched, rejected, false
	}

	return domain.Match{
		TerritoryID:       c.territory.ID,
		Code:              c.territory.Code,
		EffectivePriority: priority,
		RuleCount:         active,
		CreatedAt:         c.territory.CreatedAt,
	}, true, matched, rejected, false
}
