// Package seed bootstraps a small demo hierarchy for local environments.
package seed

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/territorial/internal/config"
	ruledomain "github.com/smallbiznis/territorial/internal/rule/domain"
	territorydomain "github.com/smallbiznis/territorial/internal/territory/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type ruleSeed struct {
	RuleType ruledomain.RuleType
	Field    string
	Operator ruledomain.Operator
	Values   []any
	Priority int
}

type territorySeed struct {
	Name   string
	Code   string
	Type   territorydomain.Type
	Parent string
	Rules  []ruleSeed
}

// Parents are listed before their children.
var demoTerritories = []territorySeed{
	{Name: "North America", Code: "north-america"},
	{
		Name: "US West", Code: "us-west", Parent: "north-america",
		Rules: []ruleSeed{
			{RuleType: ruledomain.RuleTypeGeographic, Field: "address.country", Operator: ruledomain.OpEquals, Values: []any{"US"}, Priority: 10},
			{RuleType: ruledomain.RuleTypeGeographic, Field: "address.state", Operator: ruledomain.OpIn, Values: []any{"CA", "OR", "WA"}, Priority: 10},
		},
	},
	{
		Name: "US East", Code: "us-east", Parent: "north-america",
		Rules: []ruleSeed{
			{RuleType: ruledomain.RuleTypeGeographic, Field: "address.country", Operator: ruledomain.OpEquals, Values: []any{"US"}, Priority: 10},
			{RuleType: ruledomain.RuleTypeGeographic, Field: "address.state", Operator: ruledomain.OpIn, Values: []any{"NY", "MA", "NJ"}, Priority: 10},
		},
	},
	{
		Name: "Enterprise", Code: "enterprise", Type: territorydomain.TypeAccountBased,
		Rules: []ruleSeed{
			{RuleType: ruledomain.RuleTypeAccountSize, Field: "employee_count", Operator: ruledomain.OpGreater, Values: []any{1000}, Priority: 20},
		},
	},
	{
		Name: "Fintech", Code: "fintech", Type: territorydomain.TypeAccountBased,
		Rules: []ruleSeed{
			{RuleType: ruledomain.RuleTypeIndustry, Field: "industry", Operator: ruledomain.OpEquals, Values: []any{"Fintech"}, Priority: 15},
		},
	},
}

// EnsureDemoTerritories creates the demo territories that do not exist yet,
// together with their rules, and reports how many territories it created.
// Territories already present by code are left untouched.
func EnsureDemoTerritories(ctx context.Context, territories territorydomain.Service, rules ruledomain.Service) (int, error) {
	existing, err := territories.List(ctx, territorydomain.ListTerritoryRequest{})
	if err != nil {
		return 0, err
	}
	byCode := make(map[string]snowflake.ID, len(existing))
	for _, item := range existing {
		byCode[item.Code] = item.ID
	}

	created := 0
	for _, seed := range demoTerritories {
		if _, ok := byCode[seed.Code]; ok {
			continue
		}

		req := territorydomain.CreateTerritoryRequest{
			Name: seed.Name,
			Code: seed.Code,
			Type: string(seed.Type),
		}
		if seed.Parent != "" {
			parentID, ok := byCode[seed.Parent]
			if !ok {
				continue
			}
			req.ParentID = &parentID
		}

		territory, err := territories.Create(ctx, req)
		if errors.Is(err, territorydomain.ErrCodeTaken) {
			// Soft-deleted territories keep their code.
			continue
		}
		if err != nil {
			return created, err
		}
		byCode[territory.Code] = territory.ID
		created++

		for _, rule := range seed.Rules {
			if _, err := rules.Create(ctx, ruledomain.CreateRuleRequest{
				TerritoryID: territory.ID,
				RuleType:    string(rule.RuleType),
				FieldName:   rule.Field,
				Operator:    string(rule.Operator),
				Value:       rule.Values,
				Priority:    rule.Priority,
			}); err != nil {
				return created, err
			}
		}
	}
	return created, nil
}

type Params struct {
	fx.In

	Lifecycle   fx.Lifecycle
	Config      config.Config
	Log         *zap.Logger
	Territories territorydomain.Service
	Rules       ruledomain.Service
}

var Module = fx.Module("seed",
	fx.Invoke(register),
)

func register(p Params) {
	if !p.Config.SeedDemo || p.Config.IsProduction() {
		return
	}
	log := p.Log.Named("seed")
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			created, err := EnsureDemoTerritories(ctx, p.Territories, p.Rules)
			if err != nil {
				return err
			}
			log.Info("demo territories ensured", zap.Int("created", created))
			return nil
		},
	})
}
