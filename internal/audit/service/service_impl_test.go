package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	auditdomain "github.com/smallbiznis/territorial/internal/audit/domain"
	"github.com/smallbiznis/territorial/internal/audit/repository"
	"github.com/smallbiznis/territorial/internal/clock"
	"github.com/smallbiznis/territorial/internal/migration"
	obscontext "github.com/smallbiznis/territorial/internal/observability/context"
	"github.com/smallbiznis/territorial/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

func setupAudit(t *testing.T) (auditdomain.Service, *clock.FakeClock) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, migration.AutoMigrate(db))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC))

	svc := New(Params{
		DB:    db,
		Log:   zaptest.NewLogger(t),
		GenID: node,
		Repo:  repository.Provide(),
		Clock: clk,
	})
	return svc, clk
}

func TestAuditLogResolvesActorFromContext(t *testing.T) {
	svc, _ := setupAudit(t)

	ctx := obscontext.WithActor(context.Background(), "user:alice")
	ctx = obscontext.WithRequestID(ctx, "req-1")
	target := "123"
	require.NoError(t, svc.AuditLog(ctx, auditdomain.ActionTerritoryCreate, auditdomain.TargetTerritory, &target, map[string]any{"code": "west"}))
	require.NoError(t, svc.AuditLog(context.Background(), auditdomain.ActionRuleCreate, auditdomain.TargetRule, nil, nil))

	resp, err := svc.List(context.Background(), auditdomain.ListAuditLogRequest{})
	require.NoError(t, err)
	require.Len(t, resp.AuditLogs, 2)

	system := resp.AuditLogs[0]
	assert.Equal(t, auditdomain.ActionRuleCreate, system.Action)
	assert.Equal(t, auditdomain.ActorTypeSystem, system.ActorType)
	assert.Nil(t, system.ActorID)
	assert.Nil(t, system.TargetID)

	user := resp.AuditLogs[1]
	assert.Equal(t, auditdomain.ActorTypeUser, user.ActorType)
	require.NotNil(t, user.ActorID)
	assert.Equal(t, "user:alice", *user.ActorID)
	require.NotNil(t, user.RequestID)
	assert.Equal(t, "req-1", *user.RequestID)
	assert.Equal(t, "west", user.Metadata["code"])
}

func TestAuditLogRequiresAction(t *testing.T) {
	svc, _ := setupAudit(t)
	err := svc.AuditLog(context.Background(), "  ", auditdomain.TargetRule, nil, nil)
	assert.ErrorIs(t, err, auditdomain.ErrInvalidAction)
}

func TestListFiltersAndPages(t *testing.T) {
	svc, clk := setupAudit(t)
	ctx := obscontext.WithActor(context.Background(), "user:bob")

	start := clk.Now()
	for i := 0; i < 3; i++ {
		target := fmt.Sprintf("t-%d", i)
		require.NoError(t, svc.AuditLog(ctx, auditdomain.ActionTerritoryUpdate, auditdomain.TargetTerritory, &target, nil))
		clk.Advance(time.Minute)
	}
	require.NoError(t, svc.AuditLog(ctx, auditdomain.ActionRuleDeactivate, auditdomain.TargetRule, nil, nil))

	resp, err := svc.List(ctx, auditdomain.ListAuditLogRequest{
		Pagination: pagination.Pagination{PageSize: 2},
		TargetType: auditdomain.TargetTerritory,
	})
	require.NoError(t, err)
	require.Len(t, resp.AuditLogs, 2)
	assert.True(t, resp.HasMore)

	next, err := svc.List(ctx, auditdomain.ListAuditLogRequest{
		Pagination: pagination.Pagination{PageSize: 2, PageToken: resp.NextPageToken},
		TargetType: auditdomain.TargetTerritory,
	})
	require.NoError(t, err)
	require.Len(t, next.AuditLogs, 1)
	assert.False(t, next.HasMore)

	end := start.Add(90 * time.Second)
	windowed, err := svc.List(ctx, auditdomain.ListAuditLogRequest{StartAt: &start, EndAt: &end})
	require.NoError(t, err)
	assert.Len(t, windowed.AuditLogs, 2)

	_, err = svc.List(ctx, auditdomain.ListAuditLogRequest{StartAt: &end, EndAt: &start})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidTimeRange)
}
