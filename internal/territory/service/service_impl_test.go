package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/territorial/internal/clock"
	"github.com/smallbiznis/territorial/internal/migration"
	"github.com/smallbiznis/territorial/internal/territory/domain"
	"github.com/smallbiznis/territorial/internal/territory/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

func setupTerritoryService(t *testing.T) (domain.Service, *gorm.DB, *clock.FakeClock) {
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

	clk := clock.NewFakeClock(time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC))
	svc := New(Params{
		DB:    db,
		Log:   zaptest.NewLogger(t),
		GenID: node,
		Repo:  repository.Provide(),
		Clock: clk,
	})
	return svc, db, clk
}

func mustCreate(t *testing.T, svc domain.Service, name string, parent *domain.Territory) domain.Territory {
	t.Helper()
	req := domain.CreateTerritoryRequest{Name: name}
	if parent != nil {
		id := parent.ID
		req.ParentID = &id
	}
	item, err := svc.Create(context.Background(), req)
	require.NoError(t, err)
	return item
}

func ids(items []domain.Territory) []snowflake.ID {
	out := make([]snowflake.ID, 0, len(items))
	for _, item := range items {
		out = append(out, item.ID)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func sortedIDs(values ...snowflake.ID) []snowflake.ID {
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })
	return values
}

func TestCreateDefaults(t *testing.T) {
	svc, _, clk := setupTerritoryService(t)

	item, err := svc.Create(context.Background(), domain.CreateTerritoryRequest{
		Name:       "West Coast Region",
		Boundaries: []byte(`{"type":"Polygon","coordinates":[]}`),
	})
	require.NoError(t, err)

	assert.NotZero(t, item.ID)
	assert.Equal(t, "west-coast-region", item.Code)
	assert.Equal(t, domain.TypeGeographic, item.Type)
	assert.Equal(t, domain.StatusActive, item.Status)
	assert.Nil(t, item.ParentID)
	assert.True(t, item.CreatedAt.Equal(clk.Now()))

	got, err := svc.Get(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, item.Code, got.Code)
	assert.JSONEq(t, `{"type":"Polygon","coordinates":[]}`, string(got.Boundaries))
}

func TestCreateValidation(t *testing.T) {
	svc, _, _ := setupTerritoryService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, domain.CreateTerritoryRequest{Name: "  "})
	assert.ErrorIs(t, err, domain.ErrInvalidName)

	_, err = svc.Create(ctx, domain.CreateTerritoryRequest{Name: "A", Type: "planet"})
	assert.ErrorIs(t, err, domain.ErrInvalidType)

	_, err = svc.Create(ctx, domain.CreateTerritoryRequest{Name: "A", Status: "paused"})
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)

	_, err = svc.Create(ctx, domain.CreateTerritoryRequest{Name: "A", Boundaries: []byte(`{`)})
	assert.ErrorIs(t, err, domain.ErrInvalidBoundary)

	missing := snowflake.ID(42)
	_, err = svc.Create(ctx, domain.CreateTerritoryRequest{Name: "A", ParentID: &missing})
	assert.ErrorIs(t, err, domain.ErrParentNotFound)

	item, err := svc.Create(ctx, domain.CreateTerritoryRequest{Name: "Accounts", Type: "account-based"})
	require.NoError(t, err)
	assert.Equal(t, domain.TypeAccountBased, item.Type)

	_, err = svc.Create(ctx, domain.CreateTerritoryRequest{Name: "Accounts"})
	assert.ErrorIs(t, err, domain.ErrCodeTaken)
}

func TestDescendantsOfThreeLevelTree(t *testing.T) {
	svc, _, _ := setupTerritoryService(t)
	ctx := context.Background()

	root := mustCreate(t, svc, "Americas", nil)
	north := mustCreate(t, svc, "North America", &root)
	south := mustCreate(t, svc, "South America", &root)
	ca := mustCreate(t, svc, "California", &north)
	ny := mustCreate(t, svc, "New York", &north)
	br := mustCreate(t, svc, "Brazil", &south)

	descendants, err := svc.Descendants(ctx, root.ID)
	require.NoError(t, err)
	assert.Equal(t, sortedIDs(north.ID, south.ID, ca.ID, ny.ID, br.ID), ids(descendants))

	descendants, err = svc.Descendants(ctx, north.ID)
	require.NoError(t, err)
	assert.Equal(t, sortedIDs(ca.ID, ny.ID), ids(descendants))

	leaf, err := svc.Descendants(ctx, ca.ID)
	require.NoError(t, err)
	assert.Empty(t, leaf)

	unknown, err := svc.Descendants(ctx, snowflake.ID(999))
	require.NoError(t, err)
	assert.Empty(t, unknown)

	children, err := svc.Children(ctx, root.ID)
	require.NoError(t, err)
	assert.Equal(t, sortedIDs(north.ID, south.ID), ids(children))

	roots, err := svc.Roots(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []snowflake.ID{root.ID}, ids(roots))

	ancestors, err := svc.Ancestors(ctx, ny.ID)
	require.NoError(t, err)
	require.Len(t, ancestors, 2)
	assert.Equal(t, north.ID, ancestors[0].ID)
	assert.Equal(t, root.ID, ancestors[1].ID)
}

func TestDeleteDetachesChildren(t *testing.T) {
	svc, db, _ := setupTerritoryService(t)
	ctx := context.Background()

	parent := mustCreate(t, svc, "Parent", nil)
	first := mustCreate(t, svc, "First Child", &parent)
	second := mustCreate(t, svc, "Second Child", &parent)
	grandchild := mustCreate(t, svc, "Grandchild", &first)

	require.NoError(t, svc.Delete(ctx, parent.ID))

	_, err := svc.Get(ctx, parent.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	for _, id := range []snowflake.ID{first.ID, second.ID} {
		child, err := svc.Get(ctx, id)
		require.NoError(t, err, "children survive their parent")
		assert.Nil(t, child.ParentID)

		p, err := svc.Parent(ctx, id)
		require.NoError(t, err)
		assert.Nil(t, p)
	}

	g, err := svc.Get(ctx, grandchild.ID)
	require.NoError(t, err)
	require.NotNil(t, g.ParentID)
	assert.Equal(t, first.ID, *g.ParentID)

	roots, err := svc.Roots(ctx, domain.StatusActive)
	require.NoError(t, err)
	assert.Equal(t, sortedIDs(first.ID, second.ID), ids(roots))

	var count int64
	require.NoError(t, db.Unscoped().Model(&domain.Territory{}).Where("id = ?", parent.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count, "delete is soft")

	assert.ErrorIs(t, svc.Delete(ctx, parent.ID), domain.ErrNotFound)
}

func TestRestore(t *testing.T) {
	svc, _, clk := setupTerritoryService(t)
	ctx := context.Background()

	parent := mustCreate(t, svc, "Parent", nil)
	child := mustCreate(t, svc, "Child", &parent)

	_, err := svc.Restore(ctx, parent.ID)
	assert.ErrorIs(t, err, domain.ErrNotDeleted)

	require.NoError(t, svc.Delete(ctx, child.ID))
	require.NoError(t, svc.Delete(ctx, parent.ID))
	clk.Advance(time.Hour)

	restored, err := svc.Restore(ctx, child.ID)
	require.NoError(t, err)
	assert.Nil(t, restored.ParentID, "deleted parent is not resolvable after restore")

	restoredParent, err := svc.Restore(ctx, parent.ID)
	require.NoError(t, err)
	assert.Equal(t, parent.Code, restoredParent.Code)

	children, err := svc.Children(ctx, parent.ID)
	require.NoError(t, err)
	assert.Empty(t, children)

	_, err = svc.Restore(ctx, snowflake.ID(12345))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestReparentRejectsCycles(t *testing.T) {
	svc, _, _ := setupTerritoryService(t)
	ctx := context.Background()

	root := mustCreate(t, svc, "Root", nil)
	mid := mustCreate(t, svc, "Mid", &root)
	leaf := mustCreate(t, svc, "Leaf", &mid)

	self := root.ID
	_, err := svc.Update(ctx, domain.UpdateTerritoryRequest{ID: root.ID, ParentID: &self})
	assert.ErrorIs(t, err, domain.ErrInvalidParent)

	leafID := leaf.ID
	_, err = svc.Update(ctx, domain.UpdateTerritoryRequest{ID: root.ID, ParentID: &leafID})
	assert.ErrorIs(t, err, domain.ErrCycle)

	missing := snowflake.ID(7)
	_, err = svc.Update(ctx, domain.UpdateTerritoryRequest{ID: mid.ID, ParentID: &missing})
	assert.ErrorIs(t, err, domain.ErrParentNotFound)

	rootID := root.ID
	moved, err := svc.Update(ctx, domain.UpdateTerritoryRequest{ID: leaf.ID, ParentID: &rootID})
	require.NoError(t, err)
	require.NotNil(t, moved.ParentID)
	assert.Equal(t, root.ID, *moved.ParentID)

	detached, err := svc.Update(ctx, domain.UpdateTerritoryRequest{ID: mid.ID, ClearParent: true})
	require.NoError(t, err)
	assert.Nil(t, detached.ParentID)
}

func TestUpdateAndStatus(t *testing.T) {
	svc, _, _ := setupTerritoryService(t)
	ctx := context.Background()

	first := mustCreate(t, svc, "First", nil)
	second := mustCreate(t, svc, "Second", nil)

	name := "First Renamed"
	owner := "user-7"
	updated, err := svc.Update(ctx, domain.UpdateTerritoryRequest{ID: first.ID, Name: &name, OwnerID: &owner})
	require.NoError(t, err)
	assert.Equal(t, "First Renamed", updated.Name)
	assert.Equal(t, "first", updated.Code, "code is stable across renames")
	assert.Equal(t, "user-7", updated.OwnerID)

	taken := second.Code
	_, err = svc.Update(ctx, domain.UpdateTerritoryRequest{ID: first.ID, Code: &taken})
	assert.ErrorIs(t, err, domain.ErrCodeTaken)

	_, err = svc.SetStatus(ctx, second.ID, domain.StatusInactive)
	require.NoError(t, err)

	active, err := svc.ListActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, []snowflake.ID{first.ID}, ids(active))

	inactive, err := svc.List(ctx, domain.ListTerritoryRequest{Status: "inactive"})
	require.NoError(t, err)
	assert.Equal(t, []snowflake.ID{second.ID}, ids(inactive))

	_, err = svc.SetStatus(ctx, second.ID, domain.Status("archived"))
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)

	_, err = svc.Update(ctx, domain.UpdateTerritoryRequest{ID: snowflake.ID(1)})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
