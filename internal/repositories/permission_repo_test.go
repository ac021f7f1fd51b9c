package repositories

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BradenHooton/reportauth/internal/models"
)

func TestPermissionRepository_EffectiveCapabilitiesOrsAcrossRoles(t *testing.T) {
	db := requireDB(t)
	ctx := context.Background()
	perms := NewPermissionRepository(db)
	require.NoError(t, perms.EnsureReport(ctx, "R1", "Monthly sales"))

	_, err := perms.Upsert(ctx, &models.ReportPermission{RoleID: models.RoleReportViewer, ReportID: "R1", CanView: true, GrantedBy: "admin"})
	require.NoError(t, err)
	_, err = perms.Upsert(ctx, &models.ReportPermission{RoleID: models.RoleReportExecutor, ReportID: "R1", CanView: true, CanExecute: true, GrantedBy: "admin"})
	require.NoError(t, err)

	user := createTestUser(t, db, "alice", models.RoleReportViewer, models.RoleReportExecutor)
	caps, err := perms.EffectiveCapabilities(ctx, user.ID, "R1")
	require.NoError(t, err)
	assert.Equal(t, models.Capabilities{View: true, Execute: true}, caps)

	viewer := createTestUser(t, db, "victor", models.RoleReportViewer)
	caps, err = perms.EffectiveCapabilities(ctx, viewer.ID, "R1")
	require.NoError(t, err)
	assert.Equal(t, models.Capabilities{View: true}, caps)
}

func TestPermissionRepository_NoAccessIsZeroValue(t *testing.T) {
	db := requireDB(t)
	ctx := context.Background()
	perms := NewPermissionRepository(db)
	require.NoError(t, perms.EnsureReport(ctx, "R1", ""))

	noRoles := createTestUser(t, db, "nobody")
	caps, err := perms.EffectiveCapabilities(ctx, noRoles.ID, "R1")
	require.NoError(t, err)
	assert.Equal(t, models.Capabilities{}, caps)

	caps, err = perms.EffectiveCapabilities(ctx, noRoles.ID, "UNKNOWN_REPORT")
	require.NoError(t, err)
	assert.Equal(t, models.Capabilities{}, caps)
}

func TestPermissionRepository_InactiveRoleGrantsNothing(t *testing.T) {
	db := requireDB(t)
	ctx := context.Background()
	perms := NewPermissionRepository(db)
	require.NoError(t, perms.EnsureReport(ctx, "R1", ""))
	_, err := perms.Upsert(ctx, &models.ReportPermission{RoleID: models.RoleReportManager, ReportID: "R1", CanModify: true, GrantedBy: "admin"})
	require.NoError(t, err)

	user := createTestUser(t, db, "mallory", models.RoleReportManager)
	inactive := false
	_, err = NewRoleRepository(db).Update(ctx, models.RoleReportManager, nil, &inactive)
	require.NoError(t, err)

	caps, err := perms.EffectiveCapabilities(ctx, user.ID, "R1")
	require.NoError(t, err)
	assert.False(t, caps.Modify)
}

func TestPermissionRepository_UpsertReplacesFlags(t *testing.T) {
	db := requireDB(t)
	ctx := context.Background()
	perms := NewPermissionRepository(db)
	require.NoError(t, perms.EnsureReport(ctx, "R1", ""))

	first, err := perms.Upsert(ctx, &models.ReportPermission{RoleID: models.RoleReportViewer, ReportID: "R1", CanView: true, CanDelete: true, GrantedBy: "a"})
	require.NoError(t, err)
	second, err := perms.Upsert(ctx, &models.ReportPermission{RoleID: models.RoleReportViewer, ReportID: "R1", CanView: true, GrantedBy: "b"})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID, "one row per (role, report)")
	assert.False(t, second.CanDelete)
	assert.Equal(t, "b", second.GrantedBy)

	list, err := perms.ListForReport(ctx, "R1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestPermissionRepository_UpsertUnknownKeys(t *testing.T) {
	db := requireDB(t)
	ctx := context.Background()
	perms := NewPermissionRepository(db)
	require.NoError(t, perms.EnsureReport(ctx, "R1", ""))

	_, err := perms.Upsert(ctx, &models.ReportPermission{RoleID: "NOPE", ReportID: "R1", GrantedBy: "a"})
	var nf *models.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "role", nf.Resource)

	_, err = perms.Upsert(ctx, &models.ReportPermission{RoleID: models.RoleReportViewer, ReportID: "R404", GrantedBy: "a"})
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "report", nf.Resource)
}
