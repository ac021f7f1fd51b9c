package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"github.com/BradenHooton/reportauth/internal/auth"
	"github.com/BradenHooton/reportauth/internal/models"
	"github.com/BradenHooton/reportauth/internal/services"
	pkghttp "github.com/BradenHooton/reportauth/pkg/http"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithAuthContext adds access token claims to the request context
func WithAuthContext(req *http.Request, userID int64, username string, roles ...string) *http.Request {
	claims := &models.TokenClaims{
		Type:     "access",
		UserID:   userID,
		Username: username,
		Roles:    roles,
	}
	return req.WithContext(auth.WithClaims(req.Context(), claims))
}

// WithChiRouteContext adds chi URL parameters to request context for testing
//
// Example usage:
//
//	req := httptest.NewRequest("POST", "/users/7/roles/ADMIN", nil)
//	req = WithChiRouteContext(req, map[string]string{"id": "7", "roleID": "ADMIN"})
func WithChiRouteContext(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	t.Helper()
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"), "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) pkghttp.ErrorResponse {
	t.Helper()
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
	return resp
}

// MockAuthService implements AuthServiceInterface for testing
type MockAuthService struct {
	AuthenticateFunc func(ctx context.Context, username, password string, origin models.OriginMetadata) (*models.AuthResult, error)
}

func (m *MockAuthService) Authenticate(ctx context.Context, username, password string, origin models.OriginMetadata) (*models.AuthResult, error) {
	if m.AuthenticateFunc == nil {
		return nil, &models.AuthenticationError{Reason: models.ReasonNotFound}
	}
	return m.AuthenticateFunc(ctx, username, password, origin)
}

// MockPasswordChanger implements PasswordChanger for testing
type MockPasswordChanger struct {
	ChangePasswordFunc func(ctx context.Context, id int64, oldPassword, newPassword string, origin models.OriginMetadata) error
}

func (m *MockPasswordChanger) ChangePassword(ctx context.Context, id int64, oldPassword, newPassword string, origin models.OriginMetadata) error {
	if m.ChangePasswordFunc == nil {
		return nil
	}
	return m.ChangePasswordFunc(ctx, id, oldPassword, newPassword, origin)
}

// MockTokenIssuer implements TokenIssuer for testing
type MockTokenIssuer struct {
	GenerateAccessTokenFunc func(result *models.AuthResult) (string, time.Time, error)
}

func (m *MockTokenIssuer) GenerateAccessToken(result *models.AuthResult) (string, time.Time, error) {
	if m.GenerateAccessTokenFunc == nil {
		return "test-token", time.Now().Add(15 * time.Minute), nil
	}
	return m.GenerateAccessTokenFunc(result)
}

// MockUserService implements UserService for testing
type MockUserService struct {
	CreateUserFunc     func(ctx context.Context, in models.CreateUserInput, actor models.Actor) (int64, error)
	GetUserInfoFunc    func(ctx context.Context, id int64) (*models.UserInfo, error)
	ListUsersFunc      func(ctx context.Context, limit, offset int) ([]*models.User, error)
	UpdateProfileFunc  func(ctx context.Context, id int64, in models.UpdateProfileInput, actor models.Actor) (*models.User, error)
	ResetPasswordFunc  func(ctx context.Context, id int64, newPassword string, actor models.Actor) error
	SetLockedFunc      func(ctx context.Context, id int64, locked bool, actor models.Actor) (*models.User, error)
	SetActiveFunc      func(ctx context.Context, id int64, active bool, actor models.Actor) (*models.User, error)
	DeactivateUserFunc func(ctx context.Context, id int64, actor models.Actor) error
}

func (m *MockUserService) CreateUser(ctx context.Context, in models.CreateUserInput, actor models.Actor) (int64, error) {
	if m.CreateUserFunc == nil {
		return 1, nil
	}
	return m.CreateUserFunc(ctx, in, actor)
}

func (m *MockUserService) GetUserInfo(ctx context.Context, id int64) (*models.UserInfo, error) {
	if m.GetUserInfoFunc == nil {
		return nil, &models.NotFoundError{Resource: "user"}
	}
	return m.GetUserInfoFunc(ctx, id)
}

func (m *MockUserService) ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error) {
	if m.ListUsersFunc == nil {
		return []*models.User{}, nil
	}
	return m.ListUsersFunc(ctx, limit, offset)
}

func (m *MockUserService) UpdateProfile(ctx context.Context, id int64, in models.UpdateProfileInput, actor models.Actor) (*models.User, error) {
	if m.UpdateProfileFunc == nil {
		return &models.User{ID: id}, nil
	}
	return m.UpdateProfileFunc(ctx, id, in, actor)
}

func (m *MockUserService) ResetPassword(ctx context.Context, id int64, newPassword string, actor models.Actor) error {
	if m.ResetPasswordFunc == nil {
		return nil
	}
	return m.ResetPasswordFunc(ctx, id, newPassword, actor)
}

func (m *MockUserService) SetLocked(ctx context.Context, id int64, locked bool, actor models.Actor) (*models.User, error) {
	if m.SetLockedFunc == nil {
		return &models.User{ID: id, IsLocked: locked, IsActive: true}, nil
	}
	return m.SetLockedFunc(ctx, id, locked, actor)
}

func (m *MockUserService) SetActive(ctx context.Context, id int64, active bool, actor models.Actor) (*models.User, error) {
	if m.SetActiveFunc == nil {
		return &models.User{ID: id, IsActive: active}, nil
	}
	return m.SetActiveFunc(ctx, id, active, actor)
}

func (m *MockUserService) DeactivateUser(ctx context.Context, id int64, actor models.Actor) error {
	if m.DeactivateUserFunc == nil {
		return nil
	}
	return m.DeactivateUserFunc(ctx, id, actor)
}

// MockRoleAssigner implements RoleAssigner for testing
type MockRoleAssigner struct {
	AssignRoleFunc func(ctx context.Context, userID int64, roleID string, actor models.Actor) error
	RevokeRoleFunc func(ctx context.Context, userID int64, roleID string, actor models.Actor) error
}

func (m *MockRoleAssigner) AssignRole(ctx context.Context, userID int64, roleID string, actor models.Actor) error {
	if m.AssignRoleFunc == nil {
		return nil
	}
	return m.AssignRoleFunc(ctx, userID, roleID, actor)
}

func (m *MockRoleAssigner) RevokeRole(ctx context.Context, userID int64, roleID string, actor models.Actor) error {
	if m.RevokeRoleFunc == nil {
		return nil
	}
	return m.RevokeRoleFunc(ctx, userID, roleID, actor)
}

// MockCapabilityResolver implements CapabilityResolver for testing
type MockCapabilityResolver struct {
	EffectiveCapabilitiesFunc func(ctx context.Context, userID int64, reportID string) (models.Capabilities, error)
}

func (m *MockCapabilityResolver) EffectiveCapabilities(ctx context.Context, userID int64, reportID string) (models.Capabilities, error) {
	if m.EffectiveCapabilitiesFunc == nil {
		return models.Capabilities{}, nil
	}
	return m.EffectiveCapabilitiesFunc(ctx, userID, reportID)
}

// MockRoleCatalog implements RoleCatalog for testing
type MockRoleCatalog struct {
	ListCatalogFunc func(ctx context.Context) ([]models.Role, error)
	CreateRoleFunc  func(ctx context.Context, role models.Role, actor models.Actor) (*models.Role, error)
	UpdateRoleFunc  func(ctx context.Context, roleID string, description *string, active *bool, actor models.Actor) (*models.Role, error)
}

func (m *MockRoleCatalog) ListCatalog(ctx context.Context) ([]models.Role, error) {
	if m.ListCatalogFunc == nil {
		return []models.Role{}, nil
	}
	return m.ListCatalogFunc(ctx)
}

func (m *MockRoleCatalog) CreateRole(ctx context.Context, role models.Role, actor models.Actor) (*models.Role, error) {
	if m.CreateRoleFunc == nil {
		return &role, nil
	}
	return m.CreateRoleFunc(ctx, role, actor)
}

func (m *MockRoleCatalog) UpdateRole(ctx context.Context, roleID string, description *string, active *bool, actor models.Actor) (*models.Role, error) {
	if m.UpdateRoleFunc == nil {
		return &models.Role{ID: roleID}, nil
	}
	return m.UpdateRoleFunc(ctx, roleID, description, active, actor)
}

// MockPermissionGranter implements PermissionGranter for testing
type MockPermissionGranter struct {
	GrantReportPermissionFunc func(ctx context.Context, grant models.ReportPermission, actor models.Actor) (*models.ReportPermission, error)
	ListReportPermissionsFunc func(ctx context.Context, reportID string) ([]*models.ReportPermission, error)
	RegisterReportFunc        func(ctx context.Context, reportID, name string) error
}

func (m *MockPermissionGranter) GrantReportPermission(ctx context.Context, grant models.ReportPermission, actor models.Actor) (*models.ReportPermission, error) {
	if m.GrantReportPermissionFunc == nil {
		grant.GrantedBy = actor.Name()
		return &grant, nil
	}
	return m.GrantReportPermissionFunc(ctx, grant, actor)
}

func (m *MockPermissionGranter) ListReportPermissions(ctx context.Context, reportID string) ([]*models.ReportPermission, error) {
	if m.ListReportPermissionsFunc == nil {
		return []*models.ReportPermission{}, nil
	}
	return m.ListReportPermissionsFunc(ctx, reportID)
}

func (m *MockPermissionGranter) RegisterReport(ctx context.Context, reportID, name string) error {
	if m.RegisterReportFunc == nil {
		return nil
	}
	return m.RegisterReportFunc(ctx, reportID, name)
}

// MockActivityService implements ActivityService for testing
type MockActivityService struct {
	RecordActivityFunc  func(ctx context.Context, event models.ActivityEvent) error
	UserTrailFunc       func(ctx context.Context, userID int64, limit, offset int) ([]*models.ActivityLogEntry, error)
	RecentFailuresFunc  func(ctx context.Context, limit int) ([]*models.ActivityLogEntry, error)
	RecentByTypeFunc    func(ctx context.Context, activityType string, limit int) ([]*models.ActivityLogEntry, error)
	GetCountForUserFunc func(ctx context.Context, userID int64) (int64, error)
}

func (m *MockActivityService) RecordActivity(ctx context.Context, event models.ActivityEvent) error {
	if m.RecordActivityFunc == nil {
		return nil
	}
	return m.RecordActivityFunc(ctx, event)
}

func (m *MockActivityService) UserTrail(ctx context.Context, userID int64, limit, offset int) ([]*models.ActivityLogEntry, error) {
	if m.UserTrailFunc == nil {
		return []*models.ActivityLogEntry{}, nil
	}
	return m.UserTrailFunc(ctx, userID, limit, offset)
}

func (m *MockActivityService) RecentFailures(ctx context.Context, limit int) ([]*models.ActivityLogEntry, error) {
	if m.RecentFailuresFunc == nil {
		return []*models.ActivityLogEntry{}, nil
	}
	return m.RecentFailuresFunc(ctx, limit)
}

func (m *MockActivityService) RecentByType(ctx context.Context, activityType string, limit int) ([]*models.ActivityLogEntry, error) {
	if m.RecentByTypeFunc == nil {
		return []*models.ActivityLogEntry{}, nil
	}
	return m.RecentByTypeFunc(ctx, activityType, limit)
}

func (m *MockActivityService) GetCountForUser(ctx context.Context, userID int64) (int64, error) {
	if m.GetCountForUserFunc == nil {
		return 0, nil
	}
	return m.GetCountForUserFunc(ctx, userID)
}

// MockAdminService implements AdminServiceInterface for testing
type MockAdminService struct {
	GetDashboardStatsFunc func(ctx context.Context) (*services.DashboardStatsResponse, error)
	GetRecentActivityFunc func(ctx context.Context, limit int) (*services.DashboardActivityResponse, error)
}

func (m *MockAdminService) GetDashboardStats(ctx context.Context) (*services.DashboardStatsResponse, error) {
	if m.GetDashboardStatsFunc == nil {
		return &services.DashboardStatsResponse{}, nil
	}
	return m.GetDashboardStatsFunc(ctx)
}

func (m *MockAdminService) GetRecentActivity(ctx context.Context, limit int) (*services.DashboardActivityResponse, error) {
	if m.GetRecentActivityFunc == nil {
		return &services.DashboardActivityResponse{}, nil
	}
	return m.GetRecentActivityFunc(ctx, limit)
}
