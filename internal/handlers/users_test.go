package handlers_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BradenHooton/reportauth/internal/handlers"
	"github.com/BradenHooton/reportauth/internal/models"
)

const adminID int64 = 1

func newUserHandler(users *handlers.MockUserService, roles *handlers.MockRoleAssigner, caps *handlers.MockCapabilityResolver) *handlers.UserHandler {
	if users == nil {
		users = &handlers.MockUserService{}
	}
	if roles == nil {
		roles = &handlers.MockRoleAssigner{}
	}
	if caps == nil {
		caps = &handlers.MockCapabilityResolver{}
	}
	return handlers.NewUserHandler(users, roles, caps, nil, testLogger())
}

func adminRequest(t *testing.T, method, url string, body interface{}, params map[string]string) *http.Request {
	req := handlers.NewTestRequest(t, method, url, body)
	req = handlers.WithAuthContext(req, adminID, "admin", models.RoleAdmin)
	if params != nil {
		req = handlers.WithChiRouteContext(req, params)
	}
	return req
}

func TestMe(t *testing.T) {
	users := &handlers.MockUserService{
		GetUserInfoFunc: func(ctx context.Context, id int64) (*models.UserInfo, error) {
			assert.Equal(t, int64(7), id)
			return models.NewUserInfo(&models.User{ID: 7, Username: "alice", PasswordHash: "$2a$secret"}, nil), nil
		},
	}
	handler := newUserHandler(users, nil, nil)
	req := handlers.WithAuthContext(httptest.NewRequest("GET", "/users/me", nil), 7, "alice")
	w := httptest.NewRecorder()

	handler.Me(w, req)

	var info models.UserInfo
	handlers.AssertJSONResponse(t, w, http.StatusOK, &info)
	assert.Equal(t, "alice", info.Username)
	assert.NotNil(t, info.Roles)
	assert.NotContains(t, w.Body.String(), "$2a$secret")
}

func TestCreateUser(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		var gotActor models.Actor
		users := &handlers.MockUserService{
			CreateUserFunc: func(ctx context.Context, in models.CreateUserInput, actor models.Actor) (int64, error) {
				assert.Equal(t, "bob", in.Username)
				assert.Equal(t, []string{"REPORT_VIEWER"}, in.Roles)
				assert.True(t, in.MustChangePassword)
				gotActor = actor
				return 9, nil
			},
			GetUserInfoFunc: func(ctx context.Context, id int64) (*models.UserInfo, error) {
				return models.NewUserInfo(&models.User{ID: id, Username: "bob"}, []models.Role{{ID: "REPORT_VIEWER"}}), nil
			},
		}
		handler := newUserHandler(users, nil, nil)
		req := adminRequest(t, "POST", "/users", handlers.CreateUserRequest{
			Username:           "bob",
			Email:              "bob@example.com",
			Password:           "Sup3r$ecret!",
			Roles:              []string{"REPORT_VIEWER"},
			MustChangePassword: true,
		}, nil)
		w := httptest.NewRecorder()

		handler.CreateUser(w, req)

		var info models.UserInfo
		handlers.AssertJSONResponse(t, w, http.StatusCreated, &info)
		assert.Equal(t, int64(9), info.ID)
		assert.Equal(t, "admin", gotActor.Name())
		require.NotNil(t, gotActor.UserID)
		assert.Equal(t, adminID, *gotActor.UserID)
	})

	t.Run("service errors", func(t *testing.T) {
		tests := []struct {
			name           string
			err            error
			expectedStatus int
			expectedError  string
		}{
			{"duplicate username", &models.DuplicateError{Field: "username"}, http.StatusConflict, "conflict"},
			{"unknown role", &models.NotFoundError{Resource: "role", Key: "NOPE"}, http.StatusNotFound, "not_found"},
			{"validation", &models.ValidationError{Field: "email", Reasons: []string{"invalid"}}, http.StatusBadRequest, "bad_request"},
			{"integrity", &models.IntegrityError{Constraint: "users_email_key"}, http.StatusConflict, "conflict"},
			{"unexpected", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				users := &handlers.MockUserService{
					CreateUserFunc: func(ctx context.Context, in models.CreateUserInput, actor models.Actor) (int64, error) {
						return 0, tt.err
					},
				}
				handler := newUserHandler(users, nil, nil)
				req := adminRequest(t, "POST", "/users", handlers.CreateUserRequest{
					Username: "bob",
					Email:    "bob@example.com",
					Password: "Sup3r$ecret!",
				}, nil)
				w := httptest.NewRecorder()

				handler.CreateUser(w, req)

				handlers.AssertErrorResponse(t, w, tt.expectedStatus, tt.expectedError)
			})
		}
	})

	t.Run("invalid email rejected before service", func(t *testing.T) {
		users := &handlers.MockUserService{
			CreateUserFunc: func(ctx context.Context, in models.CreateUserInput, actor models.Actor) (int64, error) {
				t.Fatal("service must not be called")
				return 0, nil
			},
		}
		handler := newUserHandler(users, nil, nil)
		req := adminRequest(t, "POST", "/users", handlers.CreateUserRequest{
			Username: "bob",
			Email:    "not-an-email",
			Password: "Sup3r$ecret!",
		}, nil)
		w := httptest.NewRecorder()

		handler.CreateUser(w, req)

		handlers.AssertErrorResponse(t, w, http.StatusBadRequest, "bad_request")
	})
}

func TestListUsers(t *testing.T) {
	tests := []struct {
		name           string
		query          string
		expectedLimit  int
		expectedOffset int
	}{
		{"defaults", "", 50, 0},
		{"explicit", "?limit=10&offset=20", 10, 20},
		{"over max", "?limit=1000", 50, 0},
		{"zero", "?limit=0", 50, 0},
		{"garbage", "?limit=abc&offset=-3", 50, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := &handlers.MockUserService{
				ListUsersFunc: func(ctx context.Context, limit, offset int) ([]*models.User, error) {
					assert.Equal(t, tt.expectedLimit, limit)
					assert.Equal(t, tt.expectedOffset, offset)
					return []*models.User{{ID: 1, Username: "admin", PasswordHash: "$2a$hash"}}, nil
				},
			}
			handler := newUserHandler(users, nil, nil)
			req := adminRequest(t, "GET", "/users"+tt.query, nil, nil)
			w := httptest.NewRecorder()

			handler.ListUsers(w, req)

			var resp handlers.ListUsersResponse
			handlers.AssertJSONResponse(t, w, http.StatusOK, &resp)
			require.Len(t, resp.Users, 1)
			assert.Equal(t, tt.expectedLimit, resp.Limit)
			assert.NotContains(t, w.Body.String(), "$2a$hash")
		})
	}
}

func TestGetUser(t *testing.T) {
	t.Run("invalid id", func(t *testing.T) {
		handler := newUserHandler(nil, nil, nil)
		req := adminRequest(t, "GET", "/users/abc", nil, map[string]string{"id": "abc"})
		w := httptest.NewRecorder()

		handler.GetUser(w, req)

		handlers.AssertErrorResponse(t, w, http.StatusBadRequest, "bad_request")
	})

	t.Run("not found", func(t *testing.T) {
		handler := newUserHandler(nil, nil, nil)
		req := adminRequest(t, "GET", "/users/42", nil, map[string]string{"id": "42"})
		w := httptest.NewRecorder()

		handler.GetUser(w, req)

		handlers.AssertErrorResponse(t, w, http.StatusNotFound, "not_found")
	})
}

func TestUpdateUser(t *testing.T) {
	email := "new@example.com"
	users := &handlers.MockUserService{
		UpdateProfileFunc: func(ctx context.Context, id int64, in models.UpdateProfileInput, actor models.Actor) (*models.User, error) {
			assert.Equal(t, int64(7), id)
			require.NotNil(t, in.Email)
			assert.Equal(t, email, *in.Email)
			assert.Nil(t, in.FirstName)
			return &models.User{ID: id, Username: "alice", Email: email}, nil
		},
	}
	handler := newUserHandler(users, nil, nil)
	req := adminRequest(t, "PATCH", "/users/7", handlers.UpdateUserRequest{Email: &email}, map[string]string{"id": "7"})
	w := httptest.NewRecorder()

	handler.UpdateUser(w, req)

	var resp handlers.UserResponse
	handlers.AssertJSONResponse(t, w, http.StatusOK, &resp)
	assert.Equal(t, email, resp.Email)
}

func TestResetPassword(t *testing.T) {
	called := false
	users := &handlers.MockUserService{
		ResetPasswordFunc: func(ctx context.Context, id int64, newPassword string, actor models.Actor) error {
			called = true
			assert.Equal(t, int64(7), id)
			assert.Equal(t, "Temp0rary!pw", newPassword)
			return nil
		},
	}
	handler := newUserHandler(users, nil, nil)
	req := adminRequest(t, "POST", "/users/7/password-reset", handlers.ResetPasswordRequest{NewPassword: "Temp0rary!pw"}, map[string]string{"id": "7"})
	w := httptest.NewRecorder()

	handler.ResetPassword(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.True(t, called)
}

func TestStateChanges(t *testing.T) {
	var lockedArg, activeArg *bool
	users := &handlers.MockUserService{
		SetLockedFunc: func(ctx context.Context, id int64, locked bool, actor models.Actor) (*models.User, error) {
			lockedArg = &locked
			return &models.User{ID: id, IsLocked: locked, IsActive: true}, nil
		},
		SetActiveFunc: func(ctx context.Context, id int64, active bool, actor models.Actor) (*models.User, error) {
			activeArg = &active
			return &models.User{ID: id, IsActive: active}, nil
		},
	}
	handler := newUserHandler(users, nil, nil)

	tests := []struct {
		name   string
		invoke func(w http.ResponseWriter, r *http.Request)
		check  func(t *testing.T, resp handlers.UserResponse)
	}{
		{"lock", handler.Lock, func(t *testing.T, resp handlers.UserResponse) {
			require.NotNil(t, lockedArg)
			assert.True(t, *lockedArg)
			assert.True(t, resp.IsLocked)
		}},
		{"unlock", handler.Unlock, func(t *testing.T, resp handlers.UserResponse) {
			require.NotNil(t, lockedArg)
			assert.False(t, *lockedArg)
			assert.False(t, resp.IsLocked)
		}},
		{"activate", handler.Activate, func(t *testing.T, resp handlers.UserResponse) {
			require.NotNil(t, activeArg)
			assert.True(t, *activeArg)
			assert.True(t, resp.IsActive)
		}},
		{"deactivate", handler.Deactivate, func(t *testing.T, resp handlers.UserResponse) {
			require.NotNil(t, activeArg)
			assert.False(t, *activeArg)
			assert.False(t, resp.IsActive)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lockedArg, activeArg = nil, nil
			req := adminRequest(t, "POST", "/users/7/"+tt.name, nil, map[string]string{"id": "7"})
			w := httptest.NewRecorder()

			tt.invoke(w, req)

			var resp handlers.UserResponse
			handlers.AssertJSONResponse(t, w, http.StatusOK, &resp)
			tt.check(t, resp)
		})
	}
}

func TestStateChanges_SelfBlocked(t *testing.T) {
	users := &handlers.MockUserService{
		SetLockedFunc: func(ctx context.Context, id int64, locked bool, actor models.Actor) (*models.User, error) {
			t.Fatal("service must not be called for self lock")
			return nil, nil
		},
		DeactivateUserFunc: func(ctx context.Context, id int64, actor models.Actor) error {
			t.Fatal("service must not be called for self delete")
			return nil
		},
	}
	handler := newUserHandler(users, nil, nil)
	params := map[string]string{"id": "1"}

	w := httptest.NewRecorder()
	handler.Lock(w, adminRequest(t, "POST", "/users/1/lock", nil, params))
	handlers.AssertErrorResponse(t, w, http.StatusBadRequest, "bad_request")

	w = httptest.NewRecorder()
	handler.DeleteUser(w, adminRequest(t, "DELETE", "/users/1", nil, params))
	handlers.AssertErrorResponse(t, w, http.StatusBadRequest, "bad_request")
}

func TestDeleteUser(t *testing.T) {
	var deleted int64
	users := &handlers.MockUserService{
		DeactivateUserFunc: func(ctx context.Context, id int64, actor models.Actor) error {
			deleted = id
			return nil
		},
	}
	handler := newUserHandler(users, nil, nil)
	req := adminRequest(t, "DELETE", "/users/7", nil, map[string]string{"id": "7"})
	w := httptest.NewRecorder()

	handler.DeleteUser(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, int64(7), deleted)
}

func TestAssignRole(t *testing.T) {
	t.Run("uppercases role id", func(t *testing.T) {
		roles := &handlers.MockRoleAssigner{
			AssignRoleFunc: func(ctx context.Context, userID int64, roleID string, actor models.Actor) error {
				assert.Equal(t, int64(7), userID)
				assert.Equal(t, "REPORT_MANAGER", roleID)
				return nil
			},
		}
		handler := newUserHandler(nil, roles, nil)
		req := adminRequest(t, "POST", "/users/7/roles/report_manager", nil, map[string]string{"id": "7", "roleID": "report_manager"})
		w := httptest.NewRecorder()

		handler.AssignRole(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
	})

	t.Run("already assigned", func(t *testing.T) {
		roles := &handlers.MockRoleAssigner{
			AssignRoleFunc: func(ctx context.Context, userID int64, roleID string, actor models.Actor) error {
				return &models.AlreadyAssignedError{UserID: userID, RoleID: roleID}
			},
		}
		handler := newUserHandler(nil, roles, nil)
		req := adminRequest(t, "POST", "/users/7/roles/ADMIN", nil, map[string]string{"id": "7", "roleID": "ADMIN"})
		w := httptest.NewRecorder()

		handler.AssignRole(w, req)

		handlers.AssertErrorResponse(t, w, http.StatusConflict, "conflict")
	})
}

func TestRevokeRole(t *testing.T) {
	roles := &handlers.MockRoleAssigner{
		RevokeRoleFunc: func(ctx context.Context, userID int64, roleID string, actor models.Actor) error {
			return &models.NotFoundError{Resource: "role assignment"}
		},
	}
	handler := newUserHandler(nil, roles, nil)
	req := adminRequest(t, "DELETE", "/users/7/roles/ADMIN", nil, map[string]string{"id": "7", "roleID": "ADMIN"})
	w := httptest.NewRecorder()

	handler.RevokeRole(w, req)

	handlers.AssertErrorResponse(t, w, http.StatusNotFound, "not_found")
}

func TestCapabilities(t *testing.T) {
	caps := &handlers.MockCapabilityResolver{
		EffectiveCapabilitiesFunc: func(ctx context.Context, userID int64, reportID string) (models.Capabilities, error) {
			assert.Equal(t, "RPT-001", reportID)
			return models.Capabilities{View: true, Execute: userID == 7}, nil
		},
	}
	handler := newUserHandler(nil, nil, caps)

	t.Run("self", func(t *testing.T) {
		req := handlers.WithAuthContext(httptest.NewRequest("GET", "/users/me/capabilities/RPT-001", nil), 7, "alice")
		req = handlers.WithChiRouteContext(req, map[string]string{"reportID": "RPT-001"})
		w := httptest.NewRecorder()

		handler.MyCapabilities(w, req)

		var resp handlers.CapabilitiesResponse
		handlers.AssertJSONResponse(t, w, http.StatusOK, &resp)
		assert.Equal(t, int64(7), resp.UserID)
		assert.True(t, resp.Capabilities.View)
		assert.True(t, resp.Capabilities.Execute)
		assert.False(t, resp.Capabilities.Delete)
	})

	t.Run("other user", func(t *testing.T) {
		req := adminRequest(t, "GET", "/users/8/capabilities/RPT-001", nil, map[string]string{"id": "8", "reportID": "RPT-001"})
		w := httptest.NewRecorder()

		handler.UserCapabilities(w, req)

		var resp handlers.CapabilitiesResponse
		handlers.AssertJSONResponse(t, w, http.StatusOK, &resp)
		assert.Equal(t, int64(8), resp.UserID)
		assert.False(t, resp.Capabilities.Execute)
	})

	t.Run("blank report id", func(t *testing.T) {
		req := handlers.WithAuthContext(httptest.NewRequest("GET", "/users/me/capabilities/", nil), 7, "alice")
		req = handlers.WithChiRouteContext(req, map[string]string{"reportID": "  "})
		w := httptest.NewRecorder()

		handler.MyCapabilities(w, req)

		handlers.AssertErrorResponse(t, w, http.StatusBadRequest, "bad_request")
	})
}
