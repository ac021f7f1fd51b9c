package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/BradenHooton/reportauth/internal/models"
	"github.com/BradenHooton/reportauth/internal/repositories"
)

// MockUserRepository implements UserRepository for testing
type MockUserRepository struct {
	GetByIDFunc                 func(ctx context.Context, id int64) (*models.User, error)
	GetByUsernameFunc           func(ctx context.Context, username string) (*models.User, error)
	GetByEmailFunc              func(ctx context.Context, email string) (*models.User, error)
	ListFunc                    func(ctx context.Context, limit, offset int) ([]*models.User, error)
	CreateFunc                  func(ctx context.Context, user *models.User, roleIDs []string) (*models.User, error)
	IncrementFailedAttemptsFunc func(ctx context.Context, id int64, threshold int) (models.LockoutUpdate, error)
	RecordSuccessfulLoginFunc   func(ctx context.Context, id int64) (time.Time, error)
	UpdatePasswordFunc          func(ctx context.Context, id int64, upd repositories.PasswordUpdate) error
	SetLockedFunc               func(ctx context.Context, id int64, locked bool, modifiedBy string) (*models.User, error)
	SetActiveFunc               func(ctx context.Context, id int64, active bool, modifiedBy string) (*models.User, error)
	UpdateProfileFunc           func(ctx context.Context, id int64, in models.UpdateProfileInput, modifiedBy string) (*models.User, error)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, &models.NotFoundError{Resource: "user"}
}

func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	if m.GetByUsernameFunc != nil {
		return m.GetByUsernameFunc(ctx, username)
	}
	return nil, &models.NotFoundError{Resource: "user", Key: username}
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, &models.NotFoundError{Resource: "user"}
}

func (m *MockUserRepository) List(ctx context.Context, limit, offset int) ([]*models.User, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, limit, offset)
	}
	return []*models.User{}, nil
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User, roleIDs []string) (*models.User, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user, roleIDs)
	}
	return nil, models.ErrInternalServer
}

func (m *MockUserRepository) IncrementFailedAttempts(ctx context.Context, id int64, threshold int) (models.LockoutUpdate, error) {
	if m.IncrementFailedAttemptsFunc != nil {
		return m.IncrementFailedAttemptsFunc(ctx, id, threshold)
	}
	return models.LockoutUpdate{}, models.ErrInternalServer
}

func (m *MockUserRepository) RecordSuccessfulLogin(ctx context.Context, id int64) (time.Time, error) {
	if m.RecordSuccessfulLoginFunc != nil {
		return m.RecordSuccessfulLoginFunc(ctx, id)
	}
	return time.Now(), nil
}

func (m *MockUserRepository) UpdatePassword(ctx context.Context, id int64, upd repositories.PasswordUpdate) error {
	if m.UpdatePasswordFunc != nil {
		return m.UpdatePasswordFunc(ctx, id, upd)
	}
	return nil
}

func (m *MockUserRepository) SetLocked(ctx context.Context, id int64, locked bool, modifiedBy string) (*models.User, error) {
	if m.SetLockedFunc != nil {
		return m.SetLockedFunc(ctx, id, locked, modifiedBy)
	}
	return nil, models.ErrInternalServer
}

func (m *MockUserRepository) SetActive(ctx context.Context, id int64, active bool, modifiedBy string) (*models.User, error) {
	if m.SetActiveFunc != nil {
		return m.SetActiveFunc(ctx, id, active, modifiedBy)
	}
	return nil, models.ErrInternalServer
}

func (m *MockUserRepository) UpdateProfile(ctx context.Context, id int64, in models.UpdateProfileInput, modifiedBy string) (*models.User, error) {
	if m.UpdateProfileFunc != nil {
		return m.UpdateProfileFunc(ctx, id, in, modifiedBy)
	}
	return nil, models.ErrInternalServer
}

// MockRoleRepository implements RoleRepository for testing
type MockRoleRepository struct {
	GetByIDFunc     func(ctx context.Context, roleID string) (*models.Role, error)
	ListFunc        func(ctx context.Context) ([]models.Role, error)
	CreateFunc      func(ctx context.Context, role *models.Role) (*models.Role, error)
	UpdateFunc      func(ctx context.Context, roleID string, description *string, active *bool) (*models.Role, error)
	AssignFunc      func(ctx context.Context, userID int64, roleID, assignedBy string) error
	RevokeFunc      func(ctx context.Context, userID int64, roleID string) error
	ListForUserFunc func(ctx context.Context, userID int64, activeOnly bool) ([]models.Role, error)
}

func (m *MockRoleRepository) GetByID(ctx context.Context, roleID string) (*models.Role, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, roleID)
	}
	return nil, &models.NotFoundError{Resource: "role", Key: roleID}
}

func (m *MockRoleRepository) List(ctx context.Context) ([]models.Role, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx)
	}
	return []models.Role{}, nil
}

func (m *MockRoleRepository) Create(ctx context.Context, role *models.Role) (*models.Role, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, role)
	}
	return role, nil
}

func (m *MockRoleRepository) Update(ctx context.Context, roleID string, description *string, active *bool) (*models.Role, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, roleID, description, active)
	}
	return nil, &models.NotFoundError{Resource: "role", Key: roleID}
}

func (m *MockRoleRepository) Assign(ctx context.Context, userID int64, roleID, assignedBy string) error {
	if m.AssignFunc != nil {
		return m.AssignFunc(ctx, userID, roleID, assignedBy)
	}
	return nil
}

func (m *MockRoleRepository) Revoke(ctx context.Context, userID int64, roleID string) error {
	if m.RevokeFunc != nil {
		return m.RevokeFunc(ctx, userID, roleID)
	}
	return nil
}

func (m *MockRoleRepository) ListForUser(ctx context.Context, userID int64, activeOnly bool) ([]models.Role, error) {
	if m.ListForUserFunc != nil {
		return m.ListForUserFunc(ctx, userID, activeOnly)
	}
	return []models.Role{}, nil
}

// MockPermissionRepository implements PermissionRepository for testing
type MockPermissionRepository struct {
	UpsertFunc                func(ctx context.Context, p *models.ReportPermission) (*models.ReportPermission, error)
	EffectiveCapabilitiesFunc func(ctx context.Context, userID int64, reportID string) (models.Capabilities, error)
	ListForReportFunc         func(ctx context.Context, reportID string) ([]*models.ReportPermission, error)
	EnsureReportFunc          func(ctx context.Context, reportID, name string) error
}

func (m *MockPermissionRepository) Upsert(ctx context.Context, p *models.ReportPermission) (*models.ReportPermission, error) {
	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, p)
	}
	return p, nil
}

func (m *MockPermissionRepository) EffectiveCapabilities(ctx context.Context, userID int64, reportID string) (models.Capabilities, error) {
	if m.EffectiveCapabilitiesFunc != nil {
		return m.EffectiveCapabilitiesFunc(ctx, userID, reportID)
	}
	return models.Capabilities{}, nil
}

func (m *MockPermissionRepository) ListForReport(ctx context.Context, reportID string) ([]*models.ReportPermission, error) {
	if m.ListForReportFunc != nil {
		return m.ListForReportFunc(ctx, reportID)
	}
	return []*models.ReportPermission{}, nil
}

func (m *MockPermissionRepository) EnsureReport(ctx context.Context, reportID, name string) error {
	if m.EnsureReportFunc != nil {
		return m.EnsureReportFunc(ctx, reportID, name)
	}
	return nil
}

// MockActivityLogRepository implements ActivityLogRepository for testing
type MockActivityLogRepository struct {
	CreateFunc            func(ctx context.Context, entry *models.ActivityLogEntry) (*models.ActivityLogEntry, error)
	GetByUserIDFunc       func(ctx context.Context, userID int64, limit, offset int) ([]*models.ActivityLogEntry, error)
	GetByActivityTypeFunc func(ctx context.Context, activityType string, limit, offset int) ([]*models.ActivityLogEntry, error)
	GetFailedFunc         func(ctx context.Context, limit, offset int) ([]*models.ActivityLogEntry, error)
	CountByUserIDFunc     func(ctx context.Context, userID int64) (int64, error)
	CreatedEntries        []*models.ActivityLogEntry
}

func (m *MockActivityLogRepository) Create(ctx context.Context, entry *models.ActivityLogEntry) (*models.ActivityLogEntry, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, entry)
	}
	m.CreatedEntries = append(m.CreatedEntries, entry)
	return entry, nil
}

func (m *MockActivityLogRepository) GetByUserID(ctx context.Context, userID int64, limit, offset int) ([]*models.ActivityLogEntry, error) {
	if m.GetByUserIDFunc != nil {
		return m.GetByUserIDFunc(ctx, userID, limit, offset)
	}
	return []*models.ActivityLogEntry{}, nil
}

func (m *MockActivityLogRepository) GetByActivityType(ctx context.Context, activityType string, limit, offset int) ([]*models.ActivityLogEntry, error) {
	if m.GetByActivityTypeFunc != nil {
		return m.GetByActivityTypeFunc(ctx, activityType, limit, offset)
	}
	return []*models.ActivityLogEntry{}, nil
}

func (m *MockActivityLogRepository) GetFailed(ctx context.Context, limit, offset int) ([]*models.ActivityLogEntry, error) {
	if m.GetFailedFunc != nil {
		return m.GetFailedFunc(ctx, limit, offset)
	}
	return []*models.ActivityLogEntry{}, nil
}

func (m *MockActivityLogRepository) CountByUserID(ctx context.Context, userID int64) (int64, error) {
	if m.CountByUserIDFunc != nil {
		return m.CountByUserIDFunc(ctx, userID)
	}
	return 0, nil
}

// MockAuditor records every event it is given.
type MockAuditor struct {
	mu     sync.Mutex
	Events []models.ActivityEvent
}

func (m *MockAuditor) Record(_ context.Context, event models.ActivityEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, event)
}

// Count returns how many events of activityType were recorded.
func (m *MockAuditor) Count(activityType string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.Events {
		if e.ActivityType == activityType {
			n++
		}
	}
	return n
}

// Last returns the most recent event.
func (m *MockAuditor) Last() models.ActivityEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Events) == 0 {
		return models.ActivityEvent{}
	}
	return m.Events[len(m.Events)-1]
}

// MockTimingDelay implements TimingDelay for testing
type MockTimingDelay struct {
	WaitFromFunc func(startTime time.Time, succeeded bool)
}

func (m *MockTimingDelay) WaitFrom(startTime time.Time, succeeded bool) {
	if m.WaitFromFunc != nil {
		m.WaitFromFunc(startTime, succeeded)
	}
}

// MemoryStore backs MockUserRepository and MockRoleRepository with maps so
// service tests can run whole flows. It mirrors the database semantics that
// matter to the services: unique usernames and emails, threshold locking and
// one assignment per (user, role).
type MemoryStore struct {
	mu          sync.Mutex
	nextID      int64
	users       map[int64]*models.User
	catalog     map[string]models.Role
	assignments map[int64]map[string]bool
}

func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		nextID:      1,
		users:       map[int64]*models.User{},
		catalog:     map[string]models.Role{},
		assignments: map[int64]map[string]bool{},
	}
	for _, id := range []string{models.RoleAdmin, models.RoleReportManager, models.RoleReportViewer, models.RoleReportExecutor} {
		s.catalog[id] = models.Role{ID: id, Name: id, IsActive: true}
	}
	return s
}

// User returns a copy of the stored user.
func (s *MemoryStore) User(id int64) models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.users[id]
}

func (s *MemoryStore) Users() *MockUserRepository {
	return &MockUserRepository{
		GetByIDFunc: func(_ context.Context, id int64) (*models.User, error) {
			s.mu.Lock()
			defer s.mu.Unlock()
			u, ok := s.users[id]
			if !ok {
				return nil, &models.NotFoundError{Resource: "user", Key: fmt.Sprint(id)}
			}
			cp := *u
			return &cp, nil
		},
		GetByUsernameFunc: func(_ context.Context, username string) (*models.User, error) {
			s.mu.Lock()
			defer s.mu.Unlock()
			for _, u := range s.users {
				if u.Username == username {
					cp := *u
					return &cp, nil
				}
			}
			return nil, &models.NotFoundError{Resource: "user", Key: username}
		},
		GetByEmailFunc: func(_ context.Context, email string) (*models.User, error) {
			s.mu.Lock()
			defer s.mu.Unlock()
			for _, u := range s.users {
				if u.Email == email {
					cp := *u
					return &cp, nil
				}
			}
			return nil, &models.NotFoundError{Resource: "user"}
		},
		ListFunc: func(_ context.Context, limit, offset int) ([]*models.User, error) {
			s.mu.Lock()
			defer s.mu.Unlock()
			out := make([]*models.User, 0, len(s.users))
			for _, u := range s.users {
				cp := *u
				out = append(out, &cp)
			}
			sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
			if offset >= len(out) {
				return []*models.User{}, nil
			}
			out = out[offset:]
			if len(out) > limit {
				out = out[:limit]
			}
			return out, nil
		},
		CreateFunc: func(_ context.Context, user *models.User, roleIDs []string) (*models.User, error) {
			s.mu.Lock()
			defer s.mu.Unlock()
			for _, id := range roleIDs {
				if _, ok := s.catalog[id]; !ok {
					return nil, &models.NotFoundError{Resource: "role", Key: id}
				}
			}
			for _, u := range s.users {
				if u.Username == user.Username {
					return nil, &models.DuplicateError{Field: "username"}
				}
				if u.Email == user.Email {
					return nil, &models.DuplicateError{Field: "email"}
				}
			}
			cp := *user
			cp.ID = s.nextID
			s.nextID++
			cp.IsActive = true
			cp.CreatedDate = time.Now()
			cp.PasswordChangedDate = cp.CreatedDate
			s.users[cp.ID] = &cp
			s.assignments[cp.ID] = map[string]bool{}
			for _, id := range roleIDs {
				s.assignments[cp.ID][id] = true
			}
			out := cp
			return &out, nil
		},
		IncrementFailedAttemptsFunc: func(_ context.Context, id int64, threshold int) (models.LockoutUpdate, error) {
			s.mu.Lock()
			defer s.mu.Unlock()
			u, ok := s.users[id]
			if !ok {
				return models.LockoutUpdate{}, &models.NotFoundError{Resource: "user"}
			}
			u.FailedLoginAttempts++
			u.IsLocked = u.IsLocked || u.FailedLoginAttempts >= threshold
			return models.LockoutUpdate{FailedAttempts: u.FailedLoginAttempts, Locked: u.IsLocked}, nil
		},
		RecordSuccessfulLoginFunc: func(_ context.Context, id int64) (time.Time, error) {
			s.mu.Lock()
			defer s.mu.Unlock()
			u, ok := s.users[id]
			if !ok {
				return time.Time{}, &models.NotFoundError{Resource: "user"}
			}
			now := time.Now()
			u.FailedLoginAttempts = 0
			u.LastLoginDate = &now
			return now, nil
		},
		UpdatePasswordFunc: func(_ context.Context, id int64, upd repositories.PasswordUpdate) error {
			s.mu.Lock()
			defer s.mu.Unlock()
			u, ok := s.users[id]
			if !ok {
				return &models.NotFoundError{Resource: "user"}
			}
			u.PasswordHash = upd.Hash
			u.PasswordChangedDate = time.Now()
			u.MustChangePassword = upd.MustChangePassword
			if upd.ResetFailures {
				u.FailedLoginAttempts = 0
			}
			return nil
		},
		SetLockedFunc: func(_ context.Context, id int64, locked bool, modifiedBy string) (*models.User, error) {
			s.mu.Lock()
			defer s.mu.Unlock()
			u, ok := s.users[id]
			if !ok {
				return nil, &models.NotFoundError{Resource: "user"}
			}
			u.IsLocked = locked
			if !locked {
				u.FailedLoginAttempts = 0
			}
			u.ModifiedBy = &modifiedBy
			cp := *u
			return &cp, nil
		},
		SetActiveFunc: func(_ context.Context, id int64, active bool, modifiedBy string) (*models.User, error) {
			s.mu.Lock()
			defer s.mu.Unlock()
			u, ok := s.users[id]
			if !ok {
				return nil, &models.NotFoundError{Resource: "user"}
			}
			u.IsActive = active
			u.ModifiedBy = &modifiedBy
			cp := *u
			return &cp, nil
		},
		UpdateProfileFunc: func(_ context.Context, id int64, in models.UpdateProfileInput, modifiedBy string) (*models.User, error) {
			s.mu.Lock()
			defer s.mu.Unlock()
			u, ok := s.users[id]
			if !ok {
				return nil, &models.NotFoundError{Resource: "user"}
			}
			if in.Email != nil {
				for _, other := range s.users {
					if other.ID != id && other.Email == *in.Email {
						return nil, &models.DuplicateError{Field: "email"}
					}
				}
				u.Email = *in.Email
			}
			if in.FirstName != nil {
				u.FirstName = in.FirstName
			}
			if in.LastName != nil {
				u.LastName = in.LastName
			}
			u.ModifiedBy = &modifiedBy
			cp := *u
			return &cp, nil
		},
	}
}

func (s *MemoryStore) Roles() *MockRoleRepository {
	return &MockRoleRepository{
		GetByIDFunc: func(_ context.Context, roleID string) (*models.Role, error) {
			s.mu.Lock()
			defer s.mu.Unlock()
			r, ok := s.catalog[roleID]
			if !ok {
				return nil, &models.NotFoundError{Resource: "role", Key: roleID}
			}
			return &r, nil
		},
		ListFunc: func(_ context.Context) ([]models.Role, error) {
			s.mu.Lock()
			defer s.mu.Unlock()
			out := make([]models.Role, 0, len(s.catalog))
			for _, r := range s.catalog {
				out = append(out, r)
			}
			sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
			return out, nil
		},
		CreateFunc: func(_ context.Context, role *models.Role) (*models.Role, error) {
			s.mu.Lock()
			defer s.mu.Unlock()
			if _, ok := s.catalog[role.ID]; ok {
				return nil, &models.DuplicateError{Field: "role_id"}
			}
			s.catalog[role.ID] = *role
			cp := *role
			return &cp, nil
		},
		UpdateFunc: func(_ context.Context, roleID string, description *string, active *bool) (*models.Role, error) {
			s.mu.Lock()
			defer s.mu.Unlock()
			r, ok := s.catalog[roleID]
			if !ok {
				return nil, &models.NotFoundError{Resource: "role", Key: roleID}
			}
			if description != nil {
				r.Description = description
			}
			if active != nil {
				r.IsActive = *active
			}
			s.catalog[roleID] = r
			return &r, nil
		},
		AssignFunc: func(_ context.Context, userID int64, roleID, _ string) error {
			s.mu.Lock()
			defer s.mu.Unlock()
			if _, ok := s.users[userID]; !ok {
				return &models.NotFoundError{Resource: "user", Key: fmt.Sprint(userID)}
			}
			if _, ok := s.catalog[roleID]; !ok {
				return &models.NotFoundError{Resource: "role", Key: roleID}
			}
			if s.assignments[userID][roleID] {
				return &models.AlreadyAssignedError{UserID: userID, RoleID: roleID}
			}
			s.assignments[userID][roleID] = true
			return nil
		},
		RevokeFunc: func(_ context.Context, userID int64, roleID string) error {
			s.mu.Lock()
			defer s.mu.Unlock()
			if !s.assignments[userID][roleID] {
				return &models.NotFoundError{Resource: "role assignment"}
			}
			delete(s.assignments[userID], roleID)
			return nil
		},
		ListForUserFunc: func(_ context.Context, userID int64, activeOnly bool) ([]models.Role, error) {
			s.mu.Lock()
			defer s.mu.Unlock()
			out := make([]models.Role, 0)
			for id := range s.assignments[userID] {
				r := s.catalog[id]
				if activeOnly && !r.IsActive {
					continue
				}
				out = append(out, r)
			}
			sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
			return out, nil
		},
	}
}
