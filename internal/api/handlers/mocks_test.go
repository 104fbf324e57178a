package handlers_test

import (
	"context"

	"github.com/stretchr/testify/mock"

	"tvicl/server/internal/models"
	"tvicl/server/internal/services"
	"tvicl/server/internal/storage"
	"tvicl/server/internal/utils"
)

// --- Mocks ---

// MockUserService
type MockUserService struct {
	mock.Mock
}

func userResult(args mock.Arguments) (*models.User, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func sessionResult(args mock.Arguments) (*services.Session, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.Session), args.Error(1)
}

func (m *MockUserService) Register(ctx context.Context, in services.RegisterInput) (*services.Registration, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.Registration), args.Error(1)
}
func (m *MockUserService) VerifyEmail(ctx context.Context, token string) (*models.User, error) {
	return userResult(m.Called(ctx, token))
}
func (m *MockUserService) ResendVerification(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}
func (m *MockUserService) Login(ctx context.Context, email, password string) (*services.Session, error) {
	return sessionResult(m.Called(ctx, email, password))
}
func (m *MockUserService) Refresh(ctx context.Context, refreshToken string) (*services.Session, error) {
	return sessionResult(m.Called(ctx, refreshToken))
}
func (m *MockUserService) IssueSession(ctx context.Context, user *models.User) (*services.Session, error) {
	return sessionResult(m.Called(ctx, user))
}
func (m *MockUserService) Logout(ctx context.Context, userID utils.SixID) error {
	return m.Called(ctx, userID).Error(0)
}
func (m *MockUserService) ForgotPassword(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}
func (m *MockUserService) ResetPassword(ctx context.Context, token, password string) error {
	return m.Called(ctx, token, password).Error(0)
}
func (m *MockUserService) ChangePassword(ctx context.Context, userID utils.SixID, current, next string) error {
	return m.Called(ctx, userID, current, next).Error(0)
}
func (m *MockUserService) FindByID(ctx context.Context, userID utils.SixID) (*models.User, error) {
	return userResult(m.Called(ctx, userID))
}
func (m *MockUserService) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return userResult(m.Called(ctx, email))
}
func (m *MockUserService) UpdateProfile(ctx context.Context, userID utils.SixID, update services.ProfileUpdate) (*models.User, error) {
	return userResult(m.Called(ctx, userID, update))
}
func (m *MockUserService) UpdateRole(ctx context.Context, userID utils.SixID, update services.RoleUpdate) (*models.User, error) {
	return userResult(m.Called(ctx, userID, update))
}
func (m *MockUserService) SaveProperty(ctx context.Context, userID, propertyID utils.SixID) (bool, error) {
	args := m.Called(ctx, userID, propertyID)
	return args.Bool(0), args.Error(1)
}

// MockPropertyService
type MockPropertyService struct {
	mock.Mock
}

func propertyResult(args mock.Arguments) (*models.Property, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Property), args.Error(1)
}

func pageResult(args mock.Arguments) (*services.PropertyPage, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.PropertyPage), args.Error(1)
}

func (m *MockPropertyService) CreateProperty(ctx context.Context, ownerID utils.SixID, details *models.PropertyDetails) (*models.Property, error) {
	return propertyResult(m.Called(ctx, ownerID, details))
}
func (m *MockPropertyService) FindPropertyByID(ctx context.Context, id utils.SixID) (*models.Property, error) {
	return propertyResult(m.Called(ctx, id))
}
func (m *MockPropertyService) FindPropertyAnyState(ctx context.Context, id utils.SixID) (*models.Property, error) {
	return propertyResult(m.Called(ctx, id))
}
func (m *MockPropertyService) FindByPropertyID(ctx context.Context, propertyID string) (*models.Property, error) {
	return propertyResult(m.Called(ctx, propertyID))
}
func (m *MockPropertyService) FindBySlug(ctx context.Context, slug string) (*models.Property, error) {
	return propertyResult(m.Called(ctx, slug))
}
func (m *MockPropertyService) ListByOwner(ctx context.Context, ownerID utils.SixID, page services.Pagination) (*services.PropertyPage, error) {
	return pageResult(m.Called(ctx, ownerID, page))
}
func (m *MockPropertyService) ListPendingApproval(ctx context.Context, page services.Pagination) (*services.PropertyPage, error) {
	return pageResult(m.Called(ctx, page))
}
func (m *MockPropertyService) UpdateProperty(ctx context.Context, id, actorID utils.SixID, patch map[string]any) (*models.Property, error) {
	return propertyResult(m.Called(ctx, id, actorID, patch))
}
func (m *MockPropertyService) SoftDeleteProperty(ctx context.Context, id, actorID utils.SixID) error {
	return m.Called(ctx, id, actorID).Error(0)
}
func (m *MockPropertyService) RestoreProperty(ctx context.Context, id, actorID utils.SixID) (*models.Property, error) {
	return propertyResult(m.Called(ctx, id, actorID))
}
func (m *MockPropertyService) SetVerification(ctx context.Context, id, actorID utils.SixID, approved bool, reason string) (*models.Property, error) {
	return propertyResult(m.Called(ctx, id, actorID, approved, reason))
}
func (m *MockPropertyService) IncrementCounter(ctx context.Context, id utils.SixID, counter models.PropertyCounter) error {
	return m.Called(ctx, id, counter).Error(0)
}

// MockListingQueryService
type MockListingQueryService struct {
	mock.Mock
}

func (m *MockListingQueryService) Search(ctx context.Context, filters services.SearchFilters, page services.Pagination) (*services.PropertyPage, error) {
	return pageResult(m.Called(ctx, filters, page))
}
func (m *MockListingQueryService) TopViewed(ctx context.Context, limit int) ([]models.Property, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Property), args.Error(1)
}
func (m *MockListingQueryService) CountByListingType(ctx context.Context) ([]services.ListingTypeCount, error) {
	args := m.Called(ctx)
	return args.Get(0).([]services.ListingTypeCount), args.Error(1)
}
func (m *MockListingQueryService) AveragePriceByType(ctx context.Context) ([]services.AveragePrice, error) {
	args := m.Called(ctx)
	return args.Get(0).([]services.AveragePrice), args.Error(1)
}
func (m *MockListingQueryService) CountByState(ctx context.Context) ([]services.StateCount, error) {
	args := m.Called(ctx)
	return args.Get(0).([]services.StateCount), args.Error(1)
}
func (m *MockListingQueryService) Recent(ctx context.Context, limit int) ([]models.Property, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]models.Property), args.Error(1)
}
func (m *MockListingQueryService) Trending(ctx context.Context) ([]services.ScoredProperty, error) {
	args := m.Called(ctx)
	return args.Get(0).([]services.ScoredProperty), args.Error(1)
}
func (m *MockListingQueryService) Recommendations(ctx context.Context, userID utils.SixID) ([]services.ScoredProperty, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]services.ScoredProperty), args.Error(1)
}
func (m *MockListingQueryService) Related(ctx context.Context, id utils.SixID) ([]models.Property, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Property), args.Error(1)
}

// MockInteractionService
type MockInteractionService struct {
	mock.Mock
}

func (m *MockInteractionService) Record(ctx context.Context, userID, propertyID utils.SixID, action models.InteractionAction, searchQuery string) error {
	return m.Called(ctx, userID, propertyID, action, searchQuery).Error(0)
}
func (m *MockInteractionService) RecentViewedPropertyIDs(ctx context.Context, userID utils.SixID, limit int) ([]utils.SixID, error) {
	args := m.Called(ctx, userID, limit)
	return args.Get(0).([]utils.SixID), args.Error(1)
}

// MockProfileService
type MockProfileService struct {
	mock.Mock
}

func (m *MockProfileService) AddAgentProfile(ctx context.Context, userID utils.SixID, profile *models.AgentProfile) (*models.AgentProfile, error) {
	args := m.Called(ctx, userID, profile)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AgentProfile), args.Error(1)
}
func (m *MockProfileService) AddEstateProfile(ctx context.Context, userID utils.SixID, profile *models.EstateProfile) (*models.EstateProfile, error) {
	args := m.Called(ctx, userID, profile)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.EstateProfile), args.Error(1)
}
func (m *MockProfileService) GetAgentProfile(ctx context.Context, id utils.SixID) (*models.AgentProfile, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AgentProfile), args.Error(1)
}
func (m *MockProfileService) GetEstateProfile(ctx context.Context, id utils.SixID) (*models.EstateProfile, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.EstateProfile), args.Error(1)
}
func (m *MockProfileService) UpdateAgentProfile(ctx context.Context, userID utils.SixID, patch map[string]any) (*models.AgentProfile, error) {
	args := m.Called(ctx, userID, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AgentProfile), args.Error(1)
}
func (m *MockProfileService) UpdateEstateProfile(ctx context.Context, userID utils.SixID, patch map[string]any) (*models.EstateProfile, error) {
	args := m.Called(ctx, userID, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.EstateProfile), args.Error(1)
}

// MockS3Storage
type MockS3Storage struct {
	mock.Mock
}

func (m *MockS3Storage) GeneratePresignedPutURL(ctx context.Context, userID utils.SixID, filename, contentType string) (*storage.PresignedUpload, error) {
	args := m.Called(ctx, userID, filename, contentType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.PresignedUpload), args.Error(1)
}
func (m *MockS3Storage) GetObject(ctx context.Context, key string) ([]byte, string, error) {
	args := m.Called(ctx, key)
	return args.Get(0).([]byte), args.String(1), args.Error(2)
}
func (m *MockS3Storage) PutObject(ctx context.Context, key string, data []byte, contentType string) error {
	return m.Called(ctx, key, data, contentType).Error(0)
}
func (m *MockS3Storage) PublicURL(key string) string {
	return m.Called(key).String(0)
}

// MockMediaQueue
type MockMediaQueue struct {
	mock.Mock
}

func (m *MockMediaQueue) EnqueueMediaProcess(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}
