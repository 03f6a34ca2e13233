package services_test

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"testing"
	"time"

	"vinotheque/internal/apperror"
	"vinotheque/internal/models"
	"vinotheque/internal/repositories"
	"vinotheque/internal/services"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testJWTSecret = "test_jwt_secret"

// MockUserRepository is a mock implementation of repositories.UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	if user.ID == "" {
		user.ID = "user-new"
	}
	return args.Error(0)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

// MockPublisher is a mock implementation of services.EventPublisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, routingKey string, payload interface{}) error {
	args := m.Called(ctx, routingKey, payload)
	return args.Error(0)
}

// TestMain is used to setup test environment
func TestMain(m *testing.M) {
	log.SetOutput(io.Discard)
	os.Exit(m.Run())
}

func newAuthService(repo repositories.UserRepository, opts ...services.AuthOption) *services.AuthService {
	opts = append([]services.AuthOption{services.WithPasswordCost(bcrypt.MinCost)}, opts...)
	return services.NewAuthService(repo, testJWTSecret, opts...)
}

func requireStatus(t *testing.T, err error, status int) {
	t.Helper()
	require.Error(t, err)
	apiErr, ok := apperror.As(err)
	require.True(t, ok, "expected an APIError, got %v", err)
	assert.Equal(t, status, apiErr.Status)
}

func notFound(what string) error {
	return fmt.Errorf("user %s: %w", what, repositories.ErrNotFound)
}

func TestAuthService_Register(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockUserRepository)
	publisher := new(MockPublisher)
	authService := newAuthService(mockRepo, services.WithEventPublisher(publisher))

	mockRepo.On("GetByEmail", ctx, "test@example.com").Return(nil, notFound("test@example.com")).Once()
	mockRepo.On("Create", ctx, mock.AnythingOfType("*models.User")).Return(nil).Once()
	publisher.On("Publish", ctx, services.UserRegisteredEvent, mock.AnythingOfType("services.UserRegistered")).Return(nil).Once()

	result, err := authService.Register(ctx, services.RegisterInput{
		Email:    "test@example.com",
		Password: "password123",
		Name:     "Camille",
	})
	require.NoError(t, err)
	assert.Equal(t, "user-new", result.User.ID)
	assert.Equal(t, "test@example.com", result.User.Email)
	require.NotNil(t, result.User.Name)
	assert.Equal(t, "Camille", *result.User.Name)
	assert.NotEmpty(t, result.Token)

	created := mockRepo.Calls[1].Arguments.Get(1).(*models.User)
	assert.NotEqual(t, "password123", created.Password)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(created.Password), []byte("password123")))

	claims, err := authService.ValidateToken(result.Token)
	require.NoError(t, err)
	assert.Equal(t, "user-new", claims.UserID)
	assert.Equal(t, "test@example.com", claims.Email)
	assert.Equal(t, int64(services.TokenDuration/time.Second), claims.ExpiresAt-claims.IssuedAt)

	mockRepo.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

func TestAuthService_Register_EmptyNameIsNull(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockUserRepository)
	authService := newAuthService(mockRepo)

	mockRepo.On("GetByEmail", ctx, "anon@example.com").Return(nil, notFound("anon@example.com")).Once()
	mockRepo.On("Create", ctx, mock.MatchedBy(func(u *models.User) bool { return u.Name == nil })).Return(nil).Once()

	result, err := authService.Register(ctx, services.RegisterInput{Email: "anon@example.com", Password: "password123"})
	require.NoError(t, err)
	assert.Nil(t, result.User.Name)
	mockRepo.AssertExpectations(t)
}

func TestAuthService_Register_Conflict(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockUserRepository)
	authService := newAuthService(mockRepo)

	// existing account found up front
	mockRepo.On("GetByEmail", ctx, "test@example.com").Return(&models.User{ID: "1"}, nil).Once()
	_, err := authService.Register(ctx, services.RegisterInput{Email: "test@example.com", Password: "password123"})
	requireStatus(t, err, http.StatusConflict)
	assert.Contains(t, err.Error(), "Email déjà enregistré")

	// account created concurrently, caught by the unique index
	mockRepo.On("GetByEmail", ctx, "race@example.com").Return(nil, notFound("race@example.com")).Once()
	mockRepo.On("Create", ctx, mock.AnythingOfType("*models.User")).
		Return(fmt.Errorf("user with email race@example.com: %w", repositories.ErrDuplicate)).Once()
	_, err = authService.Register(ctx, services.RegisterInput{Email: "race@example.com", Password: "password123"})
	requireStatus(t, err, http.StatusConflict)

	mockRepo.AssertExpectations(t)
}

func TestAuthService_Register_PublishFailureIsIgnored(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockUserRepository)
	publisher := new(MockPublisher)
	authService := newAuthService(mockRepo, services.WithEventPublisher(publisher))

	mockRepo.On("GetByEmail", ctx, "test@example.com").Return(nil, notFound("test@example.com")).Once()
	mockRepo.On("Create", ctx, mock.AnythingOfType("*models.User")).Return(nil).Once()
	publisher.On("Publish", ctx, services.UserRegisteredEvent, mock.Anything).Return(fmt.Errorf("channel closed")).Once()

	result, err := authService.Register(ctx, services.RegisterInput{Email: "test@example.com", Password: "password123"})
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)
	publisher.AssertExpectations(t)
}

func TestAuthService_Register_StoreError(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockUserRepository)
	authService := newAuthService(mockRepo)

	mockRepo.On("GetByEmail", ctx, "test@example.com").Return(nil, fmt.Errorf("connection reset")).Once()
	_, err := authService.Register(ctx, services.RegisterInput{Email: "test@example.com", Password: "password123"})
	require.Error(t, err)
	_, isAPI := apperror.As(err)
	assert.False(t, isAPI)
}

func TestAuthService_Login(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockUserRepository)
	authService := newAuthService(mockRepo)

	hashedPassword, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	name := "Camille"
	user := &models.User{
		ID:       "user-123",
		Email:    "test@example.com",
		Name:     &name,
		Password: string(hashedPassword),
	}

	// Test successful login
	mockRepo.On("GetByEmail", ctx, user.Email).Return(user, nil).Once()
	result, err := authService.Login(ctx, "test@example.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, models.PublicUser{ID: "user-123", Email: "test@example.com", Name: &name}, result.User)

	parsedToken, err := jwt.Parse(result.Token, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(testJWTSecret), nil
	})
	require.NoError(t, err)
	claims, ok := parsedToken.Claims.(jwt.MapClaims)
	assert.True(t, ok)
	assert.Equal(t, user.ID, claims["userId"])
	assert.Equal(t, user.Email, claims["email"])

	// Test invalid credentials (wrong password)
	mockRepo.On("GetByEmail", ctx, user.Email).Return(user, nil).Once()
	_, wrongPassword := authService.Login(ctx, "test@example.com", "wrongpassword")
	requireStatus(t, wrongPassword, http.StatusUnauthorized)

	// Test invalid credentials (user not found)
	mockRepo.On("GetByEmail", ctx, "nobody@example.com").Return(nil, notFound("nobody@example.com")).Once()
	_, unknownEmail := authService.Login(ctx, "nobody@example.com", "password123")
	requireStatus(t, unknownEmail, http.StatusUnauthorized)

	assert.Equal(t, wrongPassword.Error(), unknownEmail.Error())
	mockRepo.AssertExpectations(t)
}

func TestAuthService_Login_AccountWithoutPassword(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockUserRepository)
	authService := newAuthService(mockRepo)

	mockRepo.On("GetByEmail", ctx, "oauth@example.com").Return(&models.User{ID: "u", Email: "oauth@example.com"}, nil).Once()
	_, err := authService.Login(ctx, "oauth@example.com", "")
	requireStatus(t, err, http.StatusUnauthorized)
}

func TestAuthService_Profile(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockUserRepository)
	authService := newAuthService(mockRepo)

	image := "avatars/u1.png"
	mockRepo.On("GetByID", ctx, "u1").Return(&models.User{ID: "u1", Email: "a@example.com", Image: &image, Password: "hash"}, nil).Once()
	profile, err := authService.Profile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", profile.ID)
	assert.Equal(t, &image, profile.Image)

	mockRepo.On("GetByID", ctx, "gone").Return(nil, notFound("gone")).Once()
	_, err = authService.Profile(ctx, "gone")
	requireStatus(t, err, http.StatusNotFound)

	_, err = authService.Profile(ctx, "")
	requireStatus(t, err, http.StatusUnauthorized)
	mockRepo.AssertExpectations(t)
}

func TestAuthService_ValidateToken(t *testing.T) {
	authService := newAuthService(new(MockUserRepository))

	sign := func(secret string, claims jwt.Claims) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
		require.NoError(t, err)
		return s
	}

	valid := sign(testJWTSecret, jwt.MapClaims{
		"userId": "user-123",
		"email":  "test@example.com",
		"exp":    jwt.TimeFunc().Add(time.Hour).Unix(),
	})
	claims, err := authService.ValidateToken(valid)
	require.NoError(t, err)
	assert.Equal(t, "user-123", claims.UserID)
	assert.Equal(t, "test@example.com", claims.Email)

	_, err = authService.ValidateToken("")
	requireStatus(t, err, http.StatusUnauthorized)
	assert.Contains(t, err.Error(), "Token manquant")

	_, err = authService.ValidateToken("invalid.token.string")
	requireStatus(t, err, http.StatusUnauthorized)
	assert.Equal(t, "Token invalide", err.Error())

	_, err = authService.ValidateToken(sign("another_secret", jwt.MapClaims{"userId": "user-123"}))
	requireStatus(t, err, http.StatusUnauthorized)
	assert.Equal(t, "Token invalide", err.Error())

	_, err = authService.ValidateToken(sign(testJWTSecret, jwt.MapClaims{"email": "x@example.com"}))
	requireStatus(t, err, http.StatusUnauthorized)

	expired := sign(testJWTSecret, jwt.MapClaims{
		"userId": "user-123",
		"exp":    jwt.TimeFunc().Add(-time.Hour).Unix(),
	})
	_, err = authService.ValidateToken(expired)
	requireStatus(t, err, http.StatusUnauthorized)
	assert.Contains(t, err.Error(), "Token expiré")

	expiredWrongKey := sign("another_secret", jwt.MapClaims{
		"userId": "user-123",
		"exp":    jwt.TimeFunc().Add(-time.Hour).Unix(),
	})
	_, err = authService.ValidateToken(expiredWrongKey)
	requireStatus(t, err, http.StatusUnauthorized)
	assert.Equal(t, "Token invalide", err.Error())

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"userId": "user-123"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = authService.ValidateToken(unsigned)
	requireStatus(t, err, http.StatusUnauthorized)
}

func TestAuthService_TokenExpiresAfterSevenDays(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockUserRepository)
	hashedPassword, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	user := &models.User{ID: "user-123", Email: "test@example.com", Password: string(hashedPassword)}
	mockRepo.On("GetByEmail", ctx, user.Email).Return(user, nil)

	issuedLongAgo := newAuthService(mockRepo, services.WithClock(func() time.Time {
		return time.Now().Add(-services.TokenDuration - time.Minute)
	}))
	old, err := issuedLongAgo.Login(ctx, user.Email, "password123")
	require.NoError(t, err)

	_, err = issuedLongAgo.ValidateToken(old.Token)
	requireStatus(t, err, http.StatusUnauthorized)
	assert.Contains(t, err.Error(), "Token expiré")

	issuedRecently := newAuthService(mockRepo, services.WithClock(func() time.Time {
		return time.Now().Add(-services.TokenDuration + time.Minute)
	}))
	recent, err := issuedRecently.Login(ctx, user.Email, "password123")
	require.NoError(t, err)
	_, err = issuedRecently.ValidateToken(recent.Token)
	assert.NoError(t, err)
}
