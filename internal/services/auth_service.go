package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"vinotheque/internal/apperror"
	"vinotheque/internal/models"
	"vinotheque/internal/repositories"

	"github.com/dgrijalva/jwt-go"
	"golang.org/x/crypto/bcrypt"
)

const (
	// TokenDuration is how long an issued token stays valid.
	TokenDuration = 7 * 24 * time.Hour
	// PasswordCost is the bcrypt cost factor used for stored passwords.
	PasswordCost = 12

	// UserRegisteredEvent is the routing key published after a registration.
	UserRegisteredEvent = "user.registered"

	msgEmailTaken         = "Email déjà enregistré"
	msgInvalidCredentials = "Identifiants invalides"
	msgTokenMissing       = "Token manquant - Veuillez vous connecter"
	msgTokenInvalid       = "Token invalide"
	msgTokenExpired       = "Token expiré - Veuillez vous reconnecter"
	msgUserNotFound       = "Utilisateur non trouvé"
)

// EventPublisher delivers domain events to interested consumers.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, payload interface{}) error
}

// Claims is the payload carried by an access token.
type Claims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	jwt.StandardClaims
}

// RegisterInput holds the fields accepted at registration.
type RegisterInput struct {
	Email    string
	Password string
	Name     string
}

// AuthResult is returned by a successful registration or login.
type AuthResult struct {
	User  models.PublicUser `json:"utilisateur"`
	Token string            `json:"token"`
}

// UserRegistered is the body of a UserRegisteredEvent.
type UserRegistered struct {
	UserID     string    `json:"userId"`
	Email      string    `json:"email"`
	OccurredAt time.Time `json:"occurredAt"`
}

// AuthService handles business logic for authentication and authorization.
type AuthService struct {
	userRepo   repositories.UserRepository
	events     EventPublisher
	jwtSecret  []byte
	tokenDurat time.Duration
	cost       int
	now        func() time.Time
}

// AuthOption customizes an AuthService.
type AuthOption func(*AuthService)

// WithEventPublisher makes the service announce registrations on p.
func WithEventPublisher(p EventPublisher) AuthOption {
	return func(s *AuthService) { s.events = p }
}

// WithPasswordCost overrides the bcrypt cost factor.
func WithPasswordCost(cost int) AuthOption {
	return func(s *AuthService) { s.cost = cost }
}

// WithClock overrides the time source used to stamp issued tokens.
func WithClock(now func() time.Time) AuthOption {
	return func(s *AuthService) { s.now = now }
}

// NewAuthService creates a new AuthService.
func NewAuthService(userRepo repositories.UserRepository, jwtSecret string, opts ...AuthOption) *AuthService {
	s := &AuthService{
		userRepo:   userRepo,
		jwtSecret:  []byte(jwtSecret),
		tokenDurat: TokenDuration,
		cost:       PasswordCost,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates an account and signs a token for it.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	existing, err := s.userRepo.GetByEmail(ctx, in.Email)
	switch {
	case err == nil && existing != nil:
		return nil, apperror.Conflict(msgEmailTaken)
	case err != nil && !errors.Is(err, repositories.ErrNotFound):
		return nil, fmt.Errorf("failed to look up email: %w", err)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Email:    in.Email,
		Password: string(hashedPassword),
	}
	if in.Name != "" {
		name := in.Name
		user.Name = &name
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, apperror.Conflict(msgEmailTaken)
		}
		return nil, fmt.Errorf("failed to register user: %w", err)
	}

	token, err := s.issueToken(user)
	if err != nil {
		return nil, err
	}
	s.announce(ctx, user)

	return &AuthResult{User: user.Public(), Token: token}, nil
}

// Login checks the credentials and signs a fresh token. An unknown email and
// a wrong password fail identically.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperror.Unauthorized(msgInvalidCredentials)
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if user.Password == "" {
		return nil, apperror.Unauthorized(msgInvalidCredentials)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, apperror.Unauthorized(msgInvalidCredentials)
	}

	token, err := s.issueToken(user)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user.Public(), Token: token}, nil
}

// Profile returns the public fields of the user behind a validated token.
func (s *AuthService) Profile(ctx context.Context, userID string) (*models.PublicUser, error) {
	if userID == "" {
		return nil, apperror.Unauthorized("Non authentifié")
	}
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperror.NotFound(msgUserNotFound)
		}
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	profile := user.Profile()
	return &profile, nil
}

// ValidateToken parses and validates a JWT token, returning the claims if valid.
func (s *AuthService) ValidateToken(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, apperror.Unauthorized(msgTokenMissing)
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		// Validate the alg is what we expect:
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		// jwt-go reports expiry even when the signature does not verify.
		const forged = jwt.ValidationErrorMalformed | jwt.ValidationErrorUnverifiable | jwt.ValidationErrorSignatureInvalid
		var vErr *jwt.ValidationError
		if errors.As(err, &vErr) && vErr.Errors&forged == 0 && vErr.Errors&jwt.ValidationErrorExpired != 0 {
			return nil, apperror.Unauthorized(msgTokenExpired)
		}
		log.Printf("Token validation error: %v", err)
		return nil, apperror.Unauthorized(msgTokenInvalid)
	}
	if !token.Valid || claims.UserID == "" {
		return nil, apperror.Unauthorized(msgTokenInvalid)
	}
	return claims, nil
}

func (s *AuthService) issueToken(user *models.User) (string, error) {
	issuedAt := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: user.ID,
		Email:  user.Email,
		StandardClaims: jwt.StandardClaims{
			IssuedAt:  issuedAt.Unix(),
			ExpiresAt: issuedAt.Add(s.tokenDurat).Unix(),
		},
	})

	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return tokenString, nil
}

func (s *AuthService) announce(ctx context.Context, user *models.User) {
	if s.events == nil {
		return
	}
	event := UserRegistered{UserID: user.ID, Email: user.Email, OccurredAt: s.now().UTC()}
	if err := s.events.Publish(ctx, UserRegisteredEvent, event); err != nil {
		log.Printf("Warning: failed to publish %s for user %s: %v", UserRegisteredEvent, user.ID, err)
	}
}
