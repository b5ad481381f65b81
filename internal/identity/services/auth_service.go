package services

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jgirmay/pyguide/internal/common/errors"
	"github.com/jgirmay/pyguide/internal/identity/models"
	"github.com/jgirmay/pyguide/internal/identity/repository"
	"github.com/jgirmay/pyguide/internal/realtime"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AuthService registers and signs in users and publishes auth-state changes.
type AuthService struct {
	users      *repository.UserRepository
	tokens     *TokenManager
	bus        realtime.Bus
	log        *zap.Logger
	bcryptCost int
}

func NewAuthService(users *repository.UserRepository, tokens *TokenManager, bus realtime.Bus, log *zap.Logger) *AuthService {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthService{
		users:  users,
		tokens: tokens,
		bus:    bus,
		log:    log.With(zap.String("service", "auth")),
	}
}

// WithBcryptCost lowers the hashing cost; tests use bcrypt.MinCost.
func (s *AuthService) WithBcryptCost(cost int) *AuthService {
	s.bcryptCost = cost
	return s
}

func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error) {
	email := normalizeEmail(req.Email)
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, errors.Conflict("email already registered")
	} else if !stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("lookup email: %w", err)
	}

	hash, err := HashPassword(req.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		DisplayName:  strings.TrimSpace(req.DisplayName),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.log.Info("user registered", zap.String("user_id", user.ID))
	return s.issue(ctx, user)
}

func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	user, err := s.users.GetByEmail(ctx, normalizeEmail(req.Email))
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Unauthorized("invalid email or password")
	}
	if err != nil {
		return nil, fmt.Errorf("lookup email: %w", err)
	}

	ok, err := VerifyPassword(user.PasswordHash, req.Password)
	if err != nil || !ok {
		return nil, errors.Unauthorized("invalid email or password")
	}

	now := time.Now().UTC()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		s.log.Warn("update last login", zap.String("user_id", user.ID), zap.Error(err))
	}
	user.LastLogin = &now
	return s.issue(ctx, user)
}

// Logout only announces the state change; tokens expire on their own.
func (s *AuthService) Logout(ctx context.Context, userID string) {
	s.announce(ctx, models.AuthState{UserID: userID, Authenticated: false, At: time.Now().UTC()})
}

// Me returns the current user with the live admin flag.
func (s *AuthService) Me(ctx context.Context, userID string) (*models.UserResponse, error) {
	user, err := s.users.GetByID(ctx, userID)
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.NotFound("user")
	}
	if err != nil {
		return nil, err
	}
	admin, err := s.users.IsAdmin(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.IsAdmin = admin
	resp := user.Response()
	return &resp, nil
}

// Subscribe streams auth-state changes of userID until the returned func is called.
// Only states announced after the call are delivered; the bus is asynchronous
// and may still hold older ones. Slow readers miss intermediate states.
func (s *AuthService) Subscribe(userID string) (<-chan models.AuthState, func()) {
	ch := make(chan models.AuthState, 8)
	if s.bus == nil {
		return ch, func() {}
	}

	since := time.Now().UTC()
	unsubscribe := s.bus.Subscribe(func(e realtime.Event) {
		if e.Type != realtime.EventAuthChanged || e.UserID != userID || e.Timestamp.Before(since) {
			return
		}
		var state models.AuthState
		if err := json.Unmarshal(e.Data, &state); err != nil {
			return
		}
		select {
		case ch <- state:
		default:
		}
	})
	return ch, unsubscribe
}

func (s *AuthService) issue(ctx context.Context, user *models.User) (*models.AuthResponse, error) {
	token, expiresAt, err := s.tokens.GenerateToken(user.ID, user.Email)
	if err != nil {
		return nil, err
	}
	s.announce(ctx, models.AuthState{
		UserID:        user.ID,
		DisplayName:   user.DisplayName,
		Authenticated: true,
		At:            time.Now().UTC(),
	})
	return &models.AuthResponse{Token: token, ExpiresAt: expiresAt, User: user.Response()}, nil
}

func (s *AuthService) announce(ctx context.Context, state models.AuthState) {
	if s.bus == nil {
		return
	}
	e, err := realtime.NewEvent(realtime.EventAuthChanged, state.UserID, state)
	if err != nil {
		return
	}
	if err := s.bus.Publish(ctx, e); err != nil {
		s.log.Warn("publish auth state", zap.String("user_id", state.UserID), zap.Error(err))
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
