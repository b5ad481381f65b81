package services

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/jgirmay/pyguide/internal/common/database"
	"github.com/jgirmay/pyguide/internal/common/errors"
	"github.com/jgirmay/pyguide/internal/identity/models"
	"github.com/jgirmay/pyguide/internal/identity/repository"
	"github.com/jgirmay/pyguide/internal/realtime"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RoleService manages the admin role. It satisfies middleware.AdminChecker.
type RoleService struct {
	users *repository.UserRepository
	bus   realtime.Bus
	log   *zap.Logger
}

func NewRoleService(users *repository.UserRepository, bus realtime.Bus, log *zap.Logger) *RoleService {
	if log == nil {
		log = zap.NewNop()
	}
	return &RoleService{users: users, bus: bus, log: log.With(zap.String("service", "roles"))}
}

func (s *RoleService) IsAdmin(ctx context.Context, userID string) (bool, error) {
	return s.users.IsAdmin(ctx, userID)
}

// ListUsers returns all users sorted by display name.
func (s *RoleService) ListUsers(ctx context.Context) ([]models.Public, error) {
	users, err := s.users.ListPublic(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (s *RoleService) Promote(ctx context.Context, actorID, targetID string) error {
	return s.set(ctx, actorID, targetID, true)
}

// Demote refuses to remove the last administrator.
func (s *RoleService) Demote(ctx context.Context, actorID, targetID string) error {
	return s.set(ctx, actorID, targetID, false)
}

// AuditTrail pages through the role changes of target. pageSize is capped at 100.
func (s *RoleService) AuditTrail(ctx context.Context, targetID string, page, pageSize int) (*database.PaginatedResult, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	rows, total, err := s.users.AuditTrail(ctx, targetID, page, pageSize)
	if err != nil {
		return nil, fmt.Errorf("audit trail: %w", err)
	}

	result := &database.PaginatedResult{Total: total, Page: page, PageSize: pageSize, Data: rows}
	result.Calculate()
	return result, nil
}

func (s *RoleService) set(ctx context.Context, actorID, targetID string, admin bool) error {
	err := s.users.SetAdmin(ctx, actorID, targetID, admin)
	switch {
	case stderrors.Is(err, repository.ErrLastAdmin):
		return errors.LastAdmin()
	case stderrors.Is(err, gorm.ErrRecordNotFound):
		return errors.NotFound("user")
	case err != nil:
		return errors.Retryable("role change failed", err.Error())
	}

	s.log.Info("role changed",
		zap.String("actor_id", actorID),
		zap.String("target_id", targetID),
		zap.Bool("admin", admin),
	)
	if s.bus != nil {
		if e, err := realtime.NewEvent(realtime.EventRoleChanged, targetID, map[string]bool{"is_admin": admin}); err == nil {
			if err := s.bus.Publish(ctx, e); err != nil {
				s.log.Warn("publish role change", zap.Error(err))
			}
		}
	}
	return nil
}
