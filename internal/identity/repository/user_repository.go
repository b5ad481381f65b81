package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jgirmay/pyguide/internal/common/database"
	"github.com/jgirmay/pyguide/internal/identity/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrLastAdmin is returned when a demotion would leave no administrator.
var ErrLastAdmin = errors.New("cannot demote the last administrator")

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts the user together with its role row.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return err
		}
		return tx.Create(&models.Role{UserID: user.ID, IsAdmin: user.IsAdmin}).Error
	})
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("last_login", at).Error
}

// TotalPoints returns 0 for unknown users.
func (r *UserRepository) TotalPoints(ctx context.Context, id string) (int, error) {
	var user models.User
	err := r.db.WithContext(ctx).Select("total_points").Where("id = ?", id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return user.TotalPoints, nil
}

// ListPublic returns every user ordered by display name.
func (r *UserRepository) ListPublic(ctx context.Context) ([]models.Public, error) {
	var users []models.Public
	err := r.db.WithContext(ctx).Model(&models.User{}).
		Select("id, display_name, total_points, is_admin").
		Order("display_name ASC, id ASC").
		Scan(&users).Error
	return users, err
}

// IsAdmin reads the role row; a missing row means not admin.
func (r *UserRepository) IsAdmin(ctx context.Context, id string) (bool, error) {
	var role models.Role
	err := r.db.WithContext(ctx).Where("user_id = ?", id).First(&role).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return role.IsAdmin, nil
}

func (r *UserRepository) CountAdmins(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Role{}).Where("is_admin = ?", true).Count(&n).Error
	return n, err
}

// SetAdmin writes the role row, the user mirror flag and an audit row in one
// transaction. Demoting the last admin fails with ErrLastAdmin.
func (r *UserRepository) SetAdmin(ctx context.Context, actorID, targetID string, admin bool) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Where("id = ?", targetID).First(&user).Error; err != nil {
			return err
		}

		if !admin {
			var n int64
			if err := tx.Model(&models.Role{}).
				Where("is_admin = ? AND user_id <> ?", true, targetID).
				Count(&n).Error; err != nil {
				return err
			}
			if n == 0 {
				return ErrLastAdmin
			}
		}

		now := time.Now().UTC()
		role := models.Role{UserID: targetID, IsAdmin: admin, UpdatedBy: actorID, UpdatedAt: now}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"is_admin", "updated_by", "updated_at"}),
		}).Create(&role).Error; err != nil {
			return err
		}

		if err := tx.Model(&models.User{}).Where("id = ?", targetID).Update("is_admin", admin).Error; err != nil {
			return err
		}

		action := models.ActionDemote
		if admin {
			action = models.ActionPromote
		}
		details, _ := json.Marshal(map[string]interface{}{
			"previous": user.IsAdmin,
			"next":     admin,
			"email":    user.Email,
		})
		return tx.Create(&models.AdminAudit{
			ID:        uuid.NewString(),
			ActorID:   actorID,
			TargetID:  targetID,
			Action:    action,
			Details:   datatypes.JSON(details),
			CreatedAt: now,
		}).Error
	})
}

// AuditTrail returns one page of the role changes for target, newest first,
// and the total number of changes.
func (r *UserRepository) AuditTrail(ctx context.Context, targetID string, page, pageSize int) ([]models.AdminAudit, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.AdminAudit{}).Where("target_id = ?", targetID).Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.AdminAudit
	err := q.Order("created_at DESC").Order("id").
		Offset(database.Offset(page, pageSize)).
		Limit(pageSize).
		Find(&rows).Error
	return rows, total, err
}
