package repository

import (
	"context"
	"errors"
	"examprep_backend/internal/model"
	"examprep_backend/internal/util"
	"strings"

	"gorm.io/gorm"
)

type UserRepository struct {
	DB *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{DB: db}
}

// UserFilter 管理端用户列表筛选条件
type UserFilter struct {
	Role       model.RoleTitle
	IsActive   *bool
	IsVerified *bool
	IsPremium  *bool
	Search     string
	Page       int
	Limit      int
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	return conn(ctx, r.DB).Omit("Role").Create(user).Error
}

func (r *UserRepository) findOne(ctx context.Context, lock bool, query string, args ...interface{}) (*model.User, error) {
	db := conn(ctx, r.DB)
	if lock {
		db = forUpdate(ctx, db)
	}

	var user model.User
	err := db.Where(query, args...).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	if user.RoleID != "" {
		var role model.Role
		if err := conn(ctx, r.DB).First(&role, "id = ?", user.RoleID).Error; err == nil {
			user.Role = &role
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	return &user, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	return r.findOne(ctx, false, "id = ?", id)
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.findOne(ctx, false, "email = ?", model.NormalizeEmail(email))
}

// FindByIDForUpdate 事务内对账户行加锁
func (r *UserRepository) FindByIDForUpdate(ctx context.Context, id string) (*model.User, error) {
	return r.findOne(ctx, true, "id = ?", id)
}

func (r *UserRepository) FindByEmailForUpdate(ctx context.Context, email string) (*model.User, error) {
	return r.findOne(ctx, true, "email = ?", model.NormalizeEmail(email))
}

func (r *UserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var count int64
	err := conn(ctx, r.DB).Model(&model.User{}).
		Where("email = ?", model.NormalizeEmail(email)).
		Count(&count).Error
	return count > 0, err
}

// Update 整行保存，不级联保存角色
func (r *UserRepository) Update(ctx context.Context, user *model.User) error {
	return conn(ctx, r.DB).Omit("Role").Save(user).Error
}

// Delete 删除账户及其答题记录、令牌
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	return conn(ctx, r.DB).Transaction(func(tx *gorm.DB) error {
		attemptIDs := tx.Model(&model.TestAttempt{}).Select("id").Where("user_id = ?", id)
		if err := tx.Where("test_attempt_id IN (?)", attemptIDs).Delete(&model.UserAnswer{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id).Delete(&model.TestAttempt{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id).Delete(&model.RefreshToken{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id).Delete(&model.RevokedToken{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&model.User{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return util.ErrUserNotFound
		}
		return nil
	})
}

func (r *UserRepository) List(ctx context.Context, f UserFilter) ([]model.User, int64, error) {
	query := conn(ctx, r.DB).Model(&model.User{}).Preload("Role")

	if f.Role != "" {
		query = query.Joins("JOIN roles ON roles.id = users.role_id").Where("roles.title = ?", f.Role)
	}
	if f.IsActive != nil {
		query = query.Where("users.is_active = ?", *f.IsActive)
	}
	if f.IsVerified != nil {
		query = query.Where("users.is_verified = ?", *f.IsVerified)
	}
	if f.IsPremium != nil {
		query = query.Where("users.is_premium = ?", *f.IsPremium)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		query = query.Where("LOWER(users.email) LIKE ? OR LOWER(users.first_name) LIKE ? OR LOWER(users.last_name) LIKE ?", like, like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var users []model.User
	err := query.Scopes(paginate(f.Page, f.Limit)).
		Order("users.created_at DESC").
		Find(&users).Error
	return users, total, err
}
