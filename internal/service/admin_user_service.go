package service

import (
	"context"
	"errors"
	"examprep_backend/internal/config"
	"examprep_backend/internal/model"
	"examprep_backend/internal/repository"
	"examprep_backend/internal/util"
	"examprep_backend/pkg/logger"
	"strings"
	"time"

	"go.uber.org/zap"
)

type CreateUserInput struct {
	Email     string          `json:"email" binding:"required,email"`
	Password  string          `json:"password" binding:"required,min=8"`
	FirstName string          `json:"firstName" binding:"required"`
	LastName  string          `json:"lastName" binding:"required"`
	Role      model.RoleTitle `json:"role" binding:"required"`
	IsPremium *bool           `json:"isPremium" binding:"required"`
}

// UpdateUserInput 字段为 nil 表示不修改
type UpdateUserInput struct {
	Email     *string          `json:"email" binding:"omitempty,email"`
	FirstName *string          `json:"firstName"`
	LastName  *string          `json:"lastName"`
	Role      *model.RoleTitle `json:"role"`
	IsPremium *bool            `json:"isPremium"`
	IsActive  *bool            `json:"isActive"`
}

// AdminUserService 管理端账户管理
type AdminUserService struct {
	Tx       Transactor
	UserRepo UserStore
	RoleRepo RoleStore
	Cfg      *config.Config
	now      func() time.Time
}

func NewAdminUserService(tx Transactor, userRepo UserStore, roleRepo RoleStore, cfg *config.Config) *AdminUserService {
	return &AdminUserService{
		Tx:       tx,
		UserRepo: userRepo,
		RoleRepo: roleRepo,
		Cfg:      cfg,
		now:      time.Now,
	}
}

func (s *AdminUserService) List(ctx context.Context, filter repository.UserFilter) ([]AdminUserView, int64, error) {
	filter.Role = model.RoleTitle(strings.ToUpper(string(filter.Role)))
	users, total, err := s.UserRepo.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	views := make([]AdminUserView, 0, len(users))
	for i := range users {
		views = append(views, NewAdminUserView(&users[i]))
	}
	return views, total, nil
}

func (s *AdminUserService) Get(ctx context.Context, userID string) (*AdminUserView, error) {
	user, err := s.UserRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	view := NewAdminUserView(user)
	return &view, nil
}

// Create 管理员创建的账户默认已验证
func (s *AdminUserService) Create(ctx context.Context, in CreateUserInput) (*AdminUserView, error) {
	email := model.NormalizeEmail(in.Email)
	passwordHash, err := hashPassword(in.Password, s.Cfg.Security.BcryptCost)
	if err != nil {
		return nil, err
	}

	var user *model.User
	err = s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		exists, err := s.UserRepo.ExistsByEmail(ctx, email)
		if err != nil {
			return err
		}
		if exists {
			return util.ErrEmailInUse
		}

		role, err := s.RoleRepo.FindByTitle(ctx, model.RoleTitle(strings.ToUpper(string(in.Role))))
		if err != nil {
			return err
		}

		user = &model.User{
			RoleID:       role.ID,
			Role:         role,
			Email:        email,
			PasswordHash: passwordHash,
			FirstName:    strings.TrimSpace(in.FirstName),
			LastName:     strings.TrimSpace(in.LastName),
			IsActive:     true,
			IsPremium:    in.IsPremium != nil && *in.IsPremium,
			IsVerified:   true,
		}
		return s.UserRepo.Create(ctx, user)
	})
	if err != nil {
		return nil, err
	}

	logger.Log.Info("User created by admin",
		zap.String("userId", user.ID),
		zap.String("email", logger.MaskEmail(email)))
	view := NewAdminUserView(user)
	return &view, nil
}

func (s *AdminUserService) Update(ctx context.Context, userID string, in UpdateUserInput) (*AdminUserView, error) {
	var user *model.User
	err := s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		user, err = s.UserRepo.FindByIDForUpdate(ctx, userID)
		if err != nil {
			return err
		}

		if in.Email != nil {
			email := model.NormalizeEmail(*in.Email)
			if email != user.Email {
				exists, err := s.UserRepo.ExistsByEmail(ctx, email)
				if err != nil {
					return err
				}
				if exists {
					return util.ErrEmailInUse
				}
				user.Email = email
			}
		}
		if in.FirstName != nil {
			user.FirstName = strings.TrimSpace(*in.FirstName)
		}
		if in.LastName != nil {
			user.LastName = strings.TrimSpace(*in.LastName)
		}
		if in.Role != nil {
			role, err := s.RoleRepo.FindByTitle(ctx, model.RoleTitle(strings.ToUpper(string(*in.Role))))
			if err != nil {
				return err
			}
			user.RoleID = role.ID
			user.Role = role
		}
		if in.IsPremium != nil {
			user.IsPremium = *in.IsPremium
		}
		if in.IsActive != nil {
			user.IsActive = *in.IsActive
		}
		return s.UserRepo.Update(ctx, user)
	})
	if err != nil {
		return nil, err
	}

	view := NewAdminUserView(user)
	return &view, nil
}

// Delete 不能删除自己，答题记录与令牌一并删除
func (s *AdminUserService) Delete(ctx context.Context, caller Caller, userID string) error {
	if caller.UserID == userID {
		return util.ErrCannotDelete
	}
	if err := s.UserRepo.Delete(ctx, userID); err != nil {
		return err
	}
	logger.Log.Info("User deleted by admin",
		zap.String("userId", userID),
		zap.String("adminId", caller.UserID))
	return nil
}

// EnsureAdmin 启动时创建默认管理员，已存在则跳过
func (s *AdminUserService) EnsureAdmin(ctx context.Context, admin config.AdminConfig) error {
	email := model.NormalizeEmail(admin.Email)
	if email == "" || admin.Password == "" {
		logger.Log.Warn("Admin account not configured, skipping seed")
		return nil
	}

	_, err := s.UserRepo.FindByEmail(ctx, email)
	if err == nil {
		logger.Log.Info("Admin user already exists, skipping admin creation")
		return nil
	}
	if !errors.Is(err, util.ErrNotFound) {
		return err
	}

	passwordHash, err := hashPassword(admin.Password, s.Cfg.Security.BcryptCost)
	if err != nil {
		return err
	}

	return s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		role, err := s.RoleRepo.FindByTitle(ctx, model.RoleAdmin)
		if err != nil {
			return err
		}

		now := s.now()
		user := &model.User{
			RoleID:       role.ID,
			Role:         role,
			Email:        email,
			PasswordHash: passwordHash,
			FirstName:    admin.FirstName,
			LastName:     admin.LastName,
			IsActive:     true,
			IsPremium:    true,
			IsVerified:   true,
			LastLoginAt:  &now,
		}
		if err := s.UserRepo.Create(ctx, user); err != nil {
			return err
		}

		logger.Log.Info("Default admin user created", zap.String("email", logger.MaskEmail(email)))
		return nil
	})
}
