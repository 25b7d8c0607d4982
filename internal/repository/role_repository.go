package repository

import (
	"context"
	"errors"
	"examprep_backend/internal/model"
	"examprep_backend/internal/util"

	"gorm.io/gorm"
)

type RoleRepository struct {
	DB *gorm.DB
}

func NewRoleRepository(db *gorm.DB) *RoleRepository {
	return &RoleRepository{DB: db}
}

func (r *RoleRepository) FindByTitle(ctx context.Context, title model.RoleTitle) (*model.Role, error) {
	var role model.Role
	err := conn(ctx, r.DB).Where("title = ?", title).First(&role).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrRoleNotFound
	}
	return &role, err
}
