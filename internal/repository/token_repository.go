package repository

import (
	"context"
	"errors"
	"examprep_backend/internal/model"
	"examprep_backend/internal/util"
	"examprep_backend/pkg/logger"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type RefreshTokenRepository struct {
	DB *gorm.DB
}

func NewRefreshTokenRepository(db *gorm.DB) *RefreshTokenRepository {
	return &RefreshTokenRepository{DB: db}
}

func (r *RefreshTokenRepository) Create(ctx context.Context, token *model.RefreshToken) error {
	return conn(ctx, r.DB).Create(token).Error
}

func (r *RefreshTokenRepository) FindByHash(ctx context.Context, hash string) (*model.RefreshToken, error) {
	var token model.RefreshToken
	err := conn(ctx, r.DB).Where("token_hash = ?", hash).First(&token).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrRefreshTokenNotFound
	}
	return &token, err
}

func (r *RefreshTokenRepository) Delete(ctx context.Context, id string) error {
	return conn(ctx, r.DB).Delete(&model.RefreshToken{}, "id = ?", id).Error
}

func (r *RefreshTokenRepository) DeleteByUserID(ctx context.Context, userID string) error {
	return conn(ctx, r.DB).Where("user_id = ?", userID).Delete(&model.RefreshToken{}).Error
}

func (r *RefreshTokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := conn(ctx, r.DB).Where("expires_at < ?", now).Delete(&model.RefreshToken{})
	return res.RowsAffected, res.Error
}

const revokedKeyPrefix = "revoked_token:"

// RevokedTokenRepository 注销令牌黑名单，Redis 可选作为前置缓存
type RevokedTokenRepository struct {
	DB    *gorm.DB
	Cache *redis.Client
}

func NewRevokedTokenRepository(db *gorm.DB, rdb *redis.Client) *RevokedTokenRepository {
	return &RevokedTokenRepository{DB: db, Cache: rdb}
}

func (r *RevokedTokenRepository) Create(ctx context.Context, token *model.RevokedToken) error {
	if token.TokenHash == "" {
		token.TokenHash = util.HashToken(token.Token)
	}
	if err := conn(ctx, r.DB).Create(token).Error; err != nil {
		return err
	}

	if r.Cache != nil {
		ttl := time.Until(token.ExpiresAt)
		if ttl > 0 {
			if err := r.Cache.Set(ctx, revokedKeyPrefix+token.TokenHash, token.UserID, ttl).Err(); err != nil {
				logger.Log.Warn("Failed to cache revoked token", zap.Error(err))
			}
		}
	}
	return nil
}

// IsRevoked 按令牌原文精确匹配
func (r *RevokedTokenRepository) IsRevoked(ctx context.Context, token string) (bool, error) {
	hash := util.HashToken(token)

	if r.Cache != nil {
		n, err := r.Cache.Exists(ctx, revokedKeyPrefix+hash).Result()
		if err == nil && n > 0 {
			return true, nil
		}
		if err != nil {
			logger.Log.Warn("Revocation cache unavailable, falling back to database", zap.Error(err))
		}
	}

	var count int64
	err := conn(ctx, r.DB).Model(&model.RevokedToken{}).
		Where("token_hash = ? AND token = ?", hash, token).
		Count(&count).Error
	return count > 0, err
}

func (r *RevokedTokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := conn(ctx, r.DB).Where("expires_at < ?", now).Delete(&model.RevokedToken{})
	return res.RowsAffected, res.Error
}
