package service

import (
	"context"
	"examprep_backend/internal/config"
	"examprep_backend/internal/model"
	"examprep_backend/internal/util"
	"time"
)

// TokenPair 登录、验证、刷新接口返回的令牌
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	TokenType    string `json:"tokenType"`
	ExpiresIn    int64  `json:"expiresIn"`
}

// TokenService 签发访问令牌与刷新令牌。刷新令牌仅以摘要形式入库
type TokenService struct {
	RefreshRepo RefreshTokenStore
	Cfg         config.JWTConfig
	now         func() time.Time
}

func NewTokenService(refreshRepo RefreshTokenStore, cfg config.JWTConfig) *TokenService {
	return &TokenService{
		RefreshRepo: refreshRepo,
		Cfg:         cfg,
		now:         time.Now,
	}
}

// IssuePair 签发访问令牌并新建一条刷新令牌
func (s *TokenService) IssuePair(ctx context.Context, user *model.User) (*TokenPair, error) {
	refresh := util.GenerateOpaqueToken()
	if err := s.RefreshRepo.Create(ctx, &model.RefreshToken{
		UserID:    user.ID,
		TokenHash: util.HashToken(refresh),
		ExpiresAt: s.now().Add(s.Cfg.RefreshTokenTTL()),
	}); err != nil {
		return nil, err
	}
	return s.IssueAccess(user, refresh)
}

// IssueAccess 仅签发访问令牌，刷新令牌原样返回
func (s *TokenService) IssueAccess(user *model.User, refreshToken string) (*TokenPair, error) {
	access, _, err := util.GenerateJWT(user, s.Cfg, s.now())
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    s.Cfg.AccessTokenTTLSeconds,
	}, nil
}
