package service

import (
	"context"
	"examprep_backend/internal/config"
	"examprep_backend/pkg/logger"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const cleanupTimeout = 2 * time.Minute

// CleanupService 定时清理过期的刷新令牌与注销黑名单
type CleanupService struct {
	RefreshRepo RefreshTokenStore
	RevokedRepo RevokedTokenStore
	Cfg         config.CleanupConfig
	cron        *cron.Cron
	now         func() time.Time
}

func NewCleanupService(refreshRepo RefreshTokenStore, revokedRepo RevokedTokenStore, cfg config.CleanupConfig) *CleanupService {
	return &CleanupService{
		RefreshRepo: refreshRepo,
		RevokedRepo: revokedRepo,
		Cfg:         cfg,
		now:         time.Now,
	}
}

func (s *CleanupService) Start() error {
	if !s.Cfg.Enabled {
		logger.Log.Info("Token cleanup disabled")
		return nil
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	if _, err := c.AddFunc(s.Cfg.RefreshTokenSpec, func() { s.run("refresh_tokens", s.PurgeRefreshTokens) }); err != nil {
		return err
	}
	if _, err := c.AddFunc(s.Cfg.RevokedTokenSpec, func() { s.run("revoked_tokens", s.PurgeRevokedTokens) }); err != nil {
		return err
	}

	s.cron = c
	c.Start()
	logger.Log.Info("Token cleanup scheduled",
		zap.String("refreshSpec", s.Cfg.RefreshTokenSpec),
		zap.String("revokedSpec", s.Cfg.RevokedTokenSpec))
	return nil
}

// Stop 等待正在执行的任务结束
func (s *CleanupService) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}

func (s *CleanupService) run(job string, fn func(ctx context.Context) (int64, error)) {
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()

	n, err := fn(ctx)
	if err != nil {
		logger.Log.Error("Token cleanup failed", zap.String("job", job), zap.Error(err))
		return
	}
	if n > 0 {
		logger.Log.Info("Token cleanup finished", zap.String("job", job), zap.Int64("deleted", n))
	}
}

func (s *CleanupService) PurgeRefreshTokens(ctx context.Context) (int64, error) {
	return s.RefreshRepo.DeleteExpired(ctx, s.now())
}

func (s *CleanupService) PurgeRevokedTokens(ctx context.Context) (int64, error) {
	return s.RevokedRepo.DeleteExpired(ctx, s.now())
}
