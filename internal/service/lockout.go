package service

import (
	"examprep_backend/internal/config"
	"examprep_backend/internal/model"
	"examprep_backend/pkg/logger"
	"examprep_backend/pkg/monitoring"
	"time"

	"go.uber.org/zap"
)

// 锁定轨道名称，用于日志与指标
const (
	trackVerification  = "verification"
	trackLogin         = "login"
	trackPasswordReset = "password_reset"
	trackEmailChange   = "email_change"
)

// registerFailure 记录一次失败，达到阈值时上报锁定
func registerFailure(track string, user *model.User, lockout *model.Lockout, policy config.LockoutPolicy, now time.Time) {
	if !lockout.RegisterFailure(now, policy.MaxAttempts, policy.LockDuration()) {
		return
	}
	monitoring.LockoutCounter.WithLabelValues(track).Inc()
	logger.Log.Warn("Lockout triggered",
		zap.String("track", track),
		zap.String("userId", user.ID),
		zap.Int("attempts", lockout.Attempts),
		zap.Time("lockedUntil", *lockout.LockedUntil))
}
