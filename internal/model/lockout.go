package model

import "time"

// Lockout 单个锁定轨道的失败计数与锁定截止时间
type Lockout struct {
	Attempts    int        `gorm:"not null;default:0" json:"-"`
	LockedUntil *time.Time `json:"-"`
}

// IsLocked 锁定截止时间在 now 之后即视为锁定
func (l *Lockout) IsLocked(now time.Time) bool {
	return l.LockedUntil != nil && l.LockedUntil.After(now)
}

// RegisterFailure 失败计数加一，达到阈值时锁定 lockFor。返回本次是否触发锁定
func (l *Lockout) RegisterFailure(now time.Time, maxAttempts int, lockFor time.Duration) bool {
	l.Attempts++
	if l.Attempts >= maxAttempts {
		until := now.Add(lockFor)
		l.LockedUntil = &until
		return true
	}
	return false
}

func (l *Lockout) Reset() {
	l.Attempts = 0
	l.LockedUntil = nil
}

func expired(expiresAt *time.Time, now time.Time) bool {
	return expiresAt == nil || expiresAt.Before(now)
}

// VerificationTrack 注册邮箱验证码
type VerificationTrack struct {
	Code       string     `gorm:"size:6" json:"-"`
	ExpiresAt  *time.Time `json:"-"`
	LastSentAt *time.Time `json:"-"`
	Lockout
}

func (t *VerificationTrack) Issue(code string, now time.Time, ttl time.Duration) {
	expiresAt := now.Add(ttl)
	sentAt := now
	t.Code = code
	t.ExpiresAt = &expiresAt
	t.LastSentAt = &sentAt
	t.Reset()
}

func (t *VerificationTrack) Expired(now time.Time) bool {
	return expired(t.ExpiresAt, now)
}

// InCooldown 距上次发送不足 cooldown
func (t *VerificationTrack) InCooldown(now time.Time, cooldown time.Duration) bool {
	return t.LastSentAt != nil && t.LastSentAt.Add(cooldown).After(now)
}

func (t *VerificationTrack) Clear() {
	t.Code = ""
	t.ExpiresAt = nil
	t.Reset()
}

// LoginTrack 密码登录失败计数
type LoginTrack struct {
	Lockout
}

// PasswordResetTrack 找回密码令牌
type PasswordResetTrack struct {
	Token     string     `gorm:"size:64" json:"-"`
	ExpiresAt *time.Time `json:"-"`
	Lockout
}

func (t *PasswordResetTrack) Issue(token string, now time.Time, ttl time.Duration) {
	expiresAt := now.Add(ttl)
	t.Token = token
	t.ExpiresAt = &expiresAt
	t.Attempts = 0
}

func (t *PasswordResetTrack) Expired(now time.Time) bool {
	return expired(t.ExpiresAt, now)
}

func (t *PasswordResetTrack) Clear() {
	t.Token = ""
	t.ExpiresAt = nil
	t.Reset()
}

// PendingEmailTrack 待确认的新邮箱
type PendingEmailTrack struct {
	Address   string     `gorm:"size:255" json:"-"`
	Code      string     `gorm:"size:6" json:"-"`
	ExpiresAt *time.Time `json:"-"`
	Lockout
}

func (t *PendingEmailTrack) Issue(address, code string, now time.Time, ttl time.Duration) {
	expiresAt := now.Add(ttl)
	t.Address = address
	t.Code = code
	t.ExpiresAt = &expiresAt
	t.Reset()
}

func (t *PendingEmailTrack) Pending() bool {
	return t.Address != ""
}

func (t *PendingEmailTrack) Expired(now time.Time) bool {
	return expired(t.ExpiresAt, now)
}

func (t *PendingEmailTrack) Clear() {
	t.Address = ""
	t.Code = ""
	t.ExpiresAt = nil
	t.Reset()
}
