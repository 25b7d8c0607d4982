package model

import "time"

// RefreshToken 仅保存令牌的 SHA-256 摘要
type RefreshToken struct {
	UUIDBase
	UserID    string    `gorm:"type:varchar(36);not null;index" json:"userId"`
	TokenHash string    `gorm:"size:64;not null;uniqueIndex" json:"-"`
	ExpiresAt time.Time `gorm:"not null;index" json:"expiresAt"`
}

func (t *RefreshToken) Expired(now time.Time) bool {
	return t.ExpiresAt.Before(now)
}

// RevokedToken 注销的访问令牌，过期时间与令牌本身一致
type RevokedToken struct {
	UUIDBase
	UserID    string    `gorm:"type:varchar(36);not null;index" json:"userId"`
	Token     string    `gorm:"type:text;not null" json:"-"`
	TokenHash string    `gorm:"size:64;not null;uniqueIndex" json:"-"`
	ExpiresAt time.Time `gorm:"not null;index" json:"expiresAt"`
}
