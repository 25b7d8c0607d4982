package model

import (
	"strings"
	"time"
)

// User 账户及其安全状态。四条锁定轨道互不共享计数，持久化在同一行
type User struct {
	UUIDBase
	RoleID            string     `gorm:"type:varchar(36);not null;index" json:"roleId"`
	Role              *Role      `gorm:"foreignKey:RoleID" json:"role,omitempty"`
	Email             string     `gorm:"size:255;not null;uniqueIndex" json:"email"`
	PasswordHash      string     `gorm:"size:255;not null" json:"-"`
	FirstName         string     `gorm:"size:100;not null" json:"firstName"`
	LastName          string     `gorm:"size:100;not null" json:"lastName"`
	DateOfBirth       *time.Time `json:"dateOfBirth,omitempty"`
	ProfilePictureURL string     `gorm:"size:500" json:"profilePictureUrl,omitempty"`
	IsActive          bool       `gorm:"not null;default:true" json:"isActive"`
	IsPremium         bool       `gorm:"not null;default:false" json:"isPremium"`
	IsVerified        bool       `gorm:"not null;default:false" json:"isVerified"`
	LastLoginAt       *time.Time `json:"lastLoginAt,omitempty"`
	DeviceID          *string    `gorm:"size:255" json:"-"`

	Verification  VerificationTrack  `gorm:"embedded;embeddedPrefix:verification_" json:"-"`
	Login         LoginTrack         `gorm:"embedded;embeddedPrefix:login_" json:"-"`
	PasswordReset PasswordResetTrack `gorm:"embedded;embeddedPrefix:password_reset_" json:"-"`
	PendingEmail  PendingEmailTrack  `gorm:"embedded;embeddedPrefix:pending_email_" json:"-"`
}

func (u *User) RoleTitle() RoleTitle {
	if u.Role == nil {
		return ""
	}
	return u.Role.Title
}

func (u *User) IsAdmin() bool {
	return u.RoleTitle() == RoleAdmin
}

// BindDevice 绑定登录设备，空设备号视为解绑
func (u *User) BindDevice(deviceID string) {
	if deviceID == "" {
		u.DeviceID = nil
		return
	}
	u.DeviceID = &deviceID
}

// DeviceConflict 已绑定设备且与本次不同
func (u *User) DeviceConflict(deviceID string) bool {
	return u.DeviceID != nil && *u.DeviceID != deviceID
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
