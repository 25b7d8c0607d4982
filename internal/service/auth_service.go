package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"examprep_backend/internal/config"
	"examprep_backend/internal/model"
	"examprep_backend/internal/util"
	"examprep_backend/pkg/logger"
	"examprep_backend/pkg/monitoring"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type SignupInput struct {
	Email       string
	Password    string
	FirstName   string
	LastName    string
	DateOfBirth *time.Time
}

type LoginInput struct {
	Email    string
	Password string
	DeviceID string
}

type ConfirmResetInput struct {
	Email       string
	Token       string
	NewPassword string
}

// AuthService 注册、验证、登录、令牌与找回密码。
// 每个操作在单个事务内对账户行加锁后读改写
type AuthService struct {
	Tx          Transactor
	UserRepo    UserStore
	RoleRepo    RoleStore
	RefreshRepo RefreshTokenStore
	RevokedRepo RevokedTokenStore
	Tokens      *TokenService
	Mailer      *Mailer
	Cfg         *config.Config

	bypassEmail atomic.Value
	now         func() time.Time
}

func NewAuthService(
	tx Transactor,
	userRepo UserStore,
	roleRepo RoleStore,
	refreshRepo RefreshTokenStore,
	revokedRepo RevokedTokenStore,
	tokens *TokenService,
	mailer *Mailer,
	cfg *config.Config,
) *AuthService {
	s := &AuthService{
		Tx:          tx,
		UserRepo:    userRepo,
		RoleRepo:    roleRepo,
		RefreshRepo: refreshRepo,
		RevokedRepo: revokedRepo,
		Tokens:      tokens,
		Mailer:      mailer,
		Cfg:         cfg,
		now:         time.Now,
	}
	s.SetDeviceBypassEmail(cfg.Security.DeviceBypassEmail)
	return s
}

// SetDeviceBypassEmail 配置热更新时调用
func (s *AuthService) SetDeviceBypassEmail(email string) {
	s.bypassEmail.Store(strings.TrimSpace(email))
}

func (s *AuthService) isDeviceBypass(email string) bool {
	bypass, _ := s.bypassEmail.Load().(string)
	return bypass != "" && strings.EqualFold(bypass, email)
}

func (s *AuthService) hashPassword(password string) (string, error) {
	return hashPassword(password, s.Cfg.Security.BcryptCost)
}

func hashPassword(password string, cost int) (string, error) {
	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func passwordMatches(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func secretEquals(stored, given string) bool {
	return stored != "" && subtle.ConstantTimeCompare([]byte(stored), []byte(given)) == 1
}

func currentYear(now time.Time) string {
	return strconv.Itoa(now.Year())
}

func (s *AuthService) sendVerification(ctx context.Context, flow emailFlow, user *model.User) error {
	policy := s.Cfg.Security.Verification
	return s.Mailer.dispatch(ctx, flow, templateVerification, user.Email, "ExamPrep - Email Verification", map[string]string{
		"code":   user.Verification.Code,
		"year":   currentYear(s.now()),
		"expiry": strconv.Itoa(policy.TTLMinutes),
	})
}

// Signup 创建未验证账户并发送验证码，发信失败不影响注册结果
func (s *AuthService) Signup(ctx context.Context, in SignupInput) error {
	email := model.NormalizeEmail(in.Email)
	passwordHash, err := s.hashPassword(in.Password)
	if err != nil {
		return err
	}

	return s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		exists, err := s.UserRepo.ExistsByEmail(ctx, email)
		if err != nil {
			return err
		}
		if exists {
			return util.ErrEmailInUse
		}

		role, err := s.RoleRepo.FindByTitle(ctx, model.RoleCustomer)
		if err != nil {
			return err
		}

		code, err := util.GenerateCode()
		if err != nil {
			return err
		}

		user := &model.User{
			RoleID:       role.ID,
			Role:         role,
			Email:        email,
			PasswordHash: passwordHash,
			FirstName:    strings.TrimSpace(in.FirstName),
			LastName:     strings.TrimSpace(in.LastName),
			DateOfBirth:  in.DateOfBirth,
			IsActive:     true,
		}
		user.Verification.Issue(code, s.now(), s.Cfg.Security.Verification.TTL())

		if err := s.UserRepo.Create(ctx, user); err != nil {
			return err
		}

		logger.Log.Info("User registered",
			zap.String("userId", user.ID),
			zap.String("email", logger.MaskEmail(email)))

		return s.sendVerification(ctx, flowSignup, user)
	})
}

// Verify 校验注册验证码。已验证的账户直接返回新令牌
func (s *AuthService) Verify(ctx context.Context, email, code string) (*TokenPair, error) {
	var pair *TokenPair
	var failure error

	err := s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		user, err := s.UserRepo.FindByEmailForUpdate(ctx, email)
		if err != nil {
			return err
		}

		if user.IsVerified {
			pair, err = s.Tokens.IssuePair(ctx, user)
			return err
		}

		now := s.now()
		track := &user.Verification
		if track.IsLocked(now) {
			return util.ErrVerificationLocked
		}
		if track.Expired(now) {
			return util.ErrVerificationExpired
		}
		if !secretEquals(track.Code, code) {
			registerFailure(trackVerification, user, &track.Lockout, s.Cfg.Security.Verification, now)
			failure = util.ErrVerificationInvalid
			return s.UserRepo.Update(ctx, user)
		}

		track.Clear()
		user.IsVerified = true
		if err := s.UserRepo.Update(ctx, user); err != nil {
			return err
		}

		logger.Log.Info("User verified", zap.String("userId", user.ID))
		pair, err = s.Tokens.IssuePair(ctx, user)
		return err
	})
	if err != nil {
		return nil, err
	}
	if failure != nil {
		return nil, failure
	}
	return pair, nil
}

// Resend 重新发送验证码，冷却期内保持原验证码不变
func (s *AuthService) Resend(ctx context.Context, email string) error {
	return s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		user, err := s.UserRepo.FindByEmailForUpdate(ctx, email)
		if err != nil {
			return err
		}
		if user.IsVerified {
			return util.ErrAccountVerified
		}

		now := s.now()
		if user.Verification.InCooldown(now, s.Cfg.Security.ResendCooldown()) {
			return util.ErrResendCooldown
		}

		code, err := util.GenerateCode()
		if err != nil {
			return err
		}
		user.Verification.Issue(code, now, s.Cfg.Security.Verification.TTL())
		if err := s.UserRepo.Update(ctx, user); err != nil {
			return err
		}

		return s.sendVerification(ctx, flowResend, user)
	})
}

// Login 锁定检查先于密码校验；未知邮箱不计数
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*TokenPair, error) {
	var pair *TokenPair
	var failure error

	err := s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		user, err := s.UserRepo.FindByEmailForUpdate(ctx, in.Email)
		if errors.Is(err, util.ErrNotFound) {
			return util.ErrBadCredentials
		}
		if err != nil {
			return err
		}

		now := s.now()
		track := &user.Login
		if track.IsLocked(now) {
			return util.ErrLoginLocked
		}

		if !passwordMatches(user.PasswordHash, in.Password) {
			registerFailure(trackLogin, user, &track.Lockout, s.Cfg.Security.Login, now)
			failure = util.ErrBadCredentials
			return s.UserRepo.Update(ctx, user)
		}

		if !user.IsVerified {
			return util.ErrAccountNotVerified
		}
		if !user.IsActive {
			return util.ErrAccountInactive
		}

		if s.isDeviceBypass(user.Email) {
			logger.Log.Debug("Device check bypassed", zap.String("userId", user.ID))
		} else {
			if user.DeviceConflict(in.DeviceID) {
				return util.ErrDeviceInUse
			}
			user.BindDevice(in.DeviceID)
		}

		track.Reset()
		user.LastLoginAt = &now
		if err := s.UserRepo.Update(ctx, user); err != nil {
			return err
		}

		pair, err = s.Tokens.IssuePair(ctx, user)
		return err
	})

	result := "success"
	switch {
	case errors.Is(err, util.ErrAccountLocked):
		result = "locked"
	case err != nil || failure != nil:
		result = "failure"
	}
	monitoring.LoginCounter.WithLabelValues(result).Inc()

	if err != nil {
		return nil, err
	}
	if failure != nil {
		return nil, failure
	}
	return pair, nil
}

// Refresh 刷新令牌不轮换，过期的刷新令牌在此处删除
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	var pair *TokenPair
	var failure error

	err := s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		stored, err := s.RefreshRepo.FindByHash(ctx, util.HashToken(refreshToken))
		if err != nil {
			return err
		}

		if stored.Expired(s.now()) {
			failure = util.ErrRefreshTokenExpired
			return s.RefreshRepo.Delete(ctx, stored.ID)
		}

		user, err := s.UserRepo.FindByID(ctx, stored.UserID)
		if err != nil {
			return err
		}
		pair, err = s.Tokens.IssueAccess(user, refreshToken)
		return err
	})
	if err != nil {
		return nil, err
	}
	if failure != nil {
		return nil, failure
	}
	return pair, nil
}

// Logout 注销当前访问令牌，删除全部刷新令牌并解绑设备
func (s *AuthService) Logout(ctx context.Context, caller Caller) error {
	return s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		user, err := s.UserRepo.FindByIDForUpdate(ctx, caller.UserID)
		if err != nil {
			return err
		}

		if caller.Token != "" {
			expiresAt := caller.ExpiresAt
			if expiresAt.IsZero() {
				expiresAt = s.now().Add(s.Cfg.JWT.AccessTokenTTL())
			}
			if err := s.RevokedRepo.Create(ctx, &model.RevokedToken{
				UserID:    user.ID,
				Token:     caller.Token,
				ExpiresAt: expiresAt,
			}); err != nil {
				return err
			}
		}

		if err := s.RefreshRepo.DeleteByUserID(ctx, user.ID); err != nil {
			return err
		}

		if !s.isDeviceBypass(user.Email) {
			user.BindDevice("")
		}
		if err := s.UserRepo.Update(ctx, user); err != nil {
			return err
		}

		logger.Log.Info("User logged out", zap.String("userId", user.ID))
		return nil
	})
}

// Me 当前登录用户信息
func (s *AuthService) Me(ctx context.Context, caller Caller) (*model.User, error) {
	return s.UserRepo.FindByID(ctx, caller.UserID)
}

// RequestPasswordReset 未知邮箱返回 NotFound
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	return s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		user, err := s.UserRepo.FindByEmailForUpdate(ctx, email)
		if err != nil {
			return err
		}

		now := s.now()
		policy := s.Cfg.Security.PasswordReset
		if user.PasswordReset.IsLocked(now) {
			return util.ErrPasswordResetLocked
		}

		token := util.GenerateOpaqueToken()
		user.PasswordReset.Issue(token, now, policy.TTL())
		if err := s.UserRepo.Update(ctx, user); err != nil {
			return err
		}

		return s.Mailer.dispatch(ctx, flowPasswordReset, templatePasswordReset, user.Email, "ExamPrep - Password Reset", map[string]string{
			"token":  token,
			"year":   currentYear(now),
			"expiry": strconv.Itoa(policy.TTLMinutes),
			"link":   s.resetLink(user.Email, token),
		})
	})
}

func (s *AuthService) resetLink(email, token string) string {
	base := strings.TrimRight(s.Cfg.Email.FrontendURL, "/")
	if base == "" {
		return ""
	}
	q := url.Values{}
	q.Set("email", email)
	q.Set("token", token)
	return base + "/reset-password?" + q.Encode()
}

// ConfirmPasswordReset 令牌错误计数并可能锁定，成功后清空重置状态
func (s *AuthService) ConfirmPasswordReset(ctx context.Context, in ConfirmResetInput) error {
	var failure error

	err := s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		user, err := s.UserRepo.FindByEmailForUpdate(ctx, in.Email)
		if err != nil {
			return err
		}

		now := s.now()
		track := &user.PasswordReset
		if track.IsLocked(now) {
			return util.ErrPasswordResetLocked
		}
		if !secretEquals(track.Token, in.Token) {
			registerFailure(trackPasswordReset, user, &track.Lockout, s.Cfg.Security.PasswordReset, now)
			failure = util.ErrPasswordResetInvalid
			return s.UserRepo.Update(ctx, user)
		}
		if track.Expired(now) {
			return util.ErrPasswordResetExpired
		}

		passwordHash, err := s.hashPassword(in.NewPassword)
		if err != nil {
			return err
		}
		user.PasswordHash = passwordHash
		track.Clear()
		if err := s.UserRepo.Update(ctx, user); err != nil {
			return err
		}

		logger.Log.Info("Password reset completed", zap.String("userId", user.ID))
		return nil
	})
	if err != nil {
		return err
	}
	return failure
}
