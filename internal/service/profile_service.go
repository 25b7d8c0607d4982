package service

import (
	"context"
	"examprep_backend/internal/config"
	"examprep_backend/internal/model"
	"examprep_backend/internal/util"
	"examprep_backend/pkg/logger"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

type UpdateProfileInput struct {
	FirstName   string
	LastName    string
	DateOfBirth *time.Time
}

// ProfileService 当前用户资料、修改密码、更换邮箱、头像与注销账户
type ProfileService struct {
	Tx       Transactor
	UserRepo UserStore
	Images   ImageStore
	Mailer   *Mailer
	Cfg      *config.Config
	now      func() time.Time
}

func NewProfileService(tx Transactor, userRepo UserStore, images ImageStore, mailer *Mailer, cfg *config.Config) *ProfileService {
	return &ProfileService{
		Tx:       tx,
		UserRepo: userRepo,
		Images:   images,
		Mailer:   mailer,
		Cfg:      cfg,
		now:      time.Now,
	}
}

func (s *ProfileService) GetProfile(ctx context.Context, caller Caller) (*model.User, error) {
	return s.UserRepo.FindByID(ctx, caller.UserID)
}

func (s *ProfileService) UpdateProfile(ctx context.Context, caller Caller, in UpdateProfileInput) (*model.User, error) {
	var user *model.User
	err := s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		user, err = s.UserRepo.FindByIDForUpdate(ctx, caller.UserID)
		if err != nil {
			return err
		}
		user.FirstName = strings.TrimSpace(in.FirstName)
		user.LastName = strings.TrimSpace(in.LastName)
		if in.DateOfBirth != nil {
			user.DateOfBirth = in.DateOfBirth
		}
		return s.UserRepo.Update(ctx, user)
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *ProfileService) ChangePassword(ctx context.Context, caller Caller, currentPassword, newPassword string) error {
	return s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		user, err := s.UserRepo.FindByIDForUpdate(ctx, caller.UserID)
		if err != nil {
			return err
		}
		if !passwordMatches(user.PasswordHash, currentPassword) {
			return util.ErrInvalidCurrentPassword
		}

		passwordHash, err := hashPassword(newPassword, s.Cfg.Security.BcryptCost)
		if err != nil {
			return err
		}
		user.PasswordHash = passwordHash
		if err := s.UserRepo.Update(ctx, user); err != nil {
			return err
		}

		logger.Log.Info("Password changed", zap.String("userId", user.ID))
		return nil
	})
}

// RequestEmailChange 验证码发送到新邮箱，确认前当前邮箱保持不变
func (s *ProfileService) RequestEmailChange(ctx context.Context, caller Caller, newEmail string) error {
	newEmail = model.NormalizeEmail(newEmail)

	return s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		user, err := s.UserRepo.FindByIDForUpdate(ctx, caller.UserID)
		if err != nil {
			return err
		}
		if user.Email == newEmail {
			return util.ErrSameEmail
		}

		exists, err := s.UserRepo.ExistsByEmail(ctx, newEmail)
		if err != nil {
			return err
		}
		if exists {
			return util.ErrEmailInUse
		}

		now := s.now()
		policy := s.Cfg.Security.EmailChange
		if user.PendingEmail.IsLocked(now) {
			return util.ErrEmailChangeLocked
		}

		code, err := util.GenerateCode()
		if err != nil {
			return err
		}
		user.PendingEmail.Issue(newEmail, code, now, policy.TTL())
		if err := s.UserRepo.Update(ctx, user); err != nil {
			return err
		}

		return s.Mailer.dispatch(ctx, flowEmailChange, templateEmailChange, newEmail, "ExamPrep - Confirm Email Change", map[string]string{
			"code":   code,
			"year":   currentYear(now),
			"expiry": strconv.Itoa(policy.TTLMinutes),
		})
	})
}

// ConfirmEmailChange 验证码正确时将待确认邮箱设为当前邮箱
func (s *ProfileService) ConfirmEmailChange(ctx context.Context, caller Caller, code string) error {
	var failure error

	err := s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		user, err := s.UserRepo.FindByIDForUpdate(ctx, caller.UserID)
		if err != nil {
			return err
		}

		track := &user.PendingEmail
		if !track.Pending() {
			return util.ErrNoPendingEmail
		}

		now := s.now()
		if track.IsLocked(now) {
			return util.ErrEmailChangeLocked
		}
		if track.Expired(now) {
			return util.ErrEmailChangeExpired
		}
		if !secretEquals(track.Code, code) {
			registerFailure(trackEmailChange, user, &track.Lockout, s.Cfg.Security.EmailChange, now)
			failure = util.ErrEmailChangeInvalid
			return s.UserRepo.Update(ctx, user)
		}

		// 确认期间新邮箱可能已被其他账户注册
		exists, err := s.UserRepo.ExistsByEmail(ctx, track.Address)
		if err != nil {
			return err
		}
		if exists {
			return util.ErrEmailInUse
		}

		oldEmail := user.Email
		user.Email = track.Address
		track.Clear()
		if err := s.UserRepo.Update(ctx, user); err != nil {
			return err
		}

		logger.Log.Info("Email changed",
			zap.String("userId", user.ID),
			zap.String("from", logger.MaskEmail(oldEmail)),
			zap.String("to", logger.MaskEmail(user.Email)))
		return nil
	})
	if err != nil {
		return err
	}
	return failure
}

// UploadProfilePicture 新图上传成功后再删除旧图
func (s *ProfileService) UploadProfilePicture(ctx context.Context, caller Caller, data []byte) (string, error) {
	user, err := s.UserRepo.FindByID(ctx, caller.UserID)
	if err != nil {
		return "", err
	}

	imageURL, err := s.Images.Upload(ctx, data, util.FolderProfilePictures)
	if err != nil {
		return "", err
	}

	oldURL := user.ProfilePictureURL
	err = s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		locked, err := s.UserRepo.FindByIDForUpdate(ctx, caller.UserID)
		if err != nil {
			return err
		}
		oldURL = locked.ProfilePictureURL
		locked.ProfilePictureURL = imageURL
		return s.UserRepo.Update(ctx, locked)
	})
	if err != nil {
		s.deleteImage(ctx, imageURL)
		return "", err
	}

	if oldURL != "" {
		s.deleteImage(ctx, oldURL)
	}
	return imageURL, nil
}

func (s *ProfileService) DeleteProfilePicture(ctx context.Context, caller Caller) error {
	var oldURL string
	err := s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		user, err := s.UserRepo.FindByIDForUpdate(ctx, caller.UserID)
		if err != nil {
			return err
		}
		if user.ProfilePictureURL == "" {
			return nil
		}
		oldURL = user.ProfilePictureURL
		user.ProfilePictureURL = ""
		return s.UserRepo.Update(ctx, user)
	})
	if err != nil {
		return err
	}
	if oldURL != "" {
		s.deleteImage(ctx, oldURL)
	}
	return nil
}

func (s *ProfileService) deleteImage(ctx context.Context, url string) {
	if err := s.Images.Delete(ctx, url); err != nil {
		logger.Log.Warn("Failed to delete image", zap.String("url", url), zap.Error(err))
	}
}

// DeleteAccount 需要再次输入密码，级联删除答题记录与令牌
func (s *ProfileService) DeleteAccount(ctx context.Context, caller Caller, password string) error {
	var pictureURL string
	err := s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		user, err := s.UserRepo.FindByIDForUpdate(ctx, caller.UserID)
		if err != nil {
			return err
		}
		if !passwordMatches(user.PasswordHash, password) {
			return util.ErrInvalidPassword
		}
		pictureURL = user.ProfilePictureURL
		return s.UserRepo.Delete(ctx, user.ID)
	})
	if err != nil {
		return err
	}

	if pictureURL != "" {
		s.deleteImage(ctx, pictureURL)
	}
	logger.Log.Info("Account deleted", zap.String("userId", caller.UserID))
	return nil
}
