package util

import "errors"

// 错误类别，调用方通过 errors.Is 判断
var (
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidCode        = errors.New("invalid code")
	ErrInvalidToken       = errors.New("invalid token")
	ErrLocked             = errors.New("locked")
	ErrAccountLocked      = errors.New("account locked")
	ErrExpired            = errors.New("expired")
	ErrPremiumRequired    = errors.New("premium required")
	ErrNotPublished       = errors.New("not published")
	ErrNotCompleted       = errors.New("not completed")
	ErrDeviceConflict     = errors.New("device conflict")
	ErrNotVerified        = errors.New("not verified")
	ErrAlreadyVerified    = errors.New("already verified")
	ErrCooldown           = errors.New("cooldown")
	ErrForbidden          = errors.New("forbidden")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrEmailDelivery      = errors.New("email delivery failed")
	ErrInvalidFile        = errors.New("invalid file")
)

// 具体错误，消息返回给客户端
var (
	ErrUserNotFound         = kindError(ErrNotFound, "User not found")
	ErrRoleNotFound         = kindError(ErrNotFound, "Role not found")
	ErrTestNotFound         = kindError(ErrNotFound, "Test not found")
	ErrQuestionNotFound     = kindError(ErrNotFound, "Question not found")
	ErrAttemptNotFound      = kindError(ErrNotFound, "Test attempt not found")
	ErrNoAttemptInProgress  = kindError(ErrNotFound, "Test attempt is not in progress")
	ErrRefreshTokenNotFound = kindError(ErrNotFound, "Invalid refresh token")
	ErrNoPendingEmail       = kindError(ErrNotFound, "Pending email mismatch")

	ErrEmailInUse   = kindError(ErrConflict, "Email already in use")
	ErrSameEmail    = kindError(ErrInvalidInput, "New email must be different")
	ErrCannotDelete = kindError(ErrInvalidInput, "Cannot delete your own account")

	ErrBadCredentials         = kindError(ErrInvalidCredentials, "Invalid credentials")
	ErrInvalidCurrentPassword = kindError(ErrInvalidCredentials, "Invalid current password")
	ErrInvalidPassword        = kindError(ErrInvalidCredentials, "Invalid password")
	ErrAccountNotVerified     = kindError(ErrNotVerified, "Account not verified")
	ErrLoginLocked            = kindError(ErrAccountLocked, "Account locked. Try later")
	ErrAccountInactive        = kindError(ErrForbidden, "Account is disabled")
	ErrDeviceInUse            = kindError(ErrDeviceConflict, "This account is already in use on another device. Log out there first")

	ErrVerificationLocked  = kindError(ErrLocked, "Verification locked. Try later")
	ErrVerificationExpired = kindError(ErrExpired, "Verification code expired")
	ErrVerificationInvalid = kindError(ErrInvalidCode, "Invalid verification code")
	ErrAccountVerified     = kindError(ErrAlreadyVerified, "Account already verified")
	ErrResendCooldown      = kindError(ErrCooldown, "Please wait before requesting a new code")

	ErrPasswordResetLocked  = kindError(ErrLocked, "Password reset locked. Try later")
	ErrPasswordResetExpired = kindError(ErrExpired, "Password reset token expired")
	ErrPasswordResetInvalid = kindError(ErrInvalidToken, "Invalid password reset token")

	ErrEmailChangeLocked  = kindError(ErrLocked, "Email change locked. Try later")
	ErrEmailChangeExpired = kindError(ErrExpired, "Email change code expired")
	ErrEmailChangeInvalid = kindError(ErrInvalidCode, "Invalid email change code")

	ErrRefreshTokenExpired = kindError(ErrExpired, "Refresh token expired")
	ErrAccessTokenInvalid  = kindError(ErrInvalidToken, "Invalid access token")
	ErrAccessTokenRevoked  = kindError(ErrInvalidToken, "Access token has been revoked")

	ErrSendEmail = kindError(ErrEmailDelivery, "Failed to send email")

	ErrTestMustHaveQuestions    = kindError(ErrInvalidInput, "Test must have at least one question")
	ErrSingleChoiceOneCorrect   = kindError(ErrInvalidInput, "Single-choice question must have exactly one correct answer")
	ErrMultipleChoiceAtLeastOne = kindError(ErrInvalidInput, "Multiple-choice question must have at least one correct answer")
	ErrOpenTextRequiresAnswer   = kindError(ErrInvalidInput, "Open-text question must have a correct answer")
	ErrUnknownQuestionType      = kindError(ErrInvalidInput, "Unknown question type")
	ErrTestAlreadyPublished     = kindError(ErrConflict, "Test is already published")
	ErrTestNotPublished         = kindError(ErrNotPublished, "Test is not published")
	ErrPremiumTest              = kindError(ErrPremiumRequired, "Premium subscription required to access this test")
	ErrAttemptNotCompleted      = kindError(ErrNotCompleted, "Test attempt is not completed")

	ErrInvalidFileType = kindError(ErrInvalidFile, "Invalid file type. Only images are allowed")
	ErrFileTooLarge    = kindError(ErrInvalidFile, "File size exceeds the maximum allowed limit")
)

type appError struct {
	kind    error
	message string
}

func (e *appError) Error() string { return e.message }

func (e *appError) Unwrap() error { return e.kind }

func kindError(kind error, message string) error {
	return &appError{kind: kind, message: message}
}

// NewError 以指定类别构造错误
func NewError(kind error, message string) error {
	return kindError(kind, message)
}
