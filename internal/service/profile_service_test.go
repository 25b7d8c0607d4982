package service

import (
	"context"
	"errors"
	"examprep_backend/internal/util"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateProfileTrimsNames(t *testing.T) {
	e := newTestEnv(t)
	user := e.seedUser(t, "ann@example.com", "password123")
	dob := time.Date(1999, 5, 4, 0, 0, 0, 0, time.UTC)

	updated, err := e.profile.UpdateProfile(context.Background(), callerFor(user), UpdateProfileInput{
		FirstName:   "  Anna ",
		LastName:    "Smith",
		DateOfBirth: &dob,
	})
	require.NoError(t, err)
	assert.Equal(t, "Anna", updated.FirstName)
	assert.Equal(t, "Smith", e.users.get(t, user.Email).LastName)
	assert.Equal(t, dob, *e.users.get(t, user.Email).DateOfBirth)
}

func TestChangePasswordRequiresCurrentPassword(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	user := e.seedUser(t, "ann@example.com", "password123")

	err := e.profile.ChangePassword(ctx, callerFor(user), "wrong", "newpassword1")
	assert.ErrorIs(t, err, util.ErrInvalidCurrentPassword)

	require.NoError(t, e.profile.ChangePassword(ctx, callerFor(user), "password123", "newpassword1"))
	assert.True(t, passwordMatches(e.users.get(t, user.Email).PasswordHash, "newpassword1"))
}

func TestEmailChangeFlow(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	user := e.seedUser(t, "ann@example.com", "password123")
	caller := callerFor(user)

	require.NoError(t, e.profile.RequestEmailChange(ctx, caller, " New@Example.com "))

	pending := e.users.get(t, user.Email)
	assert.Equal(t, "ann@example.com", pending.Email)
	assert.Equal(t, "new@example.com", pending.PendingEmail.Address)

	mail := e.sender.last(t)
	assert.Equal(t, "new@example.com", mail.To)
	assert.Contains(t, mail.Body, "code="+pending.PendingEmail.Code)

	require.NoError(t, e.profile.ConfirmEmailChange(ctx, caller, pending.PendingEmail.Code))

	changed := e.users.get(t, "new@example.com")
	assert.Equal(t, user.ID, changed.ID)
	assert.False(t, changed.PendingEmail.Pending())

	err := e.profile.ConfirmEmailChange(ctx, caller, "123456")
	assert.ErrorIs(t, err, util.ErrNoPendingEmail)
}

func TestEmailChangeRejectsSameOrTakenAddress(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	user := e.seedUser(t, "ann@example.com", "password123")
	e.seedUser(t, "bob@example.com", "password123")

	err := e.profile.RequestEmailChange(ctx, callerFor(user), "ANN@example.com")
	assert.ErrorIs(t, err, util.ErrSameEmail)

	err = e.profile.RequestEmailChange(ctx, callerFor(user), "bob@example.com")
	assert.ErrorIs(t, err, util.ErrConflict)
}

func TestEmailChangeLocksAfterWrongCodes(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	user := e.seedUser(t, "ann@example.com", "password123")
	caller := callerFor(user)

	require.NoError(t, e.profile.RequestEmailChange(ctx, caller, "new@example.com"))
	code := e.users.get(t, user.Email).PendingEmail.Code
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}

	for i := 0; i < 5; i++ {
		require.ErrorIs(t, e.profile.ConfirmEmailChange(ctx, caller, wrong), util.ErrEmailChangeInvalid)
	}
	assert.ErrorIs(t, e.profile.ConfirmEmailChange(ctx, caller, code), util.ErrEmailChangeLocked)
	assert.ErrorIs(t, e.profile.RequestEmailChange(ctx, caller, "other@example.com"), util.ErrEmailChangeLocked)

	// 登录轨道不受影响
	_, err := e.auth.Login(ctx, LoginInput{Email: user.Email, Password: "password123"})
	assert.NoError(t, err)
}

func TestEmailChangeExpiredCode(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	user := e.seedUser(t, "ann@example.com", "password123")

	require.NoError(t, e.profile.RequestEmailChange(ctx, callerFor(user), "new@example.com"))
	code := e.users.get(t, user.Email).PendingEmail.Code

	e.clock.Advance(16 * time.Minute)
	assert.ErrorIs(t, e.profile.ConfirmEmailChange(ctx, callerFor(user), code), util.ErrEmailChangeExpired)
}

func TestEmailChangeSurfacesEmailFailure(t *testing.T) {
	e := newTestEnv(t)
	user := e.seedUser(t, "ann@example.com", "password123")
	e.sender.err = errors.New("smtp down")

	err := e.profile.RequestEmailChange(context.Background(), callerFor(user), "new@example.com")
	assert.ErrorIs(t, err, util.ErrEmailDelivery)
	assert.False(t, e.users.get(t, user.Email).PendingEmail.Pending())
}

func TestEmailChangeConfirmRechecksAvailability(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	user := e.seedUser(t, "ann@example.com", "password123")

	require.NoError(t, e.profile.RequestEmailChange(ctx, callerFor(user), "new@example.com"))
	code := e.users.get(t, user.Email).PendingEmail.Code
	e.seedUser(t, "new@example.com", "password123")

	err := e.profile.ConfirmEmailChange(ctx, callerFor(user), code)
	assert.ErrorIs(t, err, util.ErrEmailInUse)
	assert.Equal(t, "ann@example.com", e.users.get(t, user.Email).Email)
}

func TestProfilePictureReplacesOldImage(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	user := e.seedUser(t, "ann@example.com", "password123")

	first, err := e.profile.UploadProfilePicture(ctx, callerFor(user), []byte("png"))
	require.NoError(t, err)
	second, err := e.profile.UploadProfilePicture(ctx, callerFor(user), []byte("png"))
	require.NoError(t, err)

	assert.Equal(t, second, e.users.get(t, user.Email).ProfilePictureURL)
	assert.Equal(t, []string{first}, e.images.deleted)

	require.NoError(t, e.profile.DeleteProfilePicture(ctx, callerFor(user)))
	assert.Empty(t, e.users.get(t, user.Email).ProfilePictureURL)
	assert.Equal(t, []string{first, second}, e.images.deleted)
}

func TestUploadProfilePictureStorageFailure(t *testing.T) {
	e := newTestEnv(t)
	user := e.seedUser(t, "ann@example.com", "password123")
	e.images.uploadErr = util.ErrInvalidFileType

	_, err := e.profile.UploadProfilePicture(context.Background(), callerFor(user), []byte("txt"))
	assert.ErrorIs(t, err, util.ErrInvalidFile)
	assert.Empty(t, e.users.get(t, user.Email).ProfilePictureURL)
}

func TestDeleteAccountRequiresPassword(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	user := e.seedUser(t, "ann@example.com", "password123")
	_, err := e.profile.UploadProfilePicture(ctx, callerFor(user), []byte("png"))
	require.NoError(t, err)

	err = e.profile.DeleteAccount(ctx, callerFor(user), "wrong")
	assert.ErrorIs(t, err, util.ErrInvalidPassword)

	require.NoError(t, e.profile.DeleteAccount(ctx, callerFor(user), "password123"))
	_, err = e.users.FindByID(ctx, user.ID)
	assert.ErrorIs(t, err, util.ErrNotFound)
	assert.Len(t, e.images.deleted, 1)
}
