package controller

import (
	"examprep_backend/internal/service"
	"examprep_backend/internal/util"
	"strconv"

	"github.com/gin-gonic/gin"
)

type ProfileController struct {
	ProfileService *service.ProfileService
	AttemptService *service.AttemptService
	MaxUploadBytes int64
}

func NewProfileController(profileService *service.ProfileService, attemptService *service.AttemptService, maxUploadBytes int64) *ProfileController {
	return &ProfileController{
		ProfileService: profileService,
		AttemptService: attemptService,
		MaxUploadBytes: maxUploadBytes,
	}
}

type UpdateProfileRequest struct {
	FirstName   string `json:"firstName" binding:"required,max=100"`
	LastName    string `json:"lastName" binding:"required,max=100"`
	DateOfBirth string `json:"dateOfBirth"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required,min=8,max=128"`
}

type ChangeEmailRequest struct {
	NewEmail string `json:"newEmail" binding:"required,email"`
}

type VerifyEmailChangeRequest struct {
	Code *int `json:"code" binding:"required"`
}

type DeleteAccountRequest struct {
	Password string `json:"password" binding:"required"`
}

// GetProfile godoc
// @Summary 获取个人资料
// @Tags 个人中心
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=service.ProfileView}
// @Router /api/v1/profile [get]
func (c *ProfileController) GetProfile(ctx *gin.Context) {
	caller, ok := requireCaller(ctx)
	if !ok {
		return
	}

	user, err := c.ProfileService.GetProfile(ctx.Request.Context(), caller)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, service.NewProfileView(user))
}

// UpdateProfile godoc
// @Summary 更新个人资料
// @Tags 个人中心
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body UpdateProfileRequest true "资料"
// @Success 200 {object} util.Response{data=service.ProfileView}
// @Router /api/v1/profile [put]
func (c *ProfileController) UpdateProfile(ctx *gin.Context) {
	caller, ok := requireCaller(ctx)
	if !ok {
		return
	}

	var req UpdateProfileRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	dob, err := optionalDate(req.DateOfBirth)
	if err != nil {
		util.BadRequest(ctx, "Invalid date of birth")
		return
	}

	user, err := c.ProfileService.UpdateProfile(ctx.Request.Context(), caller, service.UpdateProfileInput{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		DateOfBirth: dob,
	})
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, service.NewProfileView(user))
}

// ChangePassword godoc
// @Summary 修改密码
// @Tags 个人中心
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body ChangePasswordRequest true "当前密码与新密码"
// @Success 200 {object} util.Response
// @Failure 401 {object} util.Response "当前密码错误"
// @Router /api/v1/profile/change-password [post]
func (c *ProfileController) ChangePassword(ctx *gin.Context) {
	caller, ok := requireCaller(ctx)
	if !ok {
		return
	}

	var req ChangePasswordRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	if err := c.ProfileService.ChangePassword(ctx.Request.Context(), caller, req.CurrentPassword, req.NewPassword); err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// RequestEmailChange godoc
// @Summary 申请更换邮箱
// @Description 验证码发送到新邮箱
// @Tags 个人中心
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body ChangeEmailRequest true "新邮箱"
// @Success 200 {object} util.Response
// @Failure 409 {object} util.Response "邮箱已被使用"
// @Router /api/v1/profile/change-email [post]
func (c *ProfileController) RequestEmailChange(ctx *gin.Context) {
	caller, ok := requireCaller(ctx)
	if !ok {
		return
	}

	var req ChangeEmailRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	if err := c.ProfileService.RequestEmailChange(ctx.Request.Context(), caller, req.NewEmail); err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// ConfirmEmailChange godoc
// @Summary 确认更换邮箱
// @Tags 个人中心
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body VerifyEmailChangeRequest true "验证码"
// @Success 200 {object} util.Response
// @Failure 400 {object} util.Response "验证码错误或已过期"
// @Failure 423 {object} util.Response "已锁定"
// @Router /api/v1/profile/verify-email-change [post]
func (c *ProfileController) ConfirmEmailChange(ctx *gin.Context) {
	caller, ok := requireCaller(ctx)
	if !ok {
		return
	}

	var req VerifyEmailChangeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	if err := c.ProfileService.ConfirmEmailChange(ctx.Request.Context(), caller, strconv.Itoa(*req.Code)); err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// UploadProfilePicture godoc
// @Summary 上传头像
// @Tags 个人中心
// @Accept multipart/form-data
// @Produce json
// @Security ApiKeyAuth
// @Param file formData file true "图片文件"
// @Success 200 {object} util.Response{data=object}
// @Failure 400 {object} util.Response "文件类型或大小不合法"
// @Router /api/v1/profile/picture [post]
func (c *ProfileController) UploadProfilePicture(ctx *gin.Context) {
	caller, ok := requireCaller(ctx)
	if !ok {
		return
	}

	data, ok := readUpload(ctx, c.MaxUploadBytes)
	if !ok {
		return
	}

	url, err := c.ProfileService.UploadProfilePicture(ctx.Request.Context(), caller, data)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"profilePictureUrl": url})
}

// DeleteProfilePicture godoc
// @Summary 删除头像
// @Tags 个人中心
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response
// @Router /api/v1/profile/picture [delete]
func (c *ProfileController) DeleteProfilePicture(ctx *gin.Context) {
	caller, ok := requireCaller(ctx)
	if !ok {
		return
	}

	if err := c.ProfileService.DeleteProfilePicture(ctx.Request.Context(), caller); err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// DeleteAccount godoc
// @Summary 注销账户
// @Tags 个人中心
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body DeleteAccountRequest true "密码"
// @Success 200 {object} util.Response
// @Failure 401 {object} util.Response "密码错误"
// @Router /api/v1/profile [delete]
func (c *ProfileController) DeleteAccount(ctx *gin.Context) {
	caller, ok := requireCaller(ctx)
	if !ok {
		return
	}

	var req DeleteAccountRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	if err := c.ProfileService.DeleteAccount(ctx.Request.Context(), caller, req.Password); err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// MyAttempts godoc
// @Summary 我的答题记录
// @Tags 个人中心
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]service.AttemptView}
// @Router /api/v1/profile/attempts [get]
func (c *ProfileController) MyAttempts(ctx *gin.Context) {
	caller, ok := requireCaller(ctx)
	if !ok {
		return
	}

	attempts, err := c.AttemptService.ListMyAttempts(ctx.Request.Context(), caller)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, attempts)
}
