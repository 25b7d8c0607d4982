package controller

import (
	"examprep_backend/internal/service"
	"examprep_backend/internal/util"
	"strconv"

	"github.com/gin-gonic/gin"
)

type AuthController struct {
	AuthService *service.AuthService
}

func NewAuthController(authService *service.AuthService) *AuthController {
	return &AuthController{AuthService: authService}
}

// SignupRequest 注册请求，dateOfBirth 格式为 yyyy-MM-dd
type SignupRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=8,max=128"`
	FirstName   string `json:"firstName" binding:"required,max=100"`
	LastName    string `json:"lastName" binding:"required,max=100"`
	DateOfBirth string `json:"dateOfBirth"`
}

type VerifyRequest struct {
	Email string `json:"email" binding:"required,email"`
	Code  *int   `json:"code" binding:"required"`
}

type EmailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	DeviceID string `json:"deviceId"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type ConfirmResetRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required,min=8,max=128"`
}

// Signup godoc
// @Summary 注册新用户
// @Description 创建未验证账户并向邮箱发送验证码
// @Tags 认证
// @Accept  json
// @Produce  json
// @Param   body body SignupRequest true "注册信息"
// @Success 201 {object} util.Response "创建成功"
// @Failure 400 {object} util.Response "请求参数错误"
// @Failure 409 {object} util.Response "邮箱已被注册"
// @Router /api/v1/auth/signup [post]
func (c *AuthController) Signup(ctx *gin.Context) {
	var req SignupRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	dob, err := optionalDate(req.DateOfBirth)
	if err != nil {
		util.BadRequest(ctx, "Invalid date of birth")
		return
	}

	err = c.AuthService.Signup(ctx.Request.Context(), service.SignupInput{
		Email:       req.Email,
		Password:    req.Password,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		DateOfBirth: dob,
	})
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, nil)
}

// Verify godoc
// @Summary 验证邮箱
// @Description 校验注册验证码，成功后返回令牌
// @Tags 认证
// @Accept  json
// @Produce  json
// @Param   body body VerifyRequest true "邮箱与验证码"
// @Success 200 {object} util.Response{data=service.TokenPair}
// @Failure 400 {object} util.Response "验证码错误或已过期"
// @Failure 423 {object} util.Response "验证已锁定"
// @Router /api/v1/auth/verify [post]
func (c *AuthController) Verify(ctx *gin.Context) {
	var req VerifyRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	pair, err := c.AuthService.Verify(ctx.Request.Context(), req.Email, strconv.Itoa(*req.Code))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, pair)
}

// Resend godoc
// @Summary 重新发送验证码
// @Tags 认证
// @Accept  json
// @Produce  json
// @Param   body body EmailRequest true "邮箱"
// @Success 200 {object} util.Response
// @Failure 409 {object} util.Response "账户已验证"
// @Failure 429 {object} util.Response "请求过于频繁"
// @Router /api/v1/auth/resend [post]
func (c *AuthController) Resend(ctx *gin.Context) {
	var req EmailRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	if err := c.AuthService.Resend(ctx.Request.Context(), req.Email); err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// Login godoc
// @Summary 用户登录
// @Description 同一账户同时只允许一个设备登录
// @Tags 认证
// @Accept  json
// @Produce  json
// @Param   body body LoginRequest true "登录凭证"
// @Success 200 {object} util.Response{data=service.TokenPair}
// @Failure 401 {object} util.Response "邮箱或密码错误"
// @Failure 409 {object} util.Response "账户已在其他设备登录"
// @Failure 423 {object} util.Response "账户已锁定"
// @Router /api/v1/auth/login [post]
func (c *AuthController) Login(ctx *gin.Context) {
	var req LoginRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	pair, err := c.AuthService.Login(ctx.Request.Context(), service.LoginInput{
		Email:    req.Email,
		Password: req.Password,
		DeviceID: req.DeviceID,
	})
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, pair)
}

// Refresh godoc
// @Summary 刷新访问令牌
// @Tags 认证
// @Accept  json
// @Produce  json
// @Param   body body RefreshRequest true "刷新令牌"
// @Success 200 {object} util.Response{data=service.TokenPair}
// @Failure 400 {object} util.Response "刷新令牌已过期"
// @Failure 404 {object} util.Response "刷新令牌无效"
// @Router /api/v1/auth/refresh [post]
func (c *AuthController) Refresh(ctx *gin.Context) {
	var req RefreshRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	pair, err := c.AuthService.Refresh(ctx.Request.Context(), req.RefreshToken)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, pair)
}

// Logout godoc
// @Summary 退出登录
// @Description 注销当前访问令牌、删除刷新令牌并解绑设备
// @Tags 认证
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response
// @Failure 401 {object} util.Response "未授权"
// @Router /api/v1/auth/logout [post]
func (c *AuthController) Logout(ctx *gin.Context) {
	caller, ok := requireCaller(ctx)
	if !ok {
		return
	}

	if err := c.AuthService.Logout(ctx.Request.Context(), caller); err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// Me godoc
// @Summary 当前用户信息
// @Tags 认证
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=service.ProfileView}
// @Router /api/v1/auth/me [get]
func (c *AuthController) Me(ctx *gin.Context) {
	caller, ok := requireCaller(ctx)
	if !ok {
		return
	}

	user, err := c.AuthService.Me(ctx.Request.Context(), caller)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, service.NewProfileView(user))
}

// RequestPasswordReset godoc
// @Summary 申请重置密码
// @Tags 认证
// @Accept  json
// @Produce  json
// @Param   body body EmailRequest true "邮箱"
// @Success 200 {object} util.Response
// @Failure 404 {object} util.Response "用户不存在"
// @Router /api/v1/auth/reset-password [post]
func (c *AuthController) RequestPasswordReset(ctx *gin.Context) {
	var req EmailRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	if err := c.AuthService.RequestPasswordReset(ctx.Request.Context(), req.Email); err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// ConfirmPasswordReset godoc
// @Summary 确认重置密码
// @Tags 认证
// @Accept  json
// @Produce  json
// @Param   body body ConfirmResetRequest true "邮箱、重置令牌与新密码"
// @Success 200 {object} util.Response
// @Failure 400 {object} util.Response "令牌无效或已过期"
// @Failure 423 {object} util.Response "重置已锁定"
// @Router /api/v1/auth/confirm-reset-password [post]
func (c *AuthController) ConfirmPasswordReset(ctx *gin.Context) {
	var req ConfirmResetRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	err := c.AuthService.ConfirmPasswordReset(ctx.Request.Context(), service.ConfirmResetInput{
		Email:       req.Email,
		Token:       req.Token,
		NewPassword: req.NewPassword,
	})
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}
