package controller

import (
	"examprep_backend/internal/model"
	"examprep_backend/internal/repository"
	"examprep_backend/internal/service"
	"examprep_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// AdminUserController 管理端账户管理
type AdminUserController struct {
	AdminUserService *service.AdminUserService
}

func NewAdminUserController(adminUserService *service.AdminUserService) *AdminUserController {
	return &AdminUserController{AdminUserService: adminUserService}
}

// ListUsers godoc
// @Summary 用户列表
// @Tags 管理-用户
// @Produce json
// @Security ApiKeyAuth
// @Param role query string false "ADMIN / CUSTOMER"
// @Param isActive query bool false "是否启用"
// @Param isVerified query bool false "是否已验证"
// @Param isPremium query bool false "是否会员"
// @Param search query string false "邮箱或姓名"
// @Param page query int false "页码"
// @Param limit query int false "每页数量"
// @Success 200 {object} util.Response{data=util.PageResponse}
// @Router /api/v1/admin/users [get]
func (c *AdminUserController) ListUsers(ctx *gin.Context) {
	filter := repository.UserFilter{
		Role:   model.RoleTitle(ctx.Query("role")),
		Search: ctx.Query("search"),
	}

	var ok bool
	if filter.IsActive, ok = optionalBool(ctx, "isActive"); !ok {
		return
	}
	if filter.IsVerified, ok = optionalBool(ctx, "isVerified"); !ok {
		return
	}
	if filter.IsPremium, ok = optionalBool(ctx, "isPremium"); !ok {
		return
	}
	filter.Page, filter.Limit = util.ParsePagination(ctx.Query("page"), ctx.Query("limit"))

	users, total, err := c.AdminUserService.List(ctx.Request.Context(), filter)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, pageResponse(users, total, filter.Page, filter.Limit))
}

// GetUser godoc
// @Summary 用户详情
// @Tags 管理-用户
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "用户ID"
// @Success 200 {object} util.Response{data=service.AdminUserView}
// @Router /api/v1/admin/users/{id} [get]
func (c *AdminUserController) GetUser(ctx *gin.Context) {
	user, err := c.AdminUserService.Get(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, user)
}

// CreateUser godoc
// @Summary 创建用户
// @Description 管理员创建的账户无需邮箱验证
// @Tags 管理-用户
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body service.CreateUserInput true "用户信息"
// @Success 201 {object} util.Response{data=service.AdminUserView}
// @Failure 409 {object} util.Response "邮箱已被使用"
// @Router /api/v1/admin/users [post]
func (c *AdminUserController) CreateUser(ctx *gin.Context) {
	var req service.CreateUserInput
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	user, err := c.AdminUserService.Create(ctx.Request.Context(), req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, user)
}

// UpdateUser godoc
// @Summary 更新用户
// @Tags 管理-用户
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "用户ID"
// @Param body body service.UpdateUserInput true "更新内容"
// @Success 200 {object} util.Response{data=service.AdminUserView}
// @Router /api/v1/admin/users/{id} [put]
func (c *AdminUserController) UpdateUser(ctx *gin.Context) {
	var req service.UpdateUserInput
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	user, err := c.AdminUserService.Update(ctx.Request.Context(), ctx.Param("id"), req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, user)
}

// DeleteUser godoc
// @Summary 删除用户
// @Tags 管理-用户
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "用户ID"
// @Success 200 {object} util.Response
// @Failure 400 {object} util.Response "不能删除自己"
// @Router /api/v1/admin/users/{id} [delete]
func (c *AdminUserController) DeleteUser(ctx *gin.Context) {
	caller, ok := requireCaller(ctx)
	if !ok {
		return
	}

	if err := c.AdminUserService.Delete(ctx.Request.Context(), caller, ctx.Param("id")); err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}
