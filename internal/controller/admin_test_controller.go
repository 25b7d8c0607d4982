package controller

import (
	"examprep_backend/internal/model"
	"examprep_backend/internal/repository"
	"examprep_backend/internal/service"
	"examprep_backend/internal/util"
	"strings"

	"github.com/gin-gonic/gin"
)

// AdminTestController 管理端试卷编辑
type AdminTestController struct {
	TestService    *service.TestService
	AttemptService *service.AttemptService
	MaxUploadBytes int64
}

func NewAdminTestController(testService *service.TestService, attemptService *service.AttemptService, maxUploadBytes int64) *AdminTestController {
	return &AdminTestController{
		TestService:    testService,
		AttemptService: attemptService,
		MaxUploadBytes: maxUploadBytes,
	}
}

// CreateTest godoc
// @Summary 创建试卷
// @Tags 管理-试卷
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body service.CreateTestInput true "试卷与题目"
// @Success 201 {object} util.Response{data=service.TestDetailView}
// @Failure 400 {object} util.Response "题目校验失败"
// @Router /api/v1/admin/tests [post]
func (c *AdminTestController) CreateTest(ctx *gin.Context) {
	caller, ok := requireCaller(ctx)
	if !ok {
		return
	}

	var req service.CreateTestInput
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	test, err := c.TestService.Create(ctx.Request.Context(), caller, req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, test)
}

// UpdateTest godoc
// @Summary 更新试卷
// @Description 提交 questions 时替换全部题目
// @Tags 管理-试卷
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "试卷ID"
// @Param body body service.UpdateTestInput true "更新内容"
// @Success 200 {object} util.Response{data=service.TestDetailView}
// @Router /api/v1/admin/tests/{id} [put]
func (c *AdminTestController) UpdateTest(ctx *gin.Context) {
	var req service.UpdateTestInput
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	test, err := c.TestService.Update(ctx.Request.Context(), ctx.Param("id"), req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, test)
}

// DeleteTest godoc
// @Summary 删除试卷
// @Tags 管理-试卷
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "试卷ID"
// @Success 200 {object} util.Response
// @Router /api/v1/admin/tests/{id} [delete]
func (c *AdminTestController) DeleteTest(ctx *gin.Context) {
	if err := c.TestService.Delete(ctx.Request.Context(), ctx.Param("id")); err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// PublishTest godoc
// @Summary 发布试卷
// @Tags 管理-试卷
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "试卷ID"
// @Success 200 {object} util.Response{data=service.TestDetailView}
// @Failure 400 {object} util.Response "试卷没有题目或题目不合法"
// @Failure 409 {object} util.Response "试卷已发布"
// @Router /api/v1/admin/tests/{id}/publish [post]
func (c *AdminTestController) PublishTest(ctx *gin.Context) {
	test, err := c.TestService.Publish(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, test)
}

// ListTests godoc
// @Summary 试卷列表
// @Tags 管理-试卷
// @Produce json
// @Security ApiKeyAuth
// @Param status query string false "DRAFT / PUBLISHED"
// @Param isPremium query bool false "是否会员试卷"
// @Param page query int false "页码"
// @Param limit query int false "每页数量"
// @Success 200 {object} util.Response{data=util.PageResponse}
// @Router /api/v1/admin/tests [get]
func (c *AdminTestController) ListTests(ctx *gin.Context) {
	isPremium, ok := optionalBool(ctx, "isPremium")
	if !ok {
		return
	}

	page, limit := util.ParsePagination(ctx.Query("page"), ctx.Query("limit"))
	filter := repository.TestFilter{
		Status:    model.TestStatus(strings.ToUpper(ctx.Query("status"))),
		IsPremium: isPremium,
		Page:      page,
		Limit:     limit,
	}

	tests, total, err := c.TestService.List(ctx.Request.Context(), filter)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, pageResponse(tests, total, page, limit))
}

// GetTest godoc
// @Summary 试卷详情（含答案）
// @Tags 管理-试卷
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "试卷ID"
// @Success 200 {object} util.Response{data=service.TestDetailView}
// @Router /api/v1/admin/tests/{id} [get]
func (c *AdminTestController) GetTest(ctx *gin.Context) {
	test, err := c.TestService.Get(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, test)
}

// Statistics godoc
// @Summary 试卷参与统计
// @Tags 管理-试卷
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "试卷ID"
// @Success 200 {object} util.Response{data=service.TestStatistics}
// @Router /api/v1/admin/tests/{id}/statistics [get]
func (c *AdminTestController) Statistics(ctx *gin.Context) {
	stats, err := c.AttemptService.Statistics(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, stats)
}

// UploadQuestionImage godoc
// @Summary 上传题目图片
// @Tags 管理-试卷
// @Accept multipart/form-data
// @Produce json
// @Security ApiKeyAuth
// @Param questionId path string true "题目ID"
// @Param file formData file true "图片文件"
// @Success 200 {object} util.Response{data=object}
// @Router /api/v1/admin/tests/questions/{questionId}/image [post]
func (c *AdminTestController) UploadQuestionImage(ctx *gin.Context) {
	data, ok := readUpload(ctx, c.MaxUploadBytes)
	if !ok {
		return
	}

	url, err := c.TestService.UploadQuestionImage(ctx.Request.Context(), ctx.Param("questionId"), data)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"imageUrl": url})
}

// DeleteQuestionImage godoc
// @Summary 删除题目图片
// @Tags 管理-试卷
// @Produce json
// @Security ApiKeyAuth
// @Param questionId path string true "题目ID"
// @Success 200 {object} util.Response
// @Router /api/v1/admin/tests/questions/{questionId}/image [delete]
func (c *AdminTestController) DeleteQuestionImage(ctx *gin.Context) {
	if err := c.TestService.DeleteQuestionImage(ctx.Request.Context(), ctx.Param("questionId")); err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}
