package controller

import (
	"examprep_backend/internal/service"
	"examprep_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// TestController 用户端试卷浏览与答题
type TestController struct {
	TestService    *service.TestService
	AttemptService *service.AttemptService
}

func NewTestController(testService *service.TestService, attemptService *service.AttemptService) *TestController {
	return &TestController{
		TestService:    testService,
		AttemptService: attemptService,
	}
}

type SubmitTestRequest struct {
	Answers []service.SubmittedAnswer `json:"answers" binding:"required,min=1,dive"`
}

// ListTests godoc
// @Summary 已发布试卷列表
// @Description 非会员只能看到免费试卷
// @Tags 试卷
// @Produce json
// @Security ApiKeyAuth
// @Param page query int false "页码"
// @Param limit query int false "每页数量"
// @Success 200 {object} util.Response{data=util.PageResponse}
// @Router /api/v1/tests [get]
func (c *TestController) ListTests(ctx *gin.Context) {
	caller, ok := requireCaller(ctx)
	if !ok {
		return
	}

	page, limit := util.ParsePagination(ctx.Query("page"), ctx.Query("limit"))
	tests, total, err := c.TestService.ListForUser(ctx.Request.Context(), caller, page, limit)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, pageResponse(tests, total, page, limit))
}

// GetTest godoc
// @Summary 试卷详情
// @Tags 试卷
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "试卷ID"
// @Success 200 {object} util.Response{data=service.TestDetailView}
// @Failure 403 {object} util.Response "需要会员"
// @Failure 404 {object} util.Response "试卷不存在"
// @Router /api/v1/tests/{id} [get]
func (c *TestController) GetTest(ctx *gin.Context) {
	caller, ok := requireCaller(ctx)
	if !ok {
		return
	}

	test, err := c.TestService.GetForUser(ctx.Request.Context(), caller, ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, test)
}

// StartTest godoc
// @Summary 开始答题
// @Description 已有进行中的记录时直接返回该记录
// @Tags 试卷
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "试卷ID"
// @Success 200 {object} util.Response{data=service.AttemptView}
// @Failure 400 {object} util.Response "试卷未发布"
// @Failure 403 {object} util.Response "需要会员"
// @Router /api/v1/tests/{id}/start [post]
func (c *TestController) StartTest(ctx *gin.Context) {
	caller, ok := requireCaller(ctx)
	if !ok {
		return
	}

	attempt, err := c.AttemptService.StartTest(ctx.Request.Context(), caller, ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, attempt)
}

// SubmitTest godoc
// @Summary 交卷
// @Tags 试卷
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "试卷ID"
// @Param body body SubmitTestRequest true "作答"
// @Success 200 {object} util.Response{data=service.AttemptResult}
// @Failure 404 {object} util.Response "没有进行中的答题记录"
// @Router /api/v1/tests/{id}/submit [post]
func (c *TestController) SubmitTest(ctx *gin.Context) {
	caller, ok := requireCaller(ctx)
	if !ok {
		return
	}

	var req SubmitTestRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.AttemptService.SubmitTest(ctx.Request.Context(), caller, ctx.Param("id"), req.Answers)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// ListAttempts godoc
// @Summary 某试卷的答题记录
// @Tags 试卷
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "试卷ID"
// @Success 200 {object} util.Response{data=[]service.AttemptView}
// @Router /api/v1/tests/{id}/attempts [get]
func (c *TestController) ListAttempts(ctx *gin.Context) {
	caller, ok := requireCaller(ctx)
	if !ok {
		return
	}

	attempts, err := c.AttemptService.ListAttempts(ctx.Request.Context(), caller, ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, attempts)
}

// GetAttemptResult godoc
// @Summary 答题结果
// @Description 仅本人或管理员可查看已完成的记录
// @Tags 试卷
// @Produce json
// @Security ApiKeyAuth
// @Param attemptId path string true "答题记录ID"
// @Success 200 {object} util.Response{data=service.AttemptResult}
// @Failure 400 {object} util.Response "答题未完成"
// @Failure 404 {object} util.Response "记录不存在"
// @Router /api/v1/tests/attempts/{attemptId} [get]
func (c *TestController) GetAttemptResult(ctx *gin.Context) {
	caller, ok := requireCaller(ctx)
	if !ok {
		return
	}

	result, err := c.AttemptService.GetAttemptResult(ctx.Request.Context(), caller, ctx.Param("attemptId"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, result)
}
