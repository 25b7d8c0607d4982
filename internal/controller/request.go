package controller

import (
	"examprep_backend/internal/middleware"
	"examprep_backend/internal/service"
	"examprep_backend/internal/util"
	"io"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// requireCaller 未认证时直接返回 401
func requireCaller(ctx *gin.Context) (service.Caller, bool) {
	caller, ok := middleware.CallerFromContext(ctx)
	if !ok {
		util.Unauthorized(ctx)
		return service.Caller{}, false
	}
	return caller, true
}

// optionalBool 查询参数为空时返回 nil
func optionalBool(ctx *gin.Context, key string) (*bool, bool) {
	raw := ctx.Query(key)
	if raw == "" {
		return nil, true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		util.BadRequest(ctx, "Invalid value for "+key)
		return nil, false
	}
	return &v, true
}

// optionalDate 解析 yyyy-MM-dd 格式日期，空字符串返回 nil
func optionalDate(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(util.DateFormat, raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// readUpload 读取 multipart 中的 file 字段，超过上限的部分交给类型校验判定
func readUpload(ctx *gin.Context, maxBytes int64) ([]byte, bool) {
	header, err := ctx.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "File is required")
		return nil, false
	}
	if maxBytes <= 0 {
		maxBytes = util.DefaultMaxImageBytes
	}
	if header.Size > maxBytes {
		util.HandleError(ctx, util.ErrFileTooLarge)
		return nil, false
	}

	f, err := header.Open()
	if err != nil {
		util.LogInternalError(ctx, err)
		return nil, false
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxBytes+1))
	if err != nil {
		util.LogInternalError(ctx, err)
		return nil, false
	}
	return data, true
}

func pageResponse(list interface{}, total int64, page, limit int) util.PageResponse {
	return util.PageResponse{
		List:  list,
		Total: total,
		Page:  page,
		Limit: limit,
	}
}
