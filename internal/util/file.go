package util

import (
	"net/http"
	"strconv"
	"strings"
)

// DetectImageType 按文件头识别 MIME 类型并校验白名单与大小，返回类型和扩展名
func DetectImageType(data []byte, maxBytes int64) (string, string, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxImageBytes
	}
	if len(data) == 0 {
		return "", "", ErrInvalidFileType
	}
	if int64(len(data)) > maxBytes {
		return "", "", ErrFileTooLarge
	}

	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	mimeType := http.DetectContentType(head)
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}

	ext, ok := AllowedImageTypes[mimeType]
	if !ok {
		return mimeType, "", ErrInvalidFileType
	}
	return mimeType, ext, nil
}

// ParsePagination 解析分页参数，非法值回退到默认值
func ParsePagination(pageStr, limitStr string) (int, int) {
	page, err := strconv.Atoi(pageStr)
	if err != nil || page < 1 {
		page = DefaultPage
	}
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return page, limit
}
