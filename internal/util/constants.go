package util

const (
	DateFormat = "2006-01-02"
	TimeFormat = "2006-01-02 15:04:05"
)

const (
	StorageLocal = "local"
	StorageMinio = "minio"
	StorageOSS   = "oss"
)

// 图片存储目录
const (
	FolderProfilePictures = "profile-pictures"
	FolderQuestionImages  = "question-images"
)

const DefaultMaxImageBytes int64 = 5 * 1024 * 1024

// AllowedImageTypes 允许上传的图片 MIME 类型
var AllowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/jpg":  ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100
)
