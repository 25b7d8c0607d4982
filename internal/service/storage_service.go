package service

import (
	"bytes"
	"context"
	"examprep_backend/internal/config"
	"examprep_backend/internal/util"
	"examprep_backend/pkg/logger"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// StorageProvider 对象存储后端，key 为相对路径（目录/文件名）
type StorageProvider interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Remove(ctx context.Context, key string) error
	URL(key string) string
	// KeyFromURL 将 URL 还原为 key，不属于本后端时返回 false
	KeyFromURL(url string) (string, bool)
}

// LocalStorageProvider 本地存储实现，通过 /uploads 静态路由访问
type LocalStorageProvider struct {
	Config *config.StorageConfig
}

const localURLPrefix = "/uploads/"

func (p *LocalStorageProvider) Put(ctx context.Context, key string, data []byte, contentType string) error {
	dst := filepath.Join(p.Config.LocalPath, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0644)
}

func (p *LocalStorageProvider) Remove(ctx context.Context, key string) error {
	err := os.Remove(filepath.Join(p.Config.LocalPath, filepath.FromSlash(key)))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (p *LocalStorageProvider) URL(key string) string {
	return localURLPrefix + key
}

func (p *LocalStorageProvider) KeyFromURL(url string) (string, bool) {
	return trimKeyPrefix(url, localURLPrefix)
}

// MinioStorageProvider MinIO存储实现
type MinioStorageProvider struct {
	Config *config.StorageConfig
	Client *minio.Client
}

func NewMinioStorageProvider(cfg *config.StorageConfig) (*MinioStorageProvider, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessID, cfg.MinioSecret, ""),
		Secure: false,
	})
	if err != nil {
		return nil, err
	}
	return &MinioStorageProvider{Config: cfg, Client: client}, nil
}

func (p *MinioStorageProvider) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := p.Client.PutObject(ctx, p.Config.MinioBucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	return err
}

func (p *MinioStorageProvider) Remove(ctx context.Context, key string) error {
	return p.Client.RemoveObject(ctx, p.Config.MinioBucket, key, minio.RemoveObjectOptions{})
}

func (p *MinioStorageProvider) URL(key string) string {
	return "/" + p.Config.MinioBucket + "/" + key
}

func (p *MinioStorageProvider) KeyFromURL(url string) (string, bool) {
	return trimKeyPrefix(url, "/"+p.Config.MinioBucket+"/")
}

// OSSStorageProvider 阿里云OSS存储实现
type OSSStorageProvider struct {
	Config *config.StorageConfig
	Client *oss.Client
}

func NewOSSStorageProvider(cfg *config.StorageConfig) (*OSSStorageProvider, error) {
	client, err := oss.New(cfg.OSSEndpoint, cfg.OSSAccessKey, cfg.OSSSecretKey)
	if err != nil {
		return nil, err
	}
	return &OSSStorageProvider{Config: cfg, Client: client}, nil
}

func (p *OSSStorageProvider) Put(ctx context.Context, key string, data []byte, contentType string) error {
	bucket, err := p.Client.Bucket(p.Config.OSSBucket)
	if err != nil {
		return err
	}
	return bucket.PutObject(key, bytes.NewReader(data), oss.ContentType(contentType))
}

func (p *OSSStorageProvider) Remove(ctx context.Context, key string) error {
	bucket, err := p.Client.Bucket(p.Config.OSSBucket)
	if err != nil {
		return err
	}
	return bucket.DeleteObject(key)
}

func (p *OSSStorageProvider) URL(key string) string {
	return fmt.Sprintf("https://%s.%s/%s", p.Config.OSSBucket, p.Config.OSSEndpoint, key)
}

func (p *OSSStorageProvider) KeyFromURL(url string) (string, bool) {
	return trimKeyPrefix(url, fmt.Sprintf("https://%s.%s/", p.Config.OSSBucket, p.Config.OSSEndpoint))
}

func trimKeyPrefix(url, prefix string) (string, bool) {
	if !strings.HasPrefix(url, prefix) {
		return "", false
	}
	key := path.Clean(strings.TrimPrefix(url, prefix))
	if key == "." || strings.HasPrefix(key, "..") || strings.HasPrefix(key, "/") {
		return "", false
	}
	return key, true
}

// StorageService 图片存储，上传前校验文件类型与大小
type StorageService struct {
	Provider StorageProvider
	MaxBytes int64
}

func NewStorageService(cfg *config.Config) *StorageService {
	var provider StorageProvider
	switch cfg.Storage.Type {
	case util.StorageMinio:
		p, err := NewMinioStorageProvider(&cfg.Storage)
		if err != nil {
			logger.Log.Warn("MinIO unavailable, falling back to local storage", zap.Error(err))
		} else {
			provider = p
		}
	case util.StorageOSS:
		p, err := NewOSSStorageProvider(&cfg.Storage)
		if err != nil {
			logger.Log.Warn("OSS unavailable, falling back to local storage", zap.Error(err))
		} else {
			provider = p
		}
	}

	if provider == nil {
		provider = &LocalStorageProvider{Config: &cfg.Storage}
	}

	return &StorageService{Provider: provider, MaxBytes: cfg.Storage.MaxImageBytes}
}

// Upload 按文件头识别图片类型，以随机文件名保存到 folder 下
func (s *StorageService) Upload(ctx context.Context, data []byte, folder string) (string, error) {
	contentType, ext, err := util.DetectImageType(data, s.MaxBytes)
	if err != nil {
		return "", err
	}

	key := folder + "/" + uuid.New().String() + ext
	if err := s.Provider.Put(ctx, key, data, contentType); err != nil {
		return "", err
	}
	return s.Provider.URL(key), nil
}

// Delete 不属于当前存储后端的 URL 直接忽略
func (s *StorageService) Delete(ctx context.Context, url string) error {
	key, ok := s.Provider.KeyFromURL(url)
	if !ok {
		logger.Log.Debug("Skip deleting foreign image url", zap.String("url", url))
		return nil
	}
	return s.Provider.Remove(ctx, key)
}
