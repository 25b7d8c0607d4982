package service

import (
	"context"
	"examprep_backend/internal/config"
	"examprep_backend/internal/util"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngBytes = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

func newLocalStorage(t *testing.T) (*StorageService, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{Storage: config.StorageConfig{Type: "local", LocalPath: dir, MaxImageBytes: 1024}}
	return NewStorageService(cfg), dir
}

func TestLocalStorageUploadAndDelete(t *testing.T) {
	s, dir := newLocalStorage(t)
	ctx := context.Background()

	url, err := s.Upload(ctx, pngBytes, util.FolderQuestionImages)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "/uploads/question-images/"))
	assert.True(t, strings.HasSuffix(url, ".png"))

	file := filepath.Join(dir, strings.TrimPrefix(url, "/uploads/"))
	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Equal(t, pngBytes, data)

	require.NoError(t, s.Delete(ctx, url))
	_, err = os.Stat(file)
	assert.True(t, os.IsNotExist(err))

	// 重复删除不报错
	assert.NoError(t, s.Delete(ctx, url))
}

func TestStorageRejectsInvalidImages(t *testing.T) {
	s, _ := newLocalStorage(t)

	_, err := s.Upload(context.Background(), []byte("plain text"), util.FolderProfilePictures)
	assert.ErrorIs(t, err, util.ErrInvalidFileType)

	big := append(append([]byte{}, pngBytes...), make([]byte, 2048)...)
	_, err = s.Upload(context.Background(), big, util.FolderProfilePictures)
	assert.ErrorIs(t, err, util.ErrFileTooLarge)
}

func TestStorageIgnoresForeignURLs(t *testing.T) {
	s, _ := newLocalStorage(t)
	assert.NoError(t, s.Delete(context.Background(), "https://cdn.example.com/a.png"))
}

func TestTrimKeyPrefix(t *testing.T) {
	tests := []struct {
		url    string
		key    string
		wantOK bool
	}{
		{"/uploads/profile-pictures/a.png", "profile-pictures/a.png", true},
		{"/uploads/a/../b.png", "b.png", true},
		{"/uploads/../etc/passwd", "", false},
		{"/uploads/", "", false},
		{"/static/a.png", "", false},
	}
	for _, tt := range tests {
		key, ok := trimKeyPrefix(tt.url, localURLPrefix)
		assert.Equal(t, tt.wantOK, ok, tt.url)
		assert.Equal(t, tt.key, key, tt.url)
	}
}

func TestRemoteProviderURLs(t *testing.T) {
	cfg := &config.StorageConfig{MinioBucket: "exam", OSSBucket: "exam", OSSEndpoint: "oss-cn-hangzhou.aliyuncs.com"}

	minio := &MinioStorageProvider{Config: cfg}
	url := minio.URL("question-images/a.png")
	assert.Equal(t, "/exam/question-images/a.png", url)
	key, ok := minio.KeyFromURL(url)
	assert.True(t, ok)
	assert.Equal(t, "question-images/a.png", key)

	aliyun := &OSSStorageProvider{Config: cfg}
	url = aliyun.URL("profile-pictures/b.webp")
	assert.Equal(t, "https://exam.oss-cn-hangzhou.aliyuncs.com/profile-pictures/b.webp", url)
	_, ok = aliyun.KeyFromURL("/uploads/profile-pictures/b.webp")
	assert.False(t, ok)
}
