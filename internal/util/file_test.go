package util

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

func TestDetectImageTypeAcceptsPNG(t *testing.T) {
	mimeType, ext, err := DetectImageType(pngHeader, 0)
	require.NoError(t, err)
	assert.Equal(t, "image/png", mimeType)
	assert.Equal(t, ".png", ext)
}

func TestDetectImageTypeRejectsText(t *testing.T) {
	_, _, err := DetectImageType([]byte("hello world, not an image"), 0)
	assert.ErrorIs(t, err, ErrInvalidFile)
}

func TestDetectImageTypeRejectsOversize(t *testing.T) {
	data := append([]byte{}, pngHeader...)
	data = append(data, bytes.Repeat([]byte{0}, 64)...)

	_, _, err := DetectImageType(data, 32)
	assert.ErrorIs(t, err, ErrFileTooLarge)
}

func TestDetectImageTypeRejectsEmpty(t *testing.T) {
	_, _, err := DetectImageType(nil, 0)
	assert.ErrorIs(t, err, ErrInvalidFileType)
}

func TestParsePagination(t *testing.T) {
	page, limit := ParsePagination("3", "50")
	assert.Equal(t, 3, page)
	assert.Equal(t, 50, limit)

	page, limit = ParsePagination("x", "-1")
	assert.Equal(t, DefaultPage, page)
	assert.Equal(t, DefaultLimit, limit)

	_, limit = ParsePagination("1", "1000")
	assert.Equal(t, MaxLimit, limit)
}
