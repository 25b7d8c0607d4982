package util

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"math/big"
	"strconv"

	"github.com/google/uuid"
)

const (
	codeMin = 100000
	codeMax = 999999
)

// GenerateCode 生成 [100000, 999999] 区间的六位数字验证码
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeMax-codeMin+1))
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(n.Int64()+codeMin, 10), nil
}

// GenerateOpaqueToken 刷新令牌、重置令牌使用 uuid v4
func GenerateOpaqueToken() string {
	return uuid.NewString()
}

// HashToken 令牌入库前做 SHA-256 摘要
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
