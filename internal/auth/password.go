package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// MaxPasswordBytes bcrypt 只使用密码的前 72 字节
const MaxPasswordBytes = 72

// BcryptHasher 基于 bcrypt 的文件夹密码哈希器
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher 创建哈希器，cost 非法时回退到 bcrypt.DefaultCost
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

// Cost 返回当前使用的哈希成本
func (h *BcryptHasher) Cost() int {
	return h.cost
}

// Hash 生成密码哈希
func (h *BcryptHasher) Hash(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

// Compare 校验密码，不匹配时返回 (false, nil)，哈希损坏等情况返回错误
func (h *BcryptHasher) Compare(hash, password string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("failed to compare password: %w", err)
	}
}
