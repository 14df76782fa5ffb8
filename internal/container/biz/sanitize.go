package biz

import (
	"path"
	"strings"
	"unicode"
)

// SanitizeName 只保留 ASCII 字母、数字、'-'、'_' 和空白，再去掉首尾空白。
// 结果为空表示名称不可用
func SanitizeName(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if isNameRune(r) {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

func isNameRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '-', r == '_':
		return true
	case r == ' ', r == '\t', r == '\n', r == '\v', r == '\f', r == '\r':
		return true
	}
	return false
}

// SanitizeFileName 把客户端提供的文件名裁成可以安全拼到文件夹目录下的纯文件名
func SanitizeFileName(raw string) string {
	name := strings.ReplaceAll(raw, "\\", "/")
	name = path.Base(name)
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)
	name = strings.TrimSpace(name)

	switch name {
	case "", ".", "..", "/":
		return "file"
	}
	return name
}
