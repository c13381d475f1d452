package fitment

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidVIN VIN 格式不合法
var ErrInvalidVIN = errors.New("invalid VIN")

// 归一化后 10-17 位字母数字
var vinPattern = regexp.MustCompile(`^[A-Z0-9]{10,17}$`)

// NormalizeVIN 去除空白和连字符并转大写，校验在本地完成，不合法时不发起解码
func NormalizeVIN(vin string) (string, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r', '-':
			return -1
		}
		return r
	}, vin)
	cleaned = strings.ToUpper(cleaned)

	if !vinPattern.MatchString(cleaned) {
		return "", fmt.Errorf("%w: %q", ErrInvalidVIN, vin)
	}
	return cleaned, nil
}
