// Package validation содержит функции валидации входных данных.
package validation

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// ErrBadTimestamp возвращается для метки времени в неподдерживаемом формате.
var ErrBadTimestamp = errors.New("unparseable timestamp")

const addressLength = 42 // "0x" + 40 шестнадцатеричных символов

// IsValidAddress проверяет корректность адреса игрока.
func IsValidAddress(address string) bool {
	if len(address) != addressLength {
		return false
	}
	if address[0] != '0' || (address[1] != 'x' && address[1] != 'X') {
		return false
	}
	for _, ch := range address[2:] {
		switch {
		case ch >= '0' && ch <= '9':
		case ch >= 'a' && ch <= 'f':
		case ch >= 'A' && ch <= 'F':
		default:
			return false
		}
	}
	return true
}

// NormalizeAddress приводит адрес к каноническому нижнему регистру.
// Все сравнения адресов в сервисе ведутся по нормализованной форме.
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// ParseTimestamp разбирает метку времени сессии на границе системы.
// Поддерживаются ровно два формата: RFC3339 и целые миллисекунды эпохи.
// Всё остальное отклоняется — метки времени никогда не «дочиниваются».
func ParseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, ErrBadTimestamp
	}

	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}

	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if ms < 0 {
			return time.Time{}, ErrBadTimestamp
		}
		return time.UnixMilli(ms).UTC(), nil
	}

	return time.Time{}, ErrBadTimestamp
}
