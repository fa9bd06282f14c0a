package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/Freeeeeet/video_access/internal/model"
	"github.com/Freeeeeet/video_access/internal/repository"
)

// codeAlphabet без 0/1/I/O. 32 символа, поэтому byte%32 распределен равномерно.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const (
	codeGroupLen    = 4
	codeLen         = 2*codeGroupLen + 1
	maxCodeAttempts = 10
)

// GenerateCode возвращает код вида XXXX-XXXX из случайных байт src
func GenerateCode(src io.Reader) (string, error) {
	buf := make([]byte, 2*codeGroupLen)
	if _, err := io.ReadFull(src, buf); err != nil {
		return "", fmt.Errorf("generate random bytes: %w", err)
	}

	var sb strings.Builder
	sb.Grow(codeLen)
	for i, b := range buf {
		if i == codeGroupLen {
			sb.WriteByte('-')
		}
		sb.WriteByte(codeAlphabet[int(b)%len(codeAlphabet)])
	}

	return sb.String(), nil
}

// IsValidCode проверяет формат XXXX-XXXX над алфавитом кодов
func IsValidCode(code string) bool {
	if len(code) != codeLen {
		return false
	}
	for i := 0; i < len(code); i++ {
		if i == codeGroupLen {
			if code[i] != '-' {
				return false
			}
			continue
		}
		if strings.IndexByte(codeAlphabet, code[i]) < 0 {
			return false
		}
	}
	return true
}

// NormalizeCode приводит введенный код к каноничному виду: верхний регистр,
// без пробелов, с дефисом после четвертого символа
func NormalizeCode(raw string) (string, error) {
	code := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return unicode.ToUpper(r)
	}, raw)

	if code == "" {
		return "", fmt.Errorf("empty access code: %w", model.ErrInvalidInput)
	}

	if len(code) == 2*codeGroupLen && !strings.Contains(code, "-") {
		code = code[:codeGroupLen] + "-" + code[codeGroupLen:]
	}

	if !IsValidCode(code) {
		return "", fmt.Errorf("malformed access code: %w", model.ErrInvalidInput)
	}

	return code, nil
}

// MaskCode скрывает вторую половину кода для логов
func MaskCode(code string) string {
	if len(code) <= codeGroupLen {
		return strings.Repeat("*", len(code))
	}
	return code[:codeGroupLen] + "-****"
}

// assignUniqueCode генерирует код и сохраняет его на видео. Коллизия, пойманная
// проверкой или уникальным индексом, ведет к новой попытке.
func assignUniqueCode(ctx context.Context, tx repository.Store, videoID int64, random io.Reader, metrics Recorder) (string, error) {
	for i := 0; i < maxCodeAttempts; i++ {
		code, err := GenerateCode(random)
		if err != nil {
			return "", err
		}

		// Проверяем уникальность
		exists, err := tx.Videos().CodeExists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("check code exists: %w", err)
		}

		if exists {
			metrics.CodeCollision()
			continue
		}

		// Отдельная точка сохранения: нарушение индекса не должно прерывать внешнюю транзакцию
		err = tx.InTx(ctx, func(sp repository.Store) error {
			return sp.Videos().SetAccessCode(ctx, videoID, code)
		})
		if errors.Is(err, repository.ErrConflict) {
			metrics.CodeCollision()
			continue
		}
		if err != nil {
			return "", fmt.Errorf("set access code: %w", err)
		}

		return code, nil
	}

	return "", fmt.Errorf("failed to generate unique code after %d attempts", maxCodeAttempts)
}
