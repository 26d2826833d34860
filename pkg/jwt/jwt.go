package jwt

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	apperrors "medcom_capture/pkg/errors"

	"github.com/golang-jwt/jwt/v5"
)

// ControlClaims: claims токена доступа к локальному API управления захватом.
type ControlClaims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

const ScopeCapture = "capture"

// GenerateControlToken выпускает HS256-токен для хоста (UI-оболочки).
func GenerateControlToken(subject, issuer, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := ControlClaims{
		Scope: ScopeCapture,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func ValidateControlToken(tokenString, secret string) (*ControlClaims, error) {
	claims := &ControlClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, apperrors.ErrInvalidToken
		}
		return []byte(secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperrors.ErrTokenExpired
		}
		return nil, apperrors.ErrInvalidToken
	}
	if !token.Valid || claims.Scope != ScopeCapture {
		return nil, apperrors.ErrInvalidToken
	}
	return claims, nil
}

// Fingerprint возвращает короткий отпечаток токена для логов.
func Fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:6])
}

// WriteTokenFile сохраняет токен для UI-оболочки. Файл доступен только владельцу.
func WriteTokenFile(path, token string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create token dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(token+"\n"), 0o600); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}
	if err := os.Chmod(tmp, 0o600); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("chmod token file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace token file: %w", err)
	}
	return nil
}
