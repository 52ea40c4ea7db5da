package service

import (
	"errors"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var jwtSecret []byte

func InitJWT() {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		panic("JWT_SECRET is not set")
	}
	jwtSecret = []byte(secret)
}

// SupervisorClaims - единственное, что движку нужно от cookie основного
// приложения: кто из супервизоров за подключением.
type SupervisorClaims struct {
	SupervisorID int64 `json:"supervisor_id"`
	jwt.RegisteredClaims
}

// GenerateJWT выдаёт токен супервизора (кладётся в cookie основным приложением)
func GenerateJWT(supervisorID int64) (string, error) {
	now := time.Now()
	claims := SupervisorClaims{
		SupervisorID: supervisorID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(jwtSecret)
}

// ParseJWT проверяет подпись и сроки токена и возвращает id супервизора
func ParseJWT(tokenString string) (int64, error) {
	var claims SupervisorClaims

	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return 0, errors.New("invalid token")
	}

	if claims.SupervisorID == 0 {
		return 0, errors.New("supervisor_id not set")
	}

	return claims.SupervisorID, nil
}
