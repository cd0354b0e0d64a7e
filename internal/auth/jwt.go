package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenTTL = 30 * 24 * time.Hour

var ErrInvalidToken = errors.New("auth: invalid token")

func GenerateToken(secret []byte, userID string, now time.Time) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("auth: empty signing secret")
	}
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     now.Add(tokenTTL).Unix(),
		"iat":     now.Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(secret)
}

// ParseToken verifies an HS256 token and returns its user_id claim. Numeric
// ids from older tokens are accepted and returned in decimal form.
func ParseToken(secret []byte, tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	data, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidToken
	}
	switch uid := data["user_id"].(type) {
	case string:
		if uid != "" {
			return uid, nil
		}
	case float64:
		return strconv.FormatInt(int64(uid), 10), nil
	}
	return "", fmt.Errorf("%w: missing user_id claim", ErrInvalidToken)
}
