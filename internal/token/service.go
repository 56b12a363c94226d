package token

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"
)

const refreshTokenTTL = 7 * 24 * time.Hour

var (
	ErrInvalidToken = errors.New("invalid refresh token")
	ErrExpiredToken = errors.New("refresh token expired")
)

func GenerateToken(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

func NewRefreshToken(userID int64) (*Token, error) {
	tokenStr, err := GenerateToken(32)
	if err != nil {
		return nil, err
	}

	return &Token{
		UserID:    userID,
		Token:     tokenStr,
		ExpiresAt: time.Now().Add(refreshTokenTTL),
	}, nil
}
