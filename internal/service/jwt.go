package service

import (
	"errors"
	"time"

	"datatav/internal/config"

	"github.com/golang-jwt/jwt/v5"
)

// TokenTTL 管理员 Token 有效期
const TokenTTL = 24 * time.Hour

const RoleAdmin = "admin"

var (
	ErrInvalidToken    = errors.New("invalid token")
	ErrExpiredToken    = errors.New("token expired")
	ErrInvalidIssuer   = errors.New("invalid token issuer")
	ErrInvalidAudience = errors.New("invalid token audience")
)

type JWTClaims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

type JWTService struct {
	now func() time.Time
}

func NewJWTService() *JWTService {
	return &JWTService{now: time.Now}
}

// GenerateToken 签发管理员 Token，返回 Token 与过期时间
func (s *JWTService) GenerateToken(username string) (string, time.Time, error) {
	cfg := config.Get()
	now := s.now()
	expiresAt := now.Add(TokenTTL)

	claims := JWTClaims{
		Username: username,
		Role:     RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			Issuer:    cfg.JWTIssuer,
			Audience:  jwt.ClaimStrings{cfg.JWTAudience},
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(cfg.JWTSecret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

func (s *JWTService) ValidateToken(tokenString string) (*JWTClaims, error) {
	cfg := config.Get()

	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(cfg.JWTSecret), nil
	}, jwt.WithTimeFunc(s.now))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	if claims.Issuer != cfg.JWTIssuer {
		return nil, ErrInvalidIssuer
	}

	validAudience := false
	for _, aud := range claims.Audience {
		if aud == cfg.JWTAudience {
			validAudience = true
			break
		}
	}
	if !validAudience {
		return nil, ErrInvalidAudience
	}

	if claims.Role != RoleAdmin {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
