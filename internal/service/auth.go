package service

import (
	"crypto/subtle"
	"errors"
	"time"

	"datatav/internal/config"

	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrAdminDisabled      = errors.New("admin login is not configured")
)

// AdminAuthService 单一管理员账号，凭证来自环境变量
type AdminAuthService struct {
	username     string
	passwordHash []byte
	jwt          *JWTService
}

// NewAdminAuthService 启动时对 ADMIN_PASSWORD 做 bcrypt 哈希，明文不在内存中保留
func NewAdminAuthService() *AdminAuthService {
	cfg := config.Get()
	s := &AdminAuthService{username: cfg.AdminUsername, jwt: NewJWTService()}
	if cfg.AdminPassword == "" {
		log.Warn("auth: ADMIN_PASSWORD is empty, admin login disabled")
		return s
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		log.Errorf("auth: failed to hash admin password: %v", err)
		return s
	}
	s.passwordHash = hash
	return s
}

// Login 校验管理员凭证并签发 Token
func (s *AdminAuthService) Login(username, password string) (string, time.Time, error) {
	if len(s.passwordHash) == 0 {
		return "", time.Time{}, ErrAdminDisabled
	}

	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.username)) == 1
	passErr := bcrypt.CompareHashAndPassword(s.passwordHash, []byte(password))
	if !userOK || passErr != nil {
		return "", time.Time{}, ErrInvalidCredentials
	}

	return s.jwt.GenerateToken(s.username)
}

// JWT 返回签发 Token 所用的服务
func (s *AdminAuthService) JWT() *JWTService {
	return s.jwt
}
