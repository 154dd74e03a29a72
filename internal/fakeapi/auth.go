package fakeapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// GenerateToken signs a token for userID that expires after ttl.
func (s *Server) GenerateToken(userID uint, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *Server) validateToken(tokenStr string) (*jwt.Token, error) {
	return jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
}

// RequireAuth accepts "Token <jwt>" and "Bearer <jwt>" headers.
func (s *Server) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		scheme, tokenString, ok := strings.Cut(authHeader, " ")
		if !ok || (scheme != "Token" && scheme != "Bearer") || tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Authentication credentials were not provided."})
			return
		}

		token, err := s.validateToken(tokenString)
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Invalid or expired token"})
			return
		}
		if claims, ok := token.Claims.(jwt.MapClaims); ok {
			c.Set("user_id", claims["user_id"])
		}
		c.Next()
	}
}

type loginInput struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login exchanges credentials for a token.
func (s *Server) Login(c *gin.Context) {
	var input loginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	var user User
	if err := s.db.Where("username = ?", input.Username).First(&user).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.log.WithError(err).Error("Login lookup failed")
		}
		c.JSON(http.StatusBadRequest, gin.H{"non_field_errors": []string{"Invalid credentials"}})
		return
	}
	if !checkPassword(user.Password, input.Password) {
		c.JSON(http.StatusBadRequest, gin.H{"non_field_errors": []string{"Invalid credentials"}})
		return
	}

	token, err := s.GenerateToken(user.ID, s.cfg.TokenTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "could not generate token"})
		return
	}
	s.log.WithFields(logrus.Fields{"user_id": user.ID, "username": user.Username}).Info("User logged in")
	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user":  gin.H{"id": user.ID, "username": user.Username, "role": user.Role},
	})
}

// ensureAdmin creates the configured admin account if it is missing.
func (s *Server) ensureAdmin() error {
	if s.cfg.AdminUser == "" {
		return nil
	}
	var count int64
	if err := s.db.Model(&User{}).Where("username = ?", s.cfg.AdminUser).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	hash, err := hashPassword(s.cfg.AdminPassword)
	if err != nil {
		return err
	}
	role := s.cfg.AdminRole
	if role == "" {
		role = "super_admin"
	}
	return s.db.Create(&User{Username: s.cfg.AdminUser, Password: hash, Role: role}).Error
}
