package fakeapi

import (
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Fields holds the client-visible attributes of a row.
type Fields map[string]any

// Row is one stored resource of any kind. Parent is the id of the record
// it cascades from, NameKey the lowercased display name for uniqueness.
type Row struct {
	ID        string    `gorm:"primaryKey;size:36"`
	Kind      string    `gorm:"index;size:32;not null"`
	Parent    string    `gorm:"index;size:36"`
	NameKey   string    `gorm:"index"`
	Fields    Fields    `gorm:"serializer:json"`
	CreatedAt time.Time `gorm:"index"`
	UpdatedAt time.Time
}

func (r *Row) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

type User struct {
	gorm.Model
	Username string `gorm:"uniqueIndex;not null"`
	Password string `json:"-"`
	Role     string `gorm:"not null;default:user"`
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(hash), err
}

func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
