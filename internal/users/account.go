package users

import (
	"strings"
	"time"
)

// Account is the credential record behind a flashdeck user id.
type Account struct {
	ID           string     `gorm:"column:id;primaryKey;size:190;not null"`
	Email        string     `gorm:"column:email;size:320;not null;uniqueIndex"`
	PasswordHash string     `gorm:"column:password_hash;size:255;not null"`
	LastLoginAt  *time.Time `gorm:"column:last_login_at"`
	CreatedAt    time.Time  `gorm:"column:created_at;not null"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;not null"`
}

// TableName exposes the table backing user accounts.
func (Account) TableName() string {
	return "user_accounts"
}

func normalizeEmail(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
