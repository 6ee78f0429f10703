// Package model holds the persisted deck and card records shared by the accessors.
package model

import "time"

// Deck groups cards owned by a single user.
type Deck struct {
	ID        string    `gorm:"column:id;primaryKey;size:190;not null"`
	UserID    string    `gorm:"column:user_id;size:190;not null;index:idx_decks_user_archived,priority:1;uniqueIndex:idx_decks_user_slug,priority:1"`
	Name      string    `gorm:"column:name;size:255;not null"`
	Slug      string    `gorm:"column:slug;size:255;not null;uniqueIndex:idx_decks_user_slug,priority:2"`
	Archived  bool      `gorm:"column:archived;not null;default:false;index:idx_decks_user_archived,priority:2"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Deck) TableName() string {
	return "decks"
}

// Stamp assigns identity, ownership and creation time before insert.
func (d *Deck) Stamp(id string, userID string, createdAt time.Time) {
	d.ID = id
	d.UserID = userID
	d.CreatedAt = createdAt
	d.UpdatedAt = createdAt
}
