package model

import "time"

// Card is a front/back pair stored inside a deck.
type Card struct {
	ID        string    `gorm:"column:id;primaryKey;size:190;not null"`
	UserID    string    `gorm:"column:user_id;size:190;not null;index:idx_cards_user_deck,priority:1"`
	DeckID    string    `gorm:"column:deck_id;size:190;not null;index:idx_cards_user_deck,priority:2"`
	Front     string    `gorm:"column:front;type:text;not null"`
	Back      string    `gorm:"column:back;type:text;not null"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Card) TableName() string {
	return "cards"
}

// Stamp assigns identity, ownership and creation time before insert.
func (c *Card) Stamp(id string, userID string, createdAt time.Time) {
	c.ID = id
	c.UserID = userID
	c.CreatedAt = createdAt
	c.UpdatedAt = createdAt
}
