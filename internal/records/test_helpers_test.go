package records

import (
	"fmt"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/flashdeck/internal/model"
	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type sequenceIDGenerator struct {
	prefix string
	next   int
}

func (g *sequenceIDGenerator) NewID() (string, error) {
	g.next++
	return fmt.Sprintf("%s-%d", g.prefix, g.next), nil
}

type steppingClock struct {
	current time.Time
}

func (c *steppingClock) Now() time.Time {
	c.current = c.current.Add(time.Second)
	return c.current
}

func openTestDatabase(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:records_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&model.Deck{}, &model.Card{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func newDeckAccessor(t *testing.T, db *gorm.DB) *Accessor[model.Deck, *model.Deck] {
	t.Helper()
	clock := &steppingClock{current: time.Unix(1700000000, 0).UTC()}
	accessor, err := NewAccessor[model.Deck](AccessorConfig{
		Database:   db,
		Clock:      clock.Now,
		IDProvider: &sequenceIDGenerator{prefix: "deck"},
	})
	if err != nil {
		t.Fatalf("failed to construct deck accessor: %v", err)
	}
	return accessor
}

func newCardAccessor(t *testing.T, db *gorm.DB) *Accessor[model.Card, *model.Card] {
	t.Helper()
	accessor, err := NewAccessor[model.Card](AccessorConfig{
		Database:   db,
		IDProvider: &sequenceIDGenerator{prefix: "card"},
	})
	if err != nil {
		t.Fatalf("failed to construct card accessor: %v", err)
	}
	return accessor
}

func mustUserID(t *testing.T, value string) UserID {
	t.Helper()
	id, err := NewUserID(value)
	if err != nil {
		t.Fatalf("unexpected user id error: %v", err)
	}
	return id
}

func mustRecordID(t *testing.T, value string) RecordID {
	t.Helper()
	id, err := NewRecordID(value)
	if err != nil {
		t.Fatalf("unexpected record id error: %v", err)
	}
	return id
}
