package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	TargetPost    = "post"
	TargetComment = "comment"
)

// ReactionKinds is the closed set of accepted reaction types.
var ReactionKinds = []string{"like", "love", "haha", "angry", "sad", "wow"}

func IsValidReactionKind(kind string) bool {
	for _, k := range ReactionKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// Reaction points at a Post or a Comment through (TargetType, TargetID).
// The composite unique index guarantees at most one row per author and
// target; changing your mind overwrites Type in place.
type Reaction struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	AuthorID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_reactions_author_target,priority:1" json:"author_id"`
	Author     User      `gorm:"constraint:OnDelete:CASCADE" json:"author,omitempty"`
	TargetType string    `gorm:"size:20;not null;uniqueIndex:idx_reactions_author_target,priority:2;index:idx_reactions_target,priority:1" json:"target_type"`
	TargetID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_reactions_author_target,priority:3;index:idx_reactions_target,priority:2" json:"target_id"`
	Type       string    `gorm:"size:20;not null" json:"type"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (r *Reaction) TableName() string {
	return "reactions"
}

func (r *Reaction) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == uuid.Nil {
		r.ID, err = uuid.NewV7()
	}
	return
}
