package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/quypq/blogapi/internal/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ReactionRepository interface {
	// Upsert inserts the reaction or, when the (author, target) row
	// already exists, overwrites its type in one atomic statement.
	// Returns the previous type ("" if the row is new) and whether a
	// new row was created.
	Upsert(ctx context.Context, reaction *entity.Reaction) (oldType string, created bool, err error)
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Reaction, error)
	FindByTarget(ctx context.Context, targetType string, targetID uuid.UUID) ([]entity.Reaction, error)
	FindByTargets(ctx context.Context, targetType string, targetIDs []uuid.UUID) (map[uuid.UUID][]entity.Reaction, error)
	Save(ctx context.Context, reaction *entity.Reaction) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type reactionRepository struct {
	db *gorm.DB
}

func NewReactionRepository(db *gorm.DB) ReactionRepository {
	return &reactionRepository{db: db}
}

func (r *reactionRepository) Upsert(ctx context.Context, reaction *entity.Reaction) (string, bool, error) {
	// Use Find with slice to avoid "record not found" log noise from GORM's First()
	var existing []entity.Reaction
	err := r.db.WithContext(ctx).
		Where("author_id = ? AND target_type = ? AND target_id = ?",
			reaction.AuthorID, reaction.TargetType, reaction.TargetID).
		Limit(1).
		Find(&existing).Error
	if err != nil {
		return "", false, err
	}

	oldType := ""
	if len(existing) > 0 {
		oldType = existing[0].Type
	}

	// Single atomic statement against the composite unique index:
	// concurrent upserts by the same author on the same target converge
	// to one row, last writer wins on type.
	err = r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "author_id"}, {Name: "target_type"}, {Name: "target_id"},
		},
		DoUpdates: clause.Assignments(map[string]interface{}{"type": reaction.Type}),
	}).Create(reaction).Error
	if err != nil {
		return "", false, err
	}

	if len(existing) > 0 {
		// The conflict path updated the existing row; reflect its identity.
		reaction.ID = existing[0].ID
		reaction.CreatedAt = existing[0].CreatedAt
		return oldType, false, nil
	}

	// The pre-read saw nothing, but a concurrent upsert may have taken the
	// conflict path, in which case our generated id was never inserted.
	// Re-read by the unique key so callers always get the row that won.
	var row entity.Reaction
	if err := r.db.WithContext(ctx).
		Where("author_id = ? AND target_type = ? AND target_id = ?",
			reaction.AuthorID, reaction.TargetType, reaction.TargetID).
		Take(&row).Error; err != nil {
		return "", false, err
	}

	created := row.ID == reaction.ID
	reaction.ID = row.ID
	reaction.CreatedAt = row.CreatedAt
	return "", created, nil
}

func (r *reactionRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Reaction, error) {
	var reaction entity.Reaction
	if err := r.db.WithContext(ctx).Preload("Author").First(&reaction, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &reaction, nil
}

func (r *reactionRepository) FindByTarget(ctx context.Context, targetType string, targetID uuid.UUID) ([]entity.Reaction, error) {
	var reactions []entity.Reaction
	err := r.db.WithContext(ctx).
		Preload("Author").
		Where("target_type = ? AND target_id = ?", targetType, targetID).
		Order("created_at ASC").
		Find(&reactions).Error
	return reactions, err
}

func (r *reactionRepository) FindByTargets(ctx context.Context, targetType string, targetIDs []uuid.UUID) (map[uuid.UUID][]entity.Reaction, error) {
	result := make(map[uuid.UUID][]entity.Reaction)
	if len(targetIDs) == 0 {
		return result, nil
	}

	var reactions []entity.Reaction
	err := r.db.WithContext(ctx).
		Preload("Author").
		Where("target_type = ? AND target_id IN ?", targetType, targetIDs).
		Order("created_at ASC").
		Find(&reactions).Error
	if err != nil {
		return nil, err
	}

	for _, reaction := range reactions {
		result[reaction.TargetID] = append(result[reaction.TargetID], reaction)
	}
	return result, nil
}

func (r *reactionRepository) Save(ctx context.Context, reaction *entity.Reaction) error {
	return r.db.WithContext(ctx).Save(reaction).Error
}

func (r *reactionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&entity.Reaction{}, "id = ?", id).Error
}
