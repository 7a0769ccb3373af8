package mailer

import (
	"context"
	"encoding/json"
	"log"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const QueueKey = "mailer_queue"

const (
	TaskNewComment  = "new_comment"
	TaskNewReaction = "new_reaction"
	TaskWelcome     = "welcome"
)

// Task is the wire format pushed onto the mail queue. Only the fields
// relevant to the task name are set; lookups happen in the worker, not
// at enqueue time.
type Task struct {
	Name                  string     `json:"name"`
	PostAuthorID          uuid.UUID  `json:"post_author_id,omitempty"`
	ParentCommentAuthorID *uuid.UUID `json:"parent_comment_author_id,omitempty"`
	CommentID             uuid.UUID  `json:"comment_id,omitempty"`
	RecipientID           uuid.UUID  `json:"recipient_id,omitempty"`
	ReactionType          string     `json:"reaction_type,omitempty"`
	TargetType            string     `json:"target_type,omitempty"`
	TargetID              uuid.UUID  `json:"target_id,omitempty"`
	UserID                uuid.UUID  `json:"user_id,omitempty"`
}

func NewCommentTask(postAuthorID uuid.UUID, parentCommentAuthorID *uuid.UUID, commentID uuid.UUID) Task {
	return Task{
		Name:                  TaskNewComment,
		PostAuthorID:          postAuthorID,
		ParentCommentAuthorID: parentCommentAuthorID,
		CommentID:             commentID,
	}
}

func NewReactionTask(recipientID uuid.UUID, reactionType, targetType string, targetID uuid.UUID) Task {
	return Task{
		Name:         TaskNewReaction,
		RecipientID:  recipientID,
		ReactionType: reactionType,
		TargetType:   targetType,
		TargetID:     targetID,
	}
}

func WelcomeTask(userID uuid.UUID) Task {
	return Task{
		Name:   TaskWelcome,
		UserID: userID,
	}
}

// Dispatcher hands tasks to the queue. Dispatch never reports failure to
// the caller; a broken queue must not fail the mutation that triggered
// the mail.
type Dispatcher interface {
	Dispatch(ctx context.Context, task Task)
}

type redisDispatcher struct {
	rdb *redis.Client
}

func NewRedisDispatcher(rdb *redis.Client) Dispatcher {
	return &redisDispatcher{rdb: rdb}
}

func (d *redisDispatcher) Dispatch(ctx context.Context, task Task) {
	if d.rdb == nil {
		log.Printf("mail queue disabled, dropping task %s", task.Name)
		return
	}

	bytes, err := json.Marshal(task)
	if err != nil {
		log.Printf("failed to marshal mail task %s: %v", task.Name, err)
		return
	}

	if err := d.rdb.RPush(ctx, QueueKey, bytes).Err(); err != nil {
		log.Printf("failed to enqueue mail task %s: %v", task.Name, err)
	}
}
