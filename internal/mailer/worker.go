package mailer

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/quypq/blogapi/internal/entity"
	"github.com/redis/go-redis/v9"
)

type UserFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error)
}

type PostFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Post, error)
}

type CommentFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Comment, error)
}

// Worker drains the mail queue and sends transactional emails. All
// entity lookups happen here, against the state at execution time, so a
// deleted post or comment just skips the mail.
type Worker struct {
	rdb      *redis.Client
	users    UserFinder
	posts    PostFinder
	comments CommentFinder
	sender   Sender
	from     string
}

func NewWorker(rdb *redis.Client, users UserFinder, posts PostFinder, comments CommentFinder, sender Sender, from string) *Worker {
	return &Worker{
		rdb:      rdb,
		users:    users,
		posts:    posts,
		comments: comments,
		sender:   sender,
		from:     from,
	}
}

func (w *Worker) Start(ctx context.Context) {
	log.Println("mail worker started")
	for {
		// BLPOP with 0 timeout blocks until an item is available
		res, err := w.rdb.BLPop(ctx, 0, QueueKey).Result()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("redis BLPOP error: %v, retrying in 1s...", err)
			time.Sleep(1 * time.Second)
			continue
		}

		// res[0] is key, res[1] is value
		if len(res) < 2 {
			continue
		}

		var task Task
		if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
			log.Printf("invalid mail task json: %v", err)
			continue
		}

		if err := w.Process(ctx, task); err != nil {
			// Delivery retries belong to the queue runtime, not here.
			log.Printf("failed to process mail task %s: %v", task.Name, err)
		}
	}
}

func (w *Worker) Process(ctx context.Context, task Task) error {
	switch task.Name {
	case TaskNewComment:
		return w.sendNewCommentMail(ctx, task)
	case TaskNewReaction:
		return w.sendNewReactionMail(ctx, task)
	case TaskWelcome:
		return w.sendWelcomeMail(ctx, task)
	default:
		return fmt.Errorf("unknown mail task %q", task.Name)
	}
}

func (w *Worker) sendNewCommentMail(ctx context.Context, task Task) error {
	comment, err := w.comments.FindByID(ctx, task.CommentID)
	if err != nil {
		return fmt.Errorf("comment lookup: %w", err)
	}
	post, err := w.posts.FindByID(ctx, comment.PostID)
	if err != nil {
		return fmt.Errorf("post lookup: %w", err)
	}
	// Commenting on your own post or replying to yourself sends nothing.
	if task.PostAuthorID != comment.AuthorID {
		postAuthor, err := w.users.FindByID(ctx, task.PostAuthorID)
		if err != nil {
			return fmt.Errorf("post author lookup: %w", err)
		}

		subject := fmt.Sprintf("New comment on your post: %s", post.Title)
		body := fmt.Sprintf("%s commented:\n\n%s", comment.Author.Username, comment.Content)
		if err := w.sender.Send(subject, body, w.from, []string{postAuthor.Email}); err != nil {
			return err
		}
	}

	if task.ParentCommentAuthorID != nil && *task.ParentCommentAuthorID != comment.AuthorID {
		parentAuthor, err := w.users.FindByID(ctx, *task.ParentCommentAuthorID)
		if err != nil {
			return fmt.Errorf("parent comment author lookup: %w", err)
		}

		subject := fmt.Sprintf("New reply to your comment on: %s", post.Title)
		body := fmt.Sprintf("%s replied to your comment:\n\n%s", comment.Author.Username, comment.Content)
		if err := w.sender.Send(subject, body, w.from, []string{parentAuthor.Email}); err != nil {
			return err
		}
	}

	return nil
}

func (w *Worker) sendNewReactionMail(ctx context.Context, task Task) error {
	recipient, err := w.users.FindByID(ctx, task.RecipientID)
	if err != nil {
		return fmt.Errorf("recipient lookup: %w", err)
	}

	var subject, body string
	if task.TargetType == entity.TargetPost {
		post, err := w.posts.FindByID(ctx, task.TargetID)
		if err != nil {
			return fmt.Errorf("post lookup: %w", err)
		}
		subject = fmt.Sprintf("New reaction on your post: %s", post.Title)
		body = fmt.Sprintf("Your post received a new %s reaction.", task.ReactionType)
	} else {
		comment, err := w.comments.FindByID(ctx, task.TargetID)
		if err != nil {
			return fmt.Errorf("comment lookup: %w", err)
		}
		post, err := w.posts.FindByID(ctx, comment.PostID)
		if err != nil {
			return fmt.Errorf("post lookup: %w", err)
		}
		subject = fmt.Sprintf("New reaction on your comment on: %s", post.Title)
		body = fmt.Sprintf("Your comment received a new %s reaction.", task.ReactionType)
	}

	return w.sender.Send(subject, body, w.from, []string{recipient.Email})
}

func (w *Worker) sendWelcomeMail(ctx context.Context, task Task) error {
	user, err := w.users.FindByID(ctx, task.UserID)
	if err != nil {
		return fmt.Errorf("user lookup: %w", err)
	}
	if user.Email == "" {
		return nil
	}

	subject := "Welcome to Our Blog Platform!"
	body := fmt.Sprintf("Hi %s,\n\nThank you for signing up for our blog platform. We're excited to have you on board!", user.Username)

	return w.sender.Send(subject, body, w.from, []string{user.Email})
}
