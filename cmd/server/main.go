package main

import (
	"context"
	"log"

	"github.com/quypq/blogapi/internal/config"
	"github.com/quypq/blogapi/internal/entity"
	"github.com/quypq/blogapi/internal/mailer"
	commentRepo "github.com/quypq/blogapi/internal/modules/comment/repository"
	postRepo "github.com/quypq/blogapi/internal/modules/post/repository"
	userRepo "github.com/quypq/blogapi/internal/modules/user/repository"
	"github.com/quypq/blogapi/internal/server"
	"github.com/quypq/blogapi/pkg/database"
	"github.com/quypq/blogapi/pkg/redisclient"
	"gorm.io/gorm"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	db := database.Connect()
	if err := migrate(db); err != nil {
		log.Fatalf("migration failed: %v", err)
	}

	redisClient := redisclient.Connect()
	if redisClient == nil {
		log.Println("redis not configured, rate limiting and mail delivery disabled")
	} else {
		sender := mailer.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass)
		worker := mailer.NewWorker(
			redisClient,
			userRepo.NewUserRepository(db),
			postRepo.NewPostRepository(db),
			commentRepo.NewCommentRepository(db),
			sender,
			cfg.MailFrom,
		)
		go worker.Start(context.Background())
	}

	srv := server.NewServer(cfg, db, redisClient)
	log.Printf("listening on :%s", cfg.Port)
	if err := srv.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}

func migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&entity.User{},
		&entity.Post{},
		&entity.Comment{},
		&entity.Reaction{},
		&entity.Notification{},
	)
}
