package server

import (
	"strings"
	"time"

	"github.com/quypq/blogapi/internal/config"
	"github.com/quypq/blogapi/internal/mailer"
	"github.com/quypq/blogapi/internal/middleware"

	commentHttp "github.com/quypq/blogapi/internal/modules/comment/delivery/http"
	commentRepo "github.com/quypq/blogapi/internal/modules/comment/repository"
	commentService "github.com/quypq/blogapi/internal/modules/comment/service"

	notiHttp "github.com/quypq/blogapi/internal/modules/notification/delivery/http"
	notifRepo "github.com/quypq/blogapi/internal/modules/notification/repository"
	notifService "github.com/quypq/blogapi/internal/modules/notification/service"

	postHttp "github.com/quypq/blogapi/internal/modules/post/delivery/http"
	postRepo "github.com/quypq/blogapi/internal/modules/post/repository"
	postService "github.com/quypq/blogapi/internal/modules/post/service"

	reactionHttp "github.com/quypq/blogapi/internal/modules/reaction/delivery/http"
	reactionRepo "github.com/quypq/blogapi/internal/modules/reaction/repository"
	reactionService "github.com/quypq/blogapi/internal/modules/reaction/service"

	searchService "github.com/quypq/blogapi/internal/modules/search/service"

	userHttp "github.com/quypq/blogapi/internal/modules/user/delivery/http"
	userRepo "github.com/quypq/blogapi/internal/modules/user/repository"
	userService "github.com/quypq/blogapi/internal/modules/user/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/meilisearch/meilisearch-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Server struct {
	engine      *gin.Engine
	db          *gorm.DB
	redisClient *redis.Client
}

func NewServer(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) *Server {
	dispatcher := mailer.NewRedisDispatcher(redisClient)

	meiliHost := cfg.MeiliSearchHost
	if !strings.HasPrefix(meiliHost, "http") {
		meiliHost = "http://" + meiliHost + ":7700"
	}
	meiliClient := meilisearch.New(meiliHost, meilisearch.WithAPIKey(cfg.MeiliMasterKey))
	searchSvc := searchService.NewSearchService(meiliClient)

	users := userRepo.NewUserRepository(db)
	authSvc := userService.NewAuthService(users, dispatcher, cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	authHandler := userHttp.NewAuthHandler(authSvc)

	notificationRepository := notifRepo.NewNotificationRepository(db)
	notificationSvc := notifService.NewNotificationService(notificationRepository, redisClient)
	notificationHandler := notiHttp.NewNotificationHandler(notificationSvc, redisClient)

	posts := postRepo.NewPostRepository(db)
	comments := commentRepo.NewCommentRepository(db)
	reactions := reactionRepo.NewReactionRepository(db)

	reactionSvc := reactionService.NewReactionService(reactions, dispatcher, notificationSvc, posts, comments)
	reactionHandler := reactionHttp.NewReactionHandler(reactionSvc)

	commentSvc := commentService.NewCommentService(comments, posts, reactions, dispatcher, notificationSvc, redisClient, commentService.DefaultMaxReplyDepth)
	commentHandler := commentHttp.NewCommentHandler(commentSvc)

	postSvc := postService.NewPostService(posts, commentSvc, reactionSvc, searchSvc, redisClient)
	postHandler := postHttp.NewPostHandler(postSvc)

	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	setupCORS(router, cfg.AllowedOrigins)

	router.Use(gin.Recovery())
	router.Use(gin.Logger())

	authMiddleware := middleware.NewAuthMiddleware(cfg.JWTSecret)

	api := router.Group("/api")

	usersGroup := api.Group("/users")
	{
		usersGroup.POST("/register", authHandler.Register)
		usersGroup.POST("/login", authHandler.Login)
		usersGroup.POST("/token/refresh", authHandler.Refresh)
		usersGroup.POST("/logout", authHandler.Logout)
		usersGroup.GET("/me", authMiddleware.RequireAuth(), authHandler.Me)
	}

	// Reads require authentication too; only the author may mutate,
	// which the services enforce.
	blog := api.Group("/blog")
	blog.Use(authMiddleware.RequireAuth())
	{
		blog.GET("/posts", postHandler.List)
		blog.GET("/posts/search", postHandler.Search)
		blog.POST("/posts", postHandler.Create)
		blog.GET("/posts/:id", postHandler.Get)
		blog.PUT("/posts/:id", postHandler.Update)
		blog.PATCH("/posts/:id", postHandler.Update)
		blog.DELETE("/posts/:id", postHandler.Delete)

		blog.GET("/posts/:id/comments", commentHandler.ListByPost)
		blog.POST("/posts/:id/comments", commentHandler.Create)
		blog.GET("/comments/:id/replies", commentHandler.ListReplies)
		blog.PUT("/comments/:id", commentHandler.Update)
		blog.PATCH("/comments/:id", commentHandler.Update)
		blog.DELETE("/comments/:id", commentHandler.Delete)

		blog.GET("/posts/:id/reactions", reactionHandler.ListForPost)
		blog.POST("/posts/:id/reactions", reactionHandler.ReactToPost)
		blog.GET("/comments/:id/reactions", reactionHandler.ListForComment)
		blog.POST("/comments/:id/reactions", reactionHandler.ReactToComment)
		blog.PUT("/reactions/:id", reactionHandler.Update)
		blog.PATCH("/reactions/:id", reactionHandler.Update)
		blog.DELETE("/reactions/:id", reactionHandler.Delete)
	}

	notifications := api.Group("/notifications")
	notifications.Use(authMiddleware.RequireAuth())
	{
		notifications.GET("", notificationHandler.GetNotifications)
		notifications.GET("/unread-count", notificationHandler.UnreadCount)
		notifications.PUT("/:id/read", notificationHandler.MarkAsRead)
		notifications.PUT("/read-all", notificationHandler.MarkAllAsRead)
		notifications.GET("/ws", notificationHandler.HandleWebSocket)
	}

	return &Server{
		engine:      router,
		db:          db,
		redisClient: redisClient,
	}
}

func (s *Server) Run(addr string) error {
	return s.engine.Run(addr)
}

func setupCORS(router *gin.Engine, allowedOrigins string) {
	origins := []string{"http://localhost:3000"}
	if allowedOrigins != "" {
		origins = strings.Split(allowedOrigins, ",")
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
}
