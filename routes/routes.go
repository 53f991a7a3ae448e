package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"klik-api/cache"
	"klik-api/config"
	"klik-api/controllers"
	"klik-api/middleware"
	"klik-api/realtime"
	"klik-api/services"
	"klik-api/storage"
)

// Deps carries the shared infrastructure the handlers are built from.
type Deps struct {
	DB          *gorm.DB
	Config      *config.Config
	Email       *services.EmailService
	Store       storage.Store
	Hub         *realtime.Hub
	Cache       *cache.Cache
	RateLimiter *middleware.RateLimiter
}

// NewRouter builds the engine with the global middleware chain and all routes.
func NewRouter(deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(deps.Config.CORSOrigins))
	r.MaxMultipartMemory = services.MaxImageSize + 1<<20

	SetupRoutes(r, deps)
	return r
}

func SetupRoutes(r *gin.Engine, deps Deps) {
	db := deps.DB
	cfg := deps.Config

	// Services
	media := services.NewMediaService(deps.Store)
	notifications := services.NewNotificationService(db, deps.Hub)
	messaging := services.NewMessagingService(db, deps.Hub, media, notifications)

	// Controllers
	authController := controllers.NewAuthController(db, cfg, deps.Email)
	userController := controllers.NewUserController(db, media, deps.Cache)
	followController := controllers.NewFollowController(db, notifications)
	postController := controllers.NewPostController(db, media, notifications, deps.Cache)
	commentController := controllers.NewCommentController(db, media, notifications, deps.Cache)
	notificationController := controllers.NewNotificationController(db, deps.Hub)
	messageController := controllers.NewMessageController(messaging)
	listController := controllers.NewListController(db)
	searchController := controllers.NewSearchController(db, deps.Cache)
	realtimeController := controllers.NewRealtimeController(deps.Hub, messaging)

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
			"status":  "healthy",
		})
	})

	// API version 1
	v1 := r.Group("/api/v1")
	if deps.RateLimiter != nil {
		v1.Use(deps.RateLimiter.Middleware())
	}
	v1.Use(middleware.ValidateJSON())

	// Auth routes (public)
	auth := v1.Group("/auth")
	{
		auth.POST("/register", authController.Register)
		auth.POST("/login", authController.Login)
		auth.POST("/logout", authController.Logout)
		auth.POST("/send-verification", authController.SendVerificationCode)
		auth.POST("/verify-code", authController.VerifyCode)
		auth.POST("/forgot-password", authController.ForgotPassword)
		auth.POST("/reset-password", authController.ResetPassword)

		auth.GET("/debug/verification-code", authController.GetVerificationCode)
	}

	// Readable without an account; the viewer is known when a token is sent.
	public := v1.Group("/")
	public.Use(middleware.OptionalAuth(cfg.JWTSecret))
	{
		public.GET("/users/:username", userController.GetProfile)
		public.GET("/users/:username/posts", postController.GetUserPosts)
		public.GET("/users/:username/statistics", userController.GetStatistics)
		public.GET("/users/:username/followers", followController.GetFollowers)
		public.GET("/users/:username/following", followController.GetFollowing)
		public.POST("/users/:username/view", userController.RecordView)

		public.GET("/posts/:id", postController.GetPost)
		public.GET("/posts/:id/comments", commentController.GetComments)

		search := public.Group("/search")
		{
			search.GET("/users", searchController.SearchProfiles)
			search.GET("/posts", searchController.SearchPosts)
			search.GET("/hashtags/:tag", searchController.SearchHashtag)
			search.GET("/trending", searchController.GetTrending)
		}
	}

	// Protected routes
	protected := v1.Group("/")
	protected.Use(middleware.AuthMiddleware(cfg.JWTSecret))
	{
		protected.PUT("/auth/password", authController.ChangePassword)

		users := protected.Group("/users")
		{
			users.GET("/me", userController.GetMe)
			users.PUT("/me", userController.UpdateProfile)
			users.GET("/me/settings", userController.GetSettings)
			users.PUT("/me/settings", userController.UpdateSettings)
			users.GET("/me/analytics", userController.GetAnalytics)
			users.POST("/avatar", userController.UploadAvatar)
			users.POST("/banner", userController.UploadBanner)
		}

		follows := protected.Group("/follows")
		{
			follows.POST("/:id", followController.Follow)
			follows.DELETE("/:id", followController.Unfollow)
		}

		blocks := protected.Group("/blocks")
		{
			blocks.GET("", followController.GetBlocked)
			blocks.POST("/:id", followController.Block)
			blocks.DELETE("/:id", followController.Unblock)
		}

		posts := protected.Group("/posts")
		{
			posts.GET("", postController.GetFeed)
			posts.POST("", postController.CreatePost)
			posts.GET("/saved", postController.GetSavedPosts)
			posts.PUT("/:id", postController.UpdatePost)
			posts.DELETE("/:id", postController.DeletePost)
			posts.POST("/:id/like", postController.LikePost)
			posts.DELETE("/:id/like", postController.UnlikePost)
			posts.POST("/:id/save", postController.SavePost)
			posts.DELETE("/:id/save", postController.UnsavePost)
			posts.POST("/:id/share", postController.SharePost)
			posts.POST("/:id/comments", commentController.CreateComment)
		}

		comments := protected.Group("/comments")
		{
			comments.PUT("/:id", commentController.UpdateComment)
			comments.DELETE("/:id", commentController.DeleteComment)
			comments.POST("/:id/like", commentController.LikeComment)
			comments.DELETE("/:id/like", commentController.UnlikeComment)
		}

		notificationsGroup := protected.Group("/notifications")
		{
			notificationsGroup.GET("", notificationController.GetNotifications)
			notificationsGroup.GET("/stats", notificationController.GetNotificationStats)
			notificationsGroup.PUT("/read-all", notificationController.MarkAllAsRead)
			notificationsGroup.PUT("/:id/read", notificationController.MarkAsRead)
			notificationsGroup.DELETE("/:id", notificationController.DeleteNotification)
		}

		conversations := protected.Group("/conversations")
		{
			conversations.POST("", messageController.StartConversation)
			conversations.GET("", messageController.GetConversations)
			conversations.GET("/unread-count", messageController.GetUnreadCount)
			conversations.GET("/:id", messageController.GetConversation)
			conversations.GET("/:id/messages", messageController.GetMessages)
			conversations.POST("/:id/messages", messageController.SendMessage)
			conversations.PUT("/:id/read", messageController.MarkRead)
		}

		lists := protected.Group("/lists")
		{
			lists.POST("", listController.CreateList)
			lists.GET("", listController.GetMyLists)
			lists.GET("/containing/:userId", listController.GetListsContaining)
			lists.DELETE("/:id", listController.DeleteList)
			lists.GET("/:id/members", listController.GetMembers)
			lists.POST("/:id/members", listController.AddMember)
			lists.DELETE("/:id/members/:userId", listController.RemoveMember)
		}

		protected.GET("/realtime/stream", realtimeController.Stream)
	}
}
