package app

import (
	"examprep_backend/internal/config"
	"examprep_backend/internal/middleware"
	"examprep_backend/internal/model"
	"examprep_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, repos *repositories, cfg *config.Config) {
	router.GET("/metrics", monitoring.PrometheusHandler())
	router.GET("/health", c.health.HealthCheck)

	auth := middleware.AuthMiddleware(cfg.JWT, repos.revoked)

	// 1. 公共路由(无需登录)
	a.registerPublicRoutes(router, c)

	// 2. 需要授权的路由
	authGroup := router.Group("/api/v1")
	authGroup.Use(auth)
	{
		a.registerUserRoutes(authGroup, c)
	}

	// 3. 管理员相关接口
	a.registerAdminRoutes(router, c, auth)
}

func (a *App) registerPublicRoutes(router *gin.Engine, c *controllers) {
	public := router.Group("/api/v1/auth")
	{
		public.POST("/signup", c.auth.Signup)
		public.POST("/verify", c.auth.Verify)
		public.POST("/resend", c.auth.Resend)
		public.POST("/login", c.auth.Login)
		public.POST("/refresh", c.auth.Refresh)
		public.POST("/reset-password", c.auth.RequestPasswordReset)
		public.POST("/confirm-reset-password", c.auth.ConfirmPasswordReset)
	}
}

func (a *App) registerUserRoutes(group *gin.RouterGroup, c *controllers) {
	group.POST("/auth/logout", c.auth.Logout)
	group.GET("/auth/me", c.auth.Me)

	profile := group.Group("/profile")
	{
		profile.GET("", c.profile.GetProfile)
		profile.PUT("", c.profile.UpdateProfile)
		profile.DELETE("", c.profile.DeleteAccount)
		profile.POST("/change-password", c.profile.ChangePassword)
		profile.POST("/change-email", c.profile.RequestEmailChange)
		profile.POST("/verify-email-change", c.profile.ConfirmEmailChange)
		profile.POST("/picture", c.profile.UploadProfilePicture)
		profile.DELETE("/picture", c.profile.DeleteProfilePicture)
		profile.GET("/attempts", c.profile.MyAttempts)
	}

	tests := group.Group("/tests")
	{
		tests.GET("", c.test.ListTests)
		tests.GET("/:id", c.test.GetTest)
		tests.POST("/:id/start", c.test.StartTest)
		tests.POST("/:id/submit", c.test.SubmitTest)
		tests.GET("/:id/attempts", c.test.ListAttempts)
		tests.GET("/attempts/:attemptId", c.test.GetAttemptResult)
	}
}

func (a *App) registerAdminRoutes(router *gin.Engine, c *controllers, auth gin.HandlerFunc) {
	admin := router.Group("/api/v1/admin")
	admin.Use(auth, middleware.RoleMiddleware(model.RoleAdmin))

	tests := admin.Group("/tests")
	{
		tests.POST("", c.adminTest.CreateTest)
		tests.GET("", c.adminTest.ListTests)
		tests.GET("/:id", c.adminTest.GetTest)
		tests.PUT("/:id", c.adminTest.UpdateTest)
		tests.DELETE("/:id", c.adminTest.DeleteTest)
		tests.POST("/:id/publish", c.adminTest.PublishTest)
		tests.GET("/:id/statistics", c.adminTest.Statistics)
		tests.POST("/questions/:questionId/image", c.adminTest.UploadQuestionImage)
		tests.DELETE("/questions/:questionId/image", c.adminTest.DeleteQuestionImage)
	}

	users := admin.Group("/users")
	{
		users.GET("", c.adminUser.ListUsers)
		users.POST("", c.adminUser.CreateUser)
		users.GET("/:id", c.adminUser.GetUser)
		users.PUT("/:id", c.adminUser.UpdateUser)
		users.DELETE("/:id", c.adminUser.DeleteUser)
	}
}
