package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/schedura/console-gateway/internal/middleware"
	"github.com/schedura/console-gateway/internal/models"
	"github.com/schedura/console-gateway/internal/service"
)

// Handlers groups everything RegisterRoutes mounts.
type Handlers struct {
	Auth     *AuthHandler
	Upload   *UploadHandler
	Schedule *ScheduleHandler
	Metrics  *service.MetricsService
	AuthSvc  *service.AuthService
}

// RegisterRoutes mounts the console API under the given prefix. Uploads and
// schedule mutation are admin-only; schedule reads are open to any
// authenticated role.
func RegisterRoutes(r *gin.Engine, prefix string, h Handlers) {
	api := r.Group(prefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", h.Auth.Login)
		auth.POST("/logout", h.Auth.Logout)
		auth.GET("/session", h.Auth.Session)
		auth.GET("/me", middleware.JWT(h.AuthSvc), h.Auth.Me)
	}

	upload := api.Group("/upload", middleware.JWT(h.AuthSvc), middleware.RequireRoles(models.RoleAdmin))
	{
		upload.GET("/status", h.Upload.Statuses)
		upload.POST("", h.Upload.Upload)
		upload.POST("/bulk", h.Upload.BulkUpload)
		upload.POST("/reconcile", h.Upload.Reconcile)
		upload.GET("/tasks", h.Upload.Tasks)
		upload.GET("/tasks/:id", h.Upload.TaskDetail)
		upload.DELETE("/tasks/:id", h.Upload.DeleteTask)
		upload.GET("/:category/template", h.Upload.Template)
		upload.DELETE("/:category", h.Upload.Reset)
	}

	schedules := api.Group("/schedules", middleware.JWT(h.AuthSvc))
	{
		schedules.GET("", h.Schedule.List)
		schedules.GET("/current", h.Schedule.Current)
		schedules.GET("/active-id", h.Schedule.ActiveID)
		schedules.POST("/sessions/search", h.Schedule.Search)
		schedules.GET("/:id/layout", h.Schedule.WeekLayout)
		schedules.GET("/exports/download", h.Schedule.Download)

		admin := schedules.Group("", middleware.RequireRoles(models.RoleAdmin))
		{
			admin.POST("/generate", h.Schedule.Generate)
			admin.POST("/:id/activate", h.Schedule.Activate)
			admin.DELETE("/:id", h.Schedule.Delete)
			admin.POST("/:id/export", h.Schedule.Export)
		}
	}

	if h.Metrics != nil {
		r.GET("/metrics", gin.WrapH(h.Metrics.Handler()))
	}
}
