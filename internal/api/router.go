package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// NewRouter wires every route onto a fresh gin engine.
func NewRouter(h *Handler, users UserLookup, log *zap.Logger) *gin.Engine {
	if log == nil {
		log = zap.NewNop()
	}
	RegisterValidators()

	router := gin.New()
	router.Use(Recovery(log), RequestLogger(log), Metrics())

	router.GET("/healthz", h.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	{
		api.POST("/users", h.RegisterUser)
		api.GET("/scheduler/status", h.SchedulerStatus)

		protected := api.Group("")
		protected.Use(RequireUser(users))
		{
			protected.GET("/reminder-preferences", h.GetPreferences)
			protected.PUT("/reminder-preferences", h.UpdatePreferences)
			protected.POST("/test-reminder", h.TestReminder)
			protected.GET("/reminders/history", h.History)

			tasks := protected.Group("/tasks")
			{
				tasks.GET("", h.ListTasks)
				tasks.POST("", h.CreateTask)
				tasks.GET("/:id", h.GetTask)
				tasks.PUT("/:id", h.UpdateTask)
				tasks.DELETE("/:id", h.DeleteTask)
			}
		}
	}

	return router
}
