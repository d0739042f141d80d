package handlers

import "github.com/gin-gonic/gin"

func RegisterTaskRoutes(r gin.IRouter, tasks *TaskHandler, dueBy *DueByHandler) {
	taskRoutes := r.Group("/tasks")
	{
		taskRoutes.GET("", tasks.GetTasks)
		taskRoutes.POST("", tasks.CreateTask)
		taskRoutes.GET("/:id", tasks.GetTaskByID)
		taskRoutes.PUT("/:id", tasks.UpdateTask)
		taskRoutes.DELETE("/:id", tasks.DeleteTask)

		taskRoutes.GET("/:id/due-by", dueBy.GetDueDates)
		taskRoutes.POST("/:id/due-by", dueBy.CreateDueDate)
		taskRoutes.PUT("/:id/due-by", dueBy.UpdateDueDate)
	}
}

func RegisterCacheRoutes(r gin.IRouter, h *CacheHandler) {
	cacheRoutes := r.Group("/cache")
	{
		cacheRoutes.GET("/stats", h.GetCacheStats)
		cacheRoutes.GET("/health", h.GetCacheHealth)
		cacheRoutes.DELETE("/keys/:key", h.EvictCacheKey)
	}
}
