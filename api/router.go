package api

import (
	"embed"
	"html/template"

	"github.com/gin-gonic/gin"

	"github.com/tekurkaa/DocuRAG/api/handler"
	"github.com/tekurkaa/DocuRAG/api/middleware"
)

//go:embed web/templates
var templatesFS embed.FS

// SetupRouter 设置API路由
// 配置表单页面、JSON API端点并应用中间件
func SetupRouter(
	processHandler *handler.ProcessHandler,
	qaHandler *handler.QAHandler,
	docHandler *handler.DocumentHandler,
) *gin.Engine {
	router := gin.New()

	// 应用全局中间件
	router.Use(middleware.SetTraceID())
	router.Use(middleware.Logger())
	router.Use(middleware.ErrorHandler())

	// 在调试模式下记录请求体
	if gin.Mode() == gin.DebugMode {
		router.Use(middleware.RequestBodyLog())
	}

	// 表单页面
	tmpl := template.Must(template.ParseFS(templatesFS, "web/templates/*.html"))
	router.SetHTMLTemplate(tmpl)
	router.GET("/", handler.NewWebHandler().Index)

	// JSON API
	api := router.Group("/api")
	{
		// 文档入库 - POST /api/process
		api.POST("/process", processHandler.Process)

		// 问答 - POST /api/qa
		api.POST("/qa", qaHandler.Answer)

		// 文档记录管理API
		docGroup := api.Group("/documents")
		{
			// 获取文档列表 - GET /api/documents
			docGroup.GET("", docHandler.List)

			// 获取单个文档记录 - GET /api/documents/:id
			docGroup.GET("/:id", docHandler.Get)

			// 删除文档记录 - DELETE /api/documents/:id
			docGroup.DELETE("/:id", docHandler.Delete)
		}

		// 健康检查API
		api.GET("/health", func(c *gin.Context) {
			c.JSON(200, gin.H{
				"status": "ok",
			})
		})
	}

	return router
}

// Cors 跨域资源共享中间件
// 需要支持跨域请求时可以启用
func Cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Trace-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
