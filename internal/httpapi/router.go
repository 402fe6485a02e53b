// Package httpapi serves the template service over HTTP with gin. The
// render endpoint doubles as the contract used by remote generators.
package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/a3tai/mcp-pdf-templates/internal/logger"
	"github.com/a3tai/mcp-pdf-templates/internal/service"
)

// Options configures the router
type Options struct {
	Service     *service.Service
	Logger      *logger.Logger
	CORSOrigins []string
	MaxFileSize int64
	Version     string
	// MCP, when set, is mounted at /sse and /message
	MCP http.Handler
}

// NewRouter builds the gin engine with every route
func NewRouter(opts Options) *gin.Engine {
	log := logger.OrNop(opts.Logger).With("component", "http")
	h := &Handler{svc: opts.Service, maxFileSize: opts.MaxFileSize, version: opts.Version}

	router := gin.New()
	router.Use(RequestID())
	router.Use(Recovery(log))
	router.Use(RequestLogger(log))
	router.Use(CORS(opts.CORSOrigins))

	router.GET("/health", h.Health)

	api := router.Group("/api")
	{
		api.GET("/templates", h.ListTemplates)
		api.POST("/templates", h.RegisterTemplate)
		api.GET("/templates/:id", h.GetTemplate)
		api.PUT("/templates/:id/mapping", h.SaveMapping)
		api.POST("/templates/:id/import-forms", h.ImportForms)
		api.GET("/templates/:id/pages/:page", h.RenderPage)
		api.POST("/templates/:id/record", h.InitRecord)
		api.POST("/templates/:id/render", h.Render)
		api.POST("/templates/:id/generate", h.Generate)

		api.GET("/documents", h.ListDocuments)
		api.GET("/documents/:id", h.GetDocument)

		editor := api.Group("/editor/sessions")
		editor.POST("", h.OpenEditor)
		editor.GET("/:sid", h.EditorState)
		editor.DELETE("/:sid", h.CloseEditor)
		editor.POST("/:sid/page", h.EditorSetPage)
		editor.POST("/:sid/fields", h.EditorAddField)
		editor.PATCH("/:sid/fields/:fid", h.EditorUpdateField)
		editor.DELETE("/:sid/fields/:fid", h.EditorDeleteField)
		editor.POST("/:sid/pointer", h.EditorPointer)
		editor.POST("/:sid/save", h.EditorSave)
		editor.GET("/:sid/preview", h.EditorPreview)
	}

	if opts.MCP != nil {
		router.Any("/sse", gin.WrapH(opts.MCP))
		router.Any("/message", gin.WrapH(opts.MCP))
	}

	return router
}
