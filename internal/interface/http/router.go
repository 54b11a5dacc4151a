package http

import (
	"embed"
	"html/template"
	"io/fs"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/docchat/internal/infra/config"
	"github.com/yanqian/docchat/pkg/metrics"
)

//go:embed web/templates/*.html web/static/*
var webFS embed.FS

// NewRouter wires up the HTTP handlers and returns a configured server.
func NewRouter(cfg *config.Config, handler *Handler, recorder *metrics.Recorder) *http.Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.MaxMultipartMemory = 8 << 20
	router.SetHTMLTemplate(template.Must(template.ParseFS(webFS, "web/templates/*.html")))
	static, err := fs.Sub(webFS, "web/static")
	if err != nil {
		panic(err)
	}

	router.Use(
		gin.Recovery(),
		requestLogger(handler.logger, recorder),
		corsMiddleware(cfg.HTTP.AllowedOrigins),
		errorHandlingMiddleware(handler.logger),
	)

	router.StaticFS("/static", http.FS(static))
	router.GET("/", handler.Page("index.html", "Home"))
	router.GET("/about", handler.Page("about.html", "About"))
	router.GET("/contact", handler.Page("contact.html", "Contact"))
	router.GET("/chat", handler.Page("chat.html", "Chat"))
	router.GET("/healthz", handler.Health)

	limited := router.Group("/chat", rateLimitMiddleware(cfg.HTTP.RateLimit, handler.logger))
	{
		limited.POST("", handler.Chat)
		limited.GET("/history", handler.History)
		limited.DELETE("/session", handler.Reset)
	}

	if cfg.Metrics.Enabled && recorder != nil {
		router.GET(cfg.Metrics.Path, gin.WrapH(recorder.Handler()))
	}

	return &http.Server{
		Addr:           cfg.HTTP.Address,
		Handler:        router,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		MaxHeaderBytes: 1 << 20,
	}
}
