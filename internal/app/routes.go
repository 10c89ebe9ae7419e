package app

import (
	"context"
	"net/http"
	"slices"
	"time"

	"TodoAPI/internal/auth"
	"TodoAPI/internal/cache"
	"TodoAPI/internal/config"
	"TodoAPI/internal/handlers"
	"TodoAPI/internal/logging"
	"TodoAPI/internal/repo"
	"TodoAPI/internal/service"

	"github.com/charmbracelet/log"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"github.com/swaggo/swag"
)

// Deps are the collaborators the HTTP layer is built from. Cache and
// Denylist may be nil.
type Deps struct {
	Config   config.Config
	Logger   *log.Logger
	Users    repo.UserRepo
	Todos    repo.TodoRepo
	Subtasks repo.SubtaskRepo
	Tags     repo.TagRepo
	Cache    *cache.TodoCache
	Denylist *auth.Denylist
	Tokens   *auth.TokenIssuer
	Hasher   auth.Hasher
	Ping     func(context.Context) error
}

func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(logging.RequestLogger(d.Logger), gin.Recovery())
	r.Use(cors.New(corsConfig(d.Config.CORS)))
	Setup(r, d)
	return r
}

func corsConfig(cfg config.CORSConfig) cors.Config {
	c := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "HEAD"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", logging.RequestIDHeader},
		ExposeHeaders: []string{"Content-Length", "Content-Type", logging.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(cfg.AllowOrigins) == 0 || slices.Contains(cfg.AllowOrigins, "*") {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = cfg.AllowOrigins
		c.AllowCredentials = true
	}
	return c
}

// Setup registers all routes on the given engine.
func Setup(r *gin.Engine, d Deps) {
	cfg := d.Config
	r.GET("/", rootHandler(cfg))
	r.GET("/health", healthHandler(cfg, d.Ping))
	r.GET("/version", versionHandler(cfg))
	r.GET("/swagger-doc.json", swaggerDocHandler())
	r.GET("/swagger", func(c *gin.Context) { c.Redirect(http.StatusFound, "/swagger/index.html") })
	r.GET("/swagger/*any", ginSwagger.WrapHandler(
		swaggerFiles.Handler,
		ginSwagger.URL("/swagger-doc.json"),
		ginSwagger.DefaultModelsExpandDepth(-1),
		ginSwagger.PersistAuthorization(true),
	))

	api := r.Group("/api/v1")

	userSvc := service.NewUserService(d.Users, d.Hasher)
	todoSvc := service.NewTodoService(d.Todos, d.Subtasks, d.Tags, d.Cache)

	requireBearer := auth.RequireBearer(d.Tokens, userSvc, d.Denylist)
	protected := api.Group("", requireBearer)

	authHandler := handlers.NewAuthHandler(userSvc, d.Tokens, d.Denylist, cfg.Auth.TokenTTL.Duration())
	api.POST("/register", authHandler.Register)
	api.POST("/login", authHandler.Login)
	protected.POST("/logout", authHandler.Logout)

	registerUserRoutes(protected, handlers.NewUserHandler(userSvc))
	registerTodoRoutes(protected, handlers.NewTodoHandler(todoSvc))
}

func rootHandler(cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service": "Todo API",
			"version": cfg.App.Version,
			"env":     cfg.App.Env,
			"docs":    "/swagger/index.html",
			"spec":    "/swagger-doc.json",
			"health":  "/health",
			"api":     "/api/v1",
		})
	}
}

func healthHandler(cfg config.Config, ping func(context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if ping != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := ping(ctx); err != nil {
				logging.FromContext(ctx).Error("health check", "err", err)
				c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "env": cfg.App.Env})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"ok": true, "env": cfg.App.Env})
	}
}

func versionHandler(cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"version": cfg.App.Version})
	}
}

func swaggerDocHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		doc, err := swag.ReadDoc("swagger")
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(doc))
	}
}

func registerUserRoutes(api *gin.RouterGroup, h *handlers.UserHandler) {
	api.GET("/me", h.Me)
	api.PUT("/me", h.UpdateMe)
}

func registerTodoRoutes(api *gin.RouterGroup, h *handlers.TodoHandler) {
	api.GET("/todos", h.List)
	api.POST("/todos", h.Create)
	api.GET("/todos/search", h.Search)
	api.GET("/todos/overdue", h.Overdue)
	api.GET("/todos/tags/:tag_name", h.ListByTag)
	api.GET("/todos/:id", h.GetByID)
	api.PUT("/todos/:id", h.Update)
	api.DELETE("/todos/:id", h.Delete)
	api.POST("/todos/:id/complete", h.Complete)
	api.POST("/todos/:id/subtasks", h.CreateSubtask)
	api.PUT("/todos/:id/subtasks/:subtask_id", h.UpdateSubtask)
	api.DELETE("/todos/:id/subtasks/:subtask_id", h.DeleteSubtask)
	api.POST("/todos/:id/tags", h.AddTag)
	api.DELETE("/todos/:id/tags/:tag_id", h.RemoveTag)
}
