package server

import (
	"net/http"
	"time"

	"tankchat/internal/config"
	"tankchat/internal/identity"
	"tankchat/internal/metrics"
	"tankchat/internal/mw"
	"tankchat/internal/service"
	"tankchat/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

// SetupRouter 统一初始化 Gin 中间件、REST API 以及 WebSocket 端点。
func SetupRouter(cfg config.Config, gdb *gorm.DB, hub *ws.Hub) *gin.Engine {
	presence := service.NewPresenceService(gdb)
	rooms := service.NewRoomService(gdb)
	messages := service.NewMessageService(gdb)
	h := NewHandler(cfg, presence, rooms, messages, hub)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(metrics.GinMiddleware())
	r.Use(mw.CORS(cfg.Env))

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	api.POST("/identity", h.MintIdentity)

	// 需要身份凭证的业务接口。限速放在身份提取之后，按身份计费。
	authed := api.Group("")
	authed.Use(identity.Middleware(cfg.CredentialSecret))
	authed.Use(mw.RateLimit(rate.Every(time.Second/20), 40))

	authed.POST("/rooms", h.CreateRoom)
	authed.POST("/rooms/join", h.JoinRoom)
	authed.POST("/profile/name", h.SetName)
	authed.POST("/messages", h.SendMessage)
	authed.GET("/messages", h.ListMessages)
	authed.GET("/users", h.ListUsers)

	r.GET("/ws", ws.Serve(hub, presence, messages, cfg))

	return r
}
