package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"tankchat/internal/config"
	"tankchat/internal/identity"
	"tankchat/internal/metrics"
	"tankchat/internal/service"
	"tankchat/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Handler 聚合所有 HTTP handler，依赖注入 service 层。
type Handler struct {
	cfg      config.Config
	presence *service.PresenceService
	rooms    *service.RoomService
	messages *service.MessageService
	hub      *ws.Hub
}

func NewHandler(cfg config.Config, presence *service.PresenceService, rooms *service.RoomService, messages *service.MessageService, hub *ws.Hub) *Handler {
	return &Handler{cfg: cfg, presence: presence, rooms: rooms, messages: messages, hub: hub}
}

// call 从 gin 上下文组装一次调用的事务上下文。
func call(c *gin.Context) service.Call {
	return service.Call{Identity: identity.Get(c), Now: time.Now()}
}

// MintIdentity 铸造新的持久身份凭证。凭证保管在客户端，后续所有调用带着它。
func (h *Handler) MintIdentity(c *gin.Context) {
	id, cred, err := identity.New(h.cfg.CredentialSecret)
	if err != nil {
		log.Error().Err(err).Msg("mint identity")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to mint identity"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"identity": id, "credential": cred})
}

// CreateRoom 处理开房请求，返回房间 id 与房间码，房间码由创建者自行分发。
func (h *Handler) CreateRoom(c *gin.Context) {
	room, err := h.rooms.Create(call(c))
	if err != nil {
		if errors.Is(err, service.ErrUnknownUser) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unknown user"})
			return
		}
		log.Error().Err(err).Str("identity", identity.Get(c)).Msg("create room")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create room"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": room.ID, "key": room.Key})
}

// JoinRoom 处理按房间码入房的请求。
func (h *Handler) JoinRoom(c *gin.Context) {
	var req struct {
		Key string `json:"key"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	room, err := h.rooms.Join(call(c), req.Key)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnknownUser):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unknown user"})
		case errors.Is(err, service.ErrInvalidRoomKey):
			c.JSON(http.StatusNotFound, gin.H{"error": "room key is not valid"})
		default:
			log.Error().Err(err).Str("identity", identity.Get(c)).Msg("join room")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to join room"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": room.ID})
}

// SetName 处理改名请求，成功后把用户快照广播给订阅者。
func (h *Handler) SetName(c *gin.Context) {
	var req struct {
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	user, err := h.presence.SetName(call(c), req.Name)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmptyName):
			c.JSON(http.StatusBadRequest, gin.H{"error": "names cannot be empty"})
		case errors.Is(err, service.ErrUnknownUser):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unknown user"})
		default:
			log.Error().Err(err).Str("identity", identity.Get(c)).Msg("set name")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to set name"})
		}
		return
	}
	h.hub.Broadcast(user)
	c.Status(http.StatusNoContent)
}

// SendMessage 是 WebSocket 发言之外的 REST 入口，语义与上行帧相同。
func (h *Handler) SendMessage(c *gin.Context) {
	var req struct {
		Kind string    `json:"kind"`
		Data []float64 `json:"data"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Kind == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	msg, err := h.messages.Send(call(c), req.Kind, req.Data)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnknownUser):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unknown user"})
		case errors.Is(err, service.ErrNotInRoom):
			c.JSON(http.StatusConflict, gin.H{"error": "user not in a room"})
		default:
			log.Error().Err(err).Str("identity", identity.Get(c)).Msg("send message")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to send message"})
		}
		return
	}
	metrics.MessagesSentTotal.Inc()
	h.hub.Broadcast(msg)
	c.JSON(http.StatusOK, msg)
}

// ListMessages 处理消息表的公开读取，按房间过滤。
func (h *Handler) ListMessages(c *gin.Context) {
	roomID, err := strconv.ParseUint(c.Query("room"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room"})
		return
	}
	limitStr := c.Query("limit")
	if limitStr == "" {
		limitStr = "50"
	}
	limit, _ := strconv.Atoi(limitStr)
	var beforeID uint64
	if bid := c.Query("before_id"); bid != "" {
		if v, err := strconv.ParseUint(bid, 10, 64); err == nil {
			beforeID = v
		}
	}
	msgs, err := h.messages.ListByRoom(roomID, limit, beforeID)
	if err != nil {
		log.Error().Err(err).Uint64("room", roomID).Msg("list messages")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list messages"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// ListUsers 处理用户表的公开读取。
func (h *Handler) ListUsers(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	users, err := h.presence.List(limit)
	if err != nil {
		log.Error().Err(err).Msg("list users")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list users"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}
