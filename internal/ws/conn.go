package ws

import (
	"encoding/json"
	"net/http"
	"time"

	"tankchat/internal/config"
	"tankchat/internal/identity"
	"tankchat/internal/metrics"
	"tankchat/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	identity string
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// InboundFrame 是客户端上行的发言帧。kind/data 不做校验，原样入表。
type InboundFrame struct {
	Kind string    `json:"kind"`
	Data []float64 `json:"data,omitempty"`
}

// Serve 处理订阅者会话：升级连接即触发 connect，连接断开即触发
// disconnect。会话期间的上行帧全部按发消息处理。
func Serve(h *Hub, presence *service.PresenceService, msgSvc *service.MessageService, cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		cred, proto := identity.FromWebSocket(c.Request)
		if cred == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing credential"})
			return
		}
		id, err := identity.Parse(cred, cfg.CredentialSecret)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credential"})
			return
		}

		// 凭证走了子协议的话，握手响应要把选中的子协议回写给客户端。
		var respHeader http.Header
		if proto != "" {
			respHeader = http.Header{"Sec-WebSocket-Protocol": {proto}}
		}
		conn, err := upgrader.Upgrade(c.Writer, c.Request, respHeader)
		if err != nil {
			return
		}

		user, err := presence.Connect(service.Call{Identity: id, Now: time.Now()})
		if err != nil {
			log.Error().Err(err).Str("identity", id).Msg("connect")
			_ = conn.Close()
			return
		}

		client := &Client{hub: h, conn: conn, send: make(chan []byte, 256), identity: id}
		h.register <- client
		h.Broadcast(user)

		go client.writePump()
		client.readPump(presence, msgSvc)
	}
}

func (c *Client) readPump(presence *service.PresenceService, msgSvc *service.MessageService) {
	defer func() {
		c.hub.unregister <- c
		user, err := presence.Disconnect(service.Call{Identity: c.identity, Now: time.Now()})
		if err != nil {
			log.Error().Err(err).Str("identity", c.identity).Msg("disconnect")
		} else if user != nil {
			c.hub.Broadcast(user)
		}
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(1 << 20) // 1MB
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		var in InboundFrame
		if err := json.Unmarshal(data, &in); err != nil || in.Kind == "" {
			continue
		}
		msg, err := msgSvc.Send(service.Call{Identity: c.identity, Now: time.Now()}, in.Kind, in.Data)
		if err != nil {
			// 未入房等业务失败只打回给发送方，不断连接。回执经由 hub
			// 的事件循环投递，send 通道始终只有 hub 一个写入方。
			c.hub.SendTo(c, gin.H{"type": "error", "error": err.Error()})
			continue
		}
		metrics.MessagesSentTotal.Inc()
		c.hub.Broadcast(msg)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			_, _ = w.Write(message)
			_ = w.Close()
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
