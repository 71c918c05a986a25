package ws

import (
	"encoding/json"
	"sync"
	"sync/atomic"

	"tankchat/internal/metrics"

	"github.com/rs/zerolog/log"
)

// Hub 维护全部订阅者连接。公开表（用户、消息）的每次变更都广播给所有
// 订阅者，按房间过滤在客户端完成，服务端不维护按房间的连接分组。
//
// 每个 Client 的 send 通道只由 hub 的事件循环写入和关闭；其他 goroutine
// 一律通过 register/unregister/broadcast/direct 进入事件循环，
// 不会向已关闭的通道发送。
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	direct     chan directMessage
	stop       chan struct{}
	once       sync.Once
	online     int32
}

// directMessage 是只发给单个订阅者的事件，比如发言失败的回执。
type directMessage struct {
	to  *Client
	msg []byte
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 256),
		direct:     make(chan directMessage, 64),
		stop:       make(chan struct{}),
	}
}

// Run 是 hub 的事件循环，需要在独立 goroutine 中启动，Stop 后退出。
func (h *Hub) Run() {
	for {
		select {
		case <-h.stop:
			for c := range h.clients {
				h.drop(c)
			}
			return
		case c := <-h.register:
			h.clients[c] = true
			atomic.StoreInt32(&h.online, int32(len(h.clients)))
			metrics.Subscribers.Inc()
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				h.drop(c)
			}
		case d := <-h.direct:
			// 目标可能已经被踢掉，只有还在册的订阅者才收得到。
			if _, ok := h.clients[d.to]; ok {
				select {
				case d.to.send <- d.msg:
				default:
					h.drop(d.to)
				}
			}
		case msg := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// 发不动的慢客户端直接踢掉，不拖累其他订阅者。
					h.drop(c)
				}
			}
		}
	}
}

// drop 只能在事件循环内调用，保证 send 的关闭方唯一。
func (h *Hub) drop(c *Client) {
	delete(h.clients, c)
	close(c.send)
	atomic.StoreInt32(&h.online, int32(len(h.clients)))
	metrics.Subscribers.Dec()
}

// Online 返回当前订阅者数量。
func (h *Hub) Online() int { return int(atomic.LoadInt32(&h.online)) }

// Broadcast 把任意事件序列化后推给所有订阅者。
func (h *Hub) Broadcast(v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("broadcast marshal")
		return
	}
	select {
	case h.broadcast <- b:
	case <-h.stop:
	}
}

// SendTo 把事件只推给单个订阅者；目标已被踢掉时静默丢弃。
func (h *Hub) SendTo(c *Client, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("direct marshal")
		return
	}
	select {
	case h.direct <- directMessage{to: c, msg: b}:
	case <-h.stop:
	}
}

// Stop 终止事件循环并断开所有订阅者，用于优雅停服。
func (h *Hub) Stop() {
	h.once.Do(func() { close(h.stop) })
}
