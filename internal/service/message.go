package service

import (
	"errors"
	"time"

	"tankchat/internal/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// MessageService 负责消息的写入与公开表读取。
type MessageService struct {
	db *gorm.DB
}

func NewMessageService(db *gorm.DB) *MessageService {
	return &MessageService{db: db}
}

// MessageDTO 是对外输出的消息数据。
type MessageDTO struct {
	Type   string    `json:"type"`
	ID     uint64    `json:"id"`
	Sender string    `json:"sender"`
	Room   uint64    `json:"room"`
	Sent   time.Time `json:"sent"`
	Kind   string    `json:"kind"`
	Data   []float64 `json:"data,omitempty"`
}

func messageDTO(m models.Message) MessageDTO {
	return MessageDTO{Type: "message", ID: m.ID, Sender: m.Sender, Room: m.Room, Sent: m.Sent, Kind: m.Kind, Data: []float64(m.Data)}
}

// Send 校验调用方在房间内后落一条消息。大厅也算房间，刚连上的用户可以直接
// 在大厅发言。kind 与 data 的含义由客户端之间约定，服务端不做解释，
// 文本、弹幕还是坐标一律照单全收。
func (s *MessageService) Send(call Call, kind string, data []float64) (*MessageDTO, error) {
	var msg models.Message
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.First(&user, "identity = ?", call.Identity).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUnknownUser
			}
			return err
		}
		if user.Room == nil {
			return ErrNotInRoom
		}
		msg = models.Message{Sender: call.Identity, Room: *user.Room, Sent: call.Now, Kind: kind}
		if data != nil {
			msg.Data = datatypes.NewJSONSlice(data)
		}
		return tx.Create(&msg).Error
	})
	if err != nil {
		return nil, err
	}
	dto := messageDTO(msg)
	return &dto, nil
}

// ListByRoom 分页查询指定房间的消息，按 id 升序返回。
func (s *MessageService) ListByRoom(roomID uint64, limit int, beforeID uint64) ([]MessageDTO, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	q := s.db.Where("room = ?", roomID)
	if beforeID > 0 {
		q = q.Where("id < ?", beforeID)
	}

	var msgs []models.Message
	if err := q.Order("id desc").Limit(limit).Find(&msgs).Error; err != nil {
		return nil, err
	}

	// 反转为升序
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}

	out := make([]MessageDTO, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, messageDTO(m))
	}
	return out, nil
}
