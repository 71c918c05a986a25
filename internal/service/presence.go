package service

import (
	"errors"

	"tankchat/internal/models"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// PresenceService 维护 User 表：在线状态、显示名以及所在房间。
type PresenceService struct {
	db *gorm.DB
}

func NewPresenceService(db *gorm.DB) *PresenceService {
	return &PresenceService{db: db}
}

// UserDTO 是广播给订阅者的用户快照。
type UserDTO struct {
	Type     string  `json:"type"`
	Identity string  `json:"identity"`
	Name     *string `json:"name"`
	Room     *uint64 `json:"room"`
	Online   bool    `json:"online"`
}

func userDTO(u models.User) *UserDTO {
	return &UserDTO{Type: "user", Identity: u.Identity, Name: u.Name, Room: u.Room, Online: u.Online}
}

// Connect 处理会话建立：首次见到该身份时插入 User 行，否则置为在线。
// 两种情况下都把位置重置回大厅——重连后恢复旧房间成员身份并不可靠，
// 统一回大厅让行为可预期。
func (s *PresenceService) Connect(call Call) (*UserDTO, error) {
	var out models.User
	err := s.db.Transaction(func(tx *gorm.DB) error {
		lobby := models.LobbyRoomID
		var user models.User
		err := tx.First(&user, "identity = ?", call.Identity).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			user = models.User{Identity: call.Identity, Room: &lobby, Online: true}
			if err := tx.Create(&user).Error; err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			user.Online = true
			user.Room = &lobby
			if err := tx.Save(&user).Error; err != nil {
				return err
			}
		}
		out = user
		return nil
	})
	if err != nil {
		return nil, err
	}
	return userDTO(out), nil
}

// Disconnect 处理会话断开。未知身份的断开通知无法拒绝，记一条告警即可，
// 不算失败也不落任何写入。
func (s *PresenceService) Disconnect(call Call) (*UserDTO, error) {
	var out *models.User
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var user models.User
		err := tx.First(&user, "identity = ?", call.Identity).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warn().Str("identity", call.Identity).Msg("disconnect for unknown identity")
			return nil
		}
		if err != nil {
			return err
		}
		user.Online = false
		if err := tx.Save(&user).Error; err != nil {
			return err
		}
		out = &user
		return nil
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, nil
	}
	return userDTO(*out), nil
}

// List 返回全部已知用户的快照，User 表对订阅者公开。
func (s *PresenceService) List(limit int) ([]UserDTO, error) {
	if limit <= 0 || limit > 500 {
		limit = 200
	}
	var users []models.User
	if err := s.db.Order("identity").Limit(limit).Find(&users).Error; err != nil {
		return nil, err
	}
	out := make([]UserDTO, 0, len(users))
	for _, u := range users {
		out = append(out, *userDTO(u))
	}
	return out, nil
}

// SetName 更新显示名。
func (s *PresenceService) SetName(call Call, name string) (*UserDTO, error) {
	if name == "" {
		return nil, ErrEmptyName
	}
	var out models.User
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.First(&user, "identity = ?", call.Identity).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUnknownUser
			}
			return err
		}
		user.Name = &name
		if err := tx.Save(&user).Error; err != nil {
			return err
		}
		out = user
		return nil
	})
	if err != nil {
		return nil, err
	}
	return userDTO(out), nil
}
