package service

import (
	"errors"
	"math/rand"

	"tankchat/internal/models"

	"gorm.io/gorm"
)

const (
	roomKeyLen     = 8
	roomKeyCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// RoomService 负责房间的分配与房间码解析。
type RoomService struct {
	db *gorm.DB
	// keygen 可注入，测试用它制造撞码。
	keygen func() string
}

func NewRoomService(db *gorm.DB) *RoomService {
	return &RoomService{db: db, keygen: RandomKey}
}

// WithKeygen 替换房间码生成器，返回自身方便链式调用。
func (s *RoomService) WithKeygen(fn func() string) *RoomService {
	s.keygen = fn
	return s
}

// RandomKey 生成 8 位字母数字房间码。唯一性由数据库唯一索引兜底，
// 这里不需要密码学强度的随机源。
func RandomKey() string {
	b := make([]byte, roomKeyLen)
	for i := range b {
		b[i] = roomKeyCharset[rand.Intn(len(roomKeyCharset))]
	}
	return string(b)
}

// RoomDTO 是创建/加入房间后返回给调用方的数据。
type RoomDTO struct {
	ID  uint64 `json:"id"`
	Key string `json:"key"`
}

// Create 为调用方开新房间并把调用方挪进去。撞码时唯一索引拒绝插入，
// 整个事务重开重试；62^8 的码空间下循环几乎总是一次通过，
// 但不能假设第一次一定成功。
func (s *RoomService) Create(call Call) (*RoomDTO, error) {
	for {
		var room models.Room
		err := s.db.Transaction(func(tx *gorm.DB) error {
			var user models.User
			if err := tx.First(&user, "identity = ?", call.Identity).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrUnknownUser
				}
				return err
			}
			room = models.Room{Key: s.keygen()}
			if err := tx.Create(&room).Error; err != nil {
				return err
			}
			user.Room = &room.ID
			return tx.Save(&user).Error
		})
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return &RoomDTO{ID: room.ID, Key: room.Key}, nil
	}
}

// Join 把房间码解析成房间并更新调用方的位置。
func (s *RoomService) Join(call Call, roomKey string) (*RoomDTO, error) {
	var room models.Room
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.First(&user, "identity = ?", call.Identity).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUnknownUser
			}
			return err
		}
		if err := tx.First(&room, "key = ?", roomKey).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInvalidRoomKey
			}
			return err
		}
		user.Room = &room.ID
		return tx.Save(&user).Error
	})
	if err != nil {
		return nil, err
	}
	return &RoomDTO{ID: room.ID, Key: room.Key}, nil
}
