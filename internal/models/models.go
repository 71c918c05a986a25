package models

import (
	"time"

	"gorm.io/datatypes"
)

// LobbyRoomID 是保留的大厅房间号。连接成功后、加入真实房间前，用户停留在大厅。
// 真实房间的自增 id 从 1 开始，0 永远不会被分配给 Room 行。
const LobbyRoomID uint64 = 0

// User 每个已知身份一行，首次连接时创建，之后只更新不删除。
type User struct {
	Identity  string  `gorm:"primaryKey;size:64"`
	Name      *string `gorm:"size:64"`
	Room      *uint64
	Online    bool `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Room 房间码对客户端不公开，由创建者自行分发。
type Room struct {
	ID        uint64 `gorm:"primaryKey"`
	Key       string `gorm:"uniqueIndex;size:8;not null"`
	CreatedAt time.Time
}

// Message 的 Room 一经写入不再变化；Sent 建索引供过期清理做范围删除。
type Message struct {
	ID     uint64    `gorm:"primaryKey"`
	Sender string    `gorm:"size:64;not null"`
	Room   uint64    `gorm:"index;not null"`
	Sent   time.Time `gorm:"index:idx_message_sent;not null"`
	Kind   string    `gorm:"size:32;not null"`
	Data   datatypes.JSONSlice[float64]
}

// ScheduleEntry 全表只有一行，描述过期清理的触发周期。
type ScheduleEntry struct {
	ID     uint64        `gorm:"primaryKey"`
	Period time.Duration `gorm:"not null"`
}
