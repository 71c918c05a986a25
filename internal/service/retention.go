package service

import (
	"time"

	"tankchat/internal/models"

	"gorm.io/gorm"
)

// 消息保留窗口与清理周期的默认值，与 ScheduleEntry 的 bootstrap 写入一致。
const (
	DefaultRetentionWindow = 60 * time.Second
	DefaultSweepPeriod     = 60 * time.Second
)

const scheduleEntryID = 1

// RetentionService 负责过期消息的周期清理。Sweep 只接受平台身份的调用，
// 周期触发本身由外部调度器完成，这里不持有任何循环。
type RetentionService struct {
	db       *gorm.DB
	platform string
	window   time.Duration
}

func NewRetentionService(db *gorm.DB, platformIdentity string, window time.Duration) *RetentionService {
	if window <= 0 {
		window = DefaultRetentionWindow
	}
	return &RetentionService{db: db, platform: platformIdentity, window: window}
}

// Bootstrap 写入唯一的 ScheduleEntry 行并返回它。幂等：行已存在时原样返回，
// 重启不会产生第二行。
func (s *RetentionService) Bootstrap(period time.Duration) (*models.ScheduleEntry, error) {
	if period <= 0 {
		period = DefaultSweepPeriod
	}
	entry := models.ScheduleEntry{ID: scheduleEntryID, Period: period}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		return tx.FirstOrCreate(&entry, models.ScheduleEntry{ID: scheduleEntryID}).Error
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// Sweep 删除所有早于 now-窗口 的消息，返回删除行数。没有可删的消息是正常情况。
// 非平台身份直接拒绝，防止客户端绕过调度器触发清理。
func (s *RetentionService) Sweep(call Call) (int64, error) {
	if call.Identity != s.platform {
		return 0, ErrUnauthorized
	}
	var deleted int64
	err := s.db.Transaction(func(tx *gorm.DB) error {
		cutoff := call.Now.Add(-s.window)
		res := tx.Where("sent < ?", cutoff).Delete(&models.Message{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}
