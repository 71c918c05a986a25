package sched

import (
	"sync"
	"time"
)

// Scheduler 以固定周期触发注册的回调，充当平台侧的自触发定时器。
// 业务核心只注册回调，自己不持有循环或线程。
type Scheduler struct {
	stop chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

func New() *Scheduler {
	return &Scheduler{stop: make(chan struct{})}
}

// Every 启动一个周期任务，回调收到每次触发时的当前时间。
func (s *Scheduler) Every(period time.Duration, fn func(now time.Time)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-s.stop:
				return
			case now := <-ticker.C:
				fn(now)
			}
		}
	}()
}

// Stop 停止所有周期任务并等待退出，用于优雅停服。
func (s *Scheduler) Stop() {
	s.once.Do(func() { close(s.stop) })
	s.wg.Wait()
}
