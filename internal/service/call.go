package service

import "time"

// Call 是平台为单次调用注入的事务上下文：调用方身份与当前时间。
// 所有状态变更只依赖这个参数对象，不读任何全局状态，
// 同一个 Call 重放同一个操作得到相同的写入。
type Call struct {
	Identity string
	Now      time.Time
}
