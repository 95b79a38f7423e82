// Package model 定义照片、审计事件与回退队列的持久化模型以及照片状态机.
package model

// All 返回需要迁移的全部模型.
func All() []any {
	return []any{
		&Photo{},
		&PhotoEvent{},
		&ProcessingQueueItem{},
	}
}
