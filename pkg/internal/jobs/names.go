package jobs

// 任务名称常量，便于统一管理与引用.
const (
	JobQueueReplay  = "queue-replay"
	JobQueueCleanup = "queue-cleanup"
	JobPhotoSweep   = "photo-sweep"
)

// CronQueueCleanup 每天 03:30 清理已完成的回退队列项.
const CronQueueCleanup = "30 3 * * *"
