package types

// BreakerStatus 熔断器状态.
type BreakerStatus struct {
	Name  string `json:"name"`
	State string `json:"state"`
}

// WorkerStatus 工作池快照.
type WorkerStatus struct {
	Workers    int   `json:"workers"`
	Active     int64 `json:"active"`
	Queued     int   `json:"queued"`
	CallerRuns int64 `json:"caller_runs"`
}

// StatsResponse 照片处理概况，Photos 与 Queue 按状态计数，Events 按事件类型计数.
type StatsResponse struct {
	Photos             map[string]int64 `json:"photos"`
	Queue              map[string]int64 `json:"queue"`
	Events             map[string]int64 `json:"events"`
	Publisher          string           `json:"publisher"`
	PublisherAvailable bool             `json:"publisher_available"`
	Breakers           []BreakerStatus  `json:"breakers,omitempty"`
	Worker             *WorkerStatus    `json:"worker,omitempty"`
}
