package model

// PhotoStatus 照片生命周期状态.
type PhotoStatus string

const (
	StatusPending    PhotoStatus = "PENDING"
	StatusUploading  PhotoStatus = "UPLOADING"
	StatusUploaded   PhotoStatus = "UPLOADED"
	StatusProcessing PhotoStatus = "PROCESSING"
	StatusRetrying   PhotoStatus = "RETRYING"
	StatusCompleted  PhotoStatus = "COMPLETED"
	StatusFailed     PhotoStatus = "FAILED"
)

// transitions 合法迁移表.
var transitions = map[PhotoStatus][]PhotoStatus{
	StatusPending:    {StatusUploading, StatusFailed},
	StatusUploading:  {StatusUploaded, StatusFailed},
	StatusUploaded:   {StatusProcessing, StatusFailed},
	StatusProcessing: {StatusCompleted, StatusFailed, StatusRetrying},
	StatusRetrying:   {StatusProcessing, StatusFailed},
	StatusFailed:     {StatusRetrying, StatusPending},
	StatusCompleted:  {},
}

// AllStatuses 返回全部状态，顺序固定.
func AllStatuses() []PhotoStatus {
	return []PhotoStatus{
		StatusPending, StatusUploading, StatusUploaded, StatusProcessing,
		StatusRetrying, StatusCompleted, StatusFailed,
	}
}

// CanTransition 报告 from -> to 是否合法.
func CanTransition(from, to PhotoStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}

	return false
}

// AllowedTargets 返回 from 的合法目标状态.
func AllowedTargets(from PhotoStatus) []PhotoStatus {
	out := make([]PhotoStatus, len(transitions[from]))
	copy(out, transitions[from])

	return out
}

// Valid 报告状态是否属于已知集合.
func (s PhotoStatus) Valid() bool {
	_, ok := transitions[s]

	return ok
}

// Terminal 报告状态是否没有出边.
func (s PhotoStatus) Terminal() bool {
	return s.Valid() && len(transitions[s]) == 0
}

// ParseStatus 解析状态字符串，未知值返回 false.
func ParseStatus(v string) (PhotoStatus, bool) {
	s := PhotoStatus(v)

	return s, s.Valid()
}
