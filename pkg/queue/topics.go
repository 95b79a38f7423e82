// 主题常量与通配模式，供发布/订阅使用.
package queue

// 主题命名规范：photo.<动作>[.<状态>]，尽量稳定且向后兼容.

const (
	TopicPhotoUploaded       = "photo.uploaded"             // 原图已写入对象存储
	TopicProcessingStarted   = "photo.processing.started"   // 开始生成缩略图与提取元数据
	TopicProcessingCompleted = "photo.processing.completed" // 处理完成
	TopicProcessingFailed    = "photo.processing.failed"    // 处理失败（可能仍会重试）
	TopicPhotoDeleted        = "photo.deleted"              // 照片被删除

	// TopicPattern 订阅全部照片事件.
	TopicPattern = "photo.>"
)

// 事件名称，与负载结构体一一对应.
const (
	EventPhotoUploaded       = "PhotoUploaded"
	EventProcessingStarted   = "ProcessingStarted"
	EventProcessingCompleted = "ProcessingCompleted"
	EventProcessingFailed    = "ProcessingFailed"
	EventPhotoDeleted        = "PhotoDeleted"
)

// PhotoTopics 照片领域的全部主题.
var PhotoTopics = []string{
	TopicPhotoUploaded,
	TopicProcessingStarted,
	TopicProcessingCompleted,
	TopicProcessingFailed,
	TopicPhotoDeleted,
}

// TopicOf 返回事件名称对应的默认主题.
func TopicOf(eventName string) string {
	switch eventName {
	case EventPhotoUploaded:
		return TopicPhotoUploaded
	case EventProcessingStarted:
		return TopicProcessingStarted
	case EventProcessingCompleted:
		return TopicProcessingCompleted
	case EventProcessingFailed:
		return TopicProcessingFailed
	case EventPhotoDeleted:
		return TopicPhotoDeleted
	default:
		return ""
	}
}
