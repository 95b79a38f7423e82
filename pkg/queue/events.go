package queue

import "github.com/ThreeDotsLabs/watermill/message"

// -------------------------- 基于业务封装 events --------------------------

// PublishEvent 以事件默认主题发布到 watermill Publisher.
// 可通过可选项 opts 注入 TraceID、Producer 等头部信息.
func PublishEvent(pub message.Publisher, evt Event, opts ...func(*EventHeader)) error {
	msg, err := NewEventMessage(evt.Topic(), evt, opts...)
	if err != nil {
		return err
	}

	return pub.Publish(evt.Topic(), msg)
}
