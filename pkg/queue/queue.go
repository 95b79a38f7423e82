// Package queue 定义照片领域的线上事件、主题与消息信封.
//
// 概览
//   - 五种事件：PhotoUploaded、ProcessingStarted、ProcessingCompleted、ProcessingFailed、PhotoDeleted
//   - 事件字段使用 camelCase JSON，由 NewPhotoUploaded 等构造函数创建
//   - watermill 与 kafka 传输时，事件放在 Message[Payload] = Header + Payload 信封中
//   - 数据库兜底队列只保存事件本身（DecodeEvent 按事件名称还原）
//   - 默认 JSON 编解码（bytedance/sonic）
//
// 消息信封（Envelope）JSON 结构
//
//	{
//	  "header": {
//	    "topic": "photo.uploaded",
//	    "event_type": "PhotoUploaded",
//	    "correlation_id": "0b6f...",
//	    "producer": "photovault",
//	    "occurred_at": "2025-01-02T03:04:05.123456Z",
//	    "version": "v1"
//	  },
//	  "payload": {
//	    "photoId": 42,
//	    "userId": "alice",
//	    "storageKey": "photos/alice/42/01J...jpg",
//	    "filename": "cat.jpg",
//	    "contentType": "image/jpeg",
//	    "size": 10485760,
//	    "correlationId": "0b6f...",
//	    "timestamp": "2025-01-02T03:04:05.123456Z"
//	  }
//	}
//
// 发布示例
//
//	evt := queue.NewPhotoUploaded(p.ID, p.UserID, p.StorageKey, p.OriginalFileName, p.ContentType, p.FileSize, cid)
//	msg, _ := queue.NewEventMessage(queue.TopicPhotoUploaded, evt, queue.WithProducer("photovault"))
//	_ = client.Publish(ctx, queue.TopicPhotoUploaded, msg)
//
// 注意事项
//  1. occurred_at 为 UTC，RFC3339 格式
//  2. 消费者应忽略未知字段
//  3. 关联 ID 同时出现在头部与负载中，头部值以发布时传入的为准
package queue

import (
	"encoding/json"
	"fmt"
	"time"

	watermill "github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/bytedance/sonic"
)

const (
	PayloadVersionV1 string = "v1"
)

// 信封元数据键.
const (
	MetaTopic         = "topic"
	MetaEventType     = "event_type"
	MetaCorrelationID = "correlation_id"
	MetaTraceID       = "trace_id"
	MetaProducer      = "producer"
	MetaOccurredAt    = "occurred_at"
	MetaVersion       = "version"
)

// NewEventHeader 便捷创建事件头.
func NewEventHeader(topic string, opts ...func(*EventHeader)) EventHeader {
	hdr := EventHeader{
		Topic:      topic,
		OccurredAt: time.Now().UTC(),
		Version:    PayloadVersionV1,
	}
	for _, opt := range opts {
		opt(&hdr)
	}

	return hdr
}

// WithTraceID 设置 TraceID.
func WithTraceID(id string) func(*EventHeader) { return func(h *EventHeader) { h.TraceID = id } }

// WithProducer 设置 Producer.
func WithProducer(p string) func(*EventHeader) { return func(h *EventHeader) { h.Producer = p } }

// WithCorrelationID 设置关联 ID.
func WithCorrelationID(id string) func(*EventHeader) {
	return func(h *EventHeader) { h.CorrelationID = id }
}

// Encode 将消息封装为 JSON 字节切片.
func Encode[T any](msg Message[T]) ([]byte, error) { return sonic.Marshal(msg) }

// Decode 从 JSON 字节解码为消息.
func Decode[T any](b []byte) (Message[T], error) {
	var m Message[T]

	err := sonic.Unmarshal(b, &m)

	return m, err
}

// EncodeEnvelope 将事件封装为信封 JSON，头部的事件类型与关联 ID 取自事件.
func EncodeEnvelope(topic string, evt Event, opts ...func(*EventHeader)) (EventHeader, []byte, error) {
	opts = append([]func(*EventHeader){
		func(h *EventHeader) {
			h.EventType = evt.EventName()
			h.CorrelationID = evt.Correlation()
		},
	}, opts...)

	header := NewEventHeader(topic, opts...)

	data, err := Encode(Message[Event]{Header: header, Payload: evt})
	if err != nil {
		return header, nil, fmt.Errorf("encode %s envelope: %w", evt.EventName(), err)
	}

	return header, data, nil
}

// NewEventMessage 构造 watermill 消息，消息 ID 随机，元数据复制信封头部.
func NewEventMessage(topic string, evt Event, opts ...func(*EventHeader)) (*message.Message, error) {
	header, data, err := EncodeEnvelope(topic, evt, opts...)
	if err != nil {
		return nil, err
	}

	msg := message.NewMessage(watermill.NewUUID(), data)
	msg.Metadata.Set(MetaTopic, topic)
	msg.Metadata.Set(MetaEventType, header.EventType)

	if header.CorrelationID != "" {
		msg.Metadata.Set(MetaCorrelationID, header.CorrelationID)
	}

	if header.TraceID != "" {
		msg.Metadata.Set(MetaTraceID, header.TraceID)
	}

	if header.Producer != "" {
		msg.Metadata.Set(MetaProducer, header.Producer)
	}

	msg.Metadata.Set(MetaOccurredAt, header.OccurredAt.Format(time.RFC3339Nano))

	if header.Version != "" {
		msg.Metadata.Set(MetaVersion, header.Version)
	}

	return msg, nil
}

// NewEvent 返回事件名称对应的空事件.
func NewEvent(eventName string) (Event, error) {
	switch eventName {
	case EventPhotoUploaded:
		return &PhotoUploaded{}, nil
	case EventProcessingStarted:
		return &ProcessingStarted{}, nil
	case EventProcessingCompleted:
		return &ProcessingCompleted{}, nil
	case EventProcessingFailed:
		return &ProcessingFailed{}, nil
	case EventPhotoDeleted:
		return &PhotoDeleted{}, nil
	default:
		return nil, fmt.Errorf("unknown event type: %s", eventName)
	}
}

// EncodeEvent 将事件本身编码为 JSON.
func EncodeEvent(evt Event) ([]byte, error) {
	return sonic.Marshal(evt)
}

// DecodeEvent 按事件名称解码事件 JSON.
func DecodeEvent(eventName string, payload []byte) (Event, error) {
	evt, err := NewEvent(eventName)
	if err != nil {
		return nil, err
	}

	if err := sonic.Unmarshal(payload, evt); err != nil {
		return nil, fmt.Errorf("decode %s: %w", eventName, err)
	}

	return evt, nil
}

// ParseEventMessage 从 watermill 消息还原头部与强类型事件.
func ParseEventMessage(msg *message.Message) (EventHeader, Event, error) {
	var raw Message[json.RawMessage]
	if err := sonic.Unmarshal(msg.Payload, &raw); err != nil {
		return EventHeader{}, nil, fmt.Errorf("decode envelope: %w", err)
	}

	evt, err := DecodeEvent(raw.Header.EventType, raw.Payload)
	if err != nil {
		return raw.Header, nil, err
	}

	return raw.Header, evt, nil
}
