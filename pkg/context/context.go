// Package context 拓展上下文功能，将存储管理器、关联 ID 与日志集成到上下文中，方便在应用程序各处传递和使用.
//
// 关联 ID（correlation id）标识一次逻辑请求或一次处理流程，所有审计事件与对外消息共享同一个值，
// 只通过 context 显式传递，不使用全局状态.
package context

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/yeisme/photovault/pkg/internal/storage"
	"github.com/yeisme/photovault/pkg/internal/storage/blob"
	dbc "github.com/yeisme/photovault/pkg/internal/storage/db"
	kvc "github.com/yeisme/photovault/pkg/internal/storage/kv"
	mqc "github.com/yeisme/photovault/pkg/internal/storage/mq"
	"github.com/yeisme/photovault/pkg/log"
)

type ContextKey string

const (
	StorageManagerKey ContextKey = "storageManager"
	CorrelationIDKey  ContextKey = "correlationID"
	UserKey           ContextKey = "user"

	// CorrelationHeader 请求与消息中携带关联 ID 的头名称.
	CorrelationHeader = "X-Correlation-ID"
)

// WithStorageManager 将 Manager 存储到 context 中.
func WithStorageManager(ctx context.Context, mgr *storage.Manager) context.Context {
	return context.WithValue(ctx, StorageManagerKey, mgr)
}

// GetManager 从 context 中获取 Manager.
func GetManager(ctx context.Context) *storage.Manager {
	if mgr, ok := ctx.Value(StorageManagerKey).(*storage.Manager); ok {
		return mgr
	}

	return nil
}

// GetBlobStorage 从 context 中获取带熔断重试的对象存储.
func GetBlobStorage(ctx context.Context) blob.Storage {
	if mgr := GetManager(ctx); mgr != nil {
		return mgr.GetBlob()
	}

	return nil
}

// GetDBClient 从 context 中获取 DB 客户端.
func GetDBClient(ctx context.Context) *dbc.Client {
	if mgr := GetManager(ctx); mgr != nil {
		return mgr.GetDBClient()
	}

	return nil
}

// GetMQClient 从 context 中获取 MQ 客户端.
func GetMQClient(ctx context.Context) *mqc.Client {
	if mgr := GetManager(ctx); mgr != nil {
		return mgr.GetMQClient()
	}

	return nil
}

// GetKVClient 从 context 中获取 KV 客户端.
func GetKVClient(ctx context.Context) *kvc.Client {
	if mgr := GetManager(ctx); mgr != nil {
		return mgr.GetKVClient()
	}

	return nil
}

// NewCorrelationID 生成新的关联 ID.
func NewCorrelationID() string {
	return uuid.NewString()
}

// WithCorrelationID 将关联 ID 写入 context.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, CorrelationIDKey, id)
}

// CorrelationID 读取 context 中的关联 ID，不存在时返回空字符串.
func CorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(CorrelationIDKey).(string); ok {
		return id
	}

	return ""
}

// EnsureCorrelationID 保证 context 携带关联 ID，返回新的 context 与该 ID.
func EnsureCorrelationID(ctx context.Context) (context.Context, string) {
	if id := CorrelationID(ctx); id != "" {
		return ctx, id
	}

	id := NewCorrelationID()

	return WithCorrelationID(ctx, id), id
}

// WithUser 将调用方用户标识写入 context.
func WithUser(ctx context.Context, user string) context.Context {
	return context.WithValue(ctx, UserKey, user)
}

// User 读取 context 中的用户标识.
func User(ctx context.Context) string {
	if u, ok := ctx.Value(UserKey).(string); ok {
		return u
	}

	return ""
}

// Logger 返回附带关联 ID 与追踪信息的 logger.
func Logger(ctx context.Context) zerolog.Logger {
	l := *log.Logger()
	if id := CorrelationID(ctx); id != "" {
		l = l.With().Str("correlation_id", id).Logger()
	}

	return WithTraceContext(ctx, l)
}

// WithTraceContext 创建带有追踪上下文的logger.
func WithTraceContext(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		return logger.With().
			Str("trace_id", span.SpanContext().TraceID().String()).
			Str("span_id", span.SpanContext().SpanID().String()).
			Logger()
	}

	return logger
}
