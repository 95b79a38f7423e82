// Package errs 定义照片处理领域的错误类型.
//
// 所有包装型错误都实现 Unwrap，边界处通过 errors.As 判定类型并决定重试、降级或映射为 HTTP 状态码.
package errs

import (
	"errors"
	"fmt"
)

// ErrVersionConflict 乐观锁版本不一致，调用方应重新读取后再判断是否继续.
var ErrVersionConflict = errors.New("optimistic version conflict")

// ErrObjectNotFound 对象存储中不存在该键.
var ErrObjectNotFound = errors.New("object not found")

// ValidationError 客户端输入不合法，不可重试.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}

	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// PayloadTooLarge 上传内容超过大小上限.
type PayloadTooLarge struct {
	Limit int64
	Size  int64
}

func (e *PayloadTooLarge) Error() string {
	return fmt.Sprintf("payload of %d bytes exceeds limit of %d bytes", e.Size, e.Limit)
}

// DuplicateContent 相同内容（校验和）的照片已存在.
type DuplicateContent struct {
	ExistingID uint
	Checksum   string
}

func (e *DuplicateContent) Error() string {
	return fmt.Sprintf("duplicate content: photo %d already has checksum %s", e.ExistingID, e.Checksum)
}

// InvalidTransition 非法的状态迁移，属于一致性缺陷.
type InvalidTransition struct {
	From string
	To   string
}

func (e *InvalidTransition) Error() string {
	return fmt.Sprintf("invalid status transition %s -> %s", e.From, e.To)
}

// StorageFailure 对象存储后端操作失败.
type StorageFailure struct {
	Provider  string
	Operation string
	Err       error
}

func (e *StorageFailure) Error() string {
	return fmt.Sprintf("storage %s %s failed: %v", e.Provider, e.Operation, e.Err)
}

func (e *StorageFailure) Unwrap() error { return e.Err }

// CircuitOpen 熔断器处于打开状态，调用被直接拒绝.
type CircuitOpen struct {
	Name      string
	Operation string
}

func (e *CircuitOpen) Error() string {
	if e.Operation == "" {
		return fmt.Sprintf("circuit breaker %s is open", e.Name)
	}

	return fmt.Sprintf("circuit breaker %s is open, %s rejected", e.Name, e.Operation)
}

// EventPublishFailure 主事件通道发布失败.
type EventPublishFailure struct {
	EventType string
	Topic     string
	Err       error
}

func (e *EventPublishFailure) Error() string {
	return fmt.Sprintf("publish %s to %s failed: %v", e.EventType, e.Topic, e.Err)
}

func (e *EventPublishFailure) Unwrap() error { return e.Err }

// 处理阶段名称.
const (
	StageThumbnail  = "thumbnail"
	StageMetadata   = "metadata"
	StageCompletion = "completion"
	StageStart      = "start"
)

// ProcessingStageFailure 某个处理阶段失败.
type ProcessingStageFailure struct {
	PhotoID uint
	Stage   string
	Err     error
}

func (e *ProcessingStageFailure) Error() string {
	return fmt.Sprintf("photo %d stage %s failed: %v", e.PhotoID, e.Stage, e.Err)
}

func (e *ProcessingStageFailure) Unwrap() error { return e.Err }

// NotFound 资源不存在.
type NotFound struct {
	Resource string
	ID       any
}

func (e *NotFound) Error() string {
	return fmt.Sprintf("%s %v not found", e.Resource, e.ID)
}

// Conflict 请求与资源当前状态冲突.
type Conflict struct {
	Message string
}

func (e *Conflict) Error() string { return e.Message }

// IsNotFound 判断 err 是否为 NotFound.
func IsNotFound(err error) bool {
	var nf *NotFound

	return errors.As(err, &nf)
}

// IsCircuitOpen 判断 err 是否为 CircuitOpen.
func IsCircuitOpen(err error) bool {
	var co *CircuitOpen

	return errors.As(err, &co)
}

// TypeName 返回错误的分类名称，写入 ProcessingFailed.errorType.
func TypeName(err error) string {
	var (
		sf *StorageFailure
		co *CircuitOpen
		ps *ProcessingStageFailure
		it *InvalidTransition
		vf *ValidationError
	)

	switch {
	case err == nil:
		return ""
	case errors.As(err, &co):
		return "CircuitOpen"
	case errors.As(err, &sf):
		return "StorageFailure"
	case errors.As(err, &it):
		return "InvalidTransition"
	case errors.As(err, &vf):
		return "ValidationError"
	case errors.As(err, &ps):
		return "ProcessingStageFailure"
	case errors.Is(err, ErrVersionConflict):
		return "VersionConflict"
	default:
		return "InternalError"
	}
}
