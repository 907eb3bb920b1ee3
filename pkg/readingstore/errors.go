package readingstore

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation id 格式不合法或缺少必填字段，在任何 I/O 之前拒绝
	ErrValidation = errors.New("validation failed")

	// ErrRemoteUnavailable 远程存储未配置或尚未就绪，只用于日志，总是触发降级
	ErrRemoteUnavailable = errors.New("remote store unavailable")

	// ErrRemoteOperationFailed 远程调用失败（认证、网络、表结构），只用于日志，总是触发降级
	ErrRemoteOperationFailed = errors.New("remote operation failed")

	// ErrLocalPersistence 本地镜像写入失败，没有更多降级手段，需要返回给调用方
	ErrLocalPersistence = errors.New("local persistence failed")
)

// ValidationError 参数校验错误
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Is 与 ErrValidation 匹配
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// LocalPersistenceError 本地镜像写入失败
// 底层错误只保留文本，不向调用方暴露具体存储后端的错误类型
type LocalPersistenceError struct {
	Op    string
	cause string
}

func newLocalPersistenceError(op string, err error) *LocalPersistenceError {
	return &LocalPersistenceError{Op: op, cause: err.Error()}
}

func (e *LocalPersistenceError) Error() string {
	return fmt.Sprintf("could not save reading locally (%s): %s", e.Op, e.cause)
}

// Is 与 ErrLocalPersistence 匹配
func (e *LocalPersistenceError) Is(target error) bool {
	return target == ErrLocalPersistence
}

// Retryable 本地写入失败后调用方可以稍后重试
func (e *LocalPersistenceError) Retryable() bool {
	return true
}
