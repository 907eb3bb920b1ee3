package remote

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Class 远程错误的分类，由后端返回的错误码决定
type Class string

const (
	ClassUnavailable Class = "unavailable" // 未配置或客户端未初始化
	ClassNotFound    Class = "not_found"   // 没有匹配的记录
	ClassPermission  Class = "permission"  // 行级安全策略拒绝
	ClassAuth        Class = "auth"        // 凭证无效
	ClassSchema      Class = "schema"      // 表或字段不匹配、类型转换失败
	ClassConflict    Class = "conflict"    // 主键冲突
	ClassNetwork     Class = "network"     // 网络错误
	ClassTimeout     Class = "timeout"     // 超时或被取消
	ClassServer      Class = "server"      // 服务端 5xx
	ClassUnknown     Class = "unknown"
)

// ErrNotConfigured 远程存储未配置
var ErrNotConfigured = &Error{Op: "configure", Code: "not_configured", Class: ClassUnavailable, Message: "remote store is not configured"}

// Error 远程存储返回的错误
type Error struct {
	Op      string // 操作名，如 insert / select
	Code    string // 后端错误码，如 PGRST116、42501
	Class   Class
	Status  int // HTTP 状态码，直连数据库时为 0
	Message string
	Details string
	Hint    string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "remote %s failed [%s", e.Op, e.Class)
	if e.Code != "" {
		fmt.Fprintf(&b, " %s", e.Code)
	}
	b.WriteString("]")
	if e.Message != "" {
		fmt.Fprintf(&b, ": %s", e.Message)
	}
	if e.Details != "" {
		fmt.Fprintf(&b, " (%s)", e.Details)
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// codeClasses PostgREST 和 PostgreSQL 错误码分类
var codeClasses = map[string]Class{
	"PGRST116": ClassNotFound,
	"42501":    ClassPermission,
	"PGRST301": ClassAuth,
	"PGRST302": ClassAuth,
	"PGRST303": ClassAuth,
	"28000":    ClassAuth,
	"28P01":    ClassAuth,
	"42P01":    ClassSchema,
	"42703":    ClassSchema,
	"42883":    ClassSchema,
	"22P02":    ClassSchema,
	"PGRST200": ClassSchema,
	"PGRST202": ClassSchema,
	"PGRST204": ClassSchema,
	"PGRST205": ClassSchema,
	"23505":    ClassConflict,
	"57014":    ClassTimeout,
}

// ClassifyCode 按错误码分类；08 开头的 SQLSTATE 属于连接异常
func ClassifyCode(code string) Class {
	if class, ok := codeClasses[code]; ok {
		return class
	}
	if len(code) == 5 && strings.HasPrefix(code, "08") {
		return ClassNetwork
	}
	return ClassUnknown
}

// classifyStatus 没有错误码时按 HTTP 状态码分类
func classifyStatus(status int) Class {
	switch {
	case status == 401:
		return ClassAuth
	case status == 403:
		return ClassPermission
	case status == 404 || status == 406:
		return ClassNotFound
	case status == 408 || status == 504:
		return ClassTimeout
	case status >= 500:
		return ClassServer
	case status >= 400:
		return ClassSchema
	}
	return ClassUnknown
}

// classifyTransport 传输层错误：超时/取消与网络错误分开
func classifyTransport(err error) Class {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ClassTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ClassTimeout
	}
	return ClassNetwork
}

// ClassOf 返回错误的分类，非远程错误返回 ClassUnknown
func ClassOf(err error) Class {
	var remoteErr *Error
	if errors.As(err, &remoteErr) {
		return remoteErr.Class
	}
	return ClassUnknown
}

// CodeOf 返回错误码
func CodeOf(err error) string {
	var remoteErr *Error
	if errors.As(err, &remoteErr) {
		return remoteErr.Code
	}
	return ""
}

// Wrap 将任意错误包装为远程错误，已经是远程错误的保持原样并补充操作名
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var remoteErr *Error
	if errors.As(err, &remoteErr) {
		if remoteErr.Op == "" {
			remoteErr.Op = op
		}
		return remoteErr
	}
	return &Error{Op: op, Class: classifyTransport(err), Message: err.Error(), Err: err}
}
