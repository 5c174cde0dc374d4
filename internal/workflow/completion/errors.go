package completion

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind 补全失败类别
type Kind string

const (
	KindRateLimited Kind = "rate_limited"
	KindTransient   Kind = "transient"
	KindFatal       Kind = "fatal"
	KindMalformed   Kind = "malformed"
)

// CodeRateLimitExceeded 服务端限流错误码
const CodeRateLimitExceeded = "rate_limit_exceeded"

var fatalCodes = map[string]struct{}{
	"invalid_api_key":       {},
	"authentication_error":  {},
	"permission_denied":     {},
	"invalid_configuration": {},
	"missing_api_key":       {},
}

// Error 补全服务错误
type Error struct {
	Kind       Kind
	Code       string
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("completion ")
	b.WriteString(string(e.Kind))
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.Code != "" {
		fmt.Fprintf(&b, " [%s]", e.Code)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable 限流与临时错误可重试
func (e *Error) Retryable() bool {
	return e.Kind == KindRateLimited || e.Kind == KindTransient
}

// Classify 按状态码与错误码归类；所有接入方式共用
func Classify(statusCode int, code, message string) *Error {
	e := &Error{Kind: KindTransient, Code: code, StatusCode: statusCode, Message: message}
	lc := strings.ToLower(strings.TrimSpace(code))
	switch {
	case lc == CodeRateLimitExceeded || statusCode == http.StatusTooManyRequests:
		e.Kind = KindRateLimited
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		e.Kind = KindFatal
	default:
		if _, ok := fatalCodes[lc]; ok {
			e.Kind = KindFatal
		}
	}
	return e
}

// Malformed 2xx 响应体无法解码或缺少内容
func Malformed(message string, err error) *Error {
	return &Error{Kind: KindMalformed, Message: message, Err: err}
}

// Transient 网络层等无状态码的失败
func Transient(err error) *Error {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return &Error{Kind: KindTransient, Message: msg, Err: err}
}

// KindOf 提取错误类别；非 *Error 视为临时错误
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindTransient
}

// IsKind 判断错误类别
func IsKind(err error, kind Kind) bool {
	var ce *Error
	return errors.As(err, &ce) && ce.Kind == kind
}
