package util

import (
	"context"
	"errors"
	"net"
	"net/textproto"

	"github.com/wneessen/go-mail"

	"shipmentportal/pkg/circuitbreaker"
)

// IsRetryableError classifies a delivery error.
// Returns: (isRetryable, errorType)
func IsRetryableError(err error) (bool, string) {
	if err == nil {
		return false, ""
	}

	if errors.Is(err, circuitbreaker.ErrCircuitBreakerOpen) {
		return true, "relay_unavailable"
	}

	// Context timeout 可重试，取消（进程退出）不计为投递失败
	if errors.Is(err, context.DeadlineExceeded) {
		return true, "timeout"
	}
	if errors.Is(err, context.Canceled) {
		return false, "context_canceled"
	}

	// SMTP 回复码：4xx 临时，5xx 永久
	var tpErr *textproto.Error
	if errors.As(err, &tpErr) {
		if tpErr.Code >= 500 {
			return false, "smtp_permanent"
		}
		return true, "smtp_temporary"
	}

	var sendErr *mail.SendError
	if errors.As(err, &sendErr) {
		if sendErr.IsTemp() {
			return true, "smtp_temporary"
		}
		return false, "smtp_permanent"
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return true, "network_timeout"
		}
		return true, "network_error"
	}

	// 未知错误按临时处理，重试次数由调用方限制
	return true, "unknown_error"
}

// ShouldRetry checks if an error should be retried based on attempts already made
func ShouldRetry(attempts, maxAttempts int, isRetryable bool) bool {
	if !isRetryable {
		return false
	}
	return attempts < maxAttempts
}
