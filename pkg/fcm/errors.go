package fcm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"firebase.google.com/go/v4/messaging"
)

// Provider error codes.
const (
	CodeTokenNotRegistered = "messaging/registration-token-not-registered"
	CodeInvalidToken       = "messaging/invalid-registration-token"
	CodeInvalidArgument    = "messaging/invalid-argument"
	CodeQuotaExceeded      = "messaging/quota-exceeded"
	CodeSenderIDMismatch   = "messaging/mismatched-credential"
	CodeThirdPartyAuth     = "messaging/third-party-auth-error"
	CodeUnavailable        = "messaging/unavailable"
	CodeInternal           = "messaging/internal-error"
	CodeTimeout            = "messaging/timeout"
	CodeUnknown            = "messaging/unknown-error"
)

// GatewayError is a failed provider call.
type GatewayError struct {
	Code    string
	Message string
	Err     error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("fcm %s: %s", e.Code, e.Message)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// IsInvalidToken reports whether err means the device token will never work again.
func IsInvalidToken(err error) bool {
	var gerr *GatewayError
	if !errors.As(err, &gerr) {
		return false
	}
	return IsInvalidTokenCode(gerr.Code)
}

func IsInvalidTokenCode(code string) bool {
	return code == CodeTokenNotRegistered || code == CodeInvalidToken
}

// ErrorCode returns the provider code carried by err, or CodeUnknown.
func ErrorCode(err error) string {
	var gerr *GatewayError
	if errors.As(err, &gerr) {
		return gerr.Code
	}
	return CodeUnknown
}

func classify(ctx context.Context, err error) *GatewayError {
	if err == nil {
		return nil
	}
	var gerr *GatewayError
	if errors.As(err, &gerr) {
		return gerr
	}

	code := CodeUnknown
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		code = CodeTimeout
	case messaging.IsUnregistered(err):
		code = CodeTokenNotRegistered
	case messaging.IsInvalidArgument(err):
		code = CodeInvalidArgument
		if strings.Contains(strings.ToLower(err.Error()), "registration token") {
			code = CodeInvalidToken
		}
	case messaging.IsQuotaExceeded(err):
		code = CodeQuotaExceeded
	case messaging.IsSenderIDMismatch(err):
		code = CodeSenderIDMismatch
	case messaging.IsThirdPartyAuthError(err):
		code = CodeThirdPartyAuth
	case messaging.IsUnavailable(err):
		code = CodeUnavailable
	case messaging.IsInternal(err):
		code = CodeInternal
	}
	return &GatewayError{Code: code, Message: err.Error(), Err: err}
}
