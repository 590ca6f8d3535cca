// Package errors 定义交易流水线使用的封闭错误集合。调用方通过 CodeOf 或
// errors.Is(err, sentinel) 分支，Is 只比较错误码。
package errors

import (
	stdErrors "errors"
	"fmt"
	"sync"
)

// Code 表示系统内的统一错误码。
type Code string

const (
	CodeUnknown               Code = "UNKNOWN"
	CodeInvalidArgument       Code = "INVALID_ARGUMENT"
	CodeNotFound              Code = "NOT_FOUND"
	CodeConflict              Code = "CONFLICT"
	CodeInitializationFailure Code = "INITIALIZATION_FAILURE"
	CodeStorageFailure        Code = "STORAGE_FAILURE"
	CodeQueueFailure          Code = "QUEUE_FAILURE"

	// 交易流水线与兑换引擎使用的错误码。
	CodeInvalidParameter  Code = "INVALID_PARAMETER"
	CodeInvalidAmount     Code = "INVALID_AMOUNT"
	CodeInvalidCredential Code = "INVALID_CREDENTIAL"
	CodeCredentialNotSet  Code = "CREDENTIAL_NOT_SET"
	CodeUnknownNetwork    Code = "UNKNOWN_NETWORK"
	CodeNameResolution    Code = "NAME_RESOLUTION"
	CodeWalletNotFound    Code = "WALLET_NOT_FOUND"
	CodeContractRead      Code = "CONTRACT_READ"
	CodeSwapExecution     Code = "SWAP_EXECUTION"
)

// Severity 描述错误的严重程度，决定日志级别。
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Attributes 为错误码提供默认行为。
type Attributes struct {
	Message  string
	Severity Severity
	// Retryable marks failures a caller may retry unchanged, such as a
	// node that timed out.
	Retryable bool
	// Input marks caller mistakes; retrying with the same input fails again.
	Input bool
}

var (
	registryMu sync.RWMutex
	registry   = map[Code]Attributes{}
)

func init() {
	for code, attr := range map[Code]Attributes{
		CodeUnknown:               {Message: "unknown error", Severity: SeverityCritical},
		CodeInvalidArgument:       {Message: "invalid argument", Severity: SeverityInfo, Input: true},
		CodeNotFound:              {Message: "resource not found", Severity: SeverityInfo},
		CodeConflict:              {Message: "resource already exists", Severity: SeverityInfo},
		CodeInitializationFailure: {Message: "component not initialised", Severity: SeverityCritical},
		CodeStorageFailure:        {Message: "storage failure", Severity: SeverityCritical, Retryable: true},
		CodeQueueFailure:          {Message: "event publish failure", Severity: SeverityWarning, Retryable: true},

		CodeInvalidParameter:  {Message: "invalid parameter", Severity: SeverityInfo, Input: true},
		CodeInvalidAmount:     {Message: "invalid amount", Severity: SeverityInfo, Input: true},
		CodeInvalidCredential: {Message: "invalid private key", Severity: SeverityInfo, Input: true},
		CodeCredentialNotSet:  {Message: "default credential not set", Severity: SeverityWarning},
		CodeUnknownNetwork:    {Message: "unknown network", Severity: SeverityInfo},
		CodeNameResolution:    {Message: "name resolution failed", Severity: SeverityInfo},
		CodeWalletNotFound:    {Message: "wallet not found", Severity: SeverityInfo},
		CodeContractRead:      {Message: "contract read failed", Severity: SeverityWarning, Retryable: true},
		CodeSwapExecution:     {Message: "swap execution failed", Severity: SeverityWarning},
	} {
		Register(code, attr)
	}
}

// Register 允许业务模块在初始化阶段注册新的错误码描述。
func Register(code Code, attr Attributes) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[code] = attr
}

// AttributesOf 返回错误码对应的属性，未注册时返回 UNKNOWN 的属性。
func AttributesOf(code Code) Attributes {
	registryMu.RLock()
	defer registryMu.RUnlock()
	if attr, ok := registry[code]; ok {
		return attr
	}
	return registry[CodeUnknown]
}

// Error 是系统内统一的错误类型。
type Error struct {
	code     Code
	message  string
	cause    error
	metadata map[string]string
}

// Option 定义可选配置。
type Option func(*Error)

// WithMetadata 附加额外信息，例如未知网络的候选名称。
func WithMetadata(key, value string) Option {
	return func(e *Error) {
		if e.metadata == nil {
			e.metadata = make(map[string]string)
		}
		e.metadata[key] = value
	}
}

// New 创建一个新的错误实例，message 为空时使用注册的默认信息。
func New(code Code, message string, opts ...Option) *Error {
	if message == "" {
		message = AttributesOf(code).Message
	}
	e := &Error{code: code, message: message}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Wrap 在已有错误外包裹统一错误类型，保留原因链。
func Wrap(code Code, cause error, message string, opts ...Option) *Error {
	e := New(code, message, opts...)
	e.cause = cause
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Is 允许通过 errors.Is 判断是否相同错误码。
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e != nil && t != nil && e.code == t.code
}

// Code 返回错误码。
func (e *Error) Code() Code {
	if e == nil {
		return CodeUnknown
	}
	return e.code
}

// Message 返回不含错误码与原因的信息。
func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

// Metadata 返回附加信息的副本。
func (e *Error) Metadata() map[string]string {
	if e == nil || len(e.metadata) == 0 {
		return nil
	}
	clone := make(map[string]string, len(e.metadata))
	for k, v := range e.metadata {
		clone[k] = v
	}
	return clone
}

// From 取出错误链上最外层的统一错误。
func From(err error) (*Error, bool) {
	var target *Error
	if err != nil && stdErrors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// CodeOf 返回错误对应的错误码，非统一错误返回 UNKNOWN。
func CodeOf(err error) Code {
	if e, ok := From(err); ok {
		return e.Code()
	}
	return CodeUnknown
}

// RetryableError 判断任意 error 是否可以原样重试。
func RetryableError(err error) bool {
	return err != nil && AttributesOf(CodeOf(err)).Retryable
}

// IsInputError 判断错误是否源自调用方输入（参数、金额或私钥格式），此类错误不应重试。
func IsInputError(err error) bool {
	return err != nil && AttributesOf(CodeOf(err)).Input
}

// SeverityOf 返回错误严重程度。
func SeverityOf(err error) Severity {
	return AttributesOf(CodeOf(err)).Severity
}
