package job

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation 是所有输入校验错误的归类，不修改任何状态。
	ErrValidation = errors.New("validation failed")
	// ErrBookCap 表示书的数量已达到上限。
	ErrBookCap = errors.New("book cap reached")
	// ErrLastBook 表示不能删除最后一本书。
	ErrLastBook = errors.New("a job needs at least one book")
	// ErrUnknownBook 表示书的 ID 不存在。
	ErrUnknownBook = errors.New("unknown book")
	// ErrExportInFlight 表示已有导出在进行中。
	ErrExportInFlight = errors.New("an export is already in progress")
	// ErrNoArtwork 表示尚未上传原图。
	ErrNoArtwork = errors.New("no artwork loaded")
	// ErrClosed 表示会话已关闭。
	ErrClosed = errors.New("session closed")
)

// ValidationError 携带面向用户的提示信息。errors.Is(err, ErrValidation) 恒为 true。
type ValidationError struct {
	Field   string
	BookID  string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Is 让所有校验错误都匹配 ErrValidation。
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// ExportError 包装导出失败。失败时不返回任何部分结果。
type ExportError struct {
	Err       error
	Retryable bool
}

func (e *ExportError) Error() string {
	if e.Retryable {
		return fmt.Sprintf("export failed (retryable): %v", e.Err)
	}
	return fmt.Sprintf("export failed: %v", e.Err)
}

func (e *ExportError) Unwrap() error { return e.Err }
