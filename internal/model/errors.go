package model

import (
	"errors"
	"fmt"
)

// ErrMissingSheet 输入文档缺少指定工作表
var ErrMissingSheet = errors.New("sheet not found in document")

// ConfigError 配置错误（启动时致命）
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: %s: %s", e.Field, e.Reason)
}

// DatasetLoadError 参考数据集加载失败（整个批次致命）
type DatasetLoadError struct {
	Path string
	Err  error
}

func (e *DatasetLoadError) Error() string {
	return fmt.Sprintf("failed to load dataset %s: %v", e.Path, e.Err)
}

func (e *DatasetLoadError) Unwrap() error { return e.Err }

// MalformedDocumentError 输入文档无法解析（单站点致命，批次继续）
type MalformedDocumentError struct {
	Path string
	Err  error
}

func (e *MalformedDocumentError) Error() string {
	return fmt.Sprintf("malformed document %s: %v", e.Path, e.Err)
}

func (e *MalformedDocumentError) Unwrap() error { return e.Err }

// TemplateNotFoundError 指定市场没有可用模板（单站点输出致命）
type TemplateNotFoundError struct {
	Market string
	Path   string
}

func (e *TemplateNotFoundError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("no template configured for market %q", e.Market)
	}
	return fmt.Sprintf("template for market %q not found: %s", e.Market, e.Path)
}

// WriteError 输出写入失败（单站点输出致命，协调器重试一次）
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("failed to write output %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
