// Package logging 统一的结构化日志初始化
package logging

import (
	"go.uber.org/zap"
)

// New 创建 zap 日志器。
// devMode 使用开发配置（彩色 console 输出）；file 非空时同时写入文件。
func New(level string, devMode bool, file string) (*zap.Logger, error) {
	var cfg zap.Config
	if devMode {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Encoding = "console"
	}

	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		lvl = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	cfg.Level = lvl

	if file != "" {
		cfg.OutputPaths = append(cfg.OutputPaths, file)
	}

	return cfg.Build()
}

// NewNop 测试用的空日志器
func NewNop() *zap.Logger {
	return zap.NewNop()
}
