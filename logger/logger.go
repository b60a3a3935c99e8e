package logger

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"flic_feed/config"
)

// Logger 全局日志记录器，未初始化时各辅助函数退回 slog.Default()
var Logger *slog.Logger

// ParseLevel 解析日志级别，未知值按 info 处理
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// openWriter 根据 output 选择输出目标：stdout / file / both
func openWriter(output, filePath string) (io.Writer, error) {
	output = strings.ToLower(output)
	if output != "file" && output != "both" {
		return os.Stdout, nil
	}

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return nil, err
	}
	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, err
	}
	if output == "both" {
		return io.MultiWriter(os.Stdout, file), nil
	}
	return file, nil
}

// New 按配置构建 slog 记录器
func New(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// Init 使用配置初始化日志系统，并设置为 slog 默认记录器
func Init(cfg *config.Config) error {
	w, err := openWriter(cfg.Log.Output, cfg.Log.FilePath)
	if err != nil {
		return err
	}
	Logger = New(w, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(Logger)
	return nil
}

func get() *slog.Logger {
	if Logger != nil {
		return Logger
	}
	return slog.Default()
}

// With 返回带固定属性的记录器
func With(args ...any) *slog.Logger {
	return get().With(args...)
}

// Debug 记录调试级别的日志
func Debug(msg string, args ...any) {
	get().Debug(msg, args...)
}

// Info 记录信息级别的日志
func Info(msg string, args ...any) {
	get().Info(msg, args...)
}

// Warn 记录警告级别的日志
func Warn(msg string, args ...any) {
	get().Warn(msg, args...)
}

// Error 记录错误级别的日志
func Error(msg string, args ...any) {
	get().Error(msg, args...)
}
