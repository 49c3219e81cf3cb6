// Package logger реализует уровневое логирование поверх стандартного log
package logger

import (
	"log"
	"strings"
)

// Level уровень подробности логов
type Level int

const (
	LevelError Level = iota
	LevelWarn
	LevelInfo
	LevelDebug
)

// Logger пишет сообщения с префиксом уровня
type Logger struct {
	level Level
	out   *log.Logger
}

// New создает логгер; out == nil означает стандартный логгер пакета log
func New(level Level, out *log.Logger) *Logger {
	if out == nil {
		out = log.Default()
	}
	return &Logger{level: level, out: out}
}

// ParseLevel разбирает значение LOG_LEVEL, неизвестное значение дает INFO
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ERROR":
		return LevelError
	case "WARN", "WARNING":
		return LevelWarn
	case "DEBUG":
		return LevelDebug
	default:
		return LevelInfo
	}
}

func (l *Logger) logf(level Level, prefix, format string, args ...interface{}) {
	if l == nil || level > l.level {
		return
	}
	l.out.Printf(prefix+format, args...)
}

// Errorf логирует ошибки
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.logf(LevelError, "[ERROR] ", format, args...)
}

// Warnf логирует предупреждения
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.logf(LevelWarn, "[WARN] ", format, args...)
}

// Infof логирует информационные сообщения
func (l *Logger) Infof(format string, args ...interface{}) {
	l.logf(LevelInfo, "[INFO] ", format, args...)
}

// Debugf логирует отладочные сообщения
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.logf(LevelDebug, "[DEBUG] ", format, args...)
}

// Level возвращает текущий уровень
func (l *Logger) Level() Level {
	return l.level
}

// Discard логгер, который ничего не пишет
func Discard() *Logger {
	return &Logger{level: LevelError - 1, out: log.Default()}
}
