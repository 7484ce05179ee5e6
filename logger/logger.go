package logger

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var Logger *zap.Logger

func InitLogger(logFile string, level string) error {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "time"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder

	atom := zap.NewAtomicLevel()
	if err := atom.UnmarshalText([]byte(level)); err != nil {
		return err
	}

	// Open or create the log file
	if dir := filepath.Dir(logFile); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	file, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	encoder := zapcore.NewJSONEncoder(cfg)

	// JSON to the log file, mirrored to stdout for operators tailing the node
	core := zapcore.NewTee(
		zapcore.NewCore(encoder, zapcore.AddSync(file), atom),
		zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), atom),
	)
	Logger = zap.New(core, zap.AddCaller())

	return nil
}
