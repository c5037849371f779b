package log

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// L is the global sugared logger used throughout crawldedup. It discards output
// until InitWithConfig is called.
var L = zap.NewNop().Sugar()

// ParseLevel maps debug|info|warn|error to a zap level, defaulting to info.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// InitWithConfig initializes zap logger based on level and format.
// level: debug|info|warn|error
// format: json|console
//
// Logs go to stderr; stdout may carry the downstream queue.
func InitWithConfig(level, format string) error {
	L = New(zapcore.AddSync(os.Stderr), level, format).Sugar()
	return nil
}

// New builds a logger writing to ws.
func New(ws zapcore.WriteSyncer, level, format string) *zap.Logger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	if strings.ToLower(format) == "console" {
		enc = zapcore.NewConsoleEncoder(encCfg)
	} else {
		enc = zapcore.NewJSONEncoder(encCfg)
	}

	core := zapcore.NewCore(enc, ws, ParseLevel(level))
	return zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
}

// Sync flushes buffered logs.
func Sync() {
	if L != nil {
		_ = L.Sync()
	}
}
