package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the process logger. Production writes JSON to stderr;
// any other environment gets a human-readable console encoder at debug level.
func New(env string) (*zap.Logger, error) {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	level := zapcore.DebugLevel
	encoder := zapcore.NewConsoleEncoder(encoderCfg)
	if env == "production" {
		level = zapcore.InfoLevel
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(os.Stderr), level)

	logger := zap.New(core,
		zap.AddCaller(),
		zap.Fields(zap.Int("pid", os.Getpid())),
	)
	return logger, nil
}
