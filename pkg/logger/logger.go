package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var log *zap.Logger
var sugar *zap.SugaredLogger

// Init builds the process logger for one exporter command. Every entry carries
// service plus any extra fields (the CLI passes run_id). env "dev" gives a
// coloured console; anything else writes JSON to stderr.
func Init(service, env, level string, fields ...zap.Field) {
	var cfg zap.Config

	if env == "dev" {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
	}

	if lvl, err := zapcore.ParseLevel(level); err == nil {
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}

	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	logger, err := cfg.Build(zap.AddCaller())
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	logger = logger.With(append([]zap.Field{zap.String("service", service)}, fields...)...)

	log = logger
	sugar = logger.Sugar()

	sugar.Debugw("logger.ready",
		"env", env,
		"level", level,
	)
}

// L returns the process logger, falling back to a dev logger before Init.
func L() *zap.Logger {
	if log == nil {
		Init("unknown", "dev", "info")
	}
	return log
}

// S is the sugared form of L.
func S() *zap.SugaredLogger {
	if sugar == nil {
		Init("unknown", "dev", "info")
	}
	return sugar
}

// Sync flushes buffered entries before the command exits.
func Sync() {
	if log != nil {
		_ = log.Sync()
	}
}
