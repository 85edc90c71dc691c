package telemetry

import (
	"io"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is how the seeder reports progress. Key/value pairs follow the
// message, as in zap's sugared logger.
type Logger interface {
	Info(msg string, kv ...any)
	Debug(msg string, kv ...any)
	Error(msg string, err error, kv ...any)
}

type NOPLogger struct {
}

func (n NOPLogger) Info(msg string, kv ...any) {
}
func (n NOPLogger) Debug(msg string, kv ...any) {
}
func (n NOPLogger) Error(msg string, err error, kv ...any) {
}

type zapLogger struct {
	sugar *zap.SugaredLogger
}

// NewZapLogger adapts a zap logger to Logger.
func NewZapLogger(l *zap.Logger) Logger {
	return &zapLogger{sugar: l.Sugar()}
}

func (z *zapLogger) Info(msg string, kv ...any) {
	z.sugar.Infow(msg, kv...)
}

func (z *zapLogger) Debug(msg string, kv ...any) {
	z.sugar.Debugw(msg, kv...)
}

func (z *zapLogger) Error(msg string, err error, kv ...any) {
	z.sugar.Errorw(msg, append([]any{zap.Error(err)}, kv...)...)
}

// With returns a Logger that adds kv to every entry. Loggers that are not
// backed by zap are returned unchanged.
func With(l Logger, kv ...any) Logger {
	if z, ok := l.(*zapLogger); ok {
		return &zapLogger{sugar: z.sugar.With(kv...)}
	}
	return l
}

// BuildZap builds the process logger writing to w. format is "console" or "json".
func BuildZap(level, format string, w io.Writer) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(strings.ToLower(level))
	if err != nil {
		return nil, errors.Wrapf(err, "invalid log level %q", level)
	}

	var enc zapcore.Encoder
	switch format {
	case "json":
		enc = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	case "console", "":
		enc = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	default:
		return nil, errors.Newf("invalid log format %q", format)
	}

	return zap.New(zapcore.NewCore(enc, zapcore.Lock(zapcore.AddSync(w)), lvl)), nil
}
