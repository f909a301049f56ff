package logging

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// impl fans entries out to its appenders. Subloggers share the appenders of their parent but
// own their level.
type impl struct {
	name  string
	level AtomicLevel
	inUTC bool

	appenders []Appender
}

func (imp *impl) AddAppender(appender Appender) {
	imp.appenders = append(imp.appenders, appender)
}

func (imp *impl) SetLevel(level Level) {
	imp.level.Set(level)
}

func (imp *impl) GetLevel() Level {
	return imp.level.Get()
}

func (imp *impl) Sublogger(subname string) Logger {
	name := subname
	if imp.name != "" {
		name = imp.name + "." + subname
	}
	return &impl{
		name:      name,
		level:     NewAtomicLevelAt(imp.level.Get()),
		inUTC:     imp.inUTC,
		appenders: imp.appenders,
	}
}

func (imp *impl) Sync() error {
	var err error
	for _, appender := range imp.appenders {
		err = multierr.Append(err, appender.Sync())
	}
	return err
}

// AsZap builds a zap logger at the global level. Appenders that are full zap cores, like the
// observer of NewObservedTestLogger, keep receiving its entries.
func (imp *impl) AsZap() *zap.SugaredLogger {
	config := NewZapLoggerConfig()
	config.Level = GlobalLogLevel
	ret := zap.Must(config.Build()).Sugar().Named(imp.name)
	for _, appender := range imp.appenders {
		if core, ok := appender.(zapcore.Core); ok {
			ret = ret.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
				return zapcore.NewTee(c, core)
			}))
		}
	}
	return ret
}

// noDebugCtx is used by the logging methods that take no context.
var noDebugCtx = context.Background()

// enabled reports whether an entry at level passes the logger level, the global debug flag or,
// for debug entries, the debug mode of ctx.
func (imp *impl) enabled(ctx context.Context, level Level) bool {
	if GlobalLogLevel.Level() == zapcore.DebugLevel || level >= imp.level.Get() {
		return true
	}
	return level == DEBUG && IsDebugMode(ctx)
}

// newEntry must be called directly by print, printf or printw so that getCaller skips to the
// caller of the public logging method.
func (imp *impl) newEntry(level Level, msg string) zapcore.Entry {
	entry := zapcore.Entry{
		Level:      level.AsZap(),
		Time:       time.Now(),
		LoggerName: imp.name,
		Message:    msg,
		Caller:     getCaller(),
	}
	if imp.inUTC {
		entry.Time = entry.Time.UTC()
	}
	return entry
}

func (imp *impl) write(entry zapcore.Entry, fields []zapcore.Field) {
	for _, appender := range imp.appenders {
		if err := appender.Write(entry, fields); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}
}

func (imp *impl) print(ctx context.Context, level Level, args ...interface{}) {
	if imp.enabled(ctx, level) {
		imp.write(imp.newEntry(level, fmt.Sprint(args...)), nil)
	}
}

func (imp *impl) printf(ctx context.Context, level Level, template string, args ...interface{}) {
	if imp.enabled(ctx, level) {
		imp.write(imp.newEntry(level, fmt.Sprintf(template, args...)), nil)
	}
}

func (imp *impl) printw(ctx context.Context, level Level, msg string, keysAndValues ...interface{}) {
	if imp.enabled(ctx, level) {
		imp.write(imp.newEntry(level, msg), toFields(keysAndValues))
	}
}

// toFields pairs up keys and values. Values are json serialized, so only public struct fields
// show up. A trailing key without a value gets an error value rather than being dropped.
func toFields(keysAndValues []interface{}) []zapcore.Field {
	fields := make([]zapcore.Field, 0, (len(keysAndValues)+1)/2)
	for i := 0; i < len(keysAndValues); i += 2 {
		key := fmt.Sprint(keysAndValues[i])
		if i+1 == len(keysAndValues) {
			fields = append(fields, zap.Any(key, errors.New("unpaired log key")))
			break
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}

func (imp *impl) Debug(args ...interface{}) { imp.print(noDebugCtx, DEBUG, args...) }

func (imp *impl) Debugf(template string, args ...interface{}) {
	imp.printf(noDebugCtx, DEBUG, template, args...)
}

func (imp *impl) Debugw(msg string, keysAndValues ...interface{}) {
	imp.printw(noDebugCtx, DEBUG, msg, keysAndValues...)
}

func (imp *impl) CDebug(ctx context.Context, args ...interface{}) { imp.print(ctx, DEBUG, args...) }

func (imp *impl) CDebugf(ctx context.Context, template string, args ...interface{}) {
	imp.printf(ctx, DEBUG, template, args...)
}

func (imp *impl) CDebugw(ctx context.Context, msg string, keysAndValues ...interface{}) {
	imp.printw(ctx, DEBUG, msg, keysAndValues...)
}

func (imp *impl) Info(args ...interface{}) { imp.print(noDebugCtx, INFO, args...) }

func (imp *impl) Infof(template string, args ...interface{}) {
	imp.printf(noDebugCtx, INFO, template, args...)
}

func (imp *impl) Infow(msg string, keysAndValues ...interface{}) {
	imp.printw(noDebugCtx, INFO, msg, keysAndValues...)
}

func (imp *impl) Warn(args ...interface{}) { imp.print(noDebugCtx, WARN, args...) }

func (imp *impl) Warnf(template string, args ...interface{}) {
	imp.printf(noDebugCtx, WARN, template, args...)
}

func (imp *impl) Warnw(msg string, keysAndValues ...interface{}) {
	imp.printw(noDebugCtx, WARN, msg, keysAndValues...)
}

func (imp *impl) Error(args ...interface{}) { imp.print(noDebugCtx, ERROR, args...) }

func (imp *impl) Errorf(template string, args ...interface{}) {
	imp.printf(noDebugCtx, ERROR, template, args...)
}

func (imp *impl) Errorw(msg string, keysAndValues ...interface{}) {
	imp.printw(noDebugCtx, ERROR, msg, keysAndValues...)
}

// getCaller returns the location of the call to the public logging method: four frames up,
// past getCaller, newEntry and print/printf/printw.
func getCaller() zapcore.EntryCaller {
	const skipToLogCaller = 4
	var caller zapcore.EntryCaller
	caller.PC, caller.File, caller.Line, caller.Defined = runtime.Caller(skipToLogCaller)
	if !caller.Defined {
		return caller
	}
	if fn := runtime.FuncForPC(caller.PC); fn != nil {
		caller.Function = fn.Name()
	}
	return caller
}
