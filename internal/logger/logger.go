package logger

import (
	"sync"

	"go.uber.org/zap"
)

var (
	mu   sync.RWMutex
	base = zap.NewNop()
	log  = base.Sugar()
)

// devはコンソール形式、それ以外はJSON
func Init(env string) error {
	var (
		l   *zap.Logger
		err error
	)
	if env == "dev" || env == "development" {
		l, err = zap.NewDevelopment()
	} else {
		l, err = zap.NewProduction()
	}
	if err != nil {
		return err
	}
	Set(l)
	return nil
}

// テストや別の出力先に差し替える
func Set(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	base = l
	log = l.Sugar()
}

func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

func Sync() {
	_ = L().Sync()
}

func sugar() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

func Debug(msg string, kv ...interface{}) {
	sugar().Debugw(msg, kv...)
}

func Info(msg string, kv ...interface{}) {
	sugar().Infow(msg, kv...)
}

func Warn(msg string, kv ...interface{}) {
	sugar().Warnw(msg, kv...)
}

func Error(msg string, kv ...interface{}) {
	sugar().Errorw(msg, kv...)
}
