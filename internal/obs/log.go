package obs

import (
	"sync"

	"go.uber.org/zap"
)

var (
	loggerMu sync.RWMutex
	logger   = zap.NewNop()
)

// Init builds the shared logger. Production mode emits JSON lines;
// anything else gets the development console encoder.
func Init(environment string) error {
	var (
		l   *zap.Logger
		err error
	)
	if environment == "production" {
		l, err = zap.NewProduction()
	} else {
		l, err = zap.NewDevelopment()
	}
	if err != nil {
		return err
	}
	loggerMu.Lock()
	logger = l
	loggerMu.Unlock()
	return nil
}

// L returns the shared structured logger used across the service. Before
// Init it is a nop logger, which keeps library code and tests quiet.
func L() *zap.Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return logger
}

// Sync flushes buffered log entries; call on shutdown.
func Sync() {
	_ = L().Sync()
}
