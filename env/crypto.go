package env

import (
	"crypto/rand"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/engine-host/engine"
)

var cryptoOnce sync.Once

// InitCryptoOnce primes the process-wide entropy source consumed by
// hosted programs. The snapshot-restore bootstrap path calls it because
// restored state skips the initialization a fresh construction performs.
// Idempotent across repeated managers within a process.
func InitCryptoOnce() {
	cryptoOnce.Do(func() {
		var seed [32]byte
		if _, err := rand.Read(seed[:]); err != nil {
			engine.Logger().Warn("InitCryptoOnce: entropy source unavailable", zap.Error(err))
			return
		}
		engine.Logger().Debug("crypto subsystem initialized")
	})
}
