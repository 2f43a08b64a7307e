package mpevent

import (
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/yangosoft/mpevent/internal/shm"
)

var (
	overrideMu               sync.RWMutex
	shmDirOverride           string
	loggerOverride           logrus.FieldLogger
	staleAfterProbesOverride int
)

// SetShmDir overrides the directory backing shared-memory regions. An
// empty string restores the default (shm.DefaultDir, i.e. /dev/shm).
// Tests use this to point every Coordinator at a t.TempDir() so they
// never touch the real tmpfs namespace.
func SetShmDir(dir string) {
	overrideMu.Lock()
	shmDirOverride = dir
	overrideMu.Unlock()
}

func currentShmDir() string {
	overrideMu.RLock()
	defer overrideMu.RUnlock()
	if shmDirOverride != "" {
		return shmDirOverride
	}
	return shm.DefaultDir
}

// SetLogger overrides the package-wide logger used for best-effort
// diagnostics (lock takeover, notify failures on Close). A nil logger
// restores logrus.StandardLogger().
func SetLogger(l logrus.FieldLogger) {
	overrideMu.Lock()
	loggerOverride = l
	overrideMu.Unlock()
}

func currentLogger() logrus.FieldLogger {
	overrideMu.RLock()
	defer overrideMu.RUnlock()
	if loggerOverride != nil {
		return loggerOverride
	}
	return logrus.StandardLogger()
}

// SetLockStallProbes overrides how many consecutive stalled wait ticks
// dirLock.Lock endures before probing whether the current holder is still
// alive. n<=0 restores the default (staleAfterProbes in lock.go).
func SetLockStallProbes(n int) {
	overrideMu.Lock()
	staleAfterProbesOverride = n
	overrideMu.Unlock()
}

func currentStaleAfterProbes() int {
	overrideMu.RLock()
	defer overrideMu.RUnlock()
	if staleAfterProbesOverride > 0 {
		return staleAfterProbesOverride
	}
	return staleAfterProbes
}

// Config describes the optional ~/.config/mpevent/config.toml file: host-
// wide defaults applications can share instead of hardcoding them. It has
// no effect unless an application chooses to call LoadConfig and apply
// the result itself (mpevent does not read this file implicitly).
type Config struct {
	ShmDir          string `toml:"shm_dir,omitempty"`
	DefaultWakeAll  bool   `toml:"default_wake_all,omitempty"`
	LockStallProbes int    `toml:"lock_stall_probes,omitempty"`
}
