package mpevent

import "testing"

// withTempNamespace points the package's shared-memory directory at a
// fresh t.TempDir() for the duration of the test, so tests never touch
// the real /dev/shm and never collide with each other's namespaces.
func withTempNamespace(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	SetShmDir(dir)
	t.Cleanup(func() { SetShmDir("") })
}
