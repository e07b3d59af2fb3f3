package target

import "sync"

// Memory targets created from settings are shared by name for the life of
// the process, so a later lookup sees what an earlier publish wrote.
var (
	sharedMemoryMu sync.Mutex
	sharedMemory   = make(map[string]*MemoryTarget)
)

// SharedMemoryTarget returns the process-wide MemoryTarget called name,
// creating it on first use.
func SharedMemoryTarget(name string) *MemoryTarget {
	sharedMemoryMu.Lock()
	defer sharedMemoryMu.Unlock()

	if t, ok := sharedMemory[name]; ok {
		return t
	}
	t := NewMemoryTarget(name)
	sharedMemory[name] = t
	return t
}

// ResetSharedMemoryTargets forgets every shared MemoryTarget.
func ResetSharedMemoryTargets() {
	sharedMemoryMu.Lock()
	defer sharedMemoryMu.Unlock()

	sharedMemory = make(map[string]*MemoryTarget)
}
