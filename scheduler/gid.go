package scheduler

import (
	"bytes"
	"fmt"
	"runtime"
	"strconv"
)

// goroutineID extracts the calling goroutine's runtime id from its stack
// trace header ("goroutine 123 [running]:"). The scheduler's "current
// context" lookup needs per-goroutine identity the same way the source
// library's TaskScheduler::GetContextInternal relies on thread-local
// storage — Go has no public thread-local equivalent, and the corpus
// carries no goroutine-local-storage dependency, so this is the
// documented stand-in (see DESIGN.md); it is used only as a map key, never
// compared across process restarts or persisted.
func goroutineID() int64 {
	buf := make([]byte, 64)
	n := runtime.Stack(buf, false)
	buf = buf[:n]
	const prefix = "goroutine "
	buf = bytes.TrimPrefix(buf, []byte(prefix))
	if i := bytes.IndexByte(buf, ' '); i >= 0 {
		buf = buf[:i]
	}
	id, err := strconv.ParseInt(string(buf), 10, 64)
	if err != nil {
		panic(fmt.Errorf("scheduler: could not parse goroutine id: %w", err))
	}
	return id
}
