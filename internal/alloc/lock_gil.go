//go:build krait_gil

package alloc

import "sync"

var gil sync.Mutex

func lock()   { gil.Lock() }
func unlock() { gil.Unlock() }

// GILEnabled reports whether the coarse allocator lock is compiled in.
const GILEnabled = true
