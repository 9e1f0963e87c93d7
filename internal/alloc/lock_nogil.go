//go:build !krait_gil

package alloc

func lock()   {}
func unlock() {}

// GILEnabled reports whether the coarse allocator lock is compiled in.
const GILEnabled = false
