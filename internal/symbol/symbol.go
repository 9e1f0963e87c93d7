// Package symbol holds the process-wide interned-name registry.
// Names are append-only and live for the whole process; the registry is
// created on first use and is safe for concurrent use.
package symbol

import (
	"fmt"
	"slices"
	"sync"

	"fortio.org/safecast"
)

// Name identifies an interned identifier. The zero Name is the empty string.
type Name uint32

// NoName is the reserved id of the empty string.
const NoName Name = 0

type registry struct {
	mu    sync.RWMutex
	byID  []string        // индекс -> строка (byID[0] = "" для NoName)
	index map[string]Name // строка -> ID
}

var global = sync.OnceValue(func() *registry {
	return &registry{
		byID:  []string{""},
		index: map[string]Name{"": NoName},
	}
})

// Intern вставляет строку в реестр и возвращает её Name.
// Если строка уже есть, возвращает существующий Name.
func Intern(s string) Name {
	r := global()
	r.mu.RLock()
	id, ok := r.index[s]
	r.mu.RUnlock()
	if ok {
		return id
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.index[s]; ok {
		return id
	}
	n, err := safecast.Conv[uint32](len(r.byID))
	if err != nil {
		panic(fmt.Errorf("symbol registry overflow: %w", err))
	}
	// собственная копия, чтобы не держать исходный буфер
	cpy := string([]byte(s))
	id = Name(n)
	r.byID = append(r.byID, cpy)
	r.index[cpy] = id
	return id
}

// Lookup возвращает строку по Name.
func Lookup(id Name) (string, bool) {
	r := global()
	r.mu.RLock()
	defer r.mu.RUnlock()
	if int(id) >= len(r.byID) {
		return "", false
	}
	return r.byID[id], true
}

// String returns the interned text; an unknown id yields "<?>".
func (n Name) String() string {
	s, ok := Lookup(n)
	if !ok {
		return "<?>"
	}
	return s
}

// Len returns the number of interned names including NoName.
func Len() int {
	r := global()
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// Snapshot returns a copy of all interned strings ordered by id.
func Snapshot() []string {
	r := global()
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.byID)
}
