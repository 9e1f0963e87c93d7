// Package testkit holds invariant checkers shared by the compiler, VM and
// collector tests.
package testkit

import (
	"errors"
	"fmt"

	"krait/internal/code"
	"krait/internal/compiler"
	"krait/internal/gc"
	"krait/internal/object"
	"krait/internal/source"
)

// CheckUnit runs code.Validate and adds the checks that need the source:
// every line-table entry falls inside the file, nested units are never
// modules, and the module unit is a module.
func CheckUnit(u *code.Unit) error {
	if u == nil {
		return errors.New("nil unit")
	}
	var errs []error
	if err := code.Validate(u); err != nil {
		errs = append(errs, err)
	}
	if u.Kind != code.KindModule {
		errs = append(errs, fmt.Errorf("root unit %s has kind %d", u.Name, u.Kind))
	}
	var lines uint32
	if u.File != nil {
		lines = u.File.LineCount()
	}
	u.Walk(func(n *code.Unit) {
		if n != u && n.Kind == code.KindModule {
			errs = append(errs, fmt.Errorf("nested unit %s is a module", n.Name))
		}
		if n.MaxDepth < 0 {
			errs = append(errs, fmt.Errorf("unit %s: negative stack depth", n.Name))
		}
		if u.File == nil {
			return
		}
		for ip, l := range n.Lines {
			// строка 0 допустима для синтетических инструкций
			if l > lines+1 {
				errs = append(errs, fmt.Errorf("unit %s ip %d: line %d beyond %d", n.Name, ip, l, lines))
				break
			}
		}
	})
	return errors.Join(errs...)
}

// CompileAndCheck compiles src in mode and validates the result. The caller
// releases the unit.
func CompileAndCheck(name, src string, mode code.Mode) (*code.Unit, error) {
	u, err := compiler.Compile(source.NewFile(name, []byte(src)), compiler.Options{Mode: mode})
	if err != nil {
		return nil, err
	}
	if err := CheckUnit(u); err != nil {
		u.Release()
		return nil, err
	}
	return u, nil
}

// CheckHeap verifies the heap bookkeeping: the live counter matches the
// objects actually present, no object is left marked between collections,
// and every reference held by a live object resolves to a live object.
func CheckHeap(h *object.Heap) error {
	var errs []error
	n := 0
	h.Each(func(v object.Value, o *object.Object) {
		n++
		if o.Marked() {
			errs = append(errs, fmt.Errorf("object %#x (%s) still marked", uint64(v), o.Kind))
		}
		object.Children(o, func(c object.Value) {
			if c.IsHeap() && h.Get(c) == nil {
				errs = append(errs, fmt.Errorf("object %#x (%s) references freed %#x", uint64(v), o.Kind, uint64(c)))
			}
		})
	})
	if n != h.Live() {
		errs = append(errs, fmt.Errorf("live counter %d, heap holds %d", h.Live(), n))
	}
	if blocks := h.Stats().Blocks(); blocks != n {
		errs = append(errs, fmt.Errorf("allocator reports %d blocks for %d objects", blocks, n))
	}
	return errors.Join(errs...)
}

// Unreachable counts collectable objects that no root or pinned object
// reaches. Right after a full collection it must be zero.
func Unreachable(h *object.Heap, roots gc.Roots) int {
	seen := make(map[object.Value]bool)
	var work []object.Value
	push := func(v object.Value) {
		if !v.IsHeap() || seen[v] || h.Get(v) == nil {
			return
		}
		seen[v] = true
		work = append(work, v)
	}
	if roots != nil {
		roots.EachRoot(push)
	}
	h.EachPinned(push)
	for len(work) > 0 {
		v := work[len(work)-1]
		work = work[:len(work)-1]
		object.Children(h.Get(v), push)
	}
	n := 0
	h.Each(func(v object.Value, o *object.Object) {
		if o.Traced() && !seen[v] {
			n++
		}
	})
	return n
}
