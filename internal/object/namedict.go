package object

import (
	"krait/internal/symbol"
)

// NameDict maps interned names to values: attributes of instances, types and
// modules, and closure cells. Open addressing with linear probing; deletion
// shifts following entries back instead of leaving tombstones.
type NameDict struct {
	keys []symbol.Name
	vals []Value
	size int
}

const nameDictMin = 8

// NewNameDict returns a dict sized for about hint entries.
func NewNameDict(hint int) *NameDict {
	n := nameDictMin
	for n*2 < hint*3 {
		n <<= 1
	}
	return &NameDict{keys: make([]symbol.Name, n), vals: make([]Value, n)}
}

func (d *NameDict) Len() int {
	if d == nil {
		return 0
	}
	return d.size
}

func (d *NameDict) slot(n symbol.Name) int {
	return int((uint32(n) * 2654435761) & uint32(len(d.keys)-1)) // #nosec G115 -- mask fits
}

func (d *NameDict) find(n symbol.Name) (int, bool) {
	mask := len(d.keys) - 1
	for i := d.slot(n); ; i = (i + 1) & mask {
		switch d.keys[i] {
		case n:
			return i, true
		case symbol.NoName:
			return i, false
		}
	}
}

func (d *NameDict) Get(n symbol.Name) (Value, bool) {
	if d == nil || d.size == 0 {
		return Nil, false
	}
	i, ok := d.find(n)
	if !ok {
		return Nil, false
	}
	return d.vals[i], true
}

func (d *NameDict) Set(n symbol.Name, v Value) {
	if len(d.keys) == 0 {
		d.keys = make([]symbol.Name, nameDictMin)
		d.vals = make([]Value, nameDictMin)
	}
	i, ok := d.find(n)
	if ok {
		d.vals[i] = v
		return
	}
	if (d.size+1)*3 > len(d.keys)*2 {
		d.grow()
		i, _ = d.find(n)
	}
	d.keys[i] = n
	d.vals[i] = v
	d.size++
}

func (d *NameDict) grow() {
	keys, vals := d.keys, d.vals
	d.keys = make([]symbol.Name, len(keys)*2)
	d.vals = make([]Value, len(keys)*2)
	for i, k := range keys {
		if k == symbol.NoName {
			continue
		}
		j, _ := d.find(k)
		d.keys[j] = k
		d.vals[j] = vals[i]
	}
}

// Delete removes n and reports whether it was present.
func (d *NameDict) Delete(n symbol.Name) bool {
	if d == nil || d.size == 0 {
		return false
	}
	i, ok := d.find(n)
	if !ok {
		return false
	}
	mask := len(d.keys) - 1
	j := i
	for {
		j = (j + 1) & mask
		k := d.keys[j]
		if k == symbol.NoName {
			break
		}
		home := d.slot(k)
		// запись в j можно сдвинуть в i, если её домашний слот не лежит в (i, j]
		if i <= j {
			if i < home && home <= j {
				continue
			}
		} else if i < home || home <= j {
			continue
		}
		d.keys[i] = k
		d.vals[i] = d.vals[j]
		i = j
	}
	d.keys[i] = symbol.NoName
	d.vals[i] = Nil
	d.size--
	return true
}

// Each visits entries in slot order until fn returns false.
func (d *NameDict) Each(fn func(symbol.Name, Value) bool) {
	if d == nil {
		return
	}
	for i, k := range d.keys {
		if k == symbol.NoName {
			continue
		}
		if !fn(k, d.vals[i]) {
			return
		}
	}
}

// Names returns the keys in slot order.
func (d *NameDict) Names() []symbol.Name {
	out := make([]symbol.Name, 0, d.Len())
	d.Each(func(n symbol.Name, _ Value) bool {
		out = append(out, n)
		return true
	})
	return out
}

func (d *NameDict) Copy() *NameDict {
	if d == nil {
		return NewNameDict(0)
	}
	return &NameDict{
		keys: append([]symbol.Name(nil), d.keys...),
		vals: append([]Value(nil), d.vals...),
		size: d.size,
	}
}
