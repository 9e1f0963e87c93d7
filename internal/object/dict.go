package object

// Hasher supplies hashing and equality for dict keys. The VM implements it;
// both may call back into script code and therefore fail.
type Hasher interface {
	Hash(v Value) (int64, error)
	Equal(a, b Value) (bool, error)
}

const (
	slotEmpty   int32 = -1
	slotDeleted int32 = -2
	dictMinCap        = 8
)

type dictEntry struct {
	key  Value // Nil: удалённая запись
	val  Value
	hash int64
}

// Dict is an insertion-ordered hash map: a compact entry array plus an
// open-addressed index of entry positions.
type Dict struct {
	entries []dictEntry
	index   []int32
	size    int
	used    int // занятые слоты индекса, включая удалённые
}

func NewDict(hint int) *Dict {
	d := &Dict{}
	d.resize(hint)
	return d
}

func (d *Dict) Len() int { return d.size }

func (d *Dict) resize(need int) {
	c := dictMinCap
	for c*2 <= need*3 {
		c <<= 1
	}
	if d.size != len(d.entries) {
		live := d.entries[:0]
		for _, e := range d.entries {
			if e.key != Nil {
				live = append(live, e)
			}
		}
		clear(d.entries[len(live):])
		d.entries = live
	}
	d.index = make([]int32, c)
	for i := range d.index {
		d.index[i] = slotEmpty
	}
	mask := c - 1
	for pos, e := range d.entries {
		i := int(uint64(e.hash) & uint64(mask)) // #nosec G115 -- masked
		for d.index[i] != slotEmpty {
			i = (i + 1) & mask
		}
		d.index[i] = int32(pos) // #nosec G115 -- entry count is bounded by memory
	}
	d.used = len(d.entries)
}

// lookup returns the index slot holding key (found) or the slot where it
// should be inserted.
func (d *Dict) lookup(h Hasher, key Value, hash int64) (slot int, found bool, err error) {
	if len(d.index) == 0 {
		d.resize(0)
	}
	mask := len(d.index) - 1
	free := -1
	for i := int(uint64(hash) & uint64(mask)); ; i = (i + 1) & mask { // #nosec G115 -- masked
		s := d.index[i]
		switch s {
		case slotEmpty:
			if free < 0 {
				free = i
			}
			return free, false, nil
		case slotDeleted:
			if free < 0 {
				free = i
			}
			continue
		}
		e := &d.entries[s]
		if e.hash != hash {
			continue
		}
		if e.key == key {
			return i, true, nil
		}
		eq, err := h.Equal(e.key, key)
		if err != nil {
			return 0, false, err
		}
		if eq {
			return i, true, nil
		}
	}
}

func (d *Dict) Get(h Hasher, key Value) (Value, bool, error) {
	if d.size == 0 {
		// ключ всё равно должен быть хешируемым
		_, err := h.Hash(key)
		return Nil, false, err
	}
	hash, err := h.Hash(key)
	if err != nil {
		return Nil, false, err
	}
	slot, found, err := d.lookup(h, key, hash)
	if err != nil || !found {
		return Nil, false, err
	}
	return d.entries[d.index[slot]].val, true, nil
}

func (d *Dict) Set(h Hasher, key, val Value) error {
	hash, err := h.Hash(key)
	if err != nil {
		return err
	}
	slot, found, err := d.lookup(h, key, hash)
	if err != nil {
		return err
	}
	if found {
		d.entries[d.index[slot]].val = val
		return nil
	}
	if d.index[slot] == slotEmpty && (d.used+1)*3 > len(d.index)*2 {
		d.resize(d.size + 1)
		if slot, _, err = d.lookup(h, key, hash); err != nil {
			return err
		}
	}
	if d.index[slot] == slotEmpty {
		d.used++
	}
	d.index[slot] = int32(len(d.entries)) // #nosec G115 -- entry count is bounded by memory
	d.entries = append(d.entries, dictEntry{key: key, val: val, hash: hash})
	d.size++
	return nil
}

// Delete removes key and returns its value.
func (d *Dict) Delete(h Hasher, key Value) (Value, bool, error) {
	hash, err := h.Hash(key)
	if err != nil || d.size == 0 {
		return Nil, false, err
	}
	slot, found, err := d.lookup(h, key, hash)
	if err != nil || !found {
		return Nil, false, err
	}
	e := &d.entries[d.index[slot]]
	val := e.val
	*e = dictEntry{}
	d.index[slot] = slotDeleted
	d.size--
	if d.size == 0 {
		d.Clear()
	}
	return val, true, nil
}

func (d *Dict) Clear() {
	d.entries = nil
	d.size = 0
	d.resize(0)
}

// Each visits live entries in insertion order until fn returns false.
func (d *Dict) Each(fn func(k, v Value) bool) {
	for _, e := range d.entries {
		if e.key == Nil {
			continue
		}
		if !fn(e.key, e.val) {
			return
		}
	}
}

// Next returns the first live entry at or after pos, and the position to
// continue from. Iterators keep only the position.
func (d *Dict) Next(pos int) (k, v Value, next int, ok bool) {
	for ; pos < len(d.entries); pos++ {
		if e := d.entries[pos]; e.key != Nil {
			return e.key, e.val, pos + 1, true
		}
	}
	return Nil, Nil, pos, false
}

// Pop removes the most recently inserted entry.
func (d *Dict) Pop() (k, v Value, ok bool) {
	for i := len(d.entries) - 1; i >= 0; i-- {
		e := d.entries[i]
		if e.key == Nil {
			continue
		}
		mask := len(d.index) - 1
		for j := int(uint64(e.hash) & uint64(mask)); ; j = (j + 1) & mask { // #nosec G115 -- masked
			if d.index[j] == int32(i) { // #nosec G115 -- bounded
				d.index[j] = slotDeleted
				break
			}
		}
		d.entries[i] = dictEntry{}
		d.entries = d.entries[:i]
		d.size--
		return e.key, e.val, true
	}
	return Nil, Nil, false
}

func (d *Dict) Keys() []Value {
	out := make([]Value, 0, d.size)
	d.Each(func(k, _ Value) bool { out = append(out, k); return true })
	return out
}

func (d *Dict) Values() []Value {
	out := make([]Value, 0, d.size)
	d.Each(func(_, v Value) bool { out = append(out, v); return true })
	return out
}

func (d *Dict) Copy() *Dict {
	return &Dict{
		entries: append([]dictEntry(nil), d.entries...),
		index:   append([]int32(nil), d.index...),
		size:    d.size,
		used:    d.used,
	}
}

// Cap returns the index capacity.
func (d *Dict) Cap() int { return len(d.index) }
