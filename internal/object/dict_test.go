package object

import (
	"errors"
	"testing"
)

// intHasher hashes tagged ints to themselves, with an optional forced collision.
type intHasher struct{ collide bool }

var errUnhashable = errors.New("unhashable")

func (h intHasher) Hash(v Value) (int64, error) {
	if !v.IsSmallInt() {
		return 0, errUnhashable
	}
	if h.collide {
		return 7, nil
	}
	return v.Int(), nil
}

func (intHasher) Equal(a, b Value) (bool, error) { return a == b, nil }

func iv(i int64) Value {
	v, _ := SmallInt(i)
	return v
}

func TestDictInsertionOrder(t *testing.T) {
	d := NewDict(0)
	h := intHasher{}
	for _, k := range []int64{5, 3, 9, 1} {
		if err := d.Set(h, iv(k), iv(k*10)); err != nil {
			t.Fatal(err)
		}
	}
	if err := d.Set(h, iv(3), iv(-1)); err != nil {
		t.Fatal(err)
	}
	var got []int64
	d.Each(func(k, v Value) bool {
		got = append(got, k.Int())
		return true
	})
	want := []int64{5, 3, 9, 1}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order %v, want %v", got, want)
		}
	}
	if v, ok, _ := d.Get(h, iv(3)); !ok || v.Int() != -1 {
		t.Fatalf("Get(3) = %v %v", v, ok)
	}
}

func TestDictGrowAndDelete(t *testing.T) {
	for _, collide := range []bool{false, true} {
		h := intHasher{collide: collide}
		d := NewDict(0)
		const n = 200
		for i := range int64(n) {
			if err := d.Set(h, iv(i), iv(i)); err != nil {
				t.Fatal(err)
			}
		}
		if d.Len() != n || d.Cap()*2 < n*3 {
			t.Fatalf("len %d cap %d", d.Len(), d.Cap())
		}
		for i := int64(0); i < n; i += 2 {
			if _, ok, _ := d.Delete(h, iv(i)); !ok {
				t.Fatalf("delete %d missed", i)
			}
		}
		for i := range int64(n) {
			_, ok, _ := d.Get(h, iv(i))
			if ok != (i%2 == 1) {
				t.Fatalf("collide=%v: Get(%d) present=%v", collide, i, ok)
			}
		}
		// повторная вставка после удаления идёт в конец
		if err := d.Set(h, iv(0), iv(0)); err != nil {
			t.Fatal(err)
		}
		keys := d.Keys()
		if keys[len(keys)-1] != iv(0) || d.Len() != n/2+1 {
			t.Fatalf("reinsert: len %d last %v", d.Len(), keys[len(keys)-1])
		}
	}
}

func TestDictErrorsAndPop(t *testing.T) {
	h := intHasher{}
	d := NewDict(0)
	if err := d.Set(h, None, iv(1)); !errors.Is(err, errUnhashable) {
		t.Fatalf("want unhashable, got %v", err)
	}
	if _, _, err := d.Get(h, None); !errors.Is(err, errUnhashable) {
		t.Fatalf("Get on empty dict must still hash: %v", err)
	}
	_ = d.Set(h, iv(1), iv(2))
	_ = d.Set(h, iv(3), iv(4))
	k, v, ok := d.Pop()
	if !ok || k != iv(3) || v != iv(4) || d.Len() != 1 {
		t.Fatalf("Pop = %v %v %v", k, v, ok)
	}
	if _, ok, _ := d.Get(h, iv(3)); ok {
		t.Fatal("popped key still present")
	}
	c := d.Copy()
	_ = c.Set(h, iv(9), iv(9))
	if d.Len() != 1 || c.Len() != 2 {
		t.Fatal("Copy shares storage")
	}
	pos, n := 0, 0
	for {
		var ok bool
		if _, _, pos, ok = c.Next(pos); !ok {
			break
		}
		n++
	}
	if n != 2 {
		t.Fatalf("Next visited %d entries", n)
	}
}
