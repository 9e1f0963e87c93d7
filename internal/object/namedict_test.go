package object

import (
	"fmt"
	"testing"

	"krait/internal/symbol"
)

func TestNameDictSetGetDelete(t *testing.T) {
	d := NewNameDict(0)
	var names []symbol.Name
	for i := range 100 {
		n := symbol.Intern(fmt.Sprintf("attr_%d", i))
		names = append(names, n)
		d.Set(n, iv(int64(i)))
	}
	if d.Len() != 100 {
		t.Fatalf("len = %d", d.Len())
	}
	for i, n := range names {
		if i%3 == 0 && !d.Delete(n) {
			t.Fatalf("delete %s failed", n)
		}
	}
	// после сдвига назад все оставшиеся ключи должны находиться
	for i, n := range names {
		v, ok := d.Get(n)
		if i%3 == 0 {
			if ok {
				t.Fatalf("%s still present", n)
			}
			continue
		}
		if !ok || v.Int() != int64(i) {
			t.Fatalf("Get(%s) = %v %v", n, v, ok)
		}
	}
	if d.Delete(names[0]) {
		t.Fatal("double delete reported success")
	}
}

func TestNameDictZeroValue(t *testing.T) {
	var d NameDict
	if _, ok := d.Get(symbol.Self); ok {
		t.Fatal("empty dict returned a value")
	}
	d.Set(symbol.Self, True)
	if v, _ := d.Get(symbol.Self); v != True {
		t.Fatal("zero-value dict did not store")
	}
	var nilDict *NameDict
	if nilDict.Len() != 0 || len(nilDict.Names()) != 0 {
		t.Fatal("nil dict not empty")
	}
}
