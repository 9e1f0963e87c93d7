package symbol

import (
	"fmt"
	"sync"
	"testing"
)

func TestInternStable(t *testing.T) {
	a := Intern("hello")
	if a == NoName {
		t.Fatal("non-empty string must not intern to NoName")
	}
	if b := Intern("hello"); a != b {
		t.Fatalf("same string, different ids: %d != %d", a, b)
	}
	if s, ok := Lookup(a); !ok || s != "hello" {
		t.Fatalf("Lookup = %q, %v", s, ok)
	}
	if Intern("") != NoName {
		t.Fatal("empty string must be NoName")
	}
	if Init.String() != "__init__" {
		t.Fatalf("well-known name resolved to %q", Init.String())
	}
}

func TestInternConcurrent(t *testing.T) {
	const workers = 8
	ids := make([][]Name, workers)
	var wg sync.WaitGroup
	for w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 200 {
				ids[w] = append(ids[w], Intern(fmt.Sprintf("conc_%d", i)))
			}
		}()
	}
	wg.Wait()
	for w := 1; w < workers; w++ {
		for i := range ids[w] {
			if ids[w][i] != ids[0][i] {
				t.Fatalf("worker %d got id %d for conc_%d, worker 0 got %d", w, ids[w][i], i, ids[0][i])
			}
		}
	}
}

func TestLookupUnknown(t *testing.T) {
	if _, ok := Lookup(Name(1 << 30)); ok {
		t.Fatal("unknown id must not resolve")
	}
	if Name(1<<30).String() != "<?>" {
		t.Fatal("unknown id should print as <?>")
	}
}
