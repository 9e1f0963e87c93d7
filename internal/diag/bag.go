package diag

import (
	"cmp"
	"slices"
)

// Bag collects diagnostics up to a limit. Diagnostics past the limit are
// counted, not stored.
type Bag struct {
	items   []Diagnostic
	max     int
	dropped int
}

// NewBag creates a bag holding at most max items; max <= 0 means no limit.
func NewBag(max int) *Bag {
	return &Bag{max: max}
}

// Add stores d and reports whether it fit under the limit.
func (b *Bag) Add(d Diagnostic) bool {
	if b.max > 0 && len(b.items) >= b.max {
		b.dropped++
		return false
	}
	b.items = append(b.items, d)
	return true
}

// Dropped is the number of diagnostics refused by Add.
func (b *Bag) Dropped() int { return b.dropped }

func (b *Bag) Len() int { return len(b.items) }

// Items returns the stored diagnostics. The slice is shared with the bag.
func (b *Bag) Items() []Diagnostic { return b.items }

func (b *Bag) worst() (Severity, bool) {
	if len(b.items) == 0 {
		return 0, false
	}
	return slices.MaxFunc(b.items, func(x, y Diagnostic) int {
		return cmp.Compare(x.Severity, y.Severity)
	}).Severity, true
}

func (b *Bag) HasErrors() bool {
	sev, ok := b.worst()
	return ok && sev >= SevError
}

func (b *Bag) HasWarnings() bool {
	sev, ok := b.worst()
	return ok && sev >= SevWarning
}

// Merge appends the contents of other, ignoring the limit.
func (b *Bag) Merge(other *Bag) {
	b.items = append(b.items, other.items...)
	b.dropped += other.dropped
}

// Sort orders by file and position, errors before warnings at the same span.
func (b *Bag) Sort() {
	slices.SortStableFunc(b.items, func(x, y Diagnostic) int {
		return cmp.Or(
			cmp.Compare(x.Primary.File, y.Primary.File),
			cmp.Compare(x.Primary.Start, y.Primary.Start),
			cmp.Compare(x.Primary.End, y.Primary.End),
			cmp.Compare(y.Severity, x.Severity),
			cmp.Compare(x.Code, y.Code),
		)
	})
}

// Dedup drops repeated diagnostics, keeping the first of each.
func (b *Bag) Dedup() {
	seen := make(map[key]struct{}, len(b.items))
	b.items = slices.DeleteFunc(b.items, func(d Diagnostic) bool {
		k := d.key()
		if _, dup := seen[k]; dup {
			return true
		}
		seen[k] = struct{}{}
		return false
	})
}
