package follows

// DedupeMap keeps one item per identity, preserving first-seen insertion
// order. Items are merged in server page order, so a duplicate observed on a
// later page never displaces the original.
type DedupeMap struct {
	index map[string]int
	items []FollowItem
}

func NewDedupeMap() *DedupeMap {
	return &DedupeMap{index: map[string]int{}}
}

// Hydrate seeds the map from previously collected items, e.g. a partial
// snapshot. First-seen-wins applies across the hydrated set too.
func (d *DedupeMap) Hydrate(items []FollowItem) {
	for _, it := range items {
		d.Add(it)
	}
}

// Add inserts the item unless its identity is already present.
// Reports whether the item was new.
func (d *DedupeMap) Add(it FollowItem) bool {
	id := it.Identity()
	if id == "" {
		return false
	}

	if _, ok := d.index[id]; ok {
		return false
	}

	d.index[id] = len(d.items)
	d.items = append(d.items, it)

	return true
}

func (d *DedupeMap) Len() int {
	return len(d.items)
}

// Items returns the collected items in insertion order. The returned slice
// is a copy; snapshots written from it never alias the live map.
func (d *DedupeMap) Items() []FollowItem {
	out := make([]FollowItem, len(d.items))
	copy(out, d.items)

	return out
}
