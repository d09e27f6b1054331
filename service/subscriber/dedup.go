package subscriber

// cycleDedup holds the hashes emitted during one cycle. A new one is
// allocated per cycle and dropped when the cycle ends.
type cycleDedup struct {
	seen map[string]struct{}
}

func newCycleDedup() *cycleDedup {
	return &cycleDedup{seen: make(map[string]struct{})}
}

func (d *cycleDedup) Seen(hash string) bool {
	_, ok := d.seen[hash]
	return ok
}

func (d *cycleDedup) Mark(hash string) {
	d.seen[hash] = struct{}{}
}
