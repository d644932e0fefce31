package crawler

// Registry tracks seen dedup keys. The crawl loop is single-threaded, so the
// registry is a plain set; the global instance is seeded from the existing
// output file at startup, the per-target instance starts empty.
type Registry struct {
	keys map[string]struct{}
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{keys: make(map[string]struct{})}
}

// Seed marks a batch of keys as seen.
func (r *Registry) Seed(keys []string) {
	for _, k := range keys {
		if k != "" {
			r.keys[k] = struct{}{}
		}
	}
}

// Has reports whether the key was seen before.
func (r *Registry) Has(key string) bool {
	_, ok := r.keys[key]
	return ok
}

// Add marks a key as seen and reports whether it was new.
func (r *Registry) Add(key string) bool {
	if key == "" {
		return false
	}
	if _, ok := r.keys[key]; ok {
		return false
	}
	r.keys[key] = struct{}{}
	return true
}

// Len returns the number of distinct keys seen.
func (r *Registry) Len() int {
	return len(r.keys)
}
