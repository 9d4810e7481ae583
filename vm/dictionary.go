package vm

// Dictionary is the process dictionary: process-local, unordered key/value
// storage. Keys compare structurally, so two separately built tuples {a, 1}
// address the same entry. Keys and values must live on the owning process's
// heap.
type Dictionary struct {
	entries map[string]dictEntry
}

type dictEntry struct {
	key   Value
	value Value
}

// NewDictionary creates an empty dictionary.
func NewDictionary() *Dictionary {
	return &Dictionary{entries: make(map[string]dictEntry)}
}

func dictKey(v Value) string {
	data, err := EncodeTerm(v, nil)
	if err != nil {
		panic(err)
	}
	return string(data)
}

// Put stores value under key and returns the previous value, if any.
func (d *Dictionary) Put(key, value Value) (Value, bool) {
	k := dictKey(key)
	old, ok := d.entries[k]
	d.entries[k] = dictEntry{key: key, value: value}
	if !ok {
		return None, false
	}
	return old.value, true
}

// Get returns the value stored under key.
func (d *Dictionary) Get(key Value) (Value, bool) {
	e, ok := d.entries[dictKey(key)]
	if !ok {
		return None, false
	}
	return e.value, true
}

// Erase removes key and returns the value it held.
func (d *Dictionary) Erase(key Value) (Value, bool) {
	k := dictKey(key)
	e, ok := d.entries[k]
	if !ok {
		return None, false
	}
	delete(d.entries, k)
	return e.value, true
}

// Keys returns every key in no particular order.
func (d *Dictionary) Keys() []Value {
	keys := make([]Value, 0, len(d.entries))
	for _, e := range d.entries {
		keys = append(keys, e.key)
	}
	return keys
}

// Each calls fn for every entry in no particular order.
func (d *Dictionary) Each(fn func(key, value Value)) {
	for _, e := range d.entries {
		fn(e.key, e.value)
	}
}

// Len returns the number of entries.
func (d *Dictionary) Len() int {
	return len(d.entries)
}

// Clear removes every entry.
func (d *Dictionary) Clear() {
	clear(d.entries)
}
