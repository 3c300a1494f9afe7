package module

import (
	"sort"
	"sync"
)

// process registry of port sets, filled by modkit.Mount while main wires modules
var (
	mu  sync.RWMutex
	reg = map[string]any{}
)

// Register stores ports under name and reports whether an earlier set was replaced
func Register(name string, ports any) (replaced bool) {
	mu.Lock()
	defer mu.Unlock()
	_, replaced = reg[name]
	reg[name] = ports
	return replaced
}

// PortsAs fetches the port set registered under name as T
func PortsAs[T any](name string) (T, bool) {
	mu.RLock()
	v, ok := reg[name]
	mu.RUnlock()
	out, ok2 := v.(T)
	return out, ok && ok2
}

// Names lists registered module names in order
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(reg))
	for n := range reg {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Reset clears the registry; tests only
func Reset() {
	mu.Lock()
	reg = map[string]any{}
	mu.Unlock()
}
