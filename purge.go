package iocfixture

import "sync"

// PurgeFunc drops cached client channel state. It may talk to the IOC, so it
// must run while the IOC is still alive.
type PurgeFunc func() error

type namedPurger struct {
	name string
	fn   PurgeFunc
}

var (
	purgersMu sync.Mutex
	purgers   []namedPurger
)

// RegisterCachePurger adds a process-wide channel cache purge. Client
// libraries call it once, typically from init. Registering the same name
// again replaces the earlier function.
func RegisterCachePurger(name string, fn PurgeFunc) {
	purgersMu.Lock()
	defer purgersMu.Unlock()

	for i := range purgers {
		if purgers[i].name == name {
			purgers[i].fn = fn
			return
		}
	}
	purgers = append(purgers, namedPurger{name: name, fn: fn})
}

// UnregisterCachePurger removes a purge registered under name
func UnregisterCachePurger(name string) {
	purgersMu.Lock()
	defer purgersMu.Unlock()

	for i := range purgers {
		if purgers[i].name == name {
			purgers = append(purgers[:i], purgers[i+1:]...)
			return
		}
	}
}

// PurgeChannelCaches runs every registered purge in registration order. It
// can be called any number of times; all failures are collected.
func PurgeChannelCaches() error {
	purgersMu.Lock()
	snapshot := append([]namedPurger(nil), purgers...)
	purgersMu.Unlock()

	merr := &MultiError{}
	for _, p := range snapshot {
		if err := p.fn(); err != nil {
			merr.Add(&OpError{Op: OpPurge, Name: p.name, Err: err})
		}
	}
	return merr.Err()
}
