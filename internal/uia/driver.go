// Copyright 2025 Joseph Cumines

package uia

import (
	"sort"
	"sync"
)

// DriverOpener constructs a platform driver. Platform binding packages call
// RegisterDriver from an init function; linking the binding into a binary is
// what makes it available, in the manner of database/sql drivers.
type DriverOpener func() (Driver, error)

var (
	driversMu sync.Mutex
	drivers   = map[string]DriverOpener{}
)

// RegisterDriver makes a platform binding available under name. Registering
// two bindings under the same name panics; that is a build mistake, not a
// runtime condition.
func RegisterDriver(name string, open DriverOpener) {
	driversMu.Lock()
	defer driversMu.Unlock()
	if open == nil {
		panic("uia: RegisterDriver with nil opener")
	}
	if _, dup := drivers[name]; dup {
		panic("uia: RegisterDriver called twice for driver " + name)
	}
	drivers[name] = open
}

// OpenDriver opens the named platform binding. An empty name selects the
// sole registered binding, failing when there are none or several.
func OpenDriver(name string) (Driver, error) {
	driversMu.Lock()
	open, ok := drivers[name]
	if !ok && name == "" && len(drivers) == 1 {
		for _, o := range drivers {
			open = o
			ok = true
		}
	}
	names := registeredNames()
	driversMu.Unlock()

	if !ok {
		if len(names) == 0 {
			return nil, NewError(KindUnsupportedOperation,
				"no platform driver linked into this binary")
		}
		if name == "" {
			return nil, Errorf(KindInvalidArgument,
				"multiple platform drivers registered, pick one of %v", names)
		}
		return nil, Errorf(KindInvalidArgument,
			"unknown platform driver %q, registered: %v", name, names)
	}
	return open()
}

// Drivers lists the registered platform binding names, sorted.
func Drivers() []string {
	driversMu.Lock()
	defer driversMu.Unlock()
	return registeredNames()
}

func registeredNames() []string {
	out := make([]string, 0, len(drivers))
	for name := range drivers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
