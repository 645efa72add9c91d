package memutils

import "strings"

// CreateFlags indicate specific heap and resource table behaviors to activate or deactivate
type CreateFlags int32

const (
	// CreateExternallySynchronized ensures that heaps and resource tables created with this flag
	// will not be synchronized internally. The consumer must guarantee they are used from only one
	// context at a time (allocation must never be reached from an interrupt handler while a task is
	// mid-allocation), but the critical-section guards around list mutation are skipped.
	CreateExternallySynchronized CreateFlags = 1 << iota
)

var createFlagsMapping = []struct {
	flag CreateFlags
	name string
}{
	{CreateExternallySynchronized, "CreateExternallySynchronized"},
}

func (f CreateFlags) String() string {
	if f == 0 {
		return "None"
	}

	var names []string
	for _, entry := range createFlagsMapping {
		if f&entry.flag != 0 {
			names = append(names, entry.name)
			f &^= entry.flag
		}
	}
	if f != 0 {
		names = append(names, "Unknown")
	}

	return strings.Join(names, "|")
}

// UseMutex reports whether objects created with these flags should guard their internal state
func (f CreateFlags) UseMutex() bool {
	return f&CreateExternallySynchronized == 0
}
