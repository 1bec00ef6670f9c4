// Package command holds command descriptors and the registry that resolves
// names and aliases to them.
package command

// Handler runs a resolved command. A returned error is reported to the
// conversation as a generic failure.
type Handler func(c *Context) error

// Requirements lists the roles a requester must hold.
type Requirements struct {
	Owner      bool
	Admin      bool
	GroupAdmin bool
}

// Any reports whether at least one role is required.
func (r Requirements) Any() bool {
	return r.Owner || r.Admin || r.GroupAdmin
}

// Descriptor is the registered definition of a command.
type Descriptor struct {
	Name            string
	Description     string
	Usage           string
	Aliases         []string
	Category        string
	CooldownSeconds int
	Requirements    Requirements
	// Hidden commands resolve normally but are left out of listings.
	Hidden  bool
	Handler Handler
}

// Source yields descriptors for Load. A source carries one or many descriptors.
type Source interface {
	Descriptors() []Descriptor
}

type sourceFunc func() []Descriptor

func (f sourceFunc) Descriptors() []Descriptor { return f() }

// Single wraps one descriptor as a Source.
func Single(d Descriptor) Source {
	return sourceFunc(func() []Descriptor { return []Descriptor{d} })
}

// Many wraps several descriptors as a Source.
func Many(ds ...Descriptor) Source {
	return sourceFunc(func() []Descriptor { return ds })
}
