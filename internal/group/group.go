// Public domain.

// Package group maps the kinematic path of a spectral line, the ordered
// list of bodies its Doppler shift derives from, to a small integer key.
//
// Keys are only meaningful within one analysis run.  A Registry is created
// at the start of a run and discarded at its end.
package group

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Generic is the placeholder substituted for a line's specific object.
const Generic = "object"

// Path is an ordered list of kinematic source identifiers, for example
// sun, object, earth for sunlight reflected by a target and seen from the
// ground.
type Path []string

// ParsePath parses a path written with "-" separators, "sun-object-earth".
func ParsePath(s string) (Path, error) {
	if strings.TrimSpace(s) == "" {
		return nil, fmt.Errorf("empty kinematic path")
	}
	f := strings.Split(s, "-")
	p := make(Path, len(f))
	for i, e := range f {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			return nil, fmt.Errorf("empty element in kinematic path %q", s)
		}
		p[i] = e
	}
	return p, nil
}

func (p Path) String() string { return strings.Join(p, "-") }

// Normalize returns a copy of p with occurrences of object replaced by the
// Generic placeholder.  An empty object leaves p unchanged.
func (p Path) Normalize(object string) Path {
	n := make(Path, len(p))
	object = strings.ToLower(object)
	for i, e := range p {
		if object != "" && e == object {
			e = Generic
		}
		n[i] = e
	}
	return n
}

// Kind classifies a group by where its light is last modified.
type Kind int

const (
	Source   Kind = iota // stellar or solar lines
	Object               // lines formed in the target itself
	Telluric             // absorption in the earth's atmosphere
)

var kindNames = [...]string{"source", "object", "telluric"}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// KindOf returns the kind of a normalized path.
func KindOf(p Path) Kind {
	switch {
	case len(p) == 0:
		return Source
	case len(p) == 1 && p[0] == "earth":
		return Telluric
	case p[0] == Generic:
		return Object
	}
	return Source
}

// Registry numbers paths for one analysis run.
type Registry struct {
	ID    string // unique per run
	keys  map[string]int
	paths []Path
	kinds []Kind
}

// NewRegistry returns an empty registry with a fresh run ID.
func NewRegistry() *Registry {
	return &Registry{
		ID:   uuid.NewString(),
		keys: make(map[string]int),
	}
}

// Key returns the key of p, assigning the next key if p is new.  A new
// group takes kind k.  Kind is given separately from p since a path kept
// with its object names still holds lines of the object.
func (r *Registry) Key(p Path, k Kind) int {
	s := p.String()
	if key, ok := r.keys[s]; ok {
		return key
	}
	key := len(r.paths)
	r.keys[s] = key
	r.paths = append(r.paths, append(Path{}, p...))
	r.kinds = append(r.kinds, k)
	return key
}

// Path returns the path registered under key.
func (r *Registry) Path(key int) Path { return r.paths[key] }

// Kind returns the kind of the group registered under key.
func (r *Registry) Kind(key int) Kind { return r.kinds[key] }

// Len returns the number of registered groups.
func (r *Registry) Len() int { return len(r.paths) }
