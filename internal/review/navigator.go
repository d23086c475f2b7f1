// Public domain.

package review

// State is a position of a Navigator.
type State int

const (
	At      State = iota // positioned at a step
	Done                 // advanced past the last step
	Stopped              // quit by the reviewer
)

// Navigator walks steps 0..N-1 under reviewer commands.  Previous computes
// the preceding step directly; the caller reprocesses whatever step the
// navigator lands on.
type Navigator struct {
	N      int
	pos    int
	state  State
	asking bool
}

// NewNavigator returns a navigator at step 0 that consults the reviewer.
// With n == 0 it starts Done.
func NewNavigator(n int) *Navigator {
	nv := &Navigator{N: n, asking: true}
	if n == 0 {
		nv.state = Done
	}
	return nv
}

// Pos returns the current step.
func (nv *Navigator) Pos() int { return nv.pos }

// State returns the current state.
func (nv *Navigator) State() State { return nv.state }

// Asking is true until a Run command is seen.
func (nv *Navigator) Asking() bool { return nv.asking }

// Step applies a command to the current position.
func (nv *Navigator) Step(c Command) State {
	if nv.state != At {
		return nv.state
	}
	switch c {
	case Previous:
		if nv.pos > 0 {
			nv.pos--
		}
		return nv.state
	case Run:
		nv.asking = false
	case Quit:
		nv.state = Stopped
		return nv.state
	}
	nv.pos++
	if nv.pos >= nv.N {
		nv.state = Done
	}
	return nv.state
}
