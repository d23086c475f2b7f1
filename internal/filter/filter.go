// Public domain.

// Package filter narrows a working set of measurement indices by a sequence
// of boolean tests.
//
// A Result is an immutable value holding the surviving indices of an
// original array.  Each stage of a chain only examines points that passed
// the previous stage, and indices are always reported in the space of the
// original array, never of a filtered copy.  Once a stage leaves no
// survivors, every later stage also leaves none, without error.
package filter

// Result holds survivors of a chain of tests over an array of n elements.
type Result struct {
	n    int
	good []int // ascending, original index space
}

// All returns the starting Result for an array of n elements, with every
// index good.
func All(n int) Result {
	g := make([]int, n)
	for i := range g {
		g[i] = i
	}
	return Result{n, g}
}

// N returns the size of the original array.
func (r Result) N() int { return r.n }

// NGood returns the number of survivors.
func (r Result) NGood() int { return len(r.good) }

// NBad returns the number of rejected indices.
func (r Result) NBad() int { return r.n - len(r.good) }

// Empty is true when no index survives.
func (r Result) Empty() bool { return len(r.good) == 0 }

// Good returns a copy of the surviving indices, ascending.
func (r Result) Good() []int { return append([]int{}, r.good...) }

// Bad returns the indices of the original array that did not survive,
// ascending.
func (r Result) Bad() []int {
	b := make([]int, 0, r.n-len(r.good))
	j := 0
	for i := 0; i < r.n; i++ {
		if j < len(r.good) && r.good[j] == i {
			j++
			continue
		}
		b = append(b, i)
	}
	return b
}

// Apply evaluates test on each currently good index and returns the
// narrowed Result.  Test receives indices in the original space.
//
// An empty Result short-circuits: test is not called and the empty Result
// is returned, with all original indices bad.
func (r Result) Apply(test func(i int) bool) Result {
	if len(r.good) == 0 {
		return Result{n: r.n}
	}
	g := make([]int, 0, len(r.good))
	for _, i := range r.good {
		if test(i) {
			g = append(g, i)
		}
	}
	return Result{r.n, g}
}

// ApplyMask is Apply with a test array aligned to the original array.
// Only elements at currently good indices are read.
func (r Result) ApplyMask(mask []bool) Result {
	return r.Apply(func(i int) bool { return mask[i] })
}

// Stage is one named test of a chain.
//
// A Fallback stage whose survivors would drop below the chain minimum is
// reverted to its input set rather than narrowing the chain.
type Stage struct {
	Name     string
	Test     func(i int) bool
	Fallback bool
}

// StageReport records the outcome of one stage of a chain.
type StageReport struct {
	Name     string
	In, Out  int // survivors before and after the stage
	Reverted bool
}

// Chain applies stages in order starting from start.  Min is the survivor
// count below which Fallback stages revert.
func Chain(start Result, min int, stages ...Stage) (Result, []StageReport) {
	r := start
	reps := make([]StageReport, len(stages))
	for i, s := range stages {
		next := r.Apply(s.Test)
		reps[i] = StageReport{Name: s.Name, In: r.NGood(), Out: next.NGood()}
		if s.Fallback && next.NGood() < min && !r.Empty() {
			reps[i].Reverted = true
			reps[i].Out = r.NGood()
			continue
		}
		r = next
	}
	return r, reps
}
