package trackpad

import (
	"math"
	"slices"

	"inputviz/internal/event"
)

// ClassifierOptions holds the gesture thresholds. Distances are in
// normalized trackpad units, angles in radians.
type ClassifierOptions struct {
	PinchThreshold  float64
	PinchDominance  float64
	RotateThreshold float64
	RotateDominance float64
	// SwipeThreshold is the displacement each matched touch must contribute.
	SwipeThreshold float64
	// MultiFingerThresholds maps a finger count to the centroid
	// displacement that triggers a multi-finger swipe. Counts above the
	// largest key use the largest key's threshold.
	MultiFingerThresholds map[int]float64
	// CoincidentEpsilon is the separation below which two touches are
	// treated as one point and the frame is skipped.
	CoincidentEpsilon float64
}

// DefaultClassifierOptions returns the standard thresholds.
func DefaultClassifierOptions() ClassifierOptions {
	return ClassifierOptions{
		PinchThreshold:  0.03,
		PinchDominance:  3.0,
		RotateThreshold: 0.1,
		RotateDominance: 1.5,
		SwipeThreshold:  0.05,
		MultiFingerThresholds: map[int]float64{
			3: 0.08,
			4: 0.06,
			5: 0.05,
		},
		CoincidentEpsilon: 1e-4,
	}
}

func (o ClassifierOptions) withDefaults() ClassifierOptions {
	d := DefaultClassifierOptions()
	if o.PinchThreshold <= 0 {
		o.PinchThreshold = d.PinchThreshold
	}
	if o.PinchDominance <= 0 {
		o.PinchDominance = d.PinchDominance
	}
	if o.RotateThreshold <= 0 {
		o.RotateThreshold = d.RotateThreshold
	}
	if o.RotateDominance <= 0 {
		o.RotateDominance = d.RotateDominance
	}
	if o.SwipeThreshold <= 0 {
		o.SwipeThreshold = d.SwipeThreshold
	}
	if len(o.MultiFingerThresholds) == 0 {
		o.MultiFingerThresholds = d.MultiFingerThresholds
	}
	if o.CoincidentEpsilon <= 0 {
		o.CoincidentEpsilon = d.CoincidentEpsilon
	}
	return o
}

// multiFingerThreshold returns the threshold for n fingers, falling back
// to the nearest configured count.
func (o ClassifierOptions) multiFingerThreshold(n int) (float64, bool) {
	if v, ok := o.MultiFingerThresholds[n]; ok {
		return v, true
	}
	counts := make([]int, 0, len(o.MultiFingerThresholds))
	for k := range o.MultiFingerThresholds {
		counts = append(counts, k)
	}
	if len(counts) == 0 {
		return 0, false
	}
	slices.Sort(counts)
	if n > counts[len(counts)-1] {
		return o.MultiFingerThresholds[counts[len(counts)-1]], true
	}
	if n < counts[0] {
		return o.MultiFingerThresholds[counts[0]], true
	}
	best := counts[0]
	for _, c := range counts {
		if c <= n {
			best = c
		}
	}
	return o.MultiFingerThresholds[best], true
}

// Result is one classified gesture.
type Result struct {
	Type      event.GestureType
	Magnitude float64
	// Rotation is set for rotate gestures; positive is counterclockwise.
	Rotation *float64
}

// Classifier recognizes pinch, rotate and swipe gestures from successive
// touch sets. Motion is measured against a reference frame: the touch set
// at the last emission, or when the set of touch ids last changed. Slow
// motion therefore accumulates until it crosses a threshold.
//
// A Classifier does no I/O and is not safe for concurrent use.
type Classifier struct {
	opts ClassifierOptions
	ref  map[int]event.Point
}

// NewClassifier creates a classifier.
func NewClassifier(opts ClassifierOptions) *Classifier {
	return &Classifier{opts: opts.withDefaults()}
}

// SetOptions replaces the thresholds and drops the reference frame.
func (c *Classifier) SetOptions(opts ClassifierOptions) {
	c.opts = opts.withDefaults()
	c.ref = nil
}

// Reset drops the reference frame.
func (c *Classifier) Reset() {
	c.ref = nil
}

// Classify examines touches, which must be ordered by id. It reports a
// gesture when one is recognized.
func (c *Classifier) Classify(touches []event.FingerTouch) (Result, bool) {
	if len(touches) < 2 {
		c.ref = nil
		return Result{}, false
	}
	for _, t := range touches {
		if !finite(t.Position) {
			return Result{}, false
		}
	}
	if !c.sameSet(touches) {
		c.rebase(touches)
		return Result{}, false
	}

	var (
		res Result
		ok  bool
	)
	if len(touches) == 2 {
		res, ok = c.classifyPair(touches)
	} else {
		res, ok = c.classifyMulti(touches)
	}
	if ok {
		c.rebase(touches)
	}
	return res, ok
}

func (c *Classifier) sameSet(touches []event.FingerTouch) bool {
	if c.ref == nil || len(c.ref) != len(touches) {
		return false
	}
	for _, t := range touches {
		if _, ok := c.ref[t.ID]; !ok {
			return false
		}
	}
	return true
}

func (c *Classifier) rebase(touches []event.FingerTouch) {
	c.ref = make(map[int]event.Point, len(touches))
	for _, t := range touches {
		c.ref[t.ID] = t.Position
	}
}

func (c *Classifier) classifyPair(touches []event.FingerTouch) (Result, bool) {
	a, b := touches[0], touches[1]
	ra, rb := c.ref[a.ID], c.ref[b.ID]

	distNow := a.Position.Distance(b.Position)
	distRef := ra.Distance(rb)
	if distNow < c.opts.CoincidentEpsilon || distRef < c.opts.CoincidentEpsilon {
		return Result{}, false
	}

	dd := distNow - distRef
	dr := wrapAngle(angle(a.Position, b.Position) - angle(ra, rb))

	switch {
	case math.Abs(dd) > c.opts.PinchThreshold && math.Abs(dd) > math.Abs(dr)*c.opts.PinchDominance:
		return Result{Type: event.Pinch(), Magnitude: dd}, true
	case math.Abs(dr) > c.opts.RotateThreshold && math.Abs(dr) > math.Abs(dd)*c.opts.RotateDominance:
		rot := dr
		return Result{Type: event.Rotate(), Magnitude: math.Abs(dr), Rotation: &rot}, true
	}

	da := a.Position.Sub(ra)
	db := b.Position.Sub(rb)
	total := da.Len() + db.Len()
	if total > c.opts.SwipeThreshold*2 {
		avg := da.Add(db).Scale(0.5)
		return Result{Type: event.Swipe(event.DirectionOf(avg.X, avg.Y)), Magnitude: avg.Len()}, true
	}
	return Result{}, false
}

func (c *Classifier) classifyMulti(touches []event.FingerTouch) (Result, bool) {
	n := len(touches)
	threshold, ok := c.opts.multiFingerThreshold(n)
	if !ok {
		return Result{}, false
	}

	var now, ref event.Point
	for _, t := range touches {
		now = now.Add(t.Position)
		ref = ref.Add(c.ref[t.ID])
	}
	shift := now.Sub(ref).Scale(1 / float64(n))
	if shift.Len() <= threshold {
		return Result{}, false
	}
	return Result{
		Type:      event.MultiFingerSwipe(event.DirectionOf(shift.X, shift.Y), n),
		Magnitude: shift.Len(),
	}, true
}

// angle is the direction from p to q, counterclockwise as the user sees
// it. Normalized y grows downward, hence the negation.
func angle(p, q event.Point) float64 {
	return math.Atan2(-(q.Y - p.Y), q.X-p.X)
}

// wrapAngle maps a into (-π, π].
func wrapAngle(a float64) float64 {
	for a <= -math.Pi {
		a += 2 * math.Pi
	}
	for a > math.Pi {
		a -= 2 * math.Pi
	}
	return a
}

func finite(p event.Point) bool {
	return !math.IsNaN(p.X) && !math.IsNaN(p.Y) && !math.IsInf(p.X, 0) && !math.IsInf(p.Y, 0)
}
