package fishing

import "time"

// Phase is the controller's own view of where it is in one fishing round.
type Phase int

const (
	Stopped Phase = iota
	WaitingInitial
	WaitingHook
	FishHooked
	PullingNormal
	PullingHalfway
	Success
	Casting
	Error
)

func (p Phase) String() string {
	switch p {
	case Stopped:
		return "STOPPED"
	case WaitingInitial:
		return "WAITING_INITIAL"
	case WaitingHook:
		return "WAITING_HOOK"
	case FishHooked:
		return "FISH_HOOKED"
	case PullingNormal:
		return "PULLING_NORMAL"
	case PullingHalfway:
		return "PULLING_HALFWAY"
	case Success:
		return "SUCCESS"
	case Casting:
		return "CASTING"
	case Error:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// DetectedLabel is the small integer tag returned by perception.
type DetectedLabel int

const (
	LabelWaitingBite   DetectedLabel = 0 // classifier: waiting for bite
	LabelFishHooked    DetectedLabel = 1 // classifier: fish hooked, not yet reeling
	LabelStaminaBelow  DetectedLabel = 2 // classifier: reeling, stamina < half
	LabelStaminaAbove  DetectedLabel = 3 // classifier: reeling, stamina >= half
	LabelPullRight     DetectedLabel = 4 // text: pull right
	LabelPullLeft      DetectedLabel = 5 // text: pull left
	LabelCatchSuccess  DetectedLabel = 6 // classifier or text: catch succeeded
)

func (l DetectedLabel) String() string {
	switch l {
	case LabelWaitingBite:
		return "waiting-for-bite"
	case LabelFishHooked:
		return "fish-hooked"
	case LabelStaminaBelow:
		return "stamina-below-half"
	case LabelStaminaAbove:
		return "stamina-above-half"
	case LabelPullRight:
		return "pull-right"
	case LabelPullLeft:
		return "pull-left"
	case LabelCatchSuccess:
		return "catch-success"
	default:
		return "unknown"
	}
}

// Source identifies which perception collaborator produced an Observation.
type Source int

const (
	SourceClassifier Source = iota
	SourceText
)

func (s Source) String() string {
	if s == SourceText {
		return "text"
	}
	return "classifier"
}

// Observation is a single perception result considered for a phase transition.
type Observation struct {
	Label      DetectedLabel
	Confidence float64
	Source     Source
}

// Diagnostics tracks perception activity that never mutated phase. It is
// purely informational: nothing here ever feeds back into a transition
// decision.
type Diagnostics struct {
	DroppedByLabel map[DetectedLabel]uint64
}

func (d Diagnostics) clone() Diagnostics {
	out := make(map[DetectedLabel]uint64, len(d.DroppedByLabel))
	for k, v := range d.DroppedByLabel {
		out[k] = v
	}
	return Diagnostics{DroppedByLabel: out}
}

// Status is the record published to observers on every phase change and on
// every accepted observation.
type Status struct {
	Phase             Phase
	LastDetectedLabel *DetectedLabel
	LastConfidence    *float64
	RoundCount        uint64
	LastError         string
	Paused            bool
	Diagnostics       Diagnostics
	UpdatedAt         time.Time
}

// perceptionDrivenPhases are the phases in which LastDetectedLabel /
// LastConfidence are populated on a published Status. Outside of this set
// the fields are cleared, per the status publication rule.
var perceptionDrivenPhases = map[Phase]bool{
	WaitingInitial: true,
	WaitingHook:    true,
	FishHooked:     true,
	PullingNormal:  true,
	PullingHalfway: true,
	Success:        true,
}

func showsLastLabel(p Phase) bool {
	return perceptionDrivenPhases[p]
}

// allowedLabels is the phase -> AllowedLabelSet table from the spec. It is
// the single source of truth the dispatcher consults; nothing else in this
// package decides which labels are legal for a phase.
var allowedLabels = map[Phase]map[DetectedLabel]bool{
	WaitingInitial: set(LabelWaitingBite, LabelFishHooked),
	WaitingHook:    set(LabelWaitingBite, LabelFishHooked),
	FishHooked:     set(LabelFishHooked, LabelStaminaBelow, LabelStaminaAbove),
	PullingNormal:  set(LabelStaminaBelow, LabelStaminaAbove, LabelPullRight, LabelPullLeft, LabelCatchSuccess),
	PullingHalfway: set(LabelStaminaBelow, LabelStaminaAbove, LabelPullRight, LabelPullLeft, LabelCatchSuccess),
	Success:        set(LabelCatchSuccess),
	Casting:        {},
	Stopped:        {},
	Error:          nil, // any label is legal, see AllowedLabelSet below
}

func set(labels ...DetectedLabel) map[DetectedLabel]bool {
	m := make(map[DetectedLabel]bool, len(labels))
	for _, l := range labels {
		m[l] = true
	}
	return m
}

// AllowedLabelSet returns the set of labels the controller will accept as a
// transition trigger while in phase p. ERROR accepts any label (the set is
// informational only there — the controller in ERROR does not run perception
// at all) so membership always reports true for ERROR.
func AllowedLabelSet(p Phase, l DetectedLabel) bool {
	allowed, ok := allowedLabels[p]
	if !ok {
		return false
	}
	if allowed == nil {
		return true
	}
	return allowed[l]
}

// AllowedLabels returns a defensive copy of phase p's AllowedLabelSet, for
// callers that need to pass the whole set to a detector rather than test one
// label at a time. Phases with no detect loop (CASTING, STOPPED) return an
// empty, non-nil map.
func AllowedLabels(p Phase) map[DetectedLabel]bool {
	allowed, ok := allowedLabels[p]
	if !ok || allowed == nil {
		return map[DetectedLabel]bool{}
	}
	out := make(map[DetectedLabel]bool, len(allowed))
	for k, v := range allowed {
		out[k] = v
	}
	return out
}
