package domain

// TriggerDecision says whether, and how, the pipeline fires for a message.
type TriggerDecision int

const (
	NotTriggered TriggerDecision = iota
	ForcedTrigger
	PassiveTrigger
)

func (d TriggerDecision) String() string {
	switch d {
	case ForcedTrigger:
		return "forced"
	case PassiveTrigger:
		return "passive"
	default:
		return "none"
	}
}

// Fired reports whether the decision starts the pipeline.
func (d TriggerDecision) Fired() bool {
	return d != NotTriggered
}
