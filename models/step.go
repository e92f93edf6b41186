package models

// StepType identifies how a quest step measures progress.
type StepType string

const (
	StepFinance      StepType = "finance"
	StepMaterial     StepType = "material"
	StepContributers StepType = "contributers"
	StepNoRequired   StepType = "no_required"
)

// Valid reports whether t is one of the known step types.
func (t StepType) Valid() bool {
	switch t {
	case StepFinance, StepMaterial, StepContributers, StepNoRequired:
		return true
	}
	return false
}

// Requirement is the target/current pair of a step. CurrentValue is derived
// from source records and is only ever replaced, never incremented.
type Requirement struct {
	CurrentValue int  `json:"currentValue"`
	TargetValue  *int `json:"targetValue,omitempty"`
}

type Step struct {
	Type        StepType     `json:"type"`
	Title       string       `json:"title,omitempty"`
	Requirement *Requirement `json:"requirement,omitempty"`
}

// Complete reports whether the step has reached its target. Steps without a
// requirement are always complete.
func (s Step) Complete() bool {
	if s.Requirement == nil || s.Requirement.TargetValue == nil {
		return true
	}
	return s.Requirement.CurrentValue >= *s.Requirement.TargetValue
}

// CloneSteps deep-copies a step list so requirement pointers are not shared.
func CloneSteps(steps []Step) []Step {
	if steps == nil {
		return nil
	}
	out := make([]Step, len(steps))
	for i, s := range steps {
		out[i] = s
		if s.Requirement != nil {
			req := *s.Requirement
			if req.TargetValue != nil {
				t := *req.TargetValue
				req.TargetValue = &t
			}
			out[i].Requirement = &req
		}
	}
	return out
}
