package domain

// Stage is a state of the quiz pipeline.
type Stage string

const (
	StageIdle      Stage = "idle"
	StageLoaded    Stage = "loaded"
	StageIndexed   Stage = "indexed"
	StageRetrieved Stage = "retrieved"
	StagePrompted  Stage = "prompted"
	StageGenerated Stage = "generated"
	StagePresented Stage = "presented"
	StageDone      Stage = "done"
	StageFailed    Stage = "failed"
)

var stageOrder = []Stage{
	StageIdle,
	StageLoaded,
	StageIndexed,
	StageRetrieved,
	StagePrompted,
	StageGenerated,
	StagePresented,
	StageDone,
}

// Next returns the stage that follows s on the success path. Done and Failed
// have no successor.
func (s Stage) Next() (Stage, bool) {
	for i, st := range stageOrder {
		if st == s && i+1 < len(stageOrder) {
			return stageOrder[i+1], true
		}
	}
	return "", false
}

// Terminal reports whether no further transition is possible from s.
func (s Stage) Terminal() bool {
	return s == StageDone || s == StageFailed
}

// Step names the work done while leaving a stage, used in error messages.
func (s Stage) Step() string {
	switch s {
	case StageIdle:
		return "load"
	case StageLoaded:
		return "index"
	case StageIndexed:
		return "retrieve"
	case StageRetrieved:
		return "prompt"
	case StagePrompted:
		return "generate"
	case StageGenerated:
		return "present"
	}
	return string(s)
}
