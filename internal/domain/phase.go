package domain

// Phase is one stage of a unit's lifecycle. Every unit passes through the
// three phases in order, and the retry policy is consulted per phase.
type Phase int

const (
	PhasePreprocess Phase = iota
	PhaseProcess
	PhasePostprocess
)

func (p Phase) String() string {
	switch p {
	case PhasePreprocess:
		return "preprocess"
	case PhaseProcess:
		return "process"
	case PhasePostprocess:
		return "postprocess"
	default:
		return "unknown"
	}
}

// Step identifies one of the sub-operations a patch unit runs inside its
// phases. Per-step size/progress/speed telemetry is keyed by this enum.
type Step int

const (
	StepExtract Step = iota
	StepValidate
	StepDownload

	// StepCount is the number of steps; telemetry maps are initialized
	// with an entry per step rather than relying on zero-on-missing-key.
	StepCount
)

func (s Step) String() string {
	switch s {
	case StepExtract:
		return "extract"
	case StepValidate:
		return "validate"
	case StepDownload:
		return "download"
	default:
		return "unknown"
	}
}

// State is the orchestrator's externally visible position in a run.
type State string

const (
	StateIdle         State = "idle"
	StateChecking     State = "checking"
	StateNoUpdate     State = "no_update"
	StateBinaryUpdate State = "binary_update"
	StatePatchUpdate  State = "patch_update"
	StateFinished     State = "finished"
	StateFailed       State = "failed"
)
