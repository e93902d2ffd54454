package extract

// Stage names a step of the extraction pipeline.
type Stage string

const (
	StageEnvelope  Stage = "envelope"
	StageContent   Stage = "content"
	StageFences    Stage = "fences"
	StageTrim      Stage = "trim"
	StageLocate    Stage = "locate"
	StageRepair    Stage = "repair"
	StageParse     Stage = "parse"
	StageNormalize Stage = "normalize"
	StageValidate  Stage = "validate"
	StageOrder     Stage = "order"
)

// Event is reported to a Tracer when a stage finishes.
type Event struct {
	Stage Stage
	// Attrs carries stage specific diagnostics such as lengths, the
	// locator that matched, or dropped record counts.
	Attrs map[string]any
}

// Tracer receives pipeline events. It is called synchronously from Extract.
type Tracer func(Event)
