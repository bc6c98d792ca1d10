package buildplan

// ProgressEventType identifies the kind of progress event.
type ProgressEventType string

const (
	// ProgressVariantStart is emitted when a variant starts evaluating.
	ProgressVariantStart ProgressEventType = "variant_start"
	// ProgressVariantDone is emitted when a variant evaluated successfully.
	ProgressVariantDone ProgressEventType = "variant_done"
	// ProgressVariantFailed is emitted when a variant failed.
	ProgressVariantFailed ProgressEventType = "variant_failed"
)

// ProgressEvent reports the progress of EvaluateAll.
type ProgressEvent struct {
	Type    ProgressEventType
	Variant string

	// Dependencies is the number of resolved dependencies, set on done events.
	Dependencies int

	// Err is set on failed events.
	Err error
}
