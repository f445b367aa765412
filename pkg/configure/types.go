package configure

import (
	"time"

	"github.com/openfroyo/dsce/pkg/expr"
)

// MessageLevel classifies one ResourceMessage, mirroring the teacher's
// Event.Level but narrowed to what a single sequential resource loop can
// ever emit.
type MessageLevel string

const (
	LevelInfo  MessageLevel = "info"
	LevelWarn  MessageLevel = "warn"
	LevelError MessageLevel = "error"
)

// ResourceMessage records one outcome for one planned resource — success,
// a recorded failure (error isolation keeps the run going), or a skip
// because a dependency failed. Adapted from the teacher's Event, dropping
// the RunID/fields that only make sense for a multi-run, streamed engine.
type ResourceMessage struct {
	ResourceType string       `json:"resourceType"`
	ResourceName string       `json:"resourceName"`
	Level        MessageLevel `json:"level"`
	Message      string       `json:"message"`
	Timestamp    time.Time    `json:"timestamp"`
}

// ResourceResult is one resource's outcome: the invoke.Result reshaped as
// plain JSON-able state, alongside the identity of the resource it came
// from.
type ResourceResult struct {
	ResourceType      string       `json:"resourceType"`
	ResourceName      string       `json:"resourceName"`
	BeforeState       expr.Value   `json:"beforeState,omitempty"`
	AfterState        expr.Value   `json:"afterState,omitempty"`
	ChangedProperties []string     `json:"changedProperties,omitempty"`
	ExportedStates    []expr.Value `json:"exportedStates,omitempty"`
}

// OperationResult is what EmitOperationResult produces at the end of one
// invocation: the ordered per-resource results, the messages collected
// along the way, and an overall hadErrors flag. Adapted from the
// teacher's ExecutionResult/RunSummary, collapsed to the single
// sequential flow spec.md §4.7 mandates — no Plan/ExecutionGraph/Run
// bookkeeping survives, since this engine has exactly one logical
// thread per invocation and no persisted run history.
type OperationResult struct {
	Operation string            `json:"operation"`
	Results   []ResourceResult  `json:"results"`
	Messages  []ResourceMessage `json:"messages"`
	HadErrors bool              `json:"hadErrors"`
}
