package testrun

import "fmt"

// DefaultMaxSteps caps the scenario step count when unset (spec.md §4.7).
const DefaultMaxSteps = 200

// HardMaxSteps is the absolute ceiling regardless of safety.maxSteps.
const HardMaxSteps = 1000

// Retry backoff defaults.
const (
	DefaultRetryDelayMs      = 1500
	DefaultRetryBackoffFactor = 2.0
	DefaultMaxRetryDelayMs    = 30000
)

// Execution timeout bounds, in milliseconds.
const (
	DefaultExecutionTimeoutMs = 120_000
	MinExecutionTimeoutMs     = 5_000
	MaxExecutionTimeoutMs     = 900_000
)

// RuntimeMode selects how the editor runs the scenario.
type RuntimeMode string

// Runtime modes. "server" is a legacy alias normalized to "run".
const (
	RuntimeNone RuntimeMode = "none"
	RuntimeRun  RuntimeMode = "run"
	RuntimePlay RuntimeMode = "play"
)

// destructiveStepTypes require explicit safety.allowDestructiveActions
// (spec.md §4.7). Grounded in the mutating command kinds that remove
// or move structure, as opposed to in-place property edits.
var destructiveStepTypes = map[string]bool{
	"delete":   true,
	"reparent": true,
}

// Step is one scenario action.
type Step struct {
	Type   string                 `json:"type"`
	Params map[string]interface{} `json:"params,omitempty"`
}

// Safety bounds runtime/retry behavior for one scenario.
type Safety struct {
	MaxSteps                int     `json:"maxSteps"`
	RetryDelayMs            int     `json:"retryDelayMs"`
	RetryBackoffFactor      float64 `json:"retryBackoffFactor"`
	MaxRetryDelayMs         int     `json:"maxRetryDelayMs"`
	MaxRetries              int     `json:"maxRetries"`
	ExecutionTimeoutMs      int     `json:"executionTimeoutMs"`
	AllowDestructiveActions bool    `json:"allowDestructiveActions"`
}

// Runtime selects the scenario's execution mode.
type Runtime struct {
	Mode RuntimeMode `json:"mode"`
}

// Scenario is a normalized, validated test run request.
type Scenario struct {
	Name      string  `json:"name"`
	Steps     []Step  `json:"steps"`
	Safety    Safety  `json:"safety"`
	Runtime   Runtime `json:"runtime"`
	Isolation bool    `json:"isolation"`
}

// RawScenario is the wire shape accepted by POST /agent/tests/run,
// before defaults are applied.
type RawScenario struct {
	Name      string   `json:"name"`
	Steps     []Step   `json:"steps"`
	Safety    *Safety  `json:"safety"`
	Runtime   *Runtime `json:"runtime"`
	Isolation *bool    `json:"isolation"`
}

// NormalizeError names the offending field (mirrors schema.ValidationError's shape).
type NormalizeError struct {
	Field   string
	Message string
}

func (e *NormalizeError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Normalize validates and fills in defaults for a raw scenario
// submission (spec.md §4.7 "Scenario normalization").
func Normalize(raw RawScenario) (*Scenario, error) {
	if len(raw.Steps) == 0 {
		return nil, &NormalizeError{Field: "steps", Message: "must be non-empty"}
	}

	safety := Safety{
		MaxSteps:           DefaultMaxSteps,
		RetryDelayMs:       DefaultRetryDelayMs,
		RetryBackoffFactor: DefaultRetryBackoffFactor,
		MaxRetryDelayMs:    DefaultMaxRetryDelayMs,
		ExecutionTimeoutMs: DefaultExecutionTimeoutMs,
	}
	if raw.Safety != nil {
		if raw.Safety.MaxSteps > 0 {
			safety.MaxSteps = raw.Safety.MaxSteps
		}
		if raw.Safety.RetryDelayMs > 0 {
			safety.RetryDelayMs = raw.Safety.RetryDelayMs
		}
		if raw.Safety.RetryBackoffFactor > 0 {
			safety.RetryBackoffFactor = raw.Safety.RetryBackoffFactor
		}
		if raw.Safety.MaxRetryDelayMs > 0 {
			safety.MaxRetryDelayMs = raw.Safety.MaxRetryDelayMs
		}
		if raw.Safety.MaxRetries > 0 {
			safety.MaxRetries = raw.Safety.MaxRetries
		}
		if raw.Safety.ExecutionTimeoutMs > 0 {
			safety.ExecutionTimeoutMs = raw.Safety.ExecutionTimeoutMs
		}
		safety.AllowDestructiveActions = raw.Safety.AllowDestructiveActions
	}
	if safety.MaxSteps > HardMaxSteps {
		safety.MaxSteps = HardMaxSteps
	}
	if safety.ExecutionTimeoutMs < MinExecutionTimeoutMs {
		safety.ExecutionTimeoutMs = MinExecutionTimeoutMs
	}
	if safety.ExecutionTimeoutMs > MaxExecutionTimeoutMs {
		safety.ExecutionTimeoutMs = MaxExecutionTimeoutMs
	}

	if len(raw.Steps) > safety.MaxSteps {
		return nil, &NormalizeError{Field: "steps", Message: fmt.Sprintf("exceeds maxSteps (%d)", safety.MaxSteps)}
	}

	runtime := Runtime{Mode: RuntimePlay}
	if raw.Runtime != nil && raw.Runtime.Mode != "" {
		mode := raw.Runtime.Mode
		if mode == "server" {
			mode = RuntimeRun
		}
		switch mode {
		case RuntimeNone, RuntimeRun, RuntimePlay:
			runtime.Mode = mode
		default:
			return nil, &NormalizeError{Field: "runtime.mode", Message: "must be one of none|run|play"}
		}
	}

	isolation := true
	if raw.Isolation != nil {
		isolation = *raw.Isolation
	}

	if !safety.AllowDestructiveActions {
		for i, step := range raw.Steps {
			if destructiveStepTypes[step.Type] {
				return nil, &NormalizeError{
					Field:   fmt.Sprintf("steps[%d].type", i),
					Message: fmt.Sprintf("%q is destructive; set safety.allowDestructiveActions", step.Type),
				}
			}
		}
	}

	return &Scenario{
		Name:      raw.Name,
		Steps:     raw.Steps,
		Safety:    safety,
		Runtime:   runtime,
		Isolation: isolation,
	}, nil
}
