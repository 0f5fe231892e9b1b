package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"reprice/internal/logger"
	"reprice/internal/types"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/gjson"
)

// ReasoningNarrator turns a reasoning chain into a prose explanation. The
// collaborator replies with raw JSON; Explainer validates it before use.
// Optional: any failure degrades to the templated explanation and never
// blocks a decision.
type ReasoningNarrator interface {
	Explain(ctx context.Context, productID string, chain []types.ReasoningStep) (raw string, err error)
}

// narrationSchema is the shape a narrator reply must satisfy to be trusted.
const narrationSchema = `{
	"type": "object",
	"properties": {
		"summary": {"type": "string", "minLength": 1}
	},
	"required": ["summary"]
}`

var compiledNarrationSchema = jsonschema.MustCompileString("narration.json", narrationSchema)

// Explainer wraps an optional narrator with a timeout and a deterministic
// template fallback.
type Explainer struct {
	Narrator ReasoningNarrator
	Timeout  time.Duration
}

func NewExplainer(narrator ReasoningNarrator, timeout time.Duration) *Explainer {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Explainer{Narrator: narrator, Timeout: timeout}
}

// Explain returns narrated text when the narrator produces a valid reply,
// otherwise the templated rendering of the chain.
func (e *Explainer) Explain(ctx context.Context, d types.Decision) string {
	fallback := RenderExplanation(d)
	if e == nil || e.Narrator == nil {
		return fallback
	}

	cctx, cancel := context.WithTimeout(ctx, e.Timeout)
	defer cancel()

	payload, _ := json.Marshal(d.ReasoningChain)
	logger.LogNarrationRequest(d.ProductID, d.ID, string(payload))

	raw, err := e.Narrator.Explain(cctx, d.ProductID, d.ReasoningChain)
	logger.LogNarrationResponse(d.ProductID, d.ID, raw, err)
	if err != nil {
		logger.Warnf("narrator failed for %s, using templated explanation: %v", d.ProductID, err)
		return fallback
	}

	summary, ok := extractSummary(raw)
	if !ok {
		logger.Warnf("narrator reply for %s failed validation, using templated explanation", d.ProductID)
		return fallback
	}
	return summary
}

func extractSummary(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || !gjson.Valid(raw) {
		return "", false
	}
	var doc any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return "", false
	}
	if err := compiledNarrationSchema.Validate(doc); err != nil {
		return "", false
	}
	summary := strings.TrimSpace(gjson.Get(raw, "summary").String())
	return summary, summary != ""
}

// RenderExplanation builds the deterministic explanation directly from the
// reasoning chain.
func RenderExplanation(d types.Decision) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Price %s: %.2f -> %.2f (%s, confidence %.2f).",
		directionWord(d), d.OldPrice, d.NewPrice, d.ChangeReason, d.Confidence)
	for _, step := range d.ReasoningChain {
		fmt.Fprintf(&b, " %s: %+.2f (%s).", step.Factor, step.Contribution, step.Observation)
	}
	return b.String()
}

func directionWord(d types.Decision) string {
	switch {
	case d.NewPrice > d.OldPrice:
		return "increase"
	case d.NewPrice < d.OldPrice:
		return "decrease"
	default:
		return "hold"
	}
}
