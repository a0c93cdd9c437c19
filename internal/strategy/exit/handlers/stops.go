package handlers

import (
	"fnotrader/internal/strategy/exit"
	"fnotrader/internal/types"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// hardStopRule flattens once the close is strictly more than pct percent
// beyond the entry price against the position.
type hardStopRule struct {
	pct float64
}

func (r *hardStopRule) ID() string        { return HardStopID }
func (r *hardStopRule) Stage() exit.Stage { return exit.StageRisk }
func (r *hardStopRule) Reset(*exit.State) {}

func (r *hardStopRule) Evaluate(st *exit.State, q exit.Quote) exit.Outcome {
	if !st.Held() || st.EntryPrice <= 0 {
		return exit.Outcome{}
	}
	stop := adverseTarget(st.EntryPrice, r.pct, st.Side)
	if hitStopLoss(st.Side, q.Close, stop) {
		return exit.Outcome{Exit: true, Reason: HardStopID}
	}
	return exit.Outcome{}
}

// trailingStopRule measures the retracement from the best close since entry
// (the high for longs, the low for shorts); a move of pct percent or more exits.
type trailingStopRule struct {
	pct float64
}

func (r *trailingStopRule) ID() string        { return TrailingStopID }
func (r *trailingStopRule) Stage() exit.Stage { return exit.StageRisk }
func (r *trailingStopRule) Reset(*exit.State) {}

func (r *trailingStopRule) Evaluate(st *exit.State, q exit.Quote) exit.Outcome {
	if !st.Held() || st.EntryPrice <= 0 {
		return exit.Outcome{}
	}
	mark := st.HighWater
	if st.Side == types.SideShort {
		mark = st.LowWater
	}
	if mark <= 0 {
		return exit.Outcome{}
	}
	if priceBreachedStop(st.Side, q.Close, adverseTarget(mark, r.pct, st.Side)) {
		return exit.Outcome{Exit: true, Reason: TrailingStopID}
	}
	return exit.Outcome{}
}

type stopHandler struct {
	id       string
	compiled *jsonschema.Schema
	build    func(pct float64) exit.Rule
}

func newStopHandler(id string, build func(pct float64) exit.Rule) *stopHandler {
	return &stopHandler{id: id, compiled: mustCompile(id, stopSchema), build: build}
}

func (h *stopHandler) ID() string     { return h.id }
func (h *stopHandler) Schema() string { return stopSchema }

func (h *stopHandler) Validate(params map[string]any) error {
	if err := exit.ValidateSchema(h.compiled, params); err != nil {
		return err
	}
	return validatePct("pct", exit.NumberOr(params, "pct", 0), false)
}

func (h *stopHandler) Build(params map[string]any) (exit.Rule, error) {
	if err := h.Validate(params); err != nil {
		return nil, err
	}
	return h.build(exit.NumberOr(params, "pct", 0)), nil
}

const stopSchema = `{
  "type": "object",
  "required": ["pct"],
  "properties": {
    "pct": {"type": "number", "exclusiveMinimum": 0, "exclusiveMaximum": 100}
  },
  "additionalProperties": false
}`
