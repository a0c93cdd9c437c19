package handlers

import (
	"fmt"

	"fnotrader/internal/strategy/exit"
	"fnotrader/internal/types"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// anchorKind selects the indicator an armed exit follows.
type anchorKind int

const (
	anchorVWAP anchorKind = iota
	anchorEMA
)

// armedRule is the two-step latch: arm once price extends past the anchor
// by the arm band, fire on the first close back through the anchor.
// A bar that arms never fires.
type armedRule struct {
	id       string
	anchor   anchorKind
	longPct  float64
	shortPct float64
	period   int
}

func (r *armedRule) ID() string        { return r.id }
func (r *armedRule) Stage() exit.Stage { return exit.StageArmed }

func (r *armedRule) EMAPeriod() int {
	if r.anchor == anchorEMA {
		return r.period
	}
	return 0
}

func (r *armedRule) flag(st *exit.State) *bool {
	if r.anchor == anchorEMA {
		return &st.ArmedEMA
	}
	return &st.ArmedVWAP
}

func (r *armedRule) level(q exit.Quote) float64 {
	if r.anchor == anchorEMA {
		return q.EMA
	}
	return q.VWAP
}

func (r *armedRule) Evaluate(st *exit.State, q exit.Quote) exit.Outcome {
	anchor := r.level(q)
	if !st.Held() || anchor <= 0 {
		return exit.Outcome{}
	}
	pct := r.longPct
	if st.Side == types.SideShort {
		pct = r.shortPct
	}
	armed := r.flag(st)
	switch {
	case !*armed && pct > 0:
		if beyondTarget(st.Side, q.Close, relativeTarget(anchor, pct, st.Side)) {
			*armed = true
			return exit.Outcome{Armed: true, Reason: r.id + "_armed"}
		}
	case *armed:
		if crossedBack(st.Side, q.Close, anchor) {
			return exit.Outcome{Exit: true, Reason: r.id}
		}
	}
	return exit.Outcome{}
}

func (r *armedRule) Reset(st *exit.State) {
	*r.flag(st) = false
}

type armedHandler struct {
	id       string
	anchor   anchorKind
	compiled *jsonschema.Schema
}

func newArmedHandler(id string, anchor anchorKind) *armedHandler {
	h := &armedHandler{id: id, anchor: anchor}
	h.compiled = mustCompile(id, h.Schema())
	return h
}

func (h *armedHandler) ID() string { return h.id }

func (h *armedHandler) Schema() string {
	if h.anchor == anchorEMA {
		return emaArmedSchema
	}
	return vwapArmedSchema
}

func (h *armedHandler) Validate(params map[string]any) error {
	if err := exit.ValidateSchema(h.compiled, params); err != nil {
		return err
	}
	if err := validatePct("long_arm_pct", exit.NumberOr(params, "long_arm_pct", 0), true); err != nil {
		return err
	}
	if err := validatePct("short_arm_pct", exit.NumberOr(params, "short_arm_pct", 0), true); err != nil {
		return err
	}
	if h.anchor == anchorEMA {
		if p := exit.NumberOr(params, "period", 0); p < 2 {
			return fmt.Errorf("period must be >= 2, got %.0f", p)
		}
	}
	return nil
}

func (h *armedHandler) Build(params map[string]any) (exit.Rule, error) {
	if err := h.Validate(params); err != nil {
		return nil, err
	}
	return &armedRule{
		id:       h.id,
		anchor:   h.anchor,
		longPct:  exit.NumberOr(params, "long_arm_pct", 0),
		shortPct: exit.NumberOr(params, "short_arm_pct", 0),
		period:   int(exit.NumberOr(params, "period", 0)),
	}, nil
}

const vwapArmedSchema = `{
  "type": "object",
  "properties": {
    "long_arm_pct": {"type": "number", "minimum": 0},
    "short_arm_pct": {"type": "number", "minimum": 0}
  },
  "additionalProperties": false
}`

const emaArmedSchema = `{
  "type": "object",
  "required": ["period"],
  "properties": {
    "period": {"type": "integer", "minimum": 2},
    "long_arm_pct": {"type": "number", "minimum": 0},
    "short_arm_pct": {"type": "number", "minimum": 0}
  },
  "additionalProperties": false
}`
