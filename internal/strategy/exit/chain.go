package exit

import "sort"

// Chain evaluates rules by stage, then registration order, and stops at
// the first rule that exits.
type Chain struct {
	rules []Rule
}

func NewChain(rules ...Rule) *Chain {
	list := make([]Rule, 0, len(rules))
	for _, r := range rules {
		if r != nil {
			list = append(list, r)
		}
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].Stage() < list[j].Stage() })
	return &Chain{rules: list}
}

// Evaluate returns the firing rule's ID with its outcome, or "" when the
// position survives the bar.
func (c *Chain) Evaluate(st *State, q Quote) (string, Outcome) {
	if c == nil || !st.Held() {
		return "", Outcome{}
	}
	for _, r := range c.rules {
		out := r.Evaluate(st, q)
		if out.Exit {
			return r.ID(), out
		}
	}
	return "", Outcome{}
}

// Reset clears every rule's latch.
func (c *Chain) Reset(st *State) {
	if c == nil || st == nil {
		return
	}
	for _, r := range c.rules {
		r.Reset(st)
	}
}

// IDs lists the active rules in evaluation order.
func (c *Chain) IDs() []string {
	if c == nil {
		return nil
	}
	out := make([]string, len(c.rules))
	for i, r := range c.rules {
		out[i] = r.ID()
	}
	return out
}

// EMAPeriod is the largest EMA period any rule asks for; 0 when none does.
func (c *Chain) EMAPeriod() int {
	if c == nil {
		return 0
	}
	period := 0
	for _, r := range c.rules {
		if er, ok := r.(EMARule); ok && er.EMAPeriod() > period {
			period = er.EMAPeriod()
		}
	}
	return period
}

// Len returns the number of rules.
func (c *Chain) Len() int {
	if c == nil {
		return 0
	}
	return len(c.rules)
}
