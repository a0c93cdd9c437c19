package ml

// BuildLabels classifies each day's next-day return: above up is long,
// below down is short, anything else flat. The final close has no next day
// and is left unlabeled, so the result has len(closes)-1 entries.
func BuildLabels(closes []float64, up, down float64) []int {
	if len(closes) < 2 {
		return nil
	}
	out := make([]int, len(closes)-1)
	for i := range out {
		if closes[i] == 0 {
			continue
		}
		ret := finite(closes[i+1]/closes[i] - 1)
		switch {
		case ret > up:
			out[i] = LabelLong
		case ret < down:
			out[i] = LabelShort
		}
	}
	return out
}
