package ml

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// FilePredictions serves precomputed predictions keyed by date. Days with
// no entry predict flat with zero confidence.
type FilePredictions struct {
	byDate map[string]Prediction
}

func LoadPredictions(path string) (*FilePredictions, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read predictions: %w", err)
	}
	fp, err := ParsePredictions(string(raw))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return fp, nil
}

// ParsePredictions reads [{"date": "2024-01-02", "label": 1, "confidence": 0.6}, ...].
func ParsePredictions(raw string) (*FilePredictions, error) {
	raw = strings.TrimSpace(raw)
	if !gjson.Valid(raw) {
		return nil, fmt.Errorf("predictions are not valid json")
	}
	parsed := gjson.Parse(raw)
	if !parsed.IsArray() {
		return nil, fmt.Errorf("predictions must be a json array")
	}
	fp := &FilePredictions{byDate: make(map[string]Prediction)}
	var perr error
	parsed.ForEach(func(idx, item gjson.Result) bool {
		date, err := time.Parse("2006-01-02", strings.TrimSpace(item.Get("date").String()))
		if err != nil {
			perr = fmt.Errorf("entry %d: bad date %q", idx.Int(), item.Get("date").String())
			return false
		}
		p := Prediction{Label: int(item.Get("label").Int()), Confidence: item.Get("confidence").Float()}
		if err := p.Validate(); err != nil {
			perr = fmt.Errorf("entry %d: %w", idx.Int(), err)
			return false
		}
		fp.byDate[date.Format("2006-01-02")] = p
		return true
	})
	if perr != nil {
		return nil, perr
	}
	return fp, nil
}

func (f *FilePredictions) Len() int { return len(f.byDate) }

func (f *FilePredictions) Predict(_ context.Context, fv FeatureVector) (Prediction, error) {
	if p, ok := f.byDate[fv.Date.Format("2006-01-02")]; ok {
		return p, nil
	}
	return Prediction{Label: LabelFlat}, nil
}
