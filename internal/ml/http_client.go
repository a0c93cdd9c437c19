package ml

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"fnotrader/internal/pkg/circuit"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
)

const (
	defaultHTTPTimeout = 10 * time.Second
	breakerFailures    = 5
	breakerCooldown    = 30 * time.Second
)

// HTTPPredictor posts feature vectors to an external model service.
// The response is either {"label": 1, "confidence": 0.7} or
// {"probabilities": [p_short, p_flat, p_long]}.
type HTTPPredictor struct {
	endpoint   string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *circuit.Breaker
}

type predictRequest struct {
	Date     string             `json:"date"`
	Features map[string]float64 `json:"features"`
}

// NewHTTPPredictor validates the endpoint. perSecond <= 0 disables rate limiting.
func NewHTTPPredictor(endpoint string, timeout time.Duration, perSecond float64) (*HTTPPredictor, error) {
	raw := strings.TrimSpace(endpoint)
	if raw == "" {
		return nil, fmt.Errorf("ml.endpoint is empty")
	}
	if _, err := url.ParseRequestURI(raw); err != nil {
		return nil, fmt.Errorf("parse ml.endpoint: %w", err)
	}
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	p := &HTTPPredictor{
		endpoint:   raw,
		httpClient: &http.Client{Timeout: timeout},
		breaker:    circuit.New("ml-predictor", breakerFailures, breakerCooldown),
	}
	if perSecond > 0 {
		p.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
	return p, nil
}

// SetHTTPClient sets the HTTP client for testing.
func (p *HTTPPredictor) SetHTTPClient(client *http.Client) {
	p.httpClient = client
}

// Breaker exposes the circuit guarding the endpoint.
func (p *HTTPPredictor) Breaker() *circuit.Breaker { return p.breaker }

// Predict fails fast with circuit.ErrOpen after repeated transport or
// server errors. Malformed bodies do not count against the endpoint.
func (p *HTTPPredictor) Predict(ctx context.Context, fv FeatureVector) (Prediction, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return Prediction{}, err
		}
	}
	var raw []byte
	err := p.breaker.Do(func() error {
		var err error
		raw, err = p.post(ctx, fv)
		return err
	})
	if err != nil {
		return Prediction{}, err
	}
	return ParsePrediction(string(raw))
}

func (p *HTTPPredictor) post(ctx context.Context, fv FeatureVector) ([]byte, error) {
	body, err := json.Marshal(predictRequest{Date: fv.Date.Format("2006-01-02"), Features: fv.Map()})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ml predict: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("ml predict: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return raw, nil
}

// ParsePrediction reads a model response body.
func ParsePrediction(raw string) (Prediction, error) {
	raw = strings.TrimSpace(raw)
	if !gjson.Valid(raw) {
		return Prediction{}, fmt.Errorf("ml response is not valid json")
	}
	parsed := gjson.Parse(raw)
	if !parsed.IsObject() {
		return Prediction{}, fmt.Errorf("ml response must be an object")
	}
	var p Prediction
	if label := parsed.Get("label"); label.Exists() {
		p = Prediction{Label: int(label.Int()), Confidence: parsed.Get("confidence").Float()}
	} else if probs := parsed.Get("probabilities"); probs.IsArray() {
		arr := probs.Array()
		if len(arr) != 3 {
			return Prediction{}, fmt.Errorf("ml response has %d probabilities, want 3", len(arr))
		}
		best := 0
		for i := range arr {
			if arr[i].Float() > arr[best].Float() {
				best = i
			}
		}
		p = Prediction{Label: best - 1, Confidence: arr[best].Float()}
	} else {
		return Prediction{}, fmt.Errorf("ml response has neither label nor probabilities")
	}
	return p, p.Validate()
}
