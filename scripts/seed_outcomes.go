// seed_outcomes.go — standalone script to drive synthetic prediction and
// outcome traffic through the Caliper API, warming up the learning loop
// for a context so weights and blend stages can be inspected.
//
// Usage:
//
//	go run scripts/seed_outcomes.go -api http://localhost:8700 -tenant demo -context tech:large:proposal -service risk -n 200
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
)

type predictionRequest struct {
	ServiceType       string             `json:"service_type"`
	ContextKey        string             `json:"context_key"`
	PredictedValue    float64            `json:"predicted_value"`
	SignalPredictions map[string]float64 `json:"signal_predictions"`
	SignalsUsed       []string           `json:"signals_used"`
	BlendRatio        float64            `json:"blend_ratio"`
}

type outcomeRequest struct {
	PredictionID  string  `json:"prediction_id"`
	ObservedValue float64 `json:"observed_value"`
}

// Per-signal noise: smaller means the signal tracks the ground truth
// more closely, so learning should reward it with a higher weight.
var signalNoise = map[string]float64{
	"ml":         0.05,
	"rules":      0.15,
	"llm":        0.25,
	"historical": 0.10,
}

func main() {
	apiURL := flag.String("api", "http://localhost:8700", "Caliper API base URL")
	tenant := flag.String("tenant", "demo", "X-Tenant-ID header value")
	contextKey := flag.String("context", "tech:large:proposal", "context key to seed")
	serviceType := flag.String("service", "risk", "service type to seed")
	n := flag.Int("n", 200, "number of prediction/outcome pairs")
	seed := flag.Int64("seed", 1, "rng seed")
	flag.Parse()

	rng := rand.New(rand.NewSource(*seed))
	client := &http.Client{}

	signals := make([]string, 0, len(signalNoise))
	for name := range signalNoise {
		signals = append(signals, name)
	}

	resolved, skipped := 0, 0
	for i := 0; i < *n; i++ {
		truth := rng.Float64()

		preds := make(map[string]float64, len(signals))
		var sum float64
		for _, name := range signals {
			v := clamp(truth + (rng.Float64()*2-1)*signalNoise[name])
			preds[name] = v
			sum += v
		}

		id, err := postPrediction(client, *apiURL, *tenant, predictionRequest{
			ServiceType:       *serviceType,
			ContextKey:        *contextKey,
			PredictedValue:    sum / float64(len(signals)),
			SignalPredictions: preds,
			SignalsUsed:       signals,
		})
		if err != nil {
			log.Printf("skip prediction %d: %v", i, err)
			skipped++
			continue
		}

		if err := postOutcome(client, *apiURL, *tenant, outcomeRequest{
			PredictionID:  id,
			ObservedValue: truth,
		}); err != nil {
			log.Printf("skip outcome %d: %v", i, err)
			skipped++
			continue
		}
		resolved++
	}

	log.Printf("done: %d resolved, %d skipped", resolved, skipped)
}

func postPrediction(client *http.Client, apiURL, tenant string, reqBody predictionRequest) (string, error) {
	body, _ := json.Marshal(reqBody)
	req, err := http.NewRequest("POST", apiURL+"/api/v1/outcomes/predictions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-ID", tenant)

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}

	var created struct {
		PredictionID string `json:"prediction_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", err
	}
	return created.PredictionID, nil
}

func postOutcome(client *http.Client, apiURL, tenant string, reqBody outcomeRequest) error {
	body, _ := json.Marshal(reqBody)
	req, err := http.NewRequest("POST", apiURL+"/api/v1/outcomes", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-ID", tenant)

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
