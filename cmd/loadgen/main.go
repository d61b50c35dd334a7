// Command loadgen feeds a running Vigil instance with a steady metric
// baseline followed by a spike, then raises one external alert. It is
// used to exercise the pipeline end to end against a local server.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"time"
)

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "Vigil base URL")
	metric := flag.String("metric", "payment-service.cpu_usage", "metric name to send")
	baseline := flag.Int("baseline", 30, "number of baseline samples")
	spike := flag.Float64("spike", 95.5, "value of the final anomalous sample")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	client := &http.Client{Timeout: 5 * time.Second}

	start := time.Now().UTC().Add(-time.Duration(*baseline) * time.Second)
	for i := 0; i < *baseline; i++ {
		sample := map[string]any{
			"metric_name": *metric,
			"value":       40 + rand.Float64()*5,
			"timestamp":   start.Add(time.Duration(i) * time.Second),
		}
		if err := post(client, *baseURL+"/v1/metrics", sample); err != nil {
			logger.Error("failed to send baseline sample", "error", err)
			os.Exit(1)
		}
	}
	logger.Info("baseline sent", "metric", *metric, "samples", *baseline)

	if err := post(client, *baseURL+"/v1/metrics", map[string]any{
		"metric_name": *metric,
		"value":       *spike,
	}); err != nil {
		logger.Error("failed to send spike", "error", err)
		os.Exit(1)
	}
	logger.Info("spike sent", "metric", *metric, "value", *spike)

	if err := post(client, *baseURL+"/v1/alerts", map[string]any{
		"title":       "Circuit breaker open",
		"description": "payment-service breaker tripped after 50 consecutive failures",
		"severity":    "critical",
		"correlation_key": map[string]string{
			"service":     "payment-service",
			"component":   "circuit-breaker",
			"fingerprint": "payment-service-breaker",
		},
	}); err != nil {
		logger.Error("failed to raise alert", "error", err)
		os.Exit(1)
	}
	logger.Info("alert raised")
}

func post(client *http.Client, url string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	resp, err := client.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("unexpected status %s from %s", resp.Status, url)
	}
	return nil
}
