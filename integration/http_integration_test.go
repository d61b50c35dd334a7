package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// getBaseURL returns the base URL for API calls.
// Uses VIGIL_BASE_URL env var if set (for container tests),
// otherwise defaults to localhost:8080.
func getBaseURL() string {
	if url := os.Getenv("VIGIL_BASE_URL"); url != "" {
		return url
	}
	return "http://localhost:8080"
}

// httpClient creates an HTTP client with sensible defaults.
func httpClient() *http.Client {
	return &http.Client{
		Timeout: 10 * time.Second,
	}
}

// doRequest performs an HTTP request and returns the response.
func doRequest(method, path string, body interface{}) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, getBaseURL()+path, bodyReader)
	if err != nil {
		return nil, err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return httpClient().Do(req)
}

// parseResponse parses JSON response into target.
func parseResponse(resp *http.Response, target interface{}) error {
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(target)
}

// getData performs a GET and returns the envelope's data field, or nil
// when the request did not succeed.
func getData(path string) interface{} {
	resp, err := doRequest("GET", path, nil)
	if err != nil {
		return nil
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil
	}

	var result map[string]interface{}
	if parseResponse(resp, &result) != nil {
		return nil
	}
	return result["data"]
}

// correlationPath builds the correlation lookup for a fingerprint raised
// under the integration service and component.
func correlationPath(fingerprint string) string {
	q := url.Values{}
	q.Set("service", "integration")
	q.Set("component", "http-test")
	q.Set("fingerprint", fingerprint)
	return "/v1/correlations?" + q.Encode()
}

func raiseAlert(fingerprint, title string) {
	payload := map[string]interface{}{
		"title":    title,
		"severity": "high",
		"correlation_key": map[string]string{
			"service":     "integration",
			"component":   "http-test",
			"fingerprint": fingerprint,
		},
	}

	resp, err := doRequest("POST", "/v1/alerts", payload)
	Expect(err).NotTo(HaveOccurred())
	defer resp.Body.Close()
	Expect(resp.StatusCode).To(Equal(http.StatusAccepted))
}

var _ = Describe("HTTP Integration Tests", Ordered, func() {
	var (
		fingerprint    string
		alertID        string
		createdRuleIDs []string
	)

	BeforeAll(func() {
		// Check if the server is reachable
		resp, err := doRequest("GET", "/healthz", nil)
		if err != nil {
			Skip(fmt.Sprintf("Server not reachable at %s: %v", getBaseURL(), err))
		}
		resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		fingerprint = "http-test-" + uuid.New().String()
	})

	AfterAll(func() {
		for _, id := range createdRuleIDs {
			if resp, err := doRequest("DELETE", "/v1/suppression-rules/"+id, nil); err == nil {
				resp.Body.Close()
			}
		}
	})

	Describe("Health Check", func() {
		It("should report a healthy engine", func() {
			data, ok := getData("/healthz").(map[string]interface{})
			Expect(ok).To(BeTrue())
			Expect(data["healthy"]).To(BeTrue())
		})
	})

	Describe("Alert ingestion and correlation", func() {
		It("should create an alert from a raised event", func() {
			raiseAlert(fingerprint, "HTTP Test Alert")

			var group map[string]interface{}
			Eventually(func() bool {
				data, ok := getData(correlationPath(fingerprint)).(map[string]interface{})
				if !ok {
					return false
				}
				group = data
				return true
			}, 5*time.Second, 200*time.Millisecond).Should(BeTrue())

			alerts := group["alerts"].([]interface{})
			Expect(alerts).To(HaveLen(1))
			alert := alerts[0].(map[string]interface{})
			alertID = alert["id"].(string)

			Expect(alert["title"]).To(Equal("HTTP Test Alert"))
			Expect(alert["state"]).To(Equal("triggered"))
			Expect(alert["fire_count"]).To(Equal(float64(1)))
		})

		It("should fold a repeat into the same alert", func() {
			raiseAlert(fingerprint, "HTTP Test Alert")

			Eventually(func() interface{} {
				data, ok := getData("/v1/alerts/" + alertID).(map[string]interface{})
				if !ok {
					return nil
				}
				return data["fire_count"]
			}, 5*time.Second, 200*time.Millisecond).Should(Equal(float64(2)))
		})

		It("should record the initial notification", func() {
			Eventually(func() int {
				history, _ := getData("/v1/alerts/" + alertID + "/notifications").([]interface{})
				return len(history)
			}, 5*time.Second, 200*time.Millisecond).Should(BeNumerically(">=", 1))
		})

		It("should list the alert as active", func() {
			alerts, ok := getData("/v1/alerts?service=integration&limit=1000").([]interface{})
			Expect(ok).To(BeTrue())

			ids := make([]string, 0, len(alerts))
			for _, a := range alerts {
				ids = append(ids, a.(map[string]interface{})["id"].(string))
			}
			Expect(ids).To(ContainElement(alertID))
		})
	})

	Describe("Operator commands", func() {
		It("should acknowledge the alert", func() {
			resp, err := doRequest("POST", "/v1/alerts/"+alertID+"/acknowledge", map[string]string{"actor": "integration"})
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})

		It("should resolve the alert", func() {
			resp, err := doRequest("POST", "/v1/alerts/"+alertID+"/resolve", map[string]string{"actor": "integration"})
			Expect(err).NotTo(HaveOccurred())

			var result map[string]interface{}
			Expect(parseResponse(resp, &result)).To(Succeed())
			data := result["data"].(map[string]interface{})
			Expect(data["state"]).To(Equal("resolved"))
			Expect(data["acknowledged_by"]).To(Equal("integration"))
		})

		It("should reject commands on a resolved alert", func() {
			resp, err := doRequest("POST", "/v1/alerts/"+alertID+"/acknowledge", map[string]string{"actor": "integration"})
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusConflict))
		})

		It("should return 404 for unknown alerts", func() {
			resp, err := doRequest("GET", "/v1/alerts/"+uuid.New().String(), nil)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})
	})

	Describe("Suppression rules", func() {
		It("should suppress matching alerts while the rule is active", func() {
			marker := "maintenance-" + uuid.New().String()
			now := time.Now().UTC()

			resp, err := doRequest("POST", "/v1/suppression-rules", map[string]interface{}{
				"name":       "integration window",
				"pattern":    marker,
				"start_time": now.Add(-time.Minute),
				"end_time":   now.Add(time.Hour),
				"reason":     "integration test",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))

			var result map[string]interface{}
			Expect(parseResponse(resp, &result)).To(Succeed())
			createdRuleIDs = append(createdRuleIDs, result["data"].(map[string]interface{})["id"].(string))

			suppressed := "suppressed-" + uuid.New().String()
			raiseAlert(suppressed, "Disk full on "+marker)

			Eventually(func() interface{} {
				alerts, ok := getData("/v1/alerts?state=suppressed&service=integration&limit=1000").([]interface{})
				if !ok {
					return nil
				}
				for _, a := range alerts {
					alert := a.(map[string]interface{})
					key := alert["correlation_key"].(map[string]interface{})
					if key["fingerprint"] == suppressed {
						return alert["state"]
					}
				}
				return nil
			}, 5*time.Second, 200*time.Millisecond).Should(Equal("suppressed"))
		})
	})

	Describe("Escalation policies", func() {
		It("should create and read back a policy", func() {
			id := "integration-" + uuid.New().String()
			resp, err := doRequest("PUT", "/v1/escalation-policies/"+id, map[string]interface{}{
				"name":            "Integration on-call",
				"max_escalations": 1,
				"levels": []map[string]interface{}{
					{"level": 0, "timeout": "5m", "channels": []string{"email"}, "targets": []string{"qa@example.com"}},
					{"level": 1, "timeout": "15m", "channels": []string{"slack"}, "targets": []string{"#qa"}},
				},
			})
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			data, ok := getData("/v1/escalation-policies/" + id).(map[string]interface{})
			Expect(ok).To(BeTrue())
			Expect(data["name"]).To(Equal("Integration on-call"))
			Expect(data["levels"]).To(HaveLen(2))
		})
	})

	Describe("Anomaly detection", func() {
		It("should raise an alert for a metric spike", func() {
			metric := "integration." + uuid.New().String()
			start := time.Now().UTC().Add(-time.Minute)

			for i := 0; i < 12; i++ {
				resp, err := doRequest("POST", "/v1/metrics", map[string]interface{}{
					"metric_name": metric,
					"value":       10 + float64(i%2),
					"timestamp":   start.Add(time.Duration(i) * time.Second),
				})
				Expect(err).NotTo(HaveOccurred())
				resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusAccepted))
			}

			resp, err := doRequest("POST", "/v1/metrics", map[string]interface{}{
				"metric_name": metric,
				"value":       500,
			})
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()

			Eventually(func() bool {
				alerts, _ := getData("/v1/alerts?limit=1000").([]interface{})
				for _, a := range alerts {
					key := a.(map[string]interface{})["correlation_key"].(map[string]interface{})
					if key["fingerprint"] == metric+":anomaly" {
						return true
					}
				}
				return false
			}, 5*time.Second, 200*time.Millisecond).Should(BeTrue())
		})
	})
})
