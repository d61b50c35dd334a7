package engine_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"vigil/internal/config"
	"vigil/internal/correlation"
	"vigil/internal/domain"
	"vigil/internal/engine"
	"vigil/internal/notification"
	storemem "vigil/internal/store/memory"
)

// fakeClock is a settable clock shared by the engine and the test.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// inbox records delivered messages for every channel.
type inbox struct {
	mu       sync.Mutex
	messages []*notification.Message
}

func (i *inbox) Send(_ context.Context, msg *notification.Message) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	m := *msg
	i.messages = append(i.messages, &m)
	return nil
}

func (i *inbox) For(alertID string) []*notification.Message {
	i.mu.Lock()
	defer i.mu.Unlock()
	var out []*notification.Message
	for _, m := range i.messages {
		if m.AlertID == alertID {
			out = append(out, m)
		}
	}
	return out
}

func (i *inbox) Len() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.messages)
}

var (
	t0      = time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	dbKey   = domain.CorrelationKey{Service: "orders", Component: "postgres", MetricType: "replication_lag", Fingerprint: "orders-pg-lag"}
	discard = slog.New(slog.NewTextHandler(io.Discard, nil))
)

func candidateAt(at time.Time) *domain.Alert {
	return &domain.Alert{
		CorrelationKey: dbKey,
		Severity:       domain.SeverityHigh,
		Title:          "Replication lag high",
		Description:    "replica is 40s behind",
		CreatedAt:      at,
	}
}

var _ = Describe("Engine", func() {
	var (
		ctx     context.Context
		cfg     *config.Config
		clock   *fakeClock
		mail    *inbox
		rules   *storemem.RuleStore
		archive *storemem.Archive
		alerts  *storemem.AlertStore
		eng     *engine.Engine
	)

	build := func() {
		senders := make(map[domain.NotificationChannel]notification.Sender)
		for _, ch := range domain.AllChannels {
			senders[ch] = mail
		}
		alerts = storemem.NewAlertStore()

		var err error
		eng, err = engine.New(ctx, engine.Dependencies{
			Config:  cfg,
			Alerts:  alerts,
			Groups:  storemem.NewGroupStore(),
			Rules:   rules,
			Archive: archive,
			Senders: senders,
			Logger:  discard,
			Clock:   clock.Now,
		})
		Expect(err).NotTo(HaveOccurred())
	}

	BeforeEach(func() {
		ctx = context.Background()
		cfg = config.Default()
		clock = &fakeClock{now: t0}
		mail = &inbox{}
		rules = storemem.NewRuleStore()
		archive = storemem.NewArchive(0, 0)
		build()
	})

	AfterEach(func() {
		Expect(eng.Shutdown(ctx)).To(Succeed())
	})

	Describe("deduplication", func() {
		It("folds repeats within the dedup window into one alert", func() {
			first, err := eng.ProcessAlert(ctx, candidateAt(t0))
			Expect(err).NotTo(HaveOccurred())
			Expect(first.Outcome).To(Equal(correlation.OutcomeNew))

			second, err := eng.ProcessAlert(ctx, candidateAt(t0.Add(30*time.Second)))
			Expect(err).NotTo(HaveOccurred())
			Expect(second.Outcome).To(Equal(correlation.OutcomeDeduplicated))
			Expect(second.Alert.ID).To(Equal(first.Alert.ID))

			active := eng.GetActiveAlerts()
			Expect(active).To(HaveLen(1))
			Expect(active[0].FireCount).To(Equal(2))
		})

		It("re-notifies only on every fifth fire", func() {
			var id string
			for i := 0; i < 10; i++ {
				res, err := eng.ProcessAlert(ctx, candidateAt(t0.Add(time.Duration(i)*time.Second)))
				Expect(err).NotTo(HaveOccurred())
				id = res.Alert.ID
			}
			eng.Drain()

			Expect(mail.For(id)).To(HaveLen(3))
		})
	})

	Describe("correlation", func() {
		It("groups siblings within the correlation window", func() {
			ids := map[string]bool{}
			for _, offset := range []time.Duration{0, 100 * time.Second, 250 * time.Second} {
				res, err := eng.ProcessAlert(ctx, candidateAt(t0.Add(offset)))
				Expect(err).NotTo(HaveOccurred())
				ids[res.Alert.ID] = true
			}
			Expect(ids).To(HaveLen(3))

			correlated, ok := eng.GetCorrelatedAlerts(dbKey)
			Expect(ok).To(BeTrue())
			Expect(correlated.Group.CorrelationCount).To(Equal(3))
			Expect(correlated.Alerts).To(HaveLen(3))
			for _, a := range correlated.Alerts {
				Expect(a.State).To(Equal(domain.StateTriggered))
			}
		})

		It("reports no group for an unknown key", func() {
			_, ok := eng.GetCorrelatedAlerts(domain.CorrelationKey{Fingerprint: "nothing"})
			Expect(ok).To(BeFalse())
		})
	})

	Describe("anomaly detection", func() {
		feed := func(metric string, values ...float64) {
			for i, v := range values {
				_, err := eng.ProcessMetric(ctx, metric, v, t0.Add(time.Duration(i)*time.Second))
				Expect(err).NotTo(HaveOccurred())
			}
		}
		baseline := []float64{10, 10, 10, 10, 10, 10, 10, 10, 10, 100}

		It("fires when the z-score exceeds the sensitivity", func() {
			feed("api.latency", baseline...)

			res, err := eng.ProcessMetric(ctx, "api.latency", 100, t0.Add(time.Minute))
			Expect(err).NotTo(HaveOccurred())
			Expect(res).NotTo(BeNil())
			Expect(res.Outcome).To(Equal(correlation.OutcomeNew))
			Expect(res.Alert.Severity).To(Equal(domain.SeverityMedium))
			Expect(res.Alert.CorrelationKey.Fingerprint).To(Equal("api.latency:anomaly"))
			Expect(res.Alert.Threshold).To(BeNumerically("~", 19+2*27, 1e-9))
		})

		It("stays quiet for values near the mean", func() {
			feed("api.latency", baseline...)

			res, err := eng.ProcessMetric(ctx, "api.latency", 11, t0.Add(time.Minute))
			Expect(err).NotTo(HaveOccurred())
			Expect(res).To(BeNil())
		})

		It("makes no decision before min_data_points", func() {
			feed("queue.depth", 1, 1, 1)

			res, err := eng.ProcessMetric(ctx, "queue.depth", 1e9, t0.Add(time.Minute))
			Expect(err).NotTo(HaveOccurred())
			Expect(res).To(BeNil())
			Expect(eng.HealthCheck().MetricsTracked).To(Equal(1))
		})

		It("rejects invalid samples", func() {
			_, err := eng.ProcessMetric(ctx, "", 1, t0)
			Expect(err).To(MatchError(domain.ErrEmptyMetricName))
		})
	})

	Describe("escalation", func() {
		It("escalates once the level-0 timeout elapses", func() {
			res, err := eng.ProcessAlert(ctx, candidateAt(t0))
			Expect(err).NotTo(HaveOccurred())
			id := res.Alert.ID

			eng.Escalate(ctx, t0.Add(4*time.Minute+59*time.Second))
			a, _ := eng.GetAlertStatus(id)
			Expect(a.State).To(Equal(domain.StateTriggered))
			Expect(a.EscalationLevel).To(Equal(0))

			eng.Escalate(ctx, t0.Add(5*time.Minute))
			a, _ = eng.GetAlertStatus(id)
			Expect(a.State).To(Equal(domain.StateEscalated))
			Expect(a.EscalationLevel).To(Equal(1))

			eng.Drain()
			msgs := mail.For(id)
			Expect(msgs).To(HaveLen(2))
			Expect(msgs[1].Channel).To(Equal(domain.ChannelSlack))
			Expect(msgs[1].EscalationLevel).To(Equal(1))
		})

		It("uses the policy named in the alert's tags", func() {
			policy := domain.EscalationPolicy{
				ID: "fast",
				Levels: []domain.EscalationLevel{
					{Level: 0, Timeout: time.Minute, Channels: []domain.NotificationChannel{domain.ChannelSMS}, Targets: []string{"+15550100"}},
					{Level: 1, Timeout: time.Minute, Channels: []domain.NotificationChannel{domain.ChannelPagerDuty}, Targets: []string{"db"}},
				},
				MaxEscalations: 1,
			}
			Expect(eng.UpdateEscalationPolicy(ctx, policy)).To(Succeed())

			c := candidateAt(t0)
			c.Tags = map[string]string{domain.TagEscalationPolicy: "fast"}
			res, err := eng.ProcessAlert(ctx, c)
			Expect(err).NotTo(HaveOccurred())

			eng.Escalate(ctx, t0.Add(time.Minute))
			a, _ := eng.GetAlertStatus(res.Alert.ID)
			Expect(a.EscalationLevel).To(Equal(1))

			persisted, _ := rules.ListEscalationPolicies(ctx)
			Expect(persisted).To(HaveLen(1))
			Expect(persisted[0].ID).To(Equal("fast"))
		})

		It("rejects invalid policies", func() {
			err := eng.UpdateEscalationPolicy(ctx, domain.EscalationPolicy{ID: "empty"})
			Expect(err).To(MatchError(domain.ErrInvalidConfig))
		})

		It("does not escalate acknowledged alerts", func() {
			res, _ := eng.ProcessAlert(ctx, candidateAt(t0))
			_, err := eng.Acknowledge(ctx, res.Alert.ID, "alice")
			Expect(err).NotTo(HaveOccurred())

			eng.Escalate(ctx, t0.Add(time.Hour))
			a, _ := eng.GetAlertStatus(res.Alert.ID)
			Expect(a.State).To(Equal(domain.StateAcknowledged))
			Expect(a.EscalationLevel).To(Equal(0))
		})
	})

	Describe("suppression", func() {
		It("stores matching candidates as suppressed and never notifies", func() {
			_, err := eng.AddSuppressionRule(ctx, domain.SuppressionRule{
				Pattern:   "Replication",
				StartTime: t0.Add(-time.Hour),
				EndTime:   t0.Add(time.Hour),
				Reason:    "failover drill",
			})
			Expect(err).NotTo(HaveOccurred())

			res, err := eng.ProcessAlert(ctx, candidateAt(t0))
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Outcome).To(Equal(correlation.OutcomeSuppressed))
			Expect(res.Alert.State).To(Equal(domain.StateSuppressed))

			_, grouped := eng.GetCorrelatedAlerts(dbKey)
			Expect(grouped).To(BeFalse())

			eng.Escalate(ctx, t0.Add(time.Hour))
			eng.Drain()
			Expect(mail.Len()).To(Equal(0))
		})

		It("applies rule removal to later submissions only", func() {
			rule, err := eng.AddSuppressionRule(ctx, domain.SuppressionRule{
				Pattern:   "40s behind",
				StartTime: t0.Add(-time.Hour),
				EndTime:   t0.Add(time.Hour),
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(rule.ID).NotTo(BeEmpty())

			first, _ := eng.ProcessAlert(ctx, candidateAt(t0))
			Expect(eng.RemoveSuppressionRule(ctx, rule.ID)).To(Succeed())
			second, _ := eng.ProcessAlert(ctx, candidateAt(t0.Add(time.Second)))

			Expect(second.Outcome).To(Equal(correlation.OutcomeNew))
			a, _ := eng.GetAlertStatus(first.Alert.ID)
			Expect(a.State).To(Equal(domain.StateSuppressed))

			Expect(eng.RemoveSuppressionRule(ctx, rule.ID)).To(MatchError(domain.ErrRuleNotFound))
			Expect(eng.ListSuppressionRules()).To(BeEmpty())
		})

		It("silences escalation while an operator suppression runs", func() {
			res, _ := eng.ProcessAlert(ctx, candidateAt(t0))
			_, err := eng.Suppress(ctx, res.Alert.ID, time.Hour, "known issue")
			Expect(err).NotTo(HaveOccurred())

			eng.Escalate(ctx, t0.Add(30*time.Minute))
			a, _ := eng.GetAlertStatus(res.Alert.ID)
			Expect(a.EscalationLevel).To(Equal(0))
			Expect(a.Context).To(HaveKeyWithValue("suppression_reason", "known issue"))

			eng.Escalate(ctx, t0.Add(61*time.Minute))
			a, _ = eng.GetAlertStatus(res.Alert.ID)
			Expect(a.EscalationLevel).To(Equal(1))
		})

		It("does not re-notify repeats while an operator suppression runs", func() {
			res, err := eng.ProcessAlert(ctx, candidateAt(t0))
			Expect(err).NotTo(HaveOccurred())
			eng.Drain()
			Expect(mail.For(res.Alert.ID)).To(HaveLen(1))

			_, err = eng.Suppress(ctx, res.Alert.ID, time.Hour, "known issue")
			Expect(err).NotTo(HaveOccurred())

			for i := 1; i <= 4; i++ {
				dup, err := eng.ProcessAlert(ctx, candidateAt(t0.Add(time.Duration(i)*time.Second)))
				Expect(err).NotTo(HaveOccurred())
				Expect(dup.Outcome).To(Equal(correlation.OutcomeDeduplicated))
			}
			eng.Drain()

			a, _ := eng.GetAlertStatus(res.Alert.ID)
			Expect(a.FireCount).To(Equal(5))
			Expect(mail.For(res.Alert.ID)).To(HaveLen(1))
		})

		It("folds repeats under a rule into one suppressed alert", func() {
			_, err := eng.AddSuppressionRule(ctx, domain.SuppressionRule{
				Pattern:   "Replication",
				StartTime: t0.Add(-time.Hour),
				EndTime:   t0.Add(time.Hour),
			})
			Expect(err).NotTo(HaveOccurred())

			var id string
			for i := 0; i < 50; i++ {
				res, err := eng.ProcessAlert(ctx, candidateAt(t0.Add(time.Duration(i)*time.Second)))
				Expect(err).NotTo(HaveOccurred())
				Expect(res.Outcome).To(Equal(correlation.OutcomeSuppressed))
				if i == 0 {
					id = res.Alert.ID
				}
				Expect(res.Alert.ID).To(Equal(id))
			}

			a, _ := eng.GetAlertStatus(id)
			Expect(a.State).To(Equal(domain.StateSuppressed))
			Expect(a.FireCount).To(Equal(50))
			Expect(eng.HealthCheck().AlertsInMemory).To(Equal(1))

			lastFire := t0.Add(49*time.Second + 2*time.Minute)
			res, err := eng.ProcessAlert(ctx, candidateAt(lastFire))
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Alert.ID).NotTo(Equal(id))
			Expect(eng.HealthCheck().AlertsInMemory).To(Equal(2))

			eng.Drain()
			Expect(mail.Len()).To(Equal(0))
		})

		It("retires suppressed alerts that stay quiet past retention", func() {
			_, err := eng.AddSuppressionRule(ctx, domain.SuppressionRule{
				Pattern:   "Replication",
				StartTime: t0.Add(-time.Hour),
				EndTime:   t0.Add(time.Hour),
			})
			Expect(err).NotTo(HaveOccurred())

			var id string
			for i := 0; i < 50; i++ {
				res, err := eng.ProcessAlert(ctx, candidateAt(t0.Add(time.Duration(i)*time.Second)))
				Expect(err).NotTo(HaveOccurred())
				id = res.Alert.ID
			}
			lastFire := t0.Add(49 * time.Second)

			result := eng.Cleanup(ctx, lastFire.Add(cfg.Engine.MetricsRetention-time.Second))
			Expect(result.AlertsRemoved).To(Equal(0))
			Expect(eng.HealthCheck().AlertsInMemory).To(Equal(1))

			result = eng.Cleanup(ctx, t0.Add(30*24*time.Hour))
			Expect(result.SuppressedRetired).To(Equal(1))
			Expect(result.AlertsRemoved).To(Equal(1))
			Expect(eng.HealthCheck().AlertsInMemory).To(Equal(0))

			_, found := eng.GetAlertStatus(id)
			Expect(found).To(BeFalse())
			archived, err := eng.GetArchivedAlert(ctx, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(archived.State).To(Equal(domain.StateExpired))
			Expect(archived.FireCount).To(Equal(50))
		})

		It("rejects non-positive durations", func() {
			res, _ := eng.ProcessAlert(ctx, candidateAt(t0))
			_, err := eng.Suppress(ctx, res.Alert.ID, 0, "")
			Expect(err).To(MatchError(domain.ErrInvalidConfig))
		})
	})

	Describe("operator commands", func() {
		It("acknowledges then resolves", func() {
			res, _ := eng.ProcessAlert(ctx, candidateAt(t0))

			clock.Set(t0.Add(time.Minute))
			_, err := eng.Acknowledge(ctx, res.Alert.ID, "alice")
			Expect(err).NotTo(HaveOccurred())

			clock.Set(t0.Add(2 * time.Minute))
			resolved, err := eng.Resolve(ctx, res.Alert.ID, "bob")
			Expect(err).NotTo(HaveOccurred())

			Expect(resolved.State).To(Equal(domain.StateResolved))
			Expect(resolved.AcknowledgedAt).NotTo(BeNil())
			Expect(resolved.ResolvedAt).NotTo(BeNil())
			Expect(resolved.AcknowledgedBy).To(Equal("alice"))
			Expect(resolved.ResolvedBy).To(Equal("bob"))
			Expect(eng.GetActiveAlerts()).To(BeEmpty())
		})

		It("returns not found for unknown alerts", func() {
			_, err := eng.Acknowledge(ctx, "missing", "alice")
			Expect(err).To(MatchError(domain.ErrAlertNotFound))
			_, err = eng.Resolve(ctx, "missing", "alice")
			Expect(err).To(MatchError(domain.ErrAlertNotFound))
		})

		It("rejects transitions out of terminal states", func() {
			res, _ := eng.ProcessAlert(ctx, candidateAt(t0))
			_, err := eng.Resolve(ctx, res.Alert.ID, "bob")
			Expect(err).NotTo(HaveOccurred())

			_, err = eng.Acknowledge(ctx, res.Alert.ID, "alice")
			Expect(err).To(MatchError(domain.ErrInvalidTransition))
			_, err = eng.Suppress(ctx, res.Alert.ID, time.Hour, "late")
			Expect(err).To(MatchError(domain.ErrInvalidTransition))
		})

		It("validates alert candidates", func() {
			_, err := eng.ProcessAlert(ctx, &domain.Alert{CorrelationKey: dbKey})
			Expect(err).To(MatchError(domain.ErrEmptyTitle))
			_, err = eng.ProcessAlert(ctx, &domain.Alert{Title: "x"})
			Expect(err).To(MatchError(domain.ErrEmptyFingerprint))
		})
	})

	Describe("cleanup", func() {
		It("removes resolved alerts past retention and keeps recent ones", func() {
			old, _ := eng.ProcessAlert(ctx, candidateAt(t0))
			recentKey := dbKey
			recentKey.Fingerprint = "orders-pg-lag-2"
			c := candidateAt(t0)
			c.CorrelationKey = recentKey
			recent, _ := eng.ProcessAlert(ctx, c)

			now := t0.Add(cfg.Engine.MetricsRetention + time.Second)

			clock.Set(t0)
			_, err := eng.Resolve(ctx, old.Alert.ID, "bob")
			Expect(err).NotTo(HaveOccurred())
			clock.Set(now.Add(-time.Second))
			_, err = eng.Resolve(ctx, recent.Alert.ID, "bob")
			Expect(err).NotTo(HaveOccurred())

			result := eng.Cleanup(ctx, now)
			Expect(result.AlertsRemoved).To(Equal(1))

			_, found := eng.GetAlertStatus(old.Alert.ID)
			Expect(found).To(BeFalse())
			_, found = eng.GetAlertStatus(recent.Alert.ID)
			Expect(found).To(BeTrue())

			archived, err := eng.GetArchivedAlert(ctx, old.Alert.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(archived.State).To(Equal(domain.StateResolved))
		})

		It("never removes non-terminal alerts", func() {
			res, _ := eng.ProcessAlert(ctx, candidateAt(t0))

			result := eng.Cleanup(ctx, t0.Add(365*24*time.Hour))
			Expect(result.AlertsRemoved).To(Equal(0))
			_, found := eng.GetAlertStatus(res.Alert.ID)
			Expect(found).To(BeTrue())
			Expect(result.GroupsRemoved).To(Equal(1))
		})

		It("expires ancient alerts when an expiry is configured", func() {
			cfg.Engine.AlertExpiry = 72 * time.Hour
			build()

			res, _ := eng.ProcessAlert(ctx, candidateAt(t0))

			result := eng.Cleanup(ctx, t0.Add(73*time.Hour))
			Expect(result.Expired).To(Equal(1))
			a, _ := eng.GetAlertStatus(res.Alert.ID)
			Expect(a.State).To(Equal(domain.StateExpired))
			Expect(eng.GetActiveAlerts()).To(BeEmpty())

			result = eng.Cleanup(ctx, t0.Add(73*time.Hour+cfg.Engine.MetricsRetention+time.Second))
			Expect(result.AlertsRemoved).To(Equal(1))
		})
	})

	Describe("notification history", func() {
		It("records every delivery attempt", func() {
			res, _ := eng.ProcessAlert(ctx, candidateAt(t0))
			eng.Drain()

			history, err := eng.NotificationHistory(ctx, res.Alert.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(history).To(HaveLen(1))
			Expect(history[0].Status).To(Equal(domain.DeliverySent))
			Expect(history[0].Channel).To(Equal(domain.ChannelEmail))
			Expect(history[0].Target).To(Equal("oncall@example.com"))
		})
	})

	Describe("startup", func() {
		It("overlays persisted rules and policies on configuration", func() {
			override := domain.DefaultEscalationPolicy()
			override.Levels[0].Targets = []string{"night-shift@example.com"}
			Expect(rules.SaveEscalationPolicy(ctx, &override)).To(Succeed())
			Expect(rules.SaveSuppressionRule(ctx, &domain.SuppressionRule{
				ID: "persisted", Pattern: "x", StartTime: t0, EndTime: t0.Add(time.Hour),
			})).To(Succeed())
			build()

			policy, err := eng.GetEscalationPolicy("default")
			Expect(err).NotTo(HaveOccurred())
			Expect(policy.Levels[0].Targets).To(ConsistOf("night-shift@example.com"))
			Expect(eng.ListSuppressionRules()).To(HaveLen(1))
		})
	})

	Describe("health and lifecycle", func() {
		It("reports store sizes and the alert ceiling", func() {
			_, _ = eng.ProcessAlert(ctx, candidateAt(t0))
			clock.Set(t0.Add(time.Minute))

			h := eng.HealthCheck()
			Expect(h.Healthy).To(BeTrue())
			Expect(h.AlertsInMemory).To(Equal(1))
			Expect(h.CorrelationGroups).To(Equal(1))
			Expect(h.MaxAlertsInMemory).To(Equal(10000))
			Expect(h.Uptime).To(Equal(time.Minute))
		})

		It("is unhealthy at the alert ceiling", func() {
			cfg.Engine.MaxAlertsInMemory = 1
			build()
			_, _ = eng.ProcessAlert(ctx, candidateAt(t0))

			Expect(eng.HealthCheck().Healthy).To(BeFalse())
		})

		It("stops loops and refuses new work after shutdown", func() {
			cfg.Engine.EscalationCheckInterval = 5 * time.Millisecond
			cfg.Engine.CleanupInterval = 5 * time.Millisecond
			build()

			done := make(chan error, 1)
			go func() { done <- eng.Run(ctx) }()

			Expect(eng.Shutdown(ctx)).To(Succeed())
			// Run may lose the race with Shutdown and refuse to start.
			Eventually(done).Should(Receive(Or(BeNil(), MatchError(engine.ErrEngineStopped))))

			_, err := eng.ProcessAlert(ctx, candidateAt(t0))
			Expect(err).To(MatchError(engine.ErrEngineStopped))
			_, err = eng.ProcessMetric(ctx, "cpu", 1, t0)
			Expect(err).To(MatchError(engine.ErrEngineStopped))
			Expect(eng.HealthCheck().Healthy).To(BeFalse())
		})
	})
})
