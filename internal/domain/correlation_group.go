package domain

import "time"

// CorrelationGroup collects sibling alerts that share a correlation key
// within the correlation window. Members stay independent alerts.
type CorrelationGroup struct {
	CorrelationKey   CorrelationKey `json:"correlation_key"`
	AlertIDs         []string       `json:"alert_ids"`
	PrimaryAlertID   string         `json:"primary_alert_id"`
	CreatedAt        time.Time      `json:"created_at"`
	LastUpdated      time.Time      `json:"last_updated"`
	CorrelationCount int            `json:"correlation_count"`
}

// NewCorrelationGroup starts a group with the given alert as primary.
func NewCorrelationGroup(a *Alert) *CorrelationGroup {
	return &CorrelationGroup{
		CorrelationKey:   a.CorrelationKey,
		AlertIDs:         []string{a.ID},
		PrimaryAlertID:   a.ID,
		CreatedAt:        a.CreatedAt,
		LastUpdated:      a.UpdatedAt,
		CorrelationCount: 1,
	}
}

// Add appends a sibling alert.
func (g *CorrelationGroup) Add(a *Alert) {
	g.AlertIDs = append(g.AlertIDs, a.ID)
	g.LastUpdated = a.UpdatedAt
	g.CorrelationCount++
}

// OpenAt reports whether the group still accepts siblings at now.
func (g *CorrelationGroup) OpenAt(now time.Time, window time.Duration) bool {
	return now.Sub(g.CreatedAt) < window
}

// Clone returns a copy that does not share the member slice.
func (g *CorrelationGroup) Clone() *CorrelationGroup {
	if g == nil {
		return nil
	}
	c := *g
	c.AlertIDs = append([]string(nil), g.AlertIDs...)
	return &c
}
