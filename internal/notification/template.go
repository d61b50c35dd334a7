package notification

import (
	"regexp"
	"strconv"

	"vigil/internal/domain"
)

// placeholderPattern matches {{name}} with optional inner whitespace.
var placeholderPattern = regexp.MustCompile(`\{\{\s*([a-z_]+)\s*\}\}`)

// Renderer fills channel templates with alert fields.
type Renderer struct {
	templates map[domain.NotificationChannel]domain.NotificationTemplate
	fallback  domain.NotificationTemplate
}

// NewRenderer builds a renderer. Channels without a template use the default.
func NewRenderer(templates []domain.NotificationTemplate) *Renderer {
	r := &Renderer{
		templates: make(map[domain.NotificationChannel]domain.NotificationTemplate, len(templates)),
		fallback:  domain.DefaultNotificationTemplate(),
	}
	for _, t := range templates {
		r.templates[t.Channel] = t
	}
	return r
}

// Render returns subject, body and format for the alert on channel.
// Unknown placeholders are left as written.
func (r *Renderer) Render(channel domain.NotificationChannel, alert *domain.Alert) (subject, body, format string) {
	tmpl, ok := r.templates[channel]
	if !ok {
		tmpl = r.fallback
	}

	vars := alertVariables(alert)
	substitute := func(text string) string {
		return placeholderPattern.ReplaceAllStringFunc(text, func(match string) string {
			name := placeholderPattern.FindStringSubmatch(match)[1]
			if v, ok := vars[name]; ok {
				return v
			}
			return match
		})
	}

	return substitute(tmpl.SubjectTemplate), substitute(tmpl.BodyTemplate), tmpl.Format
}

func alertVariables(a *domain.Alert) map[string]string {
	return map[string]string{
		"alert_id":         a.ID,
		"title":            a.Title,
		"description":      a.Description,
		"severity":         a.Severity.String(),
		"priority":         a.Severity.Priority(),
		"state":            string(a.State),
		"metric_value":     strconv.FormatFloat(a.MetricValue, 'f', -1, 64),
		"threshold":        strconv.FormatFloat(a.Threshold, 'f', -1, 64),
		"escalation_level": strconv.Itoa(a.EscalationLevel),
		"fire_count":       strconv.Itoa(a.FireCount),
		"service":          a.CorrelationKey.Service,
		"component":        a.CorrelationKey.Component,
		"runbook_url":      a.RunbookURL,
		"dashboard_url":    a.DashboardURL,
	}
}
