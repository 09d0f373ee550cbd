package eval

// MetricSummary aggregates one metric over all evaluated conversations.
// Average and Distribution cover valid scores only.
type MetricSummary struct {
	Name         string  `json:"name"`
	N            int     `json:"n"`
	Invalid      int     `json:"invalid"`
	Average      float64 `json:"average"`
	Distribution [4]int  `json:"distribution"`
}

// Report is the outcome of an evaluation.
type Report struct {
	Evaluated     int                  `json:"evaluated"`
	Skipped       int                  `json:"skipped"`
	Metrics       []MetricSummary      `json:"metrics"`
	Conversations []ConversationScores `json:"conversations"`
}

// Metric returns the summary of the named metric.
func (r *Report) Metric(name string) (MetricSummary, bool) {
	for _, m := range r.Metrics {
		if m.Name == name {
			return m, true
		}
	}
	return MetricSummary{}, false
}

func aggregate(results []ConversationScores, skipped int) *Report {
	byName := make(map[string]*MetricSummary)
	sums := make(map[string]int)
	for _, res := range results {
		for name, s := range res.Scores {
			m, ok := byName[name]
			if !ok {
				m = &MetricSummary{Name: name}
				byName[name] = m
			}
			if !validScore(s) {
				m.Invalid++
				continue
			}
			m.N++
			m.Distribution[s-1]++
			sums[name] += s
		}
	}

	report := &Report{
		Evaluated:     len(results),
		Skipped:       skipped,
		Metrics:       []MetricSummary{},
		Conversations: results,
	}
	if report.Conversations == nil {
		report.Conversations = []ConversationScores{}
	}
	for _, name := range metricOrder {
		m, ok := byName[name]
		if !ok {
			continue
		}
		if m.N > 0 {
			m.Average = float64(sums[name]) / float64(m.N)
		}
		report.Metrics = append(report.Metrics, *m)
	}
	return report
}
