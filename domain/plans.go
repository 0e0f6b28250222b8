package domain

// DefaultPlans is the built-in rate table, seeded once when the store
// reports zero plans. Hourly rates are derived, not declared.
func DefaultPlans() []InvestmentPlan {
	plans := []struct {
		id, name    string
		min, max    float64
		duration    int // hours
		totalReturn float64
		featured    bool
	}{
		{"starter", "Starter Plan", 2, 1000, 336, 30, false},
		{"advanced", "Advanced Plan", 20, 5000, 672, 50, true},
		{"professional", "Professional Plan", 50, 10000, 1008, 100, false},
	}

	out := make([]InvestmentPlan, 0, len(plans))
	for _, p := range plans {
		totalReturn := Dollars(p.totalReturn)
		out = append(out, InvestmentPlan{
			ID:          p.id,
			Name:        p.name,
			MinAmount:   Dollars(p.min),
			MaxAmount:   Dollars(p.max),
			HourlyRate:  DeriveHourlyRate(totalReturn, p.duration),
			Duration:    p.duration,
			TotalReturn: totalReturn,
			Featured:    p.featured,
		})
	}
	return out
}
