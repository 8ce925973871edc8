package domain

// AnalyticsSummary holds the cumulative counters for one campaign-day
// (§3, §4.10).
type AnalyticsSummary struct {
	TotalSent        int `json:"total_sent"`
	TotalDelivered   int `json:"total_delivered"`
	TotalFailed      int `json:"total_failed"`
	TotalBounced     int `json:"total_bounced"`
	TotalOpened      int `json:"total_opened"`
	UniqueOpens      int `json:"unique_opens"`
	TotalClicked     int `json:"total_clicked"`
	UniqueClicks     int `json:"unique_clicks"`
}

// AnalyticsRates holds the ratios recomputed on every write (§4.10),
// rounded to 2 decimal places. Ratios with a zero denominator default to 0.
type AnalyticsRates struct {
	DeliveryRate    float64 `json:"delivery_rate"`
	BounceRate      float64 `json:"bounce_rate"`
	OpenRate        float64 `json:"open_rate"`
	ClickRate       float64 `json:"click_rate"`
	ClickToOpenRate float64 `json:"click_to_open_rate"`
}

// HourlyBucket is one hour's slice of AnalyticsSummary.
type HourlyBucket struct {
	Hour int `json:"hour"`
	AnalyticsSummary
}

// DomainBucket is one sending domain's slice of AnalyticsSummary.
type DomainBucket struct {
	Domain string `json:"domain"`
	AnalyticsSummary
}

// SenderBucket is one sender identity's slice of AnalyticsSummary.
type SenderBucket struct {
	Sender string `json:"sender"`
	AnalyticsSummary
}

// DailyAnalytics is the per-(campaign,day) rollup (§3, §4.10). The 24-entry
// hourly breakdown is pre-filled on creation; domain/sender breakdowns grow
// on first use.
type DailyAnalytics struct {
	Campaign         string          `json:"campaign"`
	Day              int             `json:"day"`
	Summary          AnalyticsSummary `json:"summary"`
	Rates            AnalyticsRates   `json:"rates"`
	HourlyBreakdown  [24]HourlyBucket `json:"hourly_breakdown"`
	DomainBreakdown  []DomainBucket   `json:"domain_breakdown"`
	SenderBreakdown  []SenderBucket   `json:"sender_breakdown"`
}

// NewDailyAnalytics builds the zero-valued skeleton for a campaign-day,
// with the 24-hour breakdown pre-filled (§4.10).
func NewDailyAnalytics(campaign string, day int) *DailyAnalytics {
	da := &DailyAnalytics{Campaign: campaign, Day: day}
	for h := 0; h < 24; h++ {
		da.HourlyBreakdown[h] = HourlyBucket{Hour: h}
	}
	return da
}

// round2 rounds to 2 decimal places, matching §4.10's rate precision.
func round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}

// RecomputeRates recomputes all ratios from the current summary (§4.10).
// Undefined ratios (zero denominator) default to 0.
func (da *DailyAnalytics) RecomputeRates() {
	s := da.Summary
	da.Rates = AnalyticsRates{}
	if s.TotalSent > 0 {
		da.Rates.DeliveryRate = round2(float64(s.TotalDelivered) / float64(s.TotalSent))
		da.Rates.BounceRate = round2(float64(s.TotalBounced) / float64(s.TotalSent))
	}
	if s.TotalDelivered > 0 {
		da.Rates.OpenRate = round2(float64(s.TotalOpened) / float64(s.TotalDelivered))
		da.Rates.ClickRate = round2(float64(s.TotalClicked) / float64(s.TotalDelivered))
	}
	if s.UniqueOpens > 0 {
		da.Rates.ClickToOpenRate = round2(float64(s.TotalClicked) / float64(s.UniqueOpens))
	}
}
