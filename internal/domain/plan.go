package domain

import "time"

// DailyPlan is the hierarchical send schedule for a single campaign day
// (§3, §4.3). Sums reconcile at every level: Σ minutes = hour.count,
// Σ hours = sender.total, Σ senders = domain.total, Σ domains = daily.total
// (§8 property 1).
type DailyPlan struct {
	Day          int          `json:"day"`
	TotalEmails  int          `json:"total_emails"`
	Domains      []DomainPlan `json:"domains"`
	ScheduledAt  time.Time    `json:"scheduled_at"`
}

// DomainPlan is one sending domain's share of a DailyPlan.
type DomainPlan struct {
	Domain      string       `json:"domain"`
	TotalEmails int          `json:"total_emails"`
	Senders     []SenderPlan `json:"senders"`
}

// SenderPlan is one sender identity's share of a DomainPlan, broken down
// by hour of day (UTC).
type SenderPlan struct {
	Email       string    `json:"email"`
	TotalEmails int       `json:"total_emails"`
	Hours       []HourPlan `json:"hours"`
}

// HourPlan is the minute-level breakdown for one UTC hour. Minutes is
// always length 60; zero entries are valid (no sends that minute).
type HourPlan struct {
	Hour    int    `json:"hour"`
	Count   int    `json:"count"`
	Minutes [60]int `json:"minutes"`
}

// Sum returns the total email count represented by the plan, computed
// bottom-up, for use in reconciliation checks (§8 property 1).
func (p DailyPlan) Sum() int {
	total := 0
	for _, d := range p.Domains {
		total += d.Sum()
	}
	return total
}

// Sum returns the domain's total, computed from its senders.
func (d DomainPlan) Sum() int {
	total := 0
	for _, s := range d.Senders {
		total += s.Sum()
	}
	return total
}

// Sum returns the sender's total, computed from its hourly cells.
func (s SenderPlan) Sum() int {
	total := 0
	for _, h := range s.Hours {
		total += h.Sum()
	}
	return total
}

// Sum returns the hour's total, computed from its minute buckets.
func (h HourPlan) Sum() int {
	total := 0
	for _, m := range h.Minutes {
		total += m
	}
	return total
}
