// Package planner implements the Plan Generator (§4.3): it turns a
// campaign's Configuration plus a day's available recipient count into a
// DailyPlan by driving the Randomization Kernel's domain/sender/hour/
// minute splits.
package planner

import (
	"fmt"
	"time"

	"github.com/ignite/warmlane/internal/domain"
	"github.com/ignite/warmlane/internal/kernel"
)

const defaultNumSendersPerDomain = 5

// Quota computes Q(day) for a configuration (§4.1). Callers that need the
// same quota value for both Recipient Pool windowing and plan generation
// (§4.2 "todaysQuota") must call this once and thread the result through
// GenerateForDailyTotal, since the kernel's PRNG advances on every call and
// two independent calls would not agree.
func Quota(k *kernel.Kernel, cfg domain.Configuration, day int) int {
	return k.Quota(float64(cfg.BaseDailyTotal), float64(cfg.TargetSum), cfg.QuotaDays, day)
}

// Generate builds the DailyPlan for a campaign day (§4.3 steps 1-4),
// computing Q(day) itself. availableRecipients is the count of eligible
// recipients for the day; dailyTotal is capped at that count. Suitable
// when the caller has no independent need for Q(day) (e.g. tests); the
// orchestrator's scheduling pipeline uses GenerateForDailyTotal instead,
// since it also needs Q(day) for Recipient Pool windowing.
func Generate(k *kernel.Kernel, cfg domain.Configuration, day, availableRecipients int, now time.Time) (domain.DailyPlan, error) {
	quota := Quota(k, cfg, day)
	dailyTotal := quota
	if availableRecipients < dailyTotal {
		dailyTotal = availableRecipients
	}
	return GenerateForDailyTotal(k, cfg, day, dailyTotal, now)
}

// GenerateForDailyTotal builds the DailyPlan from an already-resolved
// dailyTotal (§4.3 steps 2-4), skipping quota computation. Used by the
// orchestrator, which computes Q(day) once via Quota and windows the
// Recipient Pool with it before calling here with the window's size.
func GenerateForDailyTotal(k *kernel.Kernel, cfg domain.Configuration, day, dailyTotal int, now time.Time) (domain.DailyPlan, error) {
	if len(cfg.Domains) == 0 {
		return domain.DailyPlan{}, fmt.Errorf("planner: configuration has no domains")
	}
	if dailyTotal < 0 {
		dailyTotal = 0
	}

	plan := domain.DailyPlan{
		Day:         day,
		TotalEmails: dailyTotal,
		ScheduledAt: now,
	}
	if dailyTotal == 0 {
		return plan, nil
	}

	domainSplit := k.Split(dailyTotal, len(cfg.Domains))
	plan.Domains = make([]domain.DomainPlan, len(cfg.Domains))

	// numSenders is the max active senders configured for any one domain,
	// defaulting to 5 when no sender is configured at all (§4.1).
	numSenders := defaultNumSendersPerDomain
	maxActive := 0
	for _, domainName := range cfg.Domains {
		if n := len(activeSenderEmails(cfg.SenderEmails, domainName)); n > maxActive {
			maxActive = n
		}
	}
	if maxActive > 0 {
		numSenders = maxActive
	}

	for di, domainName := range cfg.Domains {
		domainTotal := domainSplit[di]
		senderEmails := activeSenderEmails(cfg.SenderEmails, domainName)

		slots := numSenders
		if slots > domainTotal {
			slots = domainTotal
		}
		if slots < 1 {
			slots = 1
		}

		senderSplit := k.SplitWithCap(domainTotal, slots, cfg.MaxEmailPercentage, cfg.RandomizationIntensity)
		senders := make([]domain.SenderPlan, slots)

		for si := 0; si < slots; si++ {
			senderTotal := senderSplit[si]
			email := senderEmailFor(senderEmails, si, domainName)
			senders[si] = buildSenderPlan(k, email, senderTotal, cfg.RandomizationIntensity)
		}

		plan.Domains[di] = domain.DomainPlan{
			Domain:      domainName,
			TotalEmails: domainTotal,
			Senders:     senders,
		}
	}

	return plan, nil
}

func buildSenderPlan(k *kernel.Kernel, email string, senderTotal int, intensity float64) domain.SenderPlan {
	sp := domain.SenderPlan{Email: email, TotalEmails: senderTotal}
	if senderTotal == 0 {
		return sp
	}

	hourly := k.HourlyDistribution(senderTotal, intensity)
	for hour, count := range hourly {
		if count == 0 {
			continue
		}
		sp.Hours = append(sp.Hours, domain.HourPlan{
			Hour:    hour,
			Count:   count,
			Minutes: k.MinuteDistribution(count),
		})
	}
	return sp
}

// activeSenderEmails returns the configured, active sender emails for a
// domain, in configuration order.
func activeSenderEmails(senders []domain.SenderEmail, domainName string) []string {
	var out []string
	for _, s := range senders {
		if s.Domain == domainName && s.Active {
			out = append(out, s.Email)
		}
	}
	return out
}

// senderEmailFor returns the i-th configured active sender for a domain,
// falling back to sender{i}@{domain} when configuration is exhausted
// (§4.3 step 3).
func senderEmailFor(configured []string, i int, domainName string) string {
	if i < len(configured) {
		return configured[i]
	}
	return fmt.Sprintf("sender%d@%s", i, domainName)
}
