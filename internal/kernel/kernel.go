// Package kernel implements the Randomization Kernel: the pure,
// seedable-PRNG functions that shape a campaign's daily quota curve and
// the domain/sender/hour/minute splits of a single day's plan. Nothing in
// this package performs I/O; every function is deterministic given the
// kernel's PRNG state.
package kernel

import (
	"math"
	"math/rand"
)

// Kernel wraps a seeded PRNG. The same seed reproduces the same sequence
// of plans (§8 property 8); production code seeds from system entropy,
// tests inject a fixed seed.
type Kernel struct {
	rng           *rand.Rand
	disableJitter bool
}

// New returns a Kernel seeded deterministically, for tests and for any
// caller that wants reproducible plans.
func New(seed int64) *Kernel {
	return &Kernel{rng: rand.New(rand.NewSource(seed))}
}

// NewFromEntropy returns a Kernel seeded from a caller-supplied entropy
// value (typically time-derived); production wiring picks the seed once
// at process start and logs it so a plan can be replayed if needed.
func NewFromEntropy(entropy int64) *Kernel {
	return New(entropy)
}

// WithoutJitter returns a copy of the kernel with quota jitter disabled,
// used by tests asserting the monotonicity property (§8 property 2).
func (k *Kernel) WithoutJitter() *Kernel {
	return &Kernel{rng: k.rng, disableJitter: true}
}

// Quota computes Q(day) for the geometric growth curve defined by
// (start, targetSum, quotaDays) (§4.1). For day <= quotaDays it solves for
// the growth ratio r by bisection and returns round(start*r^(day-1)). For
// day > quotaDays it continues the curve with a fresh uniform growth
// factor g drawn per call. Post-multiplier jitter is applied unless the
// kernel was built WithoutJitter. Result is clamped to >= 1.
func (k *Kernel) Quota(start, targetSum float64, quotaDays, day int) int {
	r := bisectGrowthRatio(start, targetSum, quotaDays)

	var q float64
	if day <= quotaDays {
		q = start * math.Pow(r, float64(day-1))
	} else {
		qAtEnd := start * math.Pow(r, float64(quotaDays-1))
		g := 1.03 + k.rng.Float64()*(1.07-1.03)
		q = qAtEnd * math.Pow(g, float64(day-quotaDays))
	}

	if !k.disableJitter {
		pct := 0.05 + k.rng.Float64()*(0.15-0.05) // U(5%, 15%)
		sign := 1.0
		if k.rng.Float64() < 0.5 {
			sign = -1.0
		}
		q += sign * pct * q
	}

	qi := int(math.Round(q))
	if qi < 1 {
		qi = 1
	}
	return qi
}

// bisectGrowthRatio finds r in [1, 10] such that the geometric series
// start * Σ_{i=0}^{quotaDays-1} r^i equals targetSum, within a tolerance
// of 1, in at most 100 iterations (§4.1).
func bisectGrowthRatio(start, targetSum float64, quotaDays int) float64 {
	if quotaDays <= 0 {
		return 1
	}
	seriesSum := func(r float64) float64 {
		if math.Abs(r-1) < 1e-9 {
			return start * float64(quotaDays)
		}
		return start * (math.Pow(r, float64(quotaDays)) - 1) / (r - 1)
	}

	lo, hi := 1.0, 10.0
	mid := lo
	for i := 0; i < 100; i++ {
		mid = (lo + hi) / 2
		s := seriesSum(mid)
		if math.Abs(s-targetSum) <= 1 {
			return mid
		}
		if s < targetSum {
			lo = mid
		} else {
			hi = mid
		}
	}
	return mid
}

// Split divides total into n parts, each >= 1, summing to exactly total
// (§4.1). For i in [0, n-2], it draws a value within 80%-120% of the
// remaining average, clamped so every later slot can still get at least 1;
// the last slot absorbs the residue.
func (k *Kernel) Split(total, n int) []int {
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return []int{total}
	}

	out := make([]int, n)
	remaining := total
	for i := 0; i < n-1; i++ {
		slotsLeft := n - i
		avg := float64(remaining) / float64(slotsLeft)

		lo := int(math.Floor(avg * 0.8))
		if lo < 1 {
			lo = 1
		}
		hi := int(math.Floor(avg * 1.2))
		maxAllowed := remaining - (slotsLeft - 1)
		if hi > maxAllowed {
			hi = maxAllowed
		}
		if hi < lo {
			hi = lo
		}
		if hi > maxAllowed {
			hi = maxAllowed
		}
		if lo > maxAllowed {
			lo = maxAllowed
		}
		if lo < 1 {
			lo = 1
		}

		v := lo
		if hi > lo {
			v = lo + k.rng.Intn(hi-lo+1)
		}
		out[i] = v
		remaining -= v
	}
	out[n-1] = remaining
	return out
}

// SplitWithCap divides total across numSenders shares, each varying from
// the even share by ±(0.2 + 0.3*intensity), clamped to maxPct% of total
// and to what's left for the remaining slots (§4.1).
func (k *Kernel) SplitWithCap(total, numSenders int, maxPct, intensity float64) []int {
	if numSenders <= 0 {
		return nil
	}
	if numSenders == 1 {
		return []int{total}
	}

	base := float64(total) / float64(numSenders)
	cap := int(math.Floor(float64(total) * maxPct / 100))

	out := make([]int, numSenders)
	remaining := total
	for i := 0; i < numSenders-1; i++ {
		slotsLeft := numSenders - i
		variation := (0.2 + 0.3*intensity) * base
		delta := (k.rng.Float64()*2 - 1) * variation
		v := int(math.Round(base + delta))

		if cap > 0 && v > cap {
			v = cap
		}
		maxAllowed := remaining - (slotsLeft - 1)
		if v > maxAllowed {
			v = maxAllowed
		}
		if v < 1 {
			v = 1
		}
		out[i] = v
		remaining -= v
	}
	out[numSenders-1] = remaining
	return out
}

var offPeakHours = [8]int{0, 1, 2, 3, 4, 5, 22, 23}
var peakHours = [6]int{9, 10, 11, 14, 15, 16}

// HourlyDistribution spreads n emails across the 24 UTC hours of a day,
// using one of three regimes by volume (§4.1). The returned array always
// sums to exactly n.
func (k *Kernel) HourlyDistribution(n int, intensity float64) [24]int {
	switch {
	case n > 2000:
		return k.hourlyHighVolume(n, intensity)
	case n > 500:
		active := 12 + k.rng.Intn(7) // U(12,18)
		return k.hourlyActiveSet(n, active, intensity*0.30)
	default:
		lo := 8 - int(3*intensity)
		if lo < 4 {
			lo = 4
		}
		hi := 12 - int(2*intensity)
		if hi > 12 {
			hi = 12
		}
		if hi < lo {
			hi = lo
		}
		active := lo + k.rng.Intn(hi-lo+1)
		if active < 1 {
			active = 1
		}
		return k.hourlyActiveSet(n, active, intensity*0.30)
	}
}

func (k *Kernel) hourlyHighVolume(n int, intensity float64) [24]int {
	var hours [24]int
	base := n / 24
	for h := 0; h < 24; h++ {
		hours[h] = base
	}
	remainder := n - base*24
	for i := 0; i < remainder; i++ {
		hours[i%24]++
	}

	moveTotal := int(math.Round(0.20 * float64(n)))
	capPerHour := int(math.Round(0.30 * float64(base)))
	moved, attempts, maxAttempts := 0, 0, moveTotal*10+100
	for moved < moveTotal && attempts < maxAttempts {
		attempts++
		oh := offPeakHours[k.rng.Intn(len(offPeakHours))]
		removedSoFar := base - hours[oh]
		if hours[oh] <= 0 || removedSoFar >= capPerHour {
			continue
		}
		ph := peakHours[k.rng.Intn(len(peakHours))]
		hours[oh]--
		hours[ph]++
		moved++
	}

	swaps := int(math.Round(intensity * 0.10 * float64(n)))
	for i := 0; i < swaps; i++ {
		a, b := k.rng.Intn(24), k.rng.Intn(24)
		if a == b || hours[a] <= 0 {
			continue
		}
		hours[a]--
		hours[b]++
	}
	return hours
}

// hourlyActiveSet picks `active` distinct hours, splits n evenly (plus
// random remainder) across them, then performs swapFrac*n random swaps
// between active hours.
func (k *Kernel) hourlyActiveSet(n, active int, swapFrac float64) [24]int {
	var hours [24]int
	if active > 24 {
		active = 24
	}
	perm := k.rng.Perm(24)
	activeHours := perm[:active]

	base := n / active
	rem := n - base*active
	for _, h := range activeHours {
		hours[h] = base
	}
	order := k.rng.Perm(active)
	for i := 0; i < rem; i++ {
		hours[activeHours[order[i%active]]]++
	}

	swaps := int(math.Round(swapFrac * float64(n)))
	for i := 0; i < swaps; i++ {
		a := activeHours[k.rng.Intn(active)]
		b := activeHours[k.rng.Intn(active)]
		if a == b || hours[a] <= 0 {
			continue
		}
		hours[a]--
		hours[b]++
	}
	return hours
}

// MinuteDistribution spreads m emails across the 60 minutes of an hour
// (§4.1). Always sums to exactly m.
func (k *Kernel) MinuteDistribution(m int) [60]int {
	var minutes [60]int
	base := m / 60
	rem := m - base*60
	for i := 0; i < 60; i++ {
		minutes[i] = base
	}
	order := k.rng.Perm(60)
	for i := 0; i < rem; i++ {
		minutes[order[i]]++
	}

	swaps := int(math.Round(0.10 * float64(m)))
	for i := 0; i < swaps; i++ {
		a, b := k.rng.Intn(60), k.rng.Intn(60)
		if a == b || minutes[a] <= 0 {
			continue
		}
		minutes[a]--
		minutes[b]++
	}
	return minutes
}

// PickTemplate returns a uniformly random element of names, resampled per
// call (§4.4: "resampled per message, not per batch").
func (k *Kernel) PickTemplate(names []string) string {
	if len(names) == 0 {
		return ""
	}
	return names[k.rng.Intn(len(names))]
}
