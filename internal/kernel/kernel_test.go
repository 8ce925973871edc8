package kernel

import (
	"math"
	"testing"
)

// TestQuotaShape is scenario S1: start=1000, quotaDays=30, targetSum=450000,
// intensity=0 (jitter disabled). Expected: Q(1)=1000, Σ Q(i) = 450000 ± 1,
// and the curve grows from day 1 to day 30.
func TestQuotaShape(t *testing.T) {
	k := New(1).WithoutJitter()

	start, targetSum := 1000.0, 450000.0
	quotaDays := 30

	q1 := k.Quota(start, targetSum, quotaDays, 1)
	if q1 != 1000 {
		t.Errorf("Q(1) = %d, want 1000", q1)
	}

	sum := 0
	for d := 1; d <= quotaDays; d++ {
		sum += k.Quota(start, targetSum, quotaDays, d)
	}
	if diff := math.Abs(float64(sum) - targetSum); diff/targetSum >= 0.01 {
		t.Errorf("sum=%d, targetSum=%v, relative diff %v >= 0.01", sum, targetSum, diff/targetSum)
	}

	q30 := k.Quota(start, targetSum, quotaDays, quotaDays)
	if q30 <= q1 {
		t.Errorf("Q(30)=%d should exceed Q(1)=%d", q30, q1)
	}
}

// TestQuotaMonotonicity is §8 property 2: with jitter disabled the curve
// never decreases.
func TestQuotaMonotonicity(t *testing.T) {
	k := New(7).WithoutJitter()
	start, targetSum, quotaDays := 500.0, 200000.0, 20

	prev := k.Quota(start, targetSum, quotaDays, 1)
	for d := 2; d <= quotaDays; d++ {
		q := k.Quota(start, targetSum, quotaDays, d)
		if q < prev {
			t.Fatalf("Q(%d)=%d < Q(%d)=%d, expected non-decreasing", d, q, d-1, prev)
		}
		prev = q
	}
}

func TestQuotaBeyondQuotaDaysContinuesGrowing(t *testing.T) {
	k := New(3).WithoutJitter()
	start, targetSum, quotaDays := 1000.0, 450000.0, 30

	atEnd := k.Quota(start, targetSum, quotaDays, quotaDays)
	beyond := k.Quota(start, targetSum, quotaDays, quotaDays+5)
	if beyond < atEnd {
		t.Errorf("Q(quotaDays+5)=%d should be >= Q(quotaDays)=%d", beyond, atEnd)
	}
}

func TestQuotaClampedToAtLeastOne(t *testing.T) {
	k := New(42)
	q := k.Quota(0.01, 1, 30, 1)
	if q < 1 {
		t.Errorf("Quota must clamp to >= 1, got %d", q)
	}
}

// TestSplitBounds is scenario S2: split(1000, 4) — each of the first three
// parts within 80%-120% of the remaining per-slot average at its step,
// sum = 1000, each >= 1.
func TestSplitBounds(t *testing.T) {
	k := New(11)
	for trial := 0; trial < 50; trial++ {
		parts := k.Split(1000, 4)
		sum := 0
		remaining := 1000
		for i, p := range parts {
			if p < 1 {
				t.Fatalf("part %d < 1: %v", p, parts)
			}
			if i < len(parts)-1 {
				avg := float64(remaining) / float64(len(parts)-i)
				lo, hi := int(math.Floor(avg*0.8)), int(math.Floor(avg*1.2))
				if p < lo || p > hi {
					t.Fatalf("part %d = %d out of [%d,%d]: %v", i, p, lo, hi, parts)
				}
			}
			remaining -= p
			sum += p
		}
		if sum != 1000 {
			t.Fatalf("sum = %d, want 1000: %v", sum, parts)
		}
	}
}

func TestSplitSingleSlotReturnsTotal(t *testing.T) {
	k := New(1)
	parts := k.Split(42, 1)
	if len(parts) != 1 || parts[0] != 42 {
		t.Errorf("Split(42,1) = %v, want [42]", parts)
	}
}

func TestSplitWithCapSumsExactly(t *testing.T) {
	k := New(5)
	for trial := 0; trial < 20; trial++ {
		parts := k.SplitWithCap(10000, 5, 40, 0.5)
		sum := 0
		for _, p := range parts {
			if p < 1 {
				t.Fatalf("sender share %d < 1: %v", p, parts)
			}
			sum += p
		}
		if sum != 10000 {
			t.Fatalf("sum = %d, want 10000: %v", sum, parts)
		}
	}
}

// TestHourlyLowVolume is scenario S3: N=300, intensity=0.7 — exactly N
// emails distributed over 4-12 distinct nonzero hours.
func TestHourlyLowVolume(t *testing.T) {
	k := New(21)
	for trial := 0; trial < 50; trial++ {
		hours := k.HourlyDistribution(300, 0.7)
		sum, nonzero := 0, 0
		for _, c := range hours {
			sum += c
			if c > 0 {
				nonzero++
			}
		}
		if sum != 300 {
			t.Fatalf("sum = %d, want 300: %v", sum, hours)
		}
		if nonzero < 4 || nonzero > 12 {
			t.Fatalf("nonzero hours = %d, want in [4,12]: %v", nonzero, hours)
		}
	}
}

func TestHourlyMidAndHighVolumeSumExactly(t *testing.T) {
	k := New(99)
	for _, n := range []int{800, 1500, 2001, 5000, 50000} {
		hours := k.HourlyDistribution(n, 0.3)
		sum := 0
		for _, c := range hours {
			if c < 0 {
				t.Fatalf("negative hour count for n=%d: %v", n, hours)
			}
			sum += c
		}
		if sum != n {
			t.Fatalf("n=%d: sum = %d", n, sum)
		}
	}
}

func TestMinuteDistributionSumsExactly(t *testing.T) {
	k := New(123)
	for _, m := range []int{0, 1, 17, 59, 60, 61, 500} {
		minutes := k.MinuteDistribution(m)
		sum := 0
		for _, c := range minutes {
			if c < 0 {
				t.Fatalf("negative minute count for m=%d: %v", m, minutes)
			}
			sum += c
		}
		if sum != m {
			t.Fatalf("m=%d: sum = %d", m, sum)
		}
	}
}

// TestRoundTrip is §8 property 8: the same seed reproduces a structurally
// identical plan-building sequence.
func TestRoundTrip(t *testing.T) {
	build := func(seed int64) (parts []int, hours [24]int, minutes [60]int) {
		k := New(seed)
		parts = k.Split(1000, 4)
		hours = k.HourlyDistribution(1200, 0.4)
		minutes = k.MinuteDistribution(90)
		return
	}

	p1, h1, m1 := build(2024)
	p2, h2, m2 := build(2024)

	if len(p1) != len(p2) {
		t.Fatalf("split length mismatch")
	}
	for i := range p1 {
		if p1[i] != p2[i] {
			t.Fatalf("split mismatch at %d: %d != %d", i, p1[i], p2[i])
		}
	}
	if h1 != h2 {
		t.Fatalf("hourly distribution mismatch: %v != %v", h1, h2)
	}
	if m1 != m2 {
		t.Fatalf("minute distribution mismatch: %v != %v", m1, m2)
	}
}

func TestPickTemplateEmptyReturnsEmptyString(t *testing.T) {
	k := New(1)
	if got := k.PickTemplate(nil); got != "" {
		t.Errorf("PickTemplate(nil) = %q, want empty", got)
	}
}

func TestPickTemplateAlwaysFromSet(t *testing.T) {
	k := New(1)
	names := []string{"a", "b", "c"}
	for i := 0; i < 30; i++ {
		got := k.PickTemplate(names)
		found := false
		for _, n := range names {
			if n == got {
				found = true
			}
		}
		if !found {
			t.Fatalf("PickTemplate returned %q not in %v", got, names)
		}
	}
}
