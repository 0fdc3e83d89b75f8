package pricing

import "voicedesk/internal/config"

// Calculator derives a call cost from its duration when the telephony
// provider's terminal event carries no cost of its own.
//
// Pure calculation; no provider SDK calls, no persistence.
type Calculator struct {
	currency           string
	ratePerMinuteMinor int64
	minBillableSeconds int
	incrementSeconds   int
}

func NewCalculator(cfg config.PricingConfig) *Calculator {
	return &Calculator{
		currency:           cfg.Currency,
		ratePerMinuteMinor: cfg.RatePerMinuteMinor,
		minBillableSeconds: cfg.MinimumBillableSeconds,
		incrementSeconds:   cfg.BillingIncrementSeconds,
	}
}

// Enabled reports whether a rate is configured. Without one, calls cost zero
// unless the provider reports a cost.
func (c *Calculator) Enabled() bool { return c != nil && c.ratePerMinuteMinor > 0 }

func (c *Calculator) Currency() string { return c.currency }

// CallCostMinor computes the cost of a call in minor units: duration is
// rounded up to the billing increment (with a minimum billable floor), then
// charged per started minute.
func (c *Calculator) CallCostMinor(durationSeconds int) int64 {
	if !c.Enabled() || durationSeconds <= 0 {
		return 0
	}
	sec := billableSeconds(durationSeconds, c.minBillableSeconds, c.incrementSeconds)
	return c.ratePerMinuteMinor * int64(billableMinutesFromSeconds(sec))
}

func billableSeconds(actualSec, minSec, incrementSec int) int {
	if actualSec < 0 {
		return 0
	}
	if minSec <= 0 {
		minSec = 0
	}
	if incrementSec <= 0 {
		incrementSec = 60
	}

	sec := actualSec
	if sec < minSec {
		sec = minSec
	}

	// round up to nearest increment
	q := sec / incrementSec
	if sec%incrementSec != 0 {
		q++
	}
	return q * incrementSec
}

func billableMinutesFromSeconds(sec int) int {
	if sec <= 0 {
		return 0
	}
	m := sec / 60
	if sec%60 != 0 {
		m++
	}
	return m
}
