package model

import (
	"fmt"
	"strings"
	"time"

	"telegram-private-group/internal/domain"
)

// Period is a subscription length from the fixed plan catalog.
type Period string

const (
	PeriodTwoDays     Period = "2 days"
	PeriodOneMonth    Period = "1 month"
	PeriodThreeMonths Period = "3 months"
	PeriodSixMonths   Period = "6 months"
	PeriodOneYear     Period = "1 year"
)

const day = 24 * time.Hour

var periodDays = map[Period]int{
	PeriodTwoDays:     2,
	PeriodOneMonth:    30,
	PeriodThreeMonths: 90,
	PeriodSixMonths:   180,
	PeriodOneYear:     365,
}

// Periods returns the catalog ordered from shortest to longest.
func Periods() []Period {
	return []Period{PeriodTwoDays, PeriodOneMonth, PeriodThreeMonths, PeriodSixMonths, PeriodOneYear}
}

// ParsePeriod maps a period token to a catalog entry.
func ParsePeriod(s string) (Period, error) {
	p := Period(strings.TrimSpace(s))
	if _, ok := periodDays[p]; !ok {
		return "", fmt.Errorf("period %q: %w", s, domain.ErrPlanNotFound)
	}
	return p, nil
}

func (p Period) Valid() bool {
	_, ok := periodDays[p]
	return ok
}

// Days returns the length of the period in days, or 0 for an unknown period.
func (p Period) Days() int { return periodDays[p] }

// Duration is a pure lookup: the same period always yields the same duration.
func (p Period) Duration() time.Duration {
	return time.Duration(periodDays[p]) * day
}

func (p Period) String() string { return string(p) }

// Plan is a catalog entry with a fixed price in whole USDT.
type Plan struct {
	Period Period
	Price  int64
}

func NewPlan(period Period, price int64) (*Plan, error) {
	if !period.Valid() {
		return nil, domain.ErrPlanNotFound
	}
	if price <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	return &Plan{Period: period, Price: price}, nil
}

// Duration resolves the plan length from its period.
func (p *Plan) Duration() time.Duration { return p.Period.Duration() }

func (p *Plan) IsZero() bool { return p == nil || p.Period == "" }
