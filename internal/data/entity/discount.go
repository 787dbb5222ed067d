package entity

import (
	"math"
	"time"
)

type Discount struct {
	BaseSimple
	Code      string     `db:"code"`
	Percent   *float64   `db:"percent"`
	Amount    *float64   `db:"amount"`
	MaxUses   *int       `db:"max_uses"`
	UsedCount int        `db:"used_count"`
	ValidFrom *time.Time `db:"valid_from"`
	ValidTo   *time.Time `db:"valid_to"`
	IsActive  bool       `db:"is_active"`
}

func (d *Discount) Usable(now time.Time) bool {
	if !d.IsActive {
		return false
	}
	if d.ValidFrom != nil && now.Before(*d.ValidFrom) {
		return false
	}
	if d.ValidTo != nil && now.After(*d.ValidTo) {
		return false
	}
	if d.MaxUses != nil && d.UsedCount >= *d.MaxUses {
		return false
	}
	return true
}

// Apply returns the amount taken off price, never more than price itself.
func (d *Discount) Apply(price float64) float64 {
	off := 0.0
	if d.Percent != nil {
		off = price * (*d.Percent) / 100
	}
	if d.Amount != nil {
		off += *d.Amount
	}
	off = math.Round(off*100) / 100
	return math.Min(off, price)
}
