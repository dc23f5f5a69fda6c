package ledger

import (
	"fmt"

	"github.com/ruteri/slb-bond-backend/interfaces"
)

// Terms are the bond parameters set once by the issuer.
type Terms struct {
	Description  string            `json:"description"`
	KPITargets   interfaces.Triple `json:"kpi_targets"`
	TotalSupply  uint64            `json:"total_supply"`
	InstrumentID uint64            `json:"instrument_id"`
	CouponRate   uint64            `json:"coupon_rate"`
	PenaltyRate  uint64            `json:"penalty_rate"`
	FaceValue    uint64            `json:"face_value"`
	StartDate    uint64            `json:"start_date"`
	CouponDate   uint64            `json:"coupon_date"`
	MaturityDate uint64            `json:"maturity_date"`
}

// Validate checks the supply and the ordering of the term dates.
func (t Terms) Validate() error {
	if t.TotalSupply == 0 {
		return fmt.Errorf("%w: total supply must be positive", interfaces.ErrInvalidArgument)
	}
	if t.StartDate >= t.CouponDate || t.CouponDate >= t.MaturityDate {
		return fmt.Errorf("%w: dates must satisfy start < coupon < maturity", interfaces.ErrInvalidArgument)
	}
	return nil
}
