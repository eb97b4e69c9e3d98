package catalog

import (
	"errors"
	"fmt"
	"math"

	"github.com/aristath/dealflow/internal/domain"
)

// ErrInvalidDeal is returned for submissions with malformed attributes.
var ErrInvalidDeal = errors.New("invalid deal")

// validateAttributes rejects values that could never be meaningful. Missing
// values are allowed; rules treat them as failures at evaluation time.
func validateAttributes(a domain.Attributes) error {
	for _, dim := range domain.AllDimensions() {
		v, ok := a.Value(dim)
		if !ok || v.IsText {
			continue
		}
		if math.IsNaN(v.Number) || math.IsInf(v.Number, 0) {
			return fmt.Errorf("%w: %s must be a finite number", ErrInvalidDeal, dim)
		}
	}

	if v, ok := a.Value(domain.DimRevenueShareRatio); ok && (v.Number < 0 || v.Number > 1) {
		return fmt.Errorf("%w: %s must be a fraction in [0, 1], got %s", ErrInvalidDeal, domain.DimRevenueShareRatio, v)
	}
	for _, dim := range []domain.Dimension{domain.DimFundingAmount, domain.DimInvestmentPeriodMonths} {
		if v, ok := a.Value(dim); ok && v.Number < 0 {
			return fmt.Errorf("%w: %s must not be negative, got %s", ErrInvalidDeal, dim, v)
		}
	}
	return nil
}
