// README: Fare estimator; pure function of distance.
package fare

import "cabdispatch/internal/types"

type Estimator struct {
	rate Rate
}

func NewEstimator(rate Rate) *Estimator {
	if rate.Currency == "" {
		rate.Currency = DefaultRate.Currency
	}
	return &Estimator{rate: rate}
}

// Estimate returns base + distanceKm*perKm. Distance is not validated here;
// zero or negative distances yield the base fare or less.
func (e *Estimator) Estimate(distanceKm float64) types.Money {
	return types.NewMoney(e.rate.BaseFare+distanceKm*e.rate.PerKm, e.rate.Currency)
}

func (e *Estimator) Currency() string {
	return e.rate.Currency
}
