package risk

import "math"

// Symbol contract parameters for sizing. Defaults match XAUUSD on a
// standard account: contract size 100 oz, volume step 0.01 lots.
type Contract struct {
	ContractSize float64
	VolumeStep   float64
	VolumeMin    float64
	VolumeMax    float64
}

// GoldContract returns the standard XAUUSD contract.
func GoldContract() Contract {
	return Contract{
		ContractSize: 100,
		VolumeStep:   0.01,
		VolumeMin:    0.01,
		VolumeMax:    100,
	}
}

// LotSize computes the volume that risks riskPct of equity between entry
// and stop, rounded to the contract's volume step and clamped to its
// limits. Returns 0 when the stop distance is zero.
func LotSize(equity, riskPct, entry, stop float64, c Contract) float64 {
	dist := math.Abs(entry - stop)
	if dist == 0 || equity <= 0 || riskPct <= 0 {
		return 0
	}
	riskMoney := equity * riskPct
	lots := riskMoney / (dist * c.ContractSize)

	lots = math.Round(lots/c.VolumeStep) * c.VolumeStep
	if lots < c.VolumeMin {
		lots = c.VolumeMin
	}
	if lots > c.VolumeMax {
		lots = c.VolumeMax
	}
	return lots
}

// RiskMoney returns the account-currency loss if a position of lots is
// stopped out at stop from entry.
func RiskMoney(lots, entry, stop float64, c Contract) float64 {
	return lots * math.Abs(entry-stop) * c.ContractSize
}
