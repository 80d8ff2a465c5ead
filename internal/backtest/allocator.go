package backtest

// Allocate converts target weights into unit holdings at the given prices.
// Only instruments with a positive price are bought. When some targets have
// no price the remaining weights are scaled up so that all of capital is
// deployed across the tradeable names. An empty result means nothing could
// be bought.
func Allocate(weights map[string]float64, prices map[string]float64, capital float64) map[string]float64 {
	units := make(map[string]float64, len(weights))
	if capital <= 0 {
		return units
	}

	var mass float64
	for name, w := range weights {
		if w <= 0 {
			continue
		}
		if p, ok := prices[name]; ok && p > 0 {
			mass += w
		}
	}
	if mass <= 0 {
		return units
	}

	scale := 1.0
	if mass < 1 {
		scale = 1 / mass
	}

	for name, w := range weights {
		if w <= 0 {
			continue
		}
		p, ok := prices[name]
		if !ok || p <= 0 {
			continue
		}
		units[name] = capital * w * scale / p
	}
	return units
}
