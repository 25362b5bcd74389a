package farm

const day = 24 * 3600

// bonusTiers maps minimum loyalty time to a multiplier in tenths, evaluated
// longest interval first.
var bonusTiers = []struct {
	minElapsed uint64
	multiplier uint64
}{
	{90 * day, 50},
	{60 * day, 40},
	{30 * day, 30},
	{14 * day, 20},
	{10 * day, 18},
	{7 * day, 15},
}

// TierMultiplier returns the bonus multiplier earned after holding a position
// untouched for elapsed seconds. Below the first tier the baseline 10 (1.0×)
// applies.
func TierMultiplier(elapsed uint64) uint64 {
	for _, tier := range bonusTiers {
		if elapsed >= tier.minElapsed {
			return tier.multiplier
		}
	}
	return baseMultiplier
}
