package enums

import "fmt"

// BadgeTier is the public tier derived from a fixer's active badges.
type BadgeTier string

const (
	BadgeTierNone     BadgeTier = "NONE"
	BadgeTierBronze   BadgeTier = "BRONZE"
	BadgeTierSilver   BadgeTier = "SILVER"
	BadgeTierGold     BadgeTier = "GOLD"
	BadgeTierPlatinum BadgeTier = "PLATINUM"
)

var badgeTierOrder = []BadgeTier{
	BadgeTierNone,
	BadgeTierBronze,
	BadgeTierSilver,
	BadgeTierGold,
	BadgeTierPlatinum,
}

func (b BadgeTier) String() string {
	return string(b)
}

// Rank orders tiers from NONE (0) to PLATINUM (4); unknown tiers rank -1.
func (b BadgeTier) Rank() int {
	for i, candidate := range badgeTierOrder {
		if candidate == b {
			return i
		}
	}
	return -1
}

// IsValid reports whether the value is a known BadgeTier.
func (b BadgeTier) IsValid() bool {
	return b.Rank() >= 0
}

// ParseBadgeTier converts raw input into a BadgeTier.
func ParseBadgeTier(value string) (BadgeTier, error) {
	for _, candidate := range badgeTierOrder {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid badge tier %q", value)
}
