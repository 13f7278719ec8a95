package domain

import "strings"

// Tier is an authorization level. Comparison is by ordinal position only;
// never compare tier labels as strings.
type Tier int

const (
	TierPublic Tier = iota
	TierCircle
	TierCirclePlus
	TierCircleElite
	// TierPrivate is a different class (in-house restricted), not just a
	// higher rung. It sorts above everything but only private satisfies a
	// private requirement.
	TierPrivate
)

const (
	labelPublic      = "public"
	labelCircle      = "inner-circle"
	labelCirclePlus  = "inner-circle-plus"
	labelCircleElite = "inner-circle-elite"
	labelPrivate     = "private"
)

// tierAliases maps legacy labels still present on older member rows to their
// canonical tier.
var tierAliases = map[string]Tier{
	"free":       TierPublic,
	"all":        TierPublic, // content marker, not a member tier
	"basic":      TierCircle,
	"premium":    TierCirclePlus,
	"enterprise": TierCircleElite,
	"restricted": TierPrivate,
}

var tierLabels = map[string]Tier{
	labelPublic:      TierPublic,
	labelCircle:      TierCircle,
	labelCirclePlus:  TierCirclePlus,
	labelCircleElite: TierCircleElite,
	labelPrivate:     TierPrivate,
}

// ParseTier normalises a raw tier label to a canonical Tier. Unknown input
// maps to TierPublic; a bad label must never fail open to a higher tier.
func ParseTier(raw string) Tier {
	label := strings.ToLower(strings.TrimSpace(raw))
	if t, ok := tierLabels[label]; ok {
		return t
	}
	if t, ok := tierAliases[label]; ok {
		return t
	}
	return TierPublic
}

// AtLeast reports whether t satisfies the required tier. Private content is
// only visible to private members; private members see everything.
func (t Tier) AtLeast(required Tier) bool {
	if required == TierPrivate {
		return t == TierPrivate
	}
	if t == TierPrivate {
		return true
	}
	return t >= required
}

func (t Tier) String() string {
	switch t {
	case TierCircle:
		return labelCircle
	case TierCirclePlus:
		return labelCirclePlus
	case TierCircleElite:
		return labelCircleElite
	case TierPrivate:
		return labelPrivate
	default:
		return labelPublic
	}
}
