package pricing

import (
	"encoding/json"
	"fmt"
)

// UpToInf marks the unbounded upper bound of the final tier.
const UpToInf = -1

// Tier is one step of a graduated volume price: every unit up to UpTo
// (inclusive) that was not consumed by an earlier tier costs UnitAmount
// minor units. The final tier of a schedule must be unbounded.
type Tier struct {
	UpTo       int
	UnitAmount int
}

// Schedule is an ordered list of tiers with strictly increasing bounds and
// exactly one unbounded tier, which must be last.
type Schedule []Tier

type tierJSON struct {
	UpTo       any `json:"up_to"`
	UnitAmount int `json:"unit_amount"`
}

// MarshalJSON renders the tier in the provider's config format, where the
// unbounded tier carries "inf" instead of a number.
func (t Tier) MarshalJSON() ([]byte, error) {
	out := tierJSON{UnitAmount: t.UnitAmount}
	if t.UpTo == UpToInf {
		out.UpTo = "inf"
	} else {
		out.UpTo = t.UpTo
	}
	return json.Marshal(out)
}

func (t *Tier) UnmarshalJSON(data []byte) error {
	var raw tierJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	t.UnitAmount = raw.UnitAmount
	switch v := raw.UpTo.(type) {
	case string:
		if v != "inf" {
			return fmt.Errorf("invalid tier bound %q", v)
		}
		t.UpTo = UpToInf
	case float64:
		t.UpTo = int(v)
	default:
		return fmt.Errorf("invalid tier bound type %T", raw.UpTo)
	}
	return nil
}

// Validate checks the schedule invariant: non-empty, strictly increasing
// bounds, non-negative unit amounts and a single unbounded final tier.
func (s Schedule) Validate() error {
	if len(s) == 0 {
		return fmt.Errorf("schedule has no tiers")
	}
	prev := 0
	for i, tier := range s {
		if tier.UnitAmount < 0 {
			return fmt.Errorf("tier %d has negative unit amount %d", i, tier.UnitAmount)
		}
		if tier.UpTo == UpToInf {
			if i != len(s)-1 {
				return fmt.Errorf("unbounded tier %d must be last", i)
			}
			continue
		}
		if tier.UpTo <= prev {
			return fmt.Errorf("tier %d bound %d is not strictly increasing", i, tier.UpTo)
		}
		prev = tier.UpTo
	}
	if s[len(s)-1].UpTo != UpToInf {
		return fmt.Errorf("final tier must be unbounded")
	}
	return nil
}

// Price returns the total graduated price for quantity units in minor units.
// Quantity zero always prices to zero. An invalid schedule or negative
// quantity is a programming error and panics.
func Price(quantity int, s Schedule) int {
	if quantity < 0 {
		panic(fmt.Sprintf("pricing: negative quantity %d", quantity))
	}
	if err := s.Validate(); err != nil {
		panic("pricing: " + err.Error())
	}
	if quantity == 0 {
		return 0
	}

	total := 0
	remaining := quantity
	prev := 0
	for _, tier := range s {
		if tier.UpTo == UpToInf {
			total += remaining * tier.UnitAmount
			remaining = 0
			break
		}
		take := tier.UpTo - prev
		if take > remaining {
			take = remaining
		}
		total += take * tier.UnitAmount
		remaining -= take
		prev = tier.UpTo
		if remaining == 0 {
			break
		}
	}
	return total
}

// Info classifies a quantity into a named tier.
type Info struct {
	Index       int    `json:"tier_index"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// TierInfo resolves the tier a quantity lands in: the first tier whose bound
// covers the quantity, or the unbounded tier. Returns false for quantities
// that price to zero. Panics on an invalid schedule, like Price.
func TierInfo(quantity int, s Schedule) (Info, bool) {
	if err := s.Validate(); err != nil {
		panic("pricing: " + err.Error())
	}
	if quantity <= 0 {
		return Info{}, false
	}
	for i, tier := range s {
		if tier.UpTo == UpToInf || quantity <= tier.UpTo {
			return Info{
				Index:       i,
				Name:        tierName(i),
				Description: tierDescription(i),
			}, true
		}
	}
	return Info{}, false
}

// BreakdownLine describes how many units landed in one tier and what they
// cost, for display in pricing UIs.
type BreakdownLine struct {
	Range      string `json:"range"`
	Units      int    `json:"units"`
	UnitAmount int    `json:"unit_amount"`
	Subtotal   int    `json:"subtotal"`
}

// Breakdown performs the same walk as Price but reports each tier's share.
func Breakdown(quantity int, s Schedule) []BreakdownLine {
	if err := s.Validate(); err != nil {
		panic("pricing: " + err.Error())
	}
	if quantity <= 0 {
		return nil
	}

	var lines []BreakdownLine
	remaining := quantity
	prev := 0
	for _, tier := range s {
		if tier.UpTo == UpToInf {
			lines = append(lines, BreakdownLine{
				Range:      fmt.Sprintf("%d+", prev+1),
				Units:      remaining,
				UnitAmount: tier.UnitAmount,
				Subtotal:   remaining * tier.UnitAmount,
			})
			break
		}
		take := tier.UpTo - prev
		if take > remaining {
			take = remaining
		}
		if take > 0 {
			lines = append(lines, BreakdownLine{
				Range:      fmt.Sprintf("%d-%d", prev+1, tier.UpTo),
				Units:      take,
				UnitAmount: tier.UnitAmount,
				Subtotal:   take * tier.UnitAmount,
			})
			remaining -= take
		}
		prev = tier.UpTo
		if remaining == 0 {
			break
		}
	}
	return lines
}

// FormatPrice renders minor units as a display string.
func FormatPrice(minorUnits int, currency string) string {
	symbol := "$"
	if currency != "" && currency != "usd" && currency != "USD" {
		symbol = currency + " "
	}
	return fmt.Sprintf("%s%d.%02d", symbol, minorUnits/100, minorUnits%100)
}
