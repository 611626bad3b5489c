package cards

import (
	"encoding/json"
	"fmt"
)

// Kind identifies the card variant.
type Kind string

const (
	KindSpeed   Kind = "speed"
	KindHeat    Kind = "heat"
	KindStress  Kind = "stress"
	KindUpgrade Kind = "upgrade"
)

// UpgradeType identifies an upgrade card subtype.
type UpgradeType string

const (
	UpgradeSpeedZero    UpgradeType = "speed-0"
	UpgradeSpeedFive    UpgradeType = "speed-5"
	UpgradeStartingHeat UpgradeType = "starting-heat"
)

// Card is a single racing card. Exactly one kind applies; value is only
// meaningful for speed cards and subtype only for upgrades.
type Card struct {
	kind    Kind
	value   int
	subtype UpgradeType
}

// Speed creates a speed card with value 1..4.
func Speed(value int) Card {
	if value < 1 || value > 4 {
		panic(fmt.Sprintf("invalid speed card value %d", value))
	}
	return Card{kind: KindSpeed, value: value}
}

// Heat creates a heat card.
func Heat() Card {
	return Card{kind: KindHeat}
}

// Stress creates a stress card.
func Stress() Card {
	return Card{kind: KindStress}
}

// Upgrade creates an upgrade card of the given subtype.
func Upgrade(subtype UpgradeType) Card {
	switch subtype {
	case UpgradeSpeedZero, UpgradeSpeedFive, UpgradeStartingHeat:
		return Card{kind: KindUpgrade, subtype: subtype}
	}
	panic(fmt.Sprintf("invalid upgrade subtype %q", subtype))
}

// GetKind returns the card kind.
func (c Card) GetKind() Kind { return c.kind }

// GetValue returns the face value of a speed card, or 0 for other kinds.
func (c Card) GetValue() int { return c.value }

// GetSubtype returns the upgrade subtype, empty for non-upgrade cards.
func (c Card) GetSubtype() UpgradeType { return c.subtype }

// IsHeat reports whether the card is a heat card.
func (c Card) IsHeat() bool { return c.kind == KindHeat }

// IsStress reports whether the card is a stress card.
func (c Card) IsStress() bool { return c.kind == KindStress }

// Playable reports whether the card may be chosen during card selection.
// Heat and stress are never playable; the starting-heat upgrade is not either.
func (c Card) Playable() bool {
	switch c.kind {
	case KindHeat, KindStress:
		return false
	case KindUpgrade:
		return c.subtype != UpgradeStartingHeat
	}
	return true
}

// MovementValue returns the spaces this card contributes during reveal.
// The second return is false for stress cards, which resolve by flipping
// from the draw pile instead of carrying a value of their own.
func (c Card) MovementValue() (int, bool) {
	switch c.kind {
	case KindSpeed:
		return c.value, true
	case KindUpgrade:
		switch c.subtype {
		case UpgradeSpeedZero:
			return 0, true
		case UpgradeSpeedFive:
			return 5, true
		}
		return 0, true
	case KindHeat:
		return 0, true
	}
	return 0, false
}

// String returns a short human readable form, e.g. "speed-3" or "heat".
func (c Card) String() string {
	switch c.kind {
	case KindSpeed:
		return fmt.Sprintf("speed-%d", c.value)
	case KindUpgrade:
		return string(c.subtype)
	}
	return string(c.kind)
}

// cardJSON is the wire form of a card.
type cardJSON struct {
	Kind    string `json:"kind"`
	Value   int    `json:"value,omitempty"`
	Subtype string `json:"subtype,omitempty"`
}

// MarshalJSON implements json.Marshaler for Card.
func (c Card) MarshalJSON() ([]byte, error) {
	return json.Marshal(cardJSON{
		Kind:    string(c.kind),
		Value:   c.value,
		Subtype: string(c.subtype),
	})
}

// UnmarshalJSON implements json.Unmarshaler for Card.
func (c *Card) UnmarshalJSON(data []byte) error {
	var cj cardJSON
	if err := json.Unmarshal(data, &cj); err != nil {
		return err
	}

	switch Kind(cj.Kind) {
	case KindSpeed:
		if cj.Value < 1 || cj.Value > 4 {
			return fmt.Errorf("invalid speed card value: %d", cj.Value)
		}
		*c = Card{kind: KindSpeed, value: cj.Value}
	case KindHeat:
		*c = Card{kind: KindHeat}
	case KindStress:
		*c = Card{kind: KindStress}
	case KindUpgrade:
		switch UpgradeType(cj.Subtype) {
		case UpgradeSpeedZero, UpgradeSpeedFive, UpgradeStartingHeat:
			*c = Card{kind: KindUpgrade, subtype: UpgradeType(cj.Subtype)}
		default:
			return fmt.Errorf("invalid upgrade subtype: %s", cj.Subtype)
		}
	default:
		return fmt.Errorf("invalid card kind: %s", cj.Kind)
	}

	return nil
}

// CountPlayable returns how many cards in the slice are playable.
func CountPlayable(cs []Card) int {
	n := 0
	for _, c := range cs {
		if c.Playable() {
			n++
		}
	}
	return n
}

// CountHeat returns how many heat cards the slice contains.
func CountHeat(cs []Card) int {
	n := 0
	for _, c := range cs {
		if c.IsHeat() {
			n++
		}
	}
	return n
}
