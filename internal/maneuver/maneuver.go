// Package maneuver turns provider step records into typed maneuvers ordered by
// along-route distance, and classifies them into the turn hints shown to drivers.
package maneuver

import (
	"sort"
	"strings"

	"github.com/paulmach/orb"

	"livenav/internal/mapmatch"
)

type Kind string

const (
	KindTurn         Kind = "turn"
	KindNameChange   Kind = "name-change"
	KindRoundabout   Kind = "roundabout"
	KindFork         Kind = "fork"
	KindMerge        Kind = "merge"
	KindRamp         Kind = "ramp"
	KindUnrecognized Kind = "unrecognized"
)

// Navigable reports whether maneuvers of this kind are announced to the driver.
func (k Kind) Navigable() bool {
	switch k {
	case KindTurn, KindNameChange, KindRoundabout, KindFork, KindMerge, KindRamp:
		return true
	}
	return false
}

type Modifier string

const (
	ModifierNone        Modifier = ""
	ModifierLeft        Modifier = "left"
	ModifierRight       Modifier = "right"
	ModifierSlightLeft  Modifier = "slight-left"
	ModifierSlightRight Modifier = "slight-right"
	ModifierSharpLeft   Modifier = "sharp-left"
	ModifierSharpRight  Modifier = "sharp-right"
	ModifierStraight    Modifier = "straight"
	ModifierUTurn       Modifier = "uturn"
)

func (m Modifier) leftFamily() bool {
	return m == ModifierLeft || m == ModifierSlightLeft || m == ModifierSharpLeft
}

func (m Modifier) rightFamily() bool {
	return m == ModifierRight || m == ModifierSlightRight || m == ModifierSharpRight
}

// Turn is the coarse hint published in the navigation command.
type Turn string

const (
	TurnLeft     Turn = "left"
	TurnRight    Turn = "right"
	TurnStraight Turn = "straight"
	TurnUTurn    Turn = "uturn"
)

// normalize lowercases s and folds spaces and underscores into hyphens.
func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "-", "_", "-").Replace(s)
}

// ParseKind maps a provider maneuver type onto Kind. Depart, arrive, continue
// and anything unknown become KindUnrecognized.
func ParseKind(s string) Kind {
	switch normalize(s) {
	case "turn", "end-of-road":
		return KindTurn
	case "new-name", "name-change":
		return KindNameChange
	case "roundabout", "rotary", "roundabout-turn":
		return KindRoundabout
	case "fork":
		return KindFork
	case "merge":
		return KindMerge
	case "ramp", "on-ramp", "off-ramp":
		return KindRamp
	}
	return KindUnrecognized
}

// ParseModifier maps a provider modifier onto Modifier; unknown values yield ModifierNone.
func ParseModifier(s string) Modifier {
	switch m := Modifier(normalize(s)); m {
	case ModifierLeft, ModifierRight, ModifierSlightLeft, ModifierSlightRight,
		ModifierSharpLeft, ModifierSharpRight, ModifierStraight, ModifierUTurn:
		return m
	case "u-turn":
		return ModifierUTurn
	}
	return ModifierNone
}

// Classify derives the turn hint. Only turn maneuvers are reported as left or
// right; a u-turn modifier wins for any kind; everything else is straight.
func Classify(k Kind, m Modifier) Turn {
	switch {
	case m == ModifierUTurn:
		return TurnUTurn
	case k == KindTurn && m.leftFamily():
		return TurnLeft
	case k == KindTurn && m.rightFamily():
		return TurnRight
	}
	return TurnStraight
}

// Raw is a step record as delivered by a route-planning provider.
type Raw struct {
	Kind     Kind
	Modifier Modifier
	Location orb.Point
	// Type is the provider's original maneuver type string.
	Type string
	Name string
	Text string
}

// Maneuver is a navigable event tied to a position along the route.
type Maneuver struct {
	Kind     Kind
	Modifier Modifier
	Location orb.Point
	Along    float64
	Type     string
	Name     string
	Text     string
}

func (m Maneuver) Turn() Turn {
	return Classify(m.Kind, m.Modifier)
}

// Sequence drops non-navigable steps, measures each remaining step's along-route
// distance with a full scan, and sorts the result. Equal distances keep provider order.
func Sequence(raws []Raw, line orb.LineString, idx mapmatch.Index) []Maneuver {
	out := make([]Maneuver, 0, len(raws))
	for _, r := range raws {
		if !r.Kind.Navigable() {
			continue
		}
		m := mapmatch.FullScan(line, idx, r.Location)
		out = append(out, Maneuver{
			Kind:     r.Kind,
			Modifier: r.Modifier,
			Location: r.Location,
			Along:    m.Along,
			Type:     r.Type,
			Name:     r.Name,
			Text:     r.Text,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Along < out[j].Along })
	return out
}

// Next returns the first maneuver strictly beyond along+buffer. list must be
// sorted as returned by Sequence.
func Next(list []Maneuver, along, buffer float64) (Maneuver, bool) {
	i := sort.Search(len(list), func(i int) bool { return list[i].Along > along+buffer })
	if i == len(list) {
		return Maneuver{}, false
	}
	return list[i], true
}
