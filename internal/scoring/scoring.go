package scoring

import (
	"errors"
	"fmt"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var ErrInvalidDie = errors.New("die face out of range")

type Part int

const (
	PartNone  Part = -1 // forfeit, claims nothing
	PartUpper Part = 0
	PartLower Part = 1
)

const (
	UpperCount    = 6
	LowerCount    = 7
	CategoryCount = UpperCount + LowerCount
	DiceCount     = 5
)

// Lower section indexes, in wire order.
const (
	ThreeOfAKind = iota
	FourOfAKind
	FullHouse
	SmallStraight
	LargeStraight
	Chance
	Yahtzee
)

const (
	fullHouseScore     = 25
	smallStraightScore = 30
	largeStraightScore = 40
	yahtzeeScore       = 50
)

// MaxValue is the most any single category can be worth.
const MaxValue = yahtzeeScore

var upperNames = [UpperCount]string{"ones", "twos", "threes", "fours", "fives", "sixes"}

var lowerNames = [LowerCount]string{
	"three of a kind", "four of a kind", "full house",
	"small straight", "large straight", "chance", "yahtzee",
}

func (p Part) Size() int {
	switch p {
	case PartUpper:
		return UpperCount
	case PartLower:
		return LowerCount
	default:
		return 0
	}
}

type Category struct {
	Part  Part
	Index int
}

func (c Category) Valid() bool {
	return c.Index >= 0 && c.Index < c.Part.Size()
}

// Slot maps a category onto a flat 0..12 board position: upper first.
func (c Category) Slot() int {
	if c.Part == PartLower {
		return UpperCount + c.Index
	}
	return c.Index
}

func CategoryAt(slot int) Category {
	if slot < UpperCount {
		return Category{Part: PartUpper, Index: slot}
	}
	return Category{Part: PartLower, Index: slot - UpperCount}
}

func (c Category) Name() string {
	if !c.Valid() {
		return "none"
	}
	if c.Part == PartUpper {
		return upperNames[c.Index]
	}
	return lowerNames[c.Index]
}

// Title is the display name. A Caser is stateful, so each call builds its own.
func (c Category) Title() string { return cases.Title(language.English).String(c.Name()) }

func (c Category) String() string {
	return fmt.Sprintf("%s(%d/%d)", c.Name(), c.Part, c.Index)
}

// All returns every category in board order.
func All() []Category {
	out := make([]Category, 0, CategoryCount)
	for slot := range CategoryCount {
		out = append(out, CategoryAt(slot))
	}
	return out
}

type Dice [DiceCount]int

func (d Dice) Validate() error {
	for i, face := range d {
		if face < 1 || face > 6 {
			return fmt.Errorf("die %d shows %d: %w", i, face, ErrInvalidDie)
		}
	}
	return nil
}

func (d Dice) Sum() int {
	sum := 0
	for _, face := range d {
		sum += face
	}
	return sum
}

// counts[f] is how many dice show face f; index 0 is unused.
func (d Dice) counts() [7]int {
	var counts [7]int
	for _, face := range d {
		if face >= 1 && face <= 6 {
			counts[face]++
		}
	}
	return counts
}

// Candidates holds what each category would score for one roll.
type Candidates [CategoryCount]int

func (c Candidates) Value(cat Category) int {
	if !cat.Valid() {
		return 0
	}
	return c[cat.Slot()]
}

func Score(d Dice) Candidates {
	var out Candidates
	counts := d.counts()
	sum := d.Sum()

	for face := 1; face <= 6; face++ {
		out[face-1] = counts[face] * face
	}

	lower := func(idx, v int) { out[UpperCount+idx] = v }

	if maxOfAKind(counts) >= 3 {
		lower(ThreeOfAKind, sum)
	}
	if maxOfAKind(counts) >= 4 {
		lower(FourOfAKind, sum)
	}
	if isFullHouse(counts) {
		lower(FullHouse, fullHouseScore)
	}
	if hasRun(counts, 4) {
		lower(SmallStraight, smallStraightScore)
	}
	if hasRun(counts, 5) {
		lower(LargeStraight, largeStraightScore)
	}
	lower(Chance, sum)
	if maxOfAKind(counts) == DiceCount {
		lower(Yahtzee, yahtzeeScore)
	}
	return out
}

func maxOfAKind(counts [7]int) int {
	best := 0
	for _, n := range counts[1:] {
		best = max(best, n)
	}
	return best
}

// Exactly one face twice and a different face three times.
func isFullHouse(counts [7]int) bool {
	two, three := false, false
	for _, n := range counts[1:] {
		switch n {
		case 2:
			two = true
		case 3:
			three = true
		case 0:
		default:
			return false
		}
	}
	return two && three
}

func hasRun(counts [7]int, length int) bool {
	run := 0
	for face := 1; face <= 6; face++ {
		if counts[face] == 0 {
			run = 0
			continue
		}
		run++
		if run >= length {
			return true
		}
	}
	return false
}

// NoLegalMove reports whether every category still open scores zero for this
// roll. Callers must forfeit the round instead of waiting on the player.
func NoLegalMove(c Candidates, open func(Category) bool) bool {
	for _, cat := range All() {
		if open(cat) && c.Value(cat) > 0 {
			return false
		}
	}
	return true
}

// Best returns the highest-valued open category; ok is false when none scores.
func Best(c Candidates, open func(Category) bool) (Category, bool) {
	var best Category
	bestValue := 0
	for _, cat := range All() {
		if !open(cat) {
			continue
		}
		if v := c.Value(cat); v > bestValue {
			best, bestValue = cat, v
		}
	}
	return best, bestValue > 0
}
