package engine

// Standard rule constants.
const (
	RankCount     = 5
	MaxClockCount = 8
	InitFuseCount = 3

	// MinPlayers and MaxPlayers bound the participant count a game can be
	// started with. Additional joiners become spectators.
	MinPlayers = 3
	MaxPlayers = 6
)

// Preset names a deck composition.
type Preset string

const (
	// PresetNormal is five suits with the standard copy distribution.
	PresetNormal Preset = "normal"
	// PresetSixColors adds a sixth ordinary suit.
	PresetSixColors Preset = "6colors"
	// PresetRainbow adds a sixth suit whose cards match every suit hint.
	PresetRainbow Preset = "rainbow"
	// PresetUnicorn adds a sixth suit with a single copy of every rank.
	PresetUnicorn Preset = "unicorn"
)

// copiesPerRankNormal: three 1s, two each of 2-4, one 5.
func copiesPerRankNormal() []int { return []int{3, 2, 2, 2, 1} }

// copiesPerRankReduced: one copy per rank, used by the unicorn suit.
func copiesPerRankReduced() []int { return []int{1, 1, 1, 1, 1} }

// SuitsForPreset returns the suit composition for a preset. Unknown
// presets fall back to the normal five suits.
func SuitsForPreset(p Preset) []SuitRules {
	suits := make([]SuitRules, 0, 6)
	for i := 0; i < 5; i++ {
		suits = append(suits, SuitRules{CopiesPerRank: copiesPerRankNormal()})
	}
	switch p {
	case PresetSixColors:
		suits = append(suits, SuitRules{CopiesPerRank: copiesPerRankNormal()})
	case PresetRainbow:
		suits = append(suits, SuitRules{WildForHints: true, CopiesPerRank: copiesPerRankNormal()})
	case PresetUnicorn:
		suits = append(suits, SuitRules{CopiesPerRank: copiesPerRankReduced()})
	}
	return suits
}

// HandSizeFor returns the dealt hand size: five cards for up to three
// players, four otherwise.
func HandSizeFor(playerCount int) int {
	if playerCount > 3 {
		return 4
	}
	return 5
}

// NewRules assembles the rule set for the given suit composition and
// player count.
func NewRules(suits []SuitRules, playerCount int) Rules {
	total := 0
	for _, s := range suits {
		for _, c := range s.CopiesPerRank {
			total += c
		}
	}
	return Rules{
		RankCount:      RankCount,
		SuitCount:      len(suits),
		TotalCardCount: total,
		MaxClockCount:  MaxClockCount,
		InitFuseCount:  InitFuseCount,
		HandSize:       HandSizeFor(playerCount),
		Suits:          suits,
	}
}
