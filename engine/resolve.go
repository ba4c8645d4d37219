package engine

// ComputeResolution derives the unique legal resolution for a pending
// play, given the snapshot the play committed and the (now revealed)
// card it named.
//
// A play succeeds when the card's rank is exactly one above the suit's
// current highest rank; the suit's highest rank advances, and completing
// the suit's maximum rank refunds one hint token unless the count is
// already at maximum. Any other card fails and burns one error token.
func ComputeResolution(rules *Rules, state *GameState, card *Card) Resolution {
	res := Resolution{
		ClockCount:   state.ClockCount,
		FuseCount:    state.FuseCount,
		HighestRanks: append([]RankID(nil), state.HighestRanks...),
	}
	if state.HighestRanks[card.Suit]+1 == card.Rank {
		res.Result = ResultSuccess
		res.HighestRanks[card.Suit]++
		if card.Rank == rules.MaxRank() && state.ClockCount < rules.MaxClockCount {
			res.ClockCount++
		}
	} else {
		res.Result = ResultFailure
		res.FuseCount--
	}
	return res
}

// ApplyResolution returns a copy of the play move with the resolution
// attached. The storage layer uses it to materialize the in-place update
// after validation.
func ApplyResolution(m *Move, res *Resolution) Move {
	out := m.Clone()
	result := res.Result
	out.Result = &result
	out.StateAfter.ClockCount = res.ClockCount
	out.StateAfter.FuseCount = res.FuseCount
	out.StateAfter.HighestRanks = append([]RankID(nil), res.HighestRanks...)
	return out
}
