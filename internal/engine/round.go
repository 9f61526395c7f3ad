package engine

// advanceRound starts the next round once every active player has claimed or
// forfeited. Finishing round MaxRounds ends the game instead; Round stays at
// MaxRounds.
func (s *State) advanceRound() []Event {
	if len(s.Active) == 0 || len(s.Submitted) < len(s.Active) {
		return nil
	}

	events := []Event{{Type: EvtRoundStarted, Round: s.Round + 1}}
	clear(s.Submitted)

	if s.Round >= MaxRounds {
		return append(events, s.finish())
	}
	s.Round++
	return events
}

func (s *State) finish() Event {
	s.Winner = DetermineWinner(*s)
	s.Phase = PhaseOver
	return Event{Type: EvtGameOver, Player: s.Winner, Round: s.Round}
}
