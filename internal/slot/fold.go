package slot

// Evolve applies one event to state. Combinations outside the transition
// table leave the state unchanged.
func Evolve(state State, evt Event) State {
	switch evt.Type {
	case EventTypeBooked:
		switch state.Kind {
		case KindInitial:
			return Booked(evt.SlotID, evt.Start, evt.End)
		case KindFree:
			return Booked(state.ID, evt.Start, evt.End)
		}
	case EventTypeCanceled:
		if state.Kind == KindBooked {
			return Free(state.ID)
		}
	}
	return state
}

// Fold replays events left to right starting from Initial.
func Fold(events ...Event) State {
	return FoldFrom(Initial(), events...)
}

func FoldFrom(state State, events ...Event) State {
	for _, evt := range events {
		state = Evolve(state, evt)
	}
	return state
}
