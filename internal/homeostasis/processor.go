package homeostasis

// Processor maintains the full eight-field homeostasis State across ticks,
// merging each tick's Translate output with carried-forward defaults for
// anything not derivable this tick, so the State is always fully
// populated.
type Processor struct {
	state State
}

// NewProcessor starts a Processor at the documented baseline state.
func NewProcessor() *Processor {
	return &Processor{state: Default()}
}

// State returns the current homeostasis snapshot.
func (p *Processor) State() State {
	return p.state
}

// Update ingests one tick's RawBotState plus any direct drive signals
// (curiosity/social/achievement/creativity), returning the new merged state.
func (p *Processor) Update(raw RawBotState, signals []Signal) State {
	part := Translate(raw)

	next := p.state
	if part.HasHealth {
		next.Health = part.Health
	}
	if part.HasHunger {
		next.Hunger = part.Hunger
	}
	if part.HasSafety {
		next.Safety = part.Safety
	}
	if part.HasEnergy {
		next.Energy = part.Energy
	}

	for _, sig := range signals {
		v := clampRound(sig.Value)
		switch sig.Type {
		case SignalCuriosity:
			next.Curiosity = v
		case SignalSocial:
			next.Social = v
		case SignalAchievement:
			next.Achievement = v
		case SignalCreativity:
			next.Creativity = v
		}
	}

	p.state = next
	return next
}
