// internal/models/phase.go
package models

// Phase is a stage of a game's lifecycle. Games are created in PhaseLobby and
// moved to PhaseSetup by the host; the phases after that belong to gameplay
// proper and are only declared here so transitions stay guarded end to end.
type Phase string

const (
	PhaseLobby       Phase = "lobby"
	PhaseSetup       Phase = "setup"
	PhaseAction      Phase = "action"
	PhaseSpying      Phase = "spying"
	PhaseBattle      Phase = "battle"
	PhaseNegotiation Phase = "negotiation"
	PhaseAlliance    Phase = "alliance"
	PhaseSummit      Phase = "summit"
	PhaseSpyReports  Phase = "spy_reports"
	PhaseFinished    Phase = "finished"
)

// phaseOrder is the canonical progression of a round.
var phaseOrder = []Phase{
	PhaseLobby,
	PhaseSetup,
	PhaseAction,
	PhaseSpying,
	PhaseBattle,
	PhaseNegotiation,
	PhaseAlliance,
	PhaseSummit,
	PhaseSpyReports,
	PhaseFinished,
}

var phaseIndex = func() map[Phase]int {
	m := make(map[Phase]int, len(phaseOrder))
	for i, p := range phaseOrder {
		m[p] = i
	}
	return m
}()

// Valid reports whether p names a known phase.
func (p Phase) Valid() bool {
	_, ok := phaseIndex[p]
	return ok
}

// Next returns the phase following p in the canonical order.
func (p Phase) Next() (Phase, bool) {
	i, ok := phaseIndex[p]
	if !ok || i+1 >= len(phaseOrder) {
		return "", false
	}
	return phaseOrder[i+1], true
}

// CanTransition reports whether a game may move from one phase to another.
// PhaseFinished is reachable from anywhere (abandonment, sweeping); every
// other move must follow the canonical order one step at a time.
func CanTransition(from, to Phase) bool {
	if !from.Valid() || !to.Valid() || from == to {
		return false
	}
	if to == PhaseFinished {
		return true
	}
	next, ok := from.Next()
	return ok && next == to
}
