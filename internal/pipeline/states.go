package pipeline

import "github.com/Conceptual-Machines/magda-composer/internal/models"

// State is one pipeline state.
type State string

const (
	StateParseInput          State = "ParseInput"
	StateRetrievePatterns    State = "RetrievePatterns"
	StateApplyArtistContext  State = "ApplyArtistContext"
	StatePlanStructure       State = "PlanStructure"
	StateGenerateChords      State = "GenerateChords"
	StateGenerateMelody      State = "GenerateMelody"
	StateGenerateInstruments State = "GenerateInstruments"
	StateGenerateDrums       State = "GenerateDrums"
	StateGenerateVocals      State = "GenerateVocals"
	StateValidateCoverage    State = "ValidateCoverage"
	StateSynthesize          State = "Synthesize"
	StateExport              State = "Export"
	StateDone                State = "Done"
	StateFailed              State = "Failed"
)

// transitions is the static happy path. GenerateVocals is skipped by Next
// when the request has no vocals.
var transitions = map[State]State{
	StateParseInput:          StateRetrievePatterns,
	StateRetrievePatterns:    StateApplyArtistContext,
	StateApplyArtistContext:  StatePlanStructure,
	StatePlanStructure:       StateGenerateChords,
	StateGenerateChords:      StateGenerateMelody,
	StateGenerateMelody:      StateGenerateInstruments,
	StateGenerateInstruments: StateGenerateDrums,
	StateGenerateDrums:       StateGenerateVocals,
	StateGenerateVocals:      StateValidateCoverage,
	StateValidateCoverage:    StateSynthesize,
	StateSynthesize:          StateExport,
	StateExport:              StateDone,
}

// stateSlots names the context slot each state may write.
var stateSlots = map[State]models.Slot{
	StateParseInput:          models.SlotRequest,
	StateRetrievePatterns:    models.SlotPatterns,
	StateApplyArtistContext:  models.SlotArtist,
	StatePlanStructure:       models.SlotStructure,
	StateGenerateChords:      models.SlotChords,
	StateGenerateMelody:      models.SlotMelody,
	StateGenerateInstruments: models.SlotInstruments,
	StateGenerateDrums:       models.SlotDrums,
	StateGenerateVocals:      models.SlotVocals,
	StateValidateCoverage:    models.SlotCoverage,
	StateSynthesize:          models.SlotTimeline,
	StateExport:              models.SlotExport,
}

// StageStates lists every state that runs a stage, in pipeline order.
func StageStates() []State {
	var out []State
	for s := StateParseInput; s != StateDone; s = transitions[s] {
		out = append(out, s)
	}
	return out
}

// wantsVocals is the only branch predicate.
func wantsVocals(gctx *models.GenerationContext) bool {
	return gctx != nil && gctx.Request != nil && gctx.Request.Vocals
}

// Next returns the state after s. Terminal and unknown states go nowhere.
func Next(s State, gctx *models.GenerationContext) State {
	next, ok := transitions[s]
	if !ok {
		return s
	}
	if next == StateGenerateVocals && !wantsVocals(gctx) {
		next = transitions[next]
	}
	return next
}

// Terminal reports whether s ends a run.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}
