package models

// Slot names one output slot of the generation context.
type Slot string

const (
	SlotRequest     Slot = "request"
	SlotPatterns    Slot = "patterns"
	SlotArtist      Slot = "artist"
	SlotStructure   Slot = "structure"
	SlotChords      Slot = "chords"
	SlotMelody      Slot = "melody"
	SlotInstruments Slot = "instruments"
	SlotDrums       Slot = "drums"
	SlotVocals      Slot = "vocals"
	SlotCoverage    Slot = "coverage"
	SlotTimeline    Slot = "timeline"
	SlotExport      Slot = "export"
)

// GenerationContext is the request-scoped state of one composition run.
// Only the pipeline controller writes to it; stages read it and return a SectionOutput.
type GenerationContext struct {
	RunID string
	Input RequestInput

	Request     *MusicalRequest
	Patterns    *PatternSet
	Artist      *ArtistProfile
	Structure   []CompositionSection
	Chords      *ChordSection
	Melody      *Track
	Instruments []Track
	Drums       *Track
	Vocals      *VocalSection
	Coverage    *CoverageReport
	Timeline    *Timeline
	Export      *ExportResult

	Warnings []string
}

// NewGenerationContext starts an empty context for a run.
func NewGenerationContext(runID string, input RequestInput) *GenerationContext {
	return &GenerationContext{RunID: runID, Input: input}
}

// Filled reports whether a slot has been written.
func (g *GenerationContext) Filled(slot Slot) bool {
	switch slot {
	case SlotRequest:
		return g.Request != nil
	case SlotPatterns:
		return g.Patterns != nil
	case SlotArtist:
		return g.Artist != nil
	case SlotStructure:
		return g.Structure != nil
	case SlotChords:
		return g.Chords != nil
	case SlotMelody:
		return g.Melody != nil
	case SlotInstruments:
		return g.Instruments != nil
	case SlotDrums:
		return g.Drums != nil
	case SlotVocals:
		return g.Vocals != nil
	case SlotCoverage:
		return g.Coverage != nil
	case SlotTimeline:
		return g.Timeline != nil
	case SlotExport:
		return g.Export != nil
	}
	return false
}

// FinalMelody returns the coverage-extended melody when available.
func (g *GenerationContext) FinalMelody() *Track {
	if g.Coverage != nil {
		return &g.Coverage.Melody
	}
	return g.Melody
}

// SectionOutput is what a stage returns; the controller merges it into Slot().
type SectionOutput interface {
	Slot() Slot
}

// Warner is implemented by outputs that completed in a degraded way.
// The controller copies the warnings into the run result.
type Warner interface {
	Warnings() []string
}

func degradedWarning(stage string, err error) []string {
	if err == nil {
		return nil
	}
	return []string{stage + ": " + err.Error()}
}

// ParsedRequest is the ParseInput output.
type ParsedRequest struct {
	Request  MusicalRequest
	Source   string // "params", "llm", "heuristic"
	Degraded error
}

func (ParsedRequest) Slot() Slot { return SlotRequest }

func (p ParsedRequest) Warnings() []string { return degradedWarning("parse", p.Degraded) }

// RetrievedPatterns is the RetrievePatterns output. Degraded carries the
// recovered retrieval error, if any.
type RetrievedPatterns struct {
	Set      PatternSet
	Degraded error
}

func (RetrievedPatterns) Slot() Slot { return SlotPatterns }

func (r RetrievedPatterns) Warnings() []string { return degradedWarning("retrieval", r.Degraded) }

// ArtistContext is the ApplyArtistContext output.
type ArtistContext struct {
	Profile  ArtistProfile
	Degraded error
}

func (ArtistContext) Slot() Slot { return SlotArtist }

func (a ArtistContext) Warnings() []string { return degradedWarning("artist", a.Degraded) }

// StructurePlan is the PlanStructure output.
type StructurePlan struct {
	Sections []CompositionSection
}

func (StructurePlan) Slot() Slot { return SlotStructure }

// ChordSection is the GenerateChords output: symbols plus their voiced track.
type ChordSection struct {
	Events []ChordEvent
	Track  Track
}

func (ChordSection) Slot() Slot { return SlotChords }

// MelodySection is the GenerateMelody output.
type MelodySection struct {
	Track Track
}

func (MelodySection) Slot() Slot { return SlotMelody }

// InstrumentSection is the GenerateInstruments output.
type InstrumentSection struct {
	Tracks []Track
}

func (InstrumentSection) Slot() Slot { return SlotInstruments }

// DrumSection is the GenerateDrums output.
type DrumSection struct {
	Track    Track
	DSL      string
	Degraded error
}

func (DrumSection) Slot() Slot { return SlotDrums }

func (d DrumSection) Warnings() []string { return degradedWarning("drums", d.Degraded) }

// VocalSection is the GenerateVocals output.
type VocalSection struct {
	Track    Track
	Lyrics   []LyricToken
	Degraded error
}

func (VocalSection) Slot() Slot { return SlotVocals }

func (v VocalSection) Warnings() []string { return degradedWarning("vocals", v.Degraded) }

// CoverageSection is the ValidateCoverage output.
type CoverageSection struct {
	Report CoverageReport
}

func (CoverageSection) Slot() Slot { return SlotCoverage }

func (c CoverageSection) Warnings() []string {
	if !c.Report.Substituted {
		return nil
	}
	return []string{"coverage: melody was empty, default phrase substituted"}
}

// SynthSection is the Synthesize output.
type SynthSection struct {
	Timeline Timeline
}

func (SynthSection) Slot() Slot { return SlotTimeline }

// ExportSection is the Export output.
type ExportSection struct {
	Result ExportResult
}

func (ExportSection) Slot() Slot { return SlotExport }
