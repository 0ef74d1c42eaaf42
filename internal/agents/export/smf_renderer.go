package export

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/Conceptual-Machines/magda-composer/internal/models"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

// ArtifactMIDI is the kind of SMFRenderer artifacts.
const ArtifactMIDI = "midi"

// TicksPerQuarter is the SMF resolution.
const TicksPerQuarter = 960

// SMFRenderer writes the timeline as a type 1 Standard MIDI File named
// <run id>.mid under Dir.
type SMFRenderer struct {
	Dir string
}

// NewSMFRenderer creates a renderer writing under dir.
func NewSMFRenderer(dir string) *SMFRenderer {
	return &SMFRenderer{Dir: dir}
}

func (r *SMFRenderer) Name() string { return "smf" }

// Render writes to a temp file in Dir and renames it into place, so a failed
// run leaves no partial file behind.
func (r *SMFRenderer) Render(ctx context.Context, gctx *models.GenerationContext, _ []models.Artifact) (models.Artifact, error) {
	if gctx.Timeline == nil {
		return models.Artifact{}, fmt.Errorf("no timeline to render")
	}
	if err := os.MkdirAll(r.Dir, 0o755); err != nil {
		return models.Artifact{}, fmt.Errorf("failed to create output dir: %w", err)
	}

	s := BuildSMF(*gctx.Timeline)

	tmp, err := os.CreateTemp(r.Dir, gctx.RunID+"-*.mid.tmp")
	if err != nil {
		return models.Artifact{}, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }

	if _, err := s.WriteTo(tmp); err != nil {
		_ = tmp.Close()
		cleanup()
		return models.Artifact{}, fmt.Errorf("failed to write MIDI: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return models.Artifact{}, fmt.Errorf("failed to close MIDI: %w", err)
	}
	if err := ctx.Err(); err != nil {
		cleanup()
		return models.Artifact{}, err
	}

	path := filepath.Join(r.Dir, gctx.RunID+".mid")
	if err := os.Rename(tmpPath, path); err != nil {
		cleanup()
		return models.Artifact{}, fmt.Errorf("failed to move MIDI into place: %w", err)
	}
	return models.Artifact{Kind: ArtifactMIDI, Path: path}, nil
}

type timedMsg struct {
	tick uint32
	off  bool
	msg  midi.Message
}

// BuildSMF converts a timeline into an SMF: a conductor track with tempo and
// meter, then one track per timeline track.
func BuildSMF(tl models.Timeline) *smf.SMF {
	s := smf.New()
	s.TimeFormat = smf.MetricTicks(TicksPerQuarter)

	var conductor smf.Track
	conductor.Add(0, smf.MetaMeter(uint8(tl.BeatsPerBar), 4))
	conductor.Add(0, smf.MetaTempo(float64(tl.Tempo)))
	conductor.Close(0)
	_ = s.Add(conductor)

	for _, t := range tl.Tracks {
		_ = s.Add(buildTrack(t))
	}
	return s
}

func buildTrack(t models.Track) smf.Track {
	var tr smf.Track
	ch := uint8(t.Channel)
	tr.Add(0, smf.MetaTrackSequenceName(t.Name))
	if !t.IsDrum {
		tr.Add(0, midi.ProgramChange(ch, uint8(t.Program)))
	}

	msgs := make([]timedMsg, 0, len(t.Notes)*2)
	for _, n := range t.Notes {
		key := uint8(n.Pitch)
		msgs = append(msgs,
			timedMsg{tick: ticks(n.StartBeats), msg: midi.NoteOn(ch, key, uint8(n.Velocity))},
			timedMsg{tick: ticks(n.EndBeats()), off: true, msg: midi.NoteOff(ch, key)},
		)
	}
	// note-offs first so repeated pitches retrigger cleanly
	sort.SliceStable(msgs, func(i, j int) bool {
		if msgs[i].tick != msgs[j].tick {
			return msgs[i].tick < msgs[j].tick
		}
		return msgs[i].off && !msgs[j].off
	})

	var last uint32
	for _, m := range msgs {
		tr.Add(m.tick-last, m.msg)
		last = m.tick
	}
	tr.Close(0)
	return tr
}

func ticks(beats float64) uint32 {
	if beats <= 0 {
		return 0
	}
	return uint32(math.Round(beats * TicksPerQuarter))
}
