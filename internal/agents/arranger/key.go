package arranger

import (
	"fmt"
	"strings"
	"unicode"
)

var (
	majorScale = []int{0, 2, 4, 5, 7, 9, 11}
	minorScale = []int{0, 2, 3, 5, 7, 8, 10}

	sharpNames = []string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}
	flatNames  = []string{"C", "Db", "D", "Eb", "E", "F", "Gb", "G", "Ab", "A", "Bb", "B"}
)

// Key is a tonic pitch class and mode, e.g. "A Minor".
type Key struct {
	Tonic int // pitch class 0-11
	Minor bool
	flats bool
}

// ParseKey reads "C Major", "Bb minor", "F#m" or "Am". Unknown input returns C major and an error.
func ParseKey(s string) (Key, error) {
	fields := strings.Fields(strings.TrimSpace(s))
	if len(fields) == 0 {
		return Key{}, fmt.Errorf("empty key")
	}

	name := fields[0]
	minor := false
	if len(fields) > 1 {
		minor = strings.HasPrefix(strings.ToLower(fields[1]), "min")
	} else if strings.HasSuffix(name, "m") && len(name) > 1 {
		minor = true
		name = strings.TrimSuffix(name, "m")
	}
	if name != "" {
		name = strings.ToUpper(name[:1]) + name[1:]
	}

	root, err := parseRootNote(name)
	if err != nil || len(root) != len(name) {
		return Key{}, fmt.Errorf("invalid key %q", s)
	}

	k := Key{Tonic: noteOffsets[root], Minor: minor}
	k.flats = strings.Contains(root, "b") || usesFlats(k)
	return k, nil
}

// flat-side keys spelled with naturals
func usesFlats(k Key) bool {
	if k.Minor {
		switch k.Tonic {
		case 2, 7, 0, 5: // D, G, C, F minor
			return true
		}
		return false
	}
	return k.Tonic == 5 // F major
}

// Scale returns the pitch-class offsets of the key's scale.
func (k Key) Scale() []int {
	if k.Minor {
		return minorScale
	}
	return majorScale
}

// PitchName spells a pitch class the way the key would.
func (k Key) PitchName(pc int) string {
	pc = ((pc % 12) + 12) % 12
	if k.flats {
		return flatNames[pc]
	}
	return sharpNames[pc]
}

// ScalePitch returns the MIDI pitch of a scale degree (0-based, may be negative
// or beyond 6) counted from the tonic in the given octave.
func (k Key) ScalePitch(degree, octave int) int {
	scale := k.Scale()
	oct := degree / len(scale)
	idx := degree % len(scale)
	if idx < 0 {
		idx += len(scale)
		oct--
	}
	return clampMIDI((octave+1+oct)*12 + k.Tonic + scale[idx])
}

// Snap moves pitch to the nearest scale tone, preferring the lower one on ties.
func (k Key) Snap(pitch int) int {
	best := pitch
	for d := 0; d < 12; d++ {
		for _, p := range []int{pitch - d, pitch + d} {
			if k.InScale(p) {
				return clampMIDI(p)
			}
		}
	}
	return best
}

// InScale reports whether pitch belongs to the key's scale.
func (k Key) InScale(pitch int) bool {
	pc := ((pitch-k.Tonic)%12 + 12) % 12
	for _, s := range k.Scale() {
		if s == pc {
			return true
		}
	}
	return false
}

var romanDegrees = map[string]int{
	"i": 0, "ii": 1, "iii": 2, "iv": 3, "v": 4, "vi": 5, "vii": 6,
}

// ResolveChord turns a Roman numeral ("ii7", "V", "bVII", "vii°") into a chord
// symbol in key. Symbols that already name a root ("Am7") are returned as is.
func ResolveChord(numeral string, k Key) (string, error) {
	numeral = strings.TrimSpace(numeral)
	if numeral == "" {
		return "", fmt.Errorf("empty chord")
	}
	if _, err := parseRootNote(numeral); err == nil {
		return numeral, nil
	}

	shift := 0
	rest := numeral
	switch rest[0] {
	case 'b':
		shift, rest = -1, rest[1:]
	case '#':
		shift, rest = 1, rest[1:]
	}

	n := 0
	for n < len(rest) && strings.ContainsRune("IViv", rune(rest[n])) {
		n++
	}
	roman, suffix := rest[:n], rest[n:]
	degree, ok := romanDegrees[strings.ToLower(roman)]
	if !ok || !sameCase(roman) {
		return "", fmt.Errorf("invalid roman numeral %q", numeral)
	}

	pc := k.Tonic + k.Scale()[degree] + shift
	symbol := k.PitchName(pc)
	if shift < 0 {
		symbol = flatNames[((pc%12)+12)%12]
	}
	lower := unicode.IsLower(rune(roman[0]))
	switch {
	case strings.HasPrefix(suffix, "°"), strings.HasPrefix(suffix, "o"):
		symbol += "dim" + strings.TrimLeft(suffix, "°o")
	case strings.HasPrefix(suffix, "ø"):
		symbol += "m7b5"
	case lower && !strings.HasPrefix(suffix, "dim"):
		symbol += "m" + suffix
	default:
		symbol += suffix
	}
	return symbol, nil
}

func sameCase(s string) bool {
	return s == strings.ToUpper(s) || s == strings.ToLower(s)
}
