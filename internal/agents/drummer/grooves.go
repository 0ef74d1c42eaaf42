package drummer

// General MIDI percussion keys (channel 10)
var drumNotes = map[string]int{
	"kick":      36,
	"snare_rim": 37,
	"snare":     38,
	"clap":      39,
	"hat":       42,
	"hat_pedal": 44,
	"hat_open":  46,
	"tom_low":   45,
	"tom_mid":   47,
	"tom_high":  50,
	"crash":     49,
	"ride":      51,
	"shaker":    70,
}

var genreGrooves = map[string]string{
	"rock": `pattern(drum=kick, grid="x-------x-x-----")
pattern(drum=snare, grid="----x-------x---")
pattern(drum=hat, grid="x-x-x-x-x-x-x-x-")`,

	"pop": `pattern(drum=kick, grid="x-----x-x-------")
pattern(drum=snare, grid="----x-------x---")
pattern(drum=hat, grid="x-x-x-x-x-x-x-x-")`,

	"jazz": `pattern(drum=ride, grid="x---x--xx---x--x")
pattern(drum=hat_pedal, grid="----x-------x---")
pattern(drum=kick, grid="o-------o-------", velocity=70)`,

	"blues": `pattern(drum=kick, grid="x-----x-x-----x-")
pattern(drum=snare, grid="----x-------x---")
pattern(drum=hat, grid="x--xx--xx--xx--x")`,

	"electronic": `pattern(drum=kick, grid="x---x---x---x---")
pattern(drum=clap, grid="----x-------x---")
pattern(drum=hat, grid="--x---x---x---x-")`,

	"hip-hop": `pattern(drum=kick, grid="x--x------x-x---")
pattern(drum=snare, grid="----x-------x---")
pattern(drum=hat, grid="x-x-x-x-x-x-x-x-")`,

	"metal": `pattern(drum=kick, grid="xxxxxxxxxxxxxxxx")
pattern(drum=snare, grid="----X-------X---")
pattern(drum=crash, grid="x-------x-------")`,

	"punk": `pattern(drum=kick, grid="x---x---x---x---")
pattern(drum=snare, grid="--x---x---x---x-")
pattern(drum=hat, grid="x-x-x-x-x-x-x-x-")`,

	"country": `pattern(drum=kick, grid="x-------x-------")
pattern(drum=snare_rim, grid="----x-------x---")
pattern(drum=hat, grid="x-x-x-x-x-x-x-x-")`,

	"folk": `pattern(drum=kick, grid="x-------x-------")
pattern(drum=shaker, grid="x-x-x-x-x-x-x-x-", velocity=70)`,

	"r&b": `pattern(drum=kick, grid="x------x--x-----")
pattern(drum=snare, grid="----x-------x---")
pattern(drum=hat, grid="x-xxx-x-x-xxx-x-", velocity=80)`,
}

const defaultFill = `fill(drum=snare, grid="--------x-x-xxXX")
fill(drum=tom_high, grid="--------x-------")
fill(drum=tom_low, grid="------------x---")`

// GrooveDSL returns the built-in groove for a genre, rock when unknown,
// followed by the default section fill.
func GrooveDSL(genre string) string {
	groove, ok := genreGrooves[genre]
	if !ok {
		groove = genreGrooves["rock"]
	}
	return groove + "\n" + defaultFill
}
