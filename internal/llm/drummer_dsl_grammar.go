package llm

// GetDrummerDSLGrammar returns the Lark grammar for the drum groove DSL.
// Each grid character is one 16th note:
//
//	"x" = hit (velocity 100), "X" = accent (velocity 127), "o" = ghost (velocity 60), "-" = rest
//
// pattern() lines repeat every bar; fill() lines replace the last bar of a section.
func GetDrummerDSLGrammar() string {
	return `
// Drum groove DSL
// SYNTAX:
//   pattern(drum=kick, grid="x---x---x---x---")
//   pattern(drum=snare, grid="----x-------x---", velocity=100)
//   fill(drum=tom_high, grid="--------xxxxXXXX")

// ---------- Start rule ----------
start: statement (";" statement)*

statement: pattern_call | fill_call

pattern_call: "pattern" "(" named_params ")"
fill_call: "fill" "(" named_params ")"

named_params: named_param ("," SP named_param)*
named_param: "drum" "=" DRUM_NAME
           | "grid" "=" STRING
           | "velocity" "=" NUMBER

// ---------- Drum names ----------
DRUM_NAME: "kick" | "snare" | "snare_rim"
         | "hat" | "hat_open" | "hat_pedal"
         | "tom_high" | "tom_mid" | "tom_low"
         | "crash" | "ride" | "clap" | "shaker"

// ---------- Terminals ----------
SP: " "+
STRING: /"[-xXo]*"/
NUMBER: /\d+/
`
}
