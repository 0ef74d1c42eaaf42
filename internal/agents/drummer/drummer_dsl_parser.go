package drummer

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/Conceptual-Machines/grammar-school-go/gs"
	"github.com/Conceptual-Machines/magda-composer/internal/llm"
)

// Hit velocities by grid character
const (
	velocityHit    = 100
	velocityAccent = 127
	velocityGhost  = 60
)

// DrumLine is one parsed pattern() or fill() call.
type DrumLine struct {
	Drum     string
	Grid     string
	Velocity int
	Fill     bool
}

// DrummerDSLParser parses drum groove DSL using Grammar School
type DrummerDSLParser struct {
	engine     *gs.Engine
	drummerDSL *DrummerDSL
	lines      []DrumLine
}

// DrummerDSL implements the DSL side-effect methods
type DrummerDSL struct {
	parser *DrummerDSLParser
}

// NewDrummerDSLParser creates a new drummer DSL parser
func NewDrummerDSLParser() (*DrummerDSLParser, error) {
	parser := &DrummerDSLParser{drummerDSL: &DrummerDSL{}}
	parser.drummerDSL.parser = parser

	engine, err := gs.NewEngine(llm.GetDrummerDSLGrammar(), parser.drummerDSL, gs.NewLarkParser())
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}
	parser.engine = engine
	return parser, nil
}

// ParseDSL parses DSL code into drum lines. Statements may be separated by
// semicolons or newlines; each is executed on its own.
func (p *DrummerDSLParser) ParseDSL(dslCode string) ([]DrumLine, error) {
	if strings.TrimSpace(dslCode) == "" {
		return nil, fmt.Errorf("empty DSL code")
	}

	p.lines = nil
	ctx := context.Background()
	for _, stmt := range splitStatements(dslCode) {
		if err := p.engine.Execute(ctx, stmt); err != nil {
			return nil, fmt.Errorf("failed to execute DSL %q: %w", stmt, err)
		}
	}

	if len(p.lines) == 0 {
		return nil, fmt.Errorf("no drum lines found in DSL code")
	}

	log.Printf("✅ Drummer DSL Parser: %d lines", len(p.lines))
	return p.lines, nil
}

func splitStatements(code string) []string {
	var stmts []string
	for _, line := range strings.Split(code, "\n") {
		for _, stmt := range strings.Split(line, ";") {
			if stmt = strings.TrimSpace(stmt); stmt != "" {
				stmts = append(stmts, stmt)
			}
		}
	}
	return stmts
}

// Pattern handles pattern() calls: a grid repeated every bar
func (d *DrummerDSL) Pattern(args gs.Args) error {
	return d.add(args, false)
}

// Fill handles fill() calls: a grid for the last bar of a section
func (d *DrummerDSL) Fill(args gs.Args) error {
	return d.add(args, true)
}

func (d *DrummerDSL) add(args gs.Args, fill bool) error {
	call := "pattern"
	if fill {
		call = "fill"
	}

	drumName := ""
	if v, ok := args["drum"]; ok && v.Kind == gs.ValueString {
		drumName = v.Str
	}
	if _, ok := drumNotes[drumName]; !ok {
		return fmt.Errorf("%s: unknown drum %q", call, drumName)
	}

	grid := ""
	if v, ok := args["grid"]; ok && v.Kind == gs.ValueString {
		grid = strings.Trim(v.Str, "\"")
	}
	if grid == "" {
		return fmt.Errorf("%s: missing grid", call)
	}

	velocity := velocityHit
	if v, ok := args["velocity"]; ok && v.Kind == gs.ValueNumber {
		velocity = int(v.Num)
	}

	d.parser.lines = append(d.parser.lines, DrumLine{Drum: drumName, Grid: grid, Velocity: velocity, Fill: fill})
	return nil
}

// countHits counts the number of hits in a grid string
func countHits(grid string) int {
	count := 0
	for _, c := range grid {
		if c == 'x' || c == 'X' || c == 'o' {
			count++
		}
	}
	return count
}
