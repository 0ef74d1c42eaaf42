package embedded

import (
	_ "embed"
)

// Embed all prompt data files
//
//go:embed data/prompts/request_parser.txt
var RequestParserPromptTxt []byte

//go:embed data/prompts/artist_profile.txt
var ArtistProfilePromptTxt []byte

//go:embed data/prompts/drummer.txt
var DrummerPromptTxt []byte

//go:embed data/prompts/lyricist.txt
var LyricistPromptTxt []byte

// Built-in patterns served when retrieval finds nothing better
//
//go:embed data/patterns/builtin_patterns.json
var BuiltinPatternsJSON []byte
