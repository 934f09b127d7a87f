package markup

import (
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"

	"github.com/alnah/go-taskexport/internal/layout"
)

const tabWidth = 4

// highlight splits code into colored lines. lang may be empty; the lexer is
// then guessed from the content.
func (c *Converter) highlight(code, lang string) [][]layout.Span {
	code = strings.ReplaceAll(strings.TrimRight(code, "\n"), "\t", strings.Repeat(" ", tabWidth))

	var lexer chroma.Lexer
	if lang != "" {
		lexer = lexers.Get(lang)
	}
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		return plainLines(code)
	}

	it, err := chroma.Coalesce(lexer).Tokenise(nil, code)
	if err != nil {
		return plainLines(code)
	}

	var out [][]layout.Span
	for _, line := range chroma.SplitTokensIntoLines(it.Tokens()) {
		var spans []layout.Span
		for _, tok := range line {
			text := strings.TrimRight(tok.Value, "\n")
			if text == "" {
				continue
			}
			entry := c.style.Get(tok.Type)
			s := layout.Span{Text: text, Mono: true, Bold: entry.Bold == chroma.Yes}
			if entry.Colour.IsSet() {
				s.Color = &layout.RGB{R: entry.Colour.Red(), G: entry.Colour.Green(), B: entry.Colour.Blue()}
			}
			spans = append(spans, s)
		}
		out = append(out, spans)
	}
	return out
}

func plainLines(code string) [][]layout.Span {
	lines := strings.Split(code, "\n")
	out := make([][]layout.Span, len(lines))
	for i, l := range lines {
		if l != "" {
			out[i] = []layout.Span{{Text: l, Mono: true}}
		}
	}
	return out
}
