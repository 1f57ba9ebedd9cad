package cli

import (
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

// SyntaxHighlighter renders SQL with ANSI colors before execution.
type SyntaxHighlighter struct {
	lexer     chroma.Lexer
	formatter chroma.Formatter
	style     *chroma.Style
}

// NewSyntaxHighlighter creates a highlighter using the PostgreSQL lexer.
func NewSyntaxHighlighter() *SyntaxHighlighter {
	lexer := lexers.Get("postgres")
	if lexer == nil {
		lexer = lexers.Get("sql")
	}

	formatter := formatters.Get("terminal256")
	if formatter == nil {
		formatter = formatters.Fallback
	}

	style := styles.Get("monokai")
	if style == nil {
		style = styles.Fallback
	}

	return &SyntaxHighlighter{
		lexer:     lexer,
		formatter: formatter,
		style:     style,
	}
}

// HighlightSQL applies syntax highlighting, falling back to the raw text on
// any tokenization or formatting error.
func (sh *SyntaxHighlighter) HighlightSQL(sql string) string {
	if sh.lexer == nil {
		return sql
	}

	iterator, err := sh.lexer.Tokenise(nil, sql)
	if err != nil {
		return sql
	}

	var buf strings.Builder
	if err := sh.formatter.Format(&buf, sh.style, iterator); err != nil {
		return sql
	}
	return buf.String()
}
