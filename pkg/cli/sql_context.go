package cli

import (
	"regexp"
	"strings"
	"sync"
)

// ContextKind identifies the syntactic role of the cursor position.
type ContextKind int

const (
	ContextDefaultKeyword ContextKind = iota
	ContextMetaCommand                // current word starts with backslash
	ContextTableRef                   // after FROM, JOIN, INTO, UPDATE, DELETE FROM
	ContextInsertColumns              // inside INSERT INTO t ( ...
	ContextUpdateSet                  // inside UPDATE t SET ...
	ContextColumnRef                  // SELECT list, WHERE/AND/OR/ON condition
	ContextFunctionCall               // current word contains an open parenthesis
)

// CompletionContext is the classified role plus its auxiliary bindings.
type CompletionContext struct {
	Kind ContextKind

	// SchemaPrefix is the part before the last dot of the current word in
	// table position ("schema" for "schema.tab").
	SchemaPrefix string

	// Table is the target table of an INSERT column list or UPDATE SET list.
	Table string

	// FuncPrefix is the function name typed before the open parenthesis.
	FuncPrefix string

	// Tables are all tables referenced anywhere in the text, used for
	// unqualified column completion.
	Tables []string
}

// Patterns for context detection, matched against the text strictly before
// the cursor.
var (
	tableRefPattern  = regexp.MustCompile(`(?i)\b(FROM|JOIN|INTO|UPDATE|DELETE\s+FROM)\s+([\w.]*)$`)
	insertPattern    = regexp.MustCompile(`(?i)\bINSERT\s+INTO\s+(\w+)\s*\(([\w\s,]*)$`)
	updateSetPattern = regexp.MustCompile(`(?i)\bUPDATE\s+(\w+)\s+SET\s+([\w\s,=]*)$`)
	selectPattern    = regexp.MustCompile(`(?i)\bSELECT\s+[\w\s,.*]*$`)
	wherePattern     = regexp.MustCompile(`(?i)\b(WHERE|AND|OR|ON)\s+([\w.]*)$`)
	tableNamePattern = regexp.MustCompile(`(?i)\b(?:FROM|JOIN|INTO|UPDATE)\s+([\w.]+)(?:\s+(?:AS\s+)?(\w+))?`)
)

// ClassifyContext determines the completion context for the text before the
// cursor and the word currently being typed. Precedence is fixed: meta
// command, table position, insert column list, update set list, column
// position, function call, keyword fallback.
func ClassifyContext(textBeforeCursor, word string) CompletionContext {
	if strings.HasPrefix(word, `\`) {
		return CompletionContext{Kind: ContextMetaCommand}
	}

	if m := tableRefPattern.FindStringSubmatch(textBeforeCursor); m != nil {
		ctx := CompletionContext{Kind: ContextTableRef}
		if idx := strings.LastIndex(m[2], "."); idx >= 0 {
			ctx.SchemaPrefix = m[2][:idx]
		}
		return ctx
	}

	if m := insertPattern.FindStringSubmatch(textBeforeCursor); m != nil {
		return CompletionContext{Kind: ContextInsertColumns, Table: m[1]}
	}

	if m := updateSetPattern.FindStringSubmatch(textBeforeCursor); m != nil {
		return CompletionContext{Kind: ContextUpdateSet, Table: m[1]}
	}

	if selectPattern.MatchString(textBeforeCursor) || wherePattern.MatchString(textBeforeCursor) {
		return CompletionContext{
			Kind:   ContextColumnRef,
			Tables: ExtractTableNames(textBeforeCursor),
		}
	}

	if idx := strings.Index(word, "("); idx >= 0 {
		return CompletionContext{Kind: ContextFunctionCall, FuncPrefix: word[:idx]}
	}

	return CompletionContext{Kind: ContextDefaultKeyword}
}

// ExtractTableNames collects every table referenced after FROM, JOIN, INTO
// or UPDATE anywhere in the text, with schema prefixes stripped.
func ExtractTableNames(text string) []string {
	var tables []string
	seen := make(map[string]bool)
	for _, m := range tableNamePattern.FindAllStringSubmatch(text, -1) {
		name := m[1]
		if idx := strings.LastIndex(name, "."); idx >= 0 {
			name = name[idx+1:]
		}
		key := strings.ToLower(name)
		if !seen[key] {
			seen[key] = true
			tables = append(tables, name)
		}
	}
	return tables
}

// reservedWords can never be the table side of an alias binding. Without
// this guard "FROM users" would bind the qualifier "users" to the table
// "FROM".
var reservedWords = map[string]bool{
	"select": true, "from": true, "join": true, "into": true, "update": true,
	"delete": true, "where": true, "and": true, "or": true, "on": true,
	"set": true, "as": true, "left": true, "right": true, "inner": true,
	"outer": true, "cross": true, "group": true, "order": true, "by": true,
	"having": true, "limit": true, "offset": true, "union": true,
}

// aliasPatterns memoizes the compiled binding pattern per alias. The
// completion callback runs on every keystroke of a dotted word, so the
// pattern must not be recompiled each time.
var aliasPatterns sync.Map // lower-cased alias -> *regexp.Regexp

func aliasBindingPattern(alias string) *regexp.Regexp {
	key := strings.ToLower(alias)
	if p, ok := aliasPatterns.Load(key); ok {
		return p.(*regexp.Regexp)
	}
	p, err := regexp.Compile(`(?i)\b([\w.]+)\s+(?:AS\s+)?` + regexp.QuoteMeta(alias) + `\b`)
	if err != nil {
		return nil
	}
	aliasPatterns.Store(key, p)
	return p
}

// FindTableForAlias scans the text for a "<table> [AS] <alias>" binding and
// returns the table name, or "" when the alias is unbound.
func FindTableForAlias(text, alias string) string {
	pattern := aliasBindingPattern(alias)
	if pattern == nil {
		return ""
	}
	for _, m := range pattern.FindAllStringSubmatch(text, -1) {
		if !reservedWords[strings.ToLower(m[1])] {
			return m[1]
		}
	}
	return ""
}
