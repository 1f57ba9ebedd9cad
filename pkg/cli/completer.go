package cli

import (
	"context"
	"strings"
	"time"

	"github.com/c-bata/go-prompt"
)

// sqlKeywords is the static keyword table used for default completion.
var sqlKeywords = []string{
	"SELECT", "FROM", "WHERE", "INSERT", "UPDATE", "DELETE", "CREATE", "DROP", "ALTER",
	"TABLE", "DATABASE", "INDEX", "VIEW", "TRIGGER", "FUNCTION", "PROCEDURE", "SCHEMA",
	"GRANT", "REVOKE", "COMMIT", "ROLLBACK", "BEGIN", "END", "TRANSACTION",
	"JOIN", "LEFT", "RIGHT", "INNER", "OUTER", "ON", "GROUP", "BY", "ORDER",
	"HAVING", "UNION", "INTERSECT", "EXCEPT", "DISTINCT", "ALL", "AS", "IN",
	"EXISTS", "BETWEEN", "LIKE", "ILIKE", "IS", "NULL", "NOT", "AND", "OR",
	"COUNT", "SUM", "AVG", "MIN", "MAX", "LIMIT", "OFFSET", "CASE", "WHEN",
	"THEN", "ELSE", "CAST", "COALESCE", "NULLIF", "CURRENT_DATE", "CURRENT_TIME",
	"CURRENT_TIMESTAMP", "NOW", "EXTRACT", "DATE_PART", "TO_CHAR", "TO_DATE",
	"INTO", "VALUES", "SET", "PRIMARY", "KEY", "FOREIGN", "REFERENCES",
	"CONSTRAINT", "UNIQUE", "CHECK", "DEFAULT", "CASCADE", "RESTRICT",
}

// metaCommands is the static meta-command table.
var metaCommands = []string{
	`\connect`, `\c`, `\list`, `\l`, `\dt`, `\d`, `\timing`,
	`\begin`, `\commit`, `\rollback`, `\savepoint`, `\release`,
	`\i`, `\help`, `\h`, `\quit`, `\q`, `\mode`,
}

// systemFunctions lists built-in PostgreSQL functions offered alongside
// user-defined ones.
var systemFunctions = []string{
	"pg_database_size", "pg_relation_size", "pg_total_relation_size",
	"pg_size_pretty", "current_database", "current_schema", "current_schemas",
	"current_user", "session_user", "version", "pg_backend_pid",
	"pg_is_in_recovery", "pg_last_wal_receive_lsn", "pg_last_wal_replay_lsn",
	"pg_last_xact_replay_timestamp", "age", "clock_timestamp", "timeofday",
	"array_agg", "string_agg", "json_agg", "jsonb_agg", "row_number",
	"rank", "dense_rank", "percent_rank", "cume_dist", "ntile",
	"lag", "lead", "first_value", "last_value", "nth_value",
}

// defaultSchema is the schema whose tables are offered unqualified.
const defaultSchema = "public"

func hasPrefixFold(s, prefix string) bool {
	return strings.HasPrefix(strings.ToLower(s), strings.ToLower(prefix))
}

// suggestionSet accumulates candidates while suppressing duplicates that
// differ only by case.
type suggestionSet struct {
	seen map[string]bool
	out  []prompt.Suggest
}

func newSuggestionSet() *suggestionSet {
	return &suggestionSet{seen: make(map[string]bool)}
}

func (s *suggestionSet) add(text, description string) {
	key := strings.ToLower(text)
	if s.seen[key] {
		return
	}
	s.seen[key] = true
	s.out = append(s.out, prompt.Suggest{Text: text, Description: description})
}

// Complete resolves a classified context against a metadata snapshot and
// the static tables, producing the candidate list for the current word.
// It has no side effects; the snapshot is read-only.
func Complete(word, textBeforeCursor string, ctx CompletionContext, snap *MetadataSnapshot) []prompt.Suggest {
	set := newSuggestionSet()

	switch ctx.Kind {
	case ContextMetaCommand:
		for _, cmd := range metaCommands {
			if hasPrefixFold(cmd, word) {
				set.add(cmd, "meta-command")
			}
		}

	case ContextTableRef:
		completeTables(word, ctx, snap, set)

	case ContextColumnRef:
		completeColumns(word, textBeforeCursor, ctx, snap, set)

	case ContextInsertColumns, ContextUpdateSet:
		for _, col := range snap.Columns(ctx.Table) {
			if hasPrefixFold(col, word) {
				set.add(col, "column from "+ctx.Table)
			}
		}

	case ContextFunctionCall:
		completeFunctions(ctx.FuncPrefix, snap, set)

	default:
		for _, kw := range sqlKeywords {
			if hasPrefixFold(kw, word) {
				set.add(kw, "keyword")
			}
		}
		for _, fn := range systemFunctions {
			if hasPrefixFold(fn, word) {
				set.add(fn+"(", "function")
			}
		}
	}

	return set.out
}

func completeTables(word string, ctx CompletionContext, snap *MetadataSnapshot, set *suggestionSet) {
	if ctx.SchemaPrefix != "" {
		prefix := word[strings.LastIndex(word, ".")+1:]
		for _, table := range snap.TablesBySchema[ctx.SchemaPrefix] {
			if hasPrefixFold(table, prefix) {
				set.add(ctx.SchemaPrefix+"."+table, "table")
			}
		}
		return
	}

	for schema, tables := range snap.TablesBySchema {
		for _, table := range tables {
			if !hasPrefixFold(table, word) {
				continue
			}
			// Tables in the default schema are reachable unqualified.
			if schema == defaultSchema {
				set.add(table, "table")
			}
			set.add(schema+"."+table, "table")
		}
	}
}

func completeColumns(word, textBeforeCursor string, ctx CompletionContext, snap *MetadataSnapshot, set *suggestionSet) {
	if idx := strings.LastIndex(word, "."); idx >= 0 {
		qualifier := word[:idx]
		prefix := word[idx+1:]

		table := FindTableForAlias(textBeforeCursor, qualifier)
		if table == "" {
			table = qualifier
		}
		for _, col := range snap.Columns(table) {
			if hasPrefixFold(col, prefix) {
				set.add(qualifier+"."+col, "column from "+table)
			}
		}
		return
	}

	for _, table := range ctx.Tables {
		for _, col := range snap.Columns(table) {
			if hasPrefixFold(col, word) {
				set.add(col, "column from "+table)
			}
		}
	}
}

func completeFunctions(prefix string, snap *MetadataSnapshot, set *suggestionSet) {
	for _, fn := range systemFunctions {
		if hasPrefixFold(fn, prefix) {
			set.add(fn+"(", "function")
		}
	}
	for _, fns := range snap.FunctionsBySchema {
		for _, fn := range fns {
			if hasPrefixFold(fn, prefix) {
				set.add(fn+"(", "function")
			}
		}
	}
}

// StaticComplete serves disconnected sessions: keywords and meta-commands
// only, no metadata lookups.
func StaticComplete(word string) []prompt.Suggest {
	set := newSuggestionSet()
	if strings.HasPrefix(word, `\`) {
		for _, cmd := range metaCommands {
			if hasPrefixFold(cmd, word) {
				set.add(cmd, "meta-command")
			}
		}
		return set.out
	}
	for _, kw := range sqlKeywords {
		if hasPrefixFold(kw, word) {
			set.add(kw, "keyword")
		}
	}
	return set.out
}

// CompleterFor returns the go-prompt completer callback matching the
// session's current state: a static strategy while disconnected, the
// metadata-aware strategy once connected.
func CompleterFor(s *Session, ttl time.Duration) prompt.Completer {
	return func(d prompt.Document) []prompt.Suggest {
		word := d.GetWordBeforeCursor()
		text := d.TextBeforeCursor()
		if strings.TrimSpace(text) == "" {
			return nil
		}
		if !s.Connected() {
			return StaticComplete(word)
		}

		s.Cache().RefreshIfStale(context.Background(), ttl)
		snap := s.Cache().Snapshot()
		ctx := ClassifyContext(text, word)
		if word == "" && ctx.Kind == ContextDefaultKeyword {
			return nil
		}
		return Complete(word, text, ctx, snap)
	}
}
