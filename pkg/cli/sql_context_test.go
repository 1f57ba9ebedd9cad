package cli

import (
	"testing"
)

func TestClassifyContext_Empty(t *testing.T) {
	ctx := ClassifyContext("", "")
	if ctx.Kind != ContextDefaultKeyword {
		t.Errorf("Expected ContextDefaultKeyword for empty input, got %v", ctx.Kind)
	}
}

func TestClassifyContext_MetaCommand(t *testing.T) {
	ctx := ClassifyContext(`\con`, `\con`)
	if ctx.Kind != ContextMetaCommand {
		t.Errorf("Expected ContextMetaCommand for backslash word, got %v", ctx.Kind)
	}
}

func TestClassifyContext_FromClause(t *testing.T) {
	ctx := ClassifyContext("SELECT * FROM u", "u")
	if ctx.Kind != ContextTableRef {
		t.Errorf("Expected ContextTableRef after FROM, got %v", ctx.Kind)
	}
	if ctx.SchemaPrefix != "" {
		t.Errorf("Expected no schema prefix, got %q", ctx.SchemaPrefix)
	}
}

func TestClassifyContext_SchemaQualifiedTable(t *testing.T) {
	ctx := ClassifyContext("SELECT * FROM analytics.ev", "analytics.ev")
	if ctx.Kind != ContextTableRef {
		t.Errorf("Expected ContextTableRef, got %v", ctx.Kind)
	}
	if ctx.SchemaPrefix != "analytics" {
		t.Errorf("Expected schema prefix 'analytics', got %q", ctx.SchemaPrefix)
	}
}

func TestClassifyContext_JoinClause(t *testing.T) {
	ctx := ClassifyContext("SELECT * FROM users JOIN ord", "ord")
	if ctx.Kind != ContextTableRef {
		t.Errorf("Expected ContextTableRef after JOIN, got %v", ctx.Kind)
	}
}

func TestClassifyContext_DeleteFrom(t *testing.T) {
	ctx := ClassifyContext("DELETE FROM ", "")
	if ctx.Kind != ContextTableRef {
		t.Errorf("Expected ContextTableRef after DELETE FROM, got %v", ctx.Kind)
	}
}

func TestClassifyContext_InsertColumns(t *testing.T) {
	ctx := ClassifyContext("INSERT INTO users (na", "na")
	if ctx.Kind != ContextInsertColumns {
		t.Errorf("Expected ContextInsertColumns, got %v", ctx.Kind)
	}
	if ctx.Table != "users" {
		t.Errorf("Expected target table 'users', got %q", ctx.Table)
	}
}

func TestClassifyContext_UpdateSet(t *testing.T) {
	ctx := ClassifyContext("UPDATE users SET na", "na")
	if ctx.Kind != ContextUpdateSet {
		t.Errorf("Expected ContextUpdateSet, got %v", ctx.Kind)
	}
	if ctx.Table != "users" {
		t.Errorf("Expected target table 'users', got %q", ctx.Table)
	}
}

func TestClassifyContext_UpdateTargetBeforeSet(t *testing.T) {
	// UPDATE without SET yet is still table position.
	ctx := ClassifyContext("UPDATE us", "us")
	if ctx.Kind != ContextTableRef {
		t.Errorf("Expected ContextTableRef for UPDATE target, got %v", ctx.Kind)
	}
}

func TestClassifyContext_SelectList(t *testing.T) {
	ctx := ClassifyContext("SELECT na", "na")
	if ctx.Kind != ContextColumnRef {
		t.Errorf("Expected ContextColumnRef in SELECT list, got %v", ctx.Kind)
	}
}

func TestClassifyContext_WhereClause(t *testing.T) {
	ctx := ClassifyContext("SELECT * FROM users WHERE na", "na")
	if ctx.Kind != ContextColumnRef {
		t.Errorf("Expected ContextColumnRef after WHERE, got %v", ctx.Kind)
	}
	if len(ctx.Tables) != 1 || ctx.Tables[0] != "users" {
		t.Errorf("Expected referenced tables [users], got %v", ctx.Tables)
	}
}

func TestClassifyContext_FunctionCall(t *testing.T) {
	ctx := ClassifyContext("SELECT count(", "count(")
	if ctx.Kind != ContextFunctionCall {
		t.Errorf("Expected ContextFunctionCall, got %v", ctx.Kind)
	}
	if ctx.FuncPrefix != "count" {
		t.Errorf("Expected function prefix 'count', got %q", ctx.FuncPrefix)
	}
}

func TestClassifyContext_KeywordFallback(t *testing.T) {
	ctx := ClassifyContext("SEL", "SEL")
	if ctx.Kind != ContextDefaultKeyword {
		t.Errorf("Expected ContextDefaultKeyword fallback, got %v", ctx.Kind)
	}
}

func TestExtractTableNames(t *testing.T) {
	tables := ExtractTableNames("SELECT * FROM users u JOIN public.orders o ON u.id = o.user_id")
	if len(tables) != 2 {
		t.Fatalf("Expected 2 tables, got %v", tables)
	}
	if tables[0] != "users" || tables[1] != "orders" {
		t.Errorf("Expected [users orders], got %v", tables)
	}
}

func TestExtractTableNames_Dedupe(t *testing.T) {
	tables := ExtractTableNames("SELECT * FROM users WHERE id IN (SELECT user_id FROM Users)")
	if len(tables) != 1 {
		t.Errorf("Expected case-insensitive dedupe to a single table, got %v", tables)
	}
}

func TestFindTableForAlias(t *testing.T) {
	table := FindTableForAlias("SELECT * FROM users u WHERE u.na", "u")
	if table != "users" {
		t.Errorf("Expected alias u to resolve to 'users', got %q", table)
	}
}

func TestFindTableForAlias_AsKeyword(t *testing.T) {
	table := FindTableForAlias("SELECT * FROM orders AS o WHERE o.", "o")
	if table != "orders" {
		t.Errorf("Expected alias o to resolve to 'orders', got %q", table)
	}
}

func TestFindTableForAlias_RepeatedLookups(t *testing.T) {
	// Successive keystrokes resolve the same alias over and over; the
	// memoized pattern must keep resolving, case-insensitively.
	for i := 0; i < 3; i++ {
		if table := FindTableForAlias("SELECT * FROM users u WHERE u.na", "u"); table != "users" {
			t.Fatalf("Lookup %d: expected 'users', got %q", i, table)
		}
	}
	if table := FindTableForAlias("SELECT * FROM users U WHERE U.na", "U"); table != "users" {
		t.Errorf("Expected upper-case alias to resolve to 'users', got %q", table)
	}
}

func TestFindTableForAlias_Unbound(t *testing.T) {
	table := FindTableForAlias("x.", "x")
	if table != "" {
		t.Errorf("Expected unbound alias to resolve to empty, got %q", table)
	}
}
