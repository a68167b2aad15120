package store

import (
	"strings"
	"testing"

	"github.com/rcliao/memex/internal/model"
)

func TestCompileFilterNoInterpolation(t *testing.T) {
	evil := "ignore' OR '1'='1"
	cf := compileFilter(model.QueryFilter{UserID: evil})

	if strings.Contains(cf.where, evil) {
		t.Fatal("expected the user_id value to be bound, not interpolated into the WHERE clause")
	}
	if len(cf.args) != 1 || cf.args[0] != evil {
		t.Fatalf("expected the value to appear only in args, got %v", cf.args)
	}
}

func TestCompileFilterDeterministicMetadataOrder(t *testing.T) {
	f := model.QueryFilter{Metadata: map[string]any{"z": 1, "a": 2, "m": 3}}
	a := compileFilter(f)
	b := compileFilter(f)

	if a.where != b.where {
		t.Fatalf("expected identical SQL text across calls with the same filter, got %q vs %q", a.where, b.where)
	}
}

func TestCompileFilterJSONPathKeyRejectsEscapes(t *testing.T) {
	key := jsonPathKey("a'); DROP TABLE memories; --")
	if strings.ContainsAny(key, "'\"$") {
		t.Fatalf("expected dangerous characters to be stripped, got %q", key)
	}
}

func TestCompileFilterKeywordsJoinFTS(t *testing.T) {
	cf := compileFilter(model.QueryFilter{Keywords: []string{"api", "design"}})
	if !cf.joinFTS {
		t.Fatal("expected the FTS join to be enabled when keywords are present")
	}
	if !strings.Contains(cf.orderBy, "bm25") {
		t.Errorf("expected bm25 rank as the primary sort key, got %q", cf.orderBy)
	}
}

func TestCompileFilterNoKeywordsSkipsFTS(t *testing.T) {
	cf := compileFilter(model.QueryFilter{UserID: "alice"})
	if cf.joinFTS {
		t.Fatal("expected no FTS join without keywords")
	}
	if strings.Contains(cf.orderBy, "bm25") {
		t.Error("expected created_at/importance ordering without keywords")
	}
}
