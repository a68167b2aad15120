package store

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rcliao/memex/internal/model"
)

// compiledFilter is the prepared SQL fragment and bound parameter list a
// QueryFilter compiles down to. No filter field is ever interpolated as
// text; every value binds. The only dynamic shape is the number of
// metadata predicates and whether the FTS join is present, both expanded
// structurally rather than textually.
type compiledFilter struct {
	joinFTS bool
	where   string
	args    []any
	orderBy string
}

func compileFilter(f model.QueryFilter) compiledFilter {
	var clauses []string
	var args []any

	joinFTS := len(f.Keywords) > 0
	if joinFTS {
		clauses = append(clauses, "memories_fts MATCH ?")
		args = append(args, strings.Join(f.Keywords, " "))
	}

	if f.UserID != "" {
		clauses = append(clauses, "m.user_id = ?")
		args = append(args, f.UserID)
	}
	if f.SessionID != "" {
		clauses = append(clauses, "m.session_id = ?")
		args = append(args, f.SessionID)
	}
	if f.DateFrom != nil {
		clauses = append(clauses, "m.created_at >= ?")
		args = append(args, f.DateFrom.UTC().Format(timeLayout))
	}
	if f.DateTo != nil {
		clauses = append(clauses, "m.created_at < ?")
		args = append(args, f.DateTo.UTC().Format(timeLayout))
	}
	if f.MinImportance != nil {
		clauses = append(clauses, "m.importance >= ?")
		args = append(args, *f.MinImportance)
	}

	// Metadata predicates expand structurally: one json_extract clause per
	// key, sorted so repeated calls with the same filter compile to the
	// same SQL text (and therefore reuse the same prepared statement).
	if len(f.Metadata) > 0 {
		keys := make([]string, 0, len(f.Metadata))
		for k := range f.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			clauses = append(clauses, fmt.Sprintf("json_extract(m.metadata_json, '$.%s') = ?", jsonPathKey(k)))
			args = append(args, metadataBindValue(f.Metadata[k]))
		}
	}

	where := "1 = 1"
	if len(clauses) > 0 {
		where = strings.Join(clauses, " AND ")
	}

	orderBy := "m.created_at DESC, m.importance DESC, m.id DESC"
	if joinFTS {
		orderBy = "bm25(memories_fts), m.importance DESC, m.created_at DESC, m.id DESC"
	}

	return compiledFilter{joinFTS: joinFTS, where: where, args: args, orderBy: orderBy}
}

// timeLayout uses a fixed-width fractional-second field so every timestamp
// serializes to the same length: "2006-01-02T15:04:05.999999999Z07:00"
// would trim trailing zeros, making a whole-second timestamp sort after a
// fractional one in the same second under the string comparisons used for
// created_at ordering and expires_at range checks.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// jsonPathKey rejects characters that would let a key escape the
// json_extract path expression. Unknown or malformed keys simply never
// match any row rather than erroring.
func jsonPathKey(k string) string {
	var b strings.Builder
	for _, r := range k {
		if r == '\'' || r == '"' || r == '$' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// metadataBindValue coerces a decoded JSON value to the scalar type
// json_extract would produce, so equality comparisons bind correctly.
func metadataBindValue(v any) any {
	switch t := v.(type) {
	case float64, string, bool, nil:
		return t
	default:
		return fmt.Sprintf("%v", t)
	}
}
