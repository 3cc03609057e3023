package store

import (
	"fmt"
	"strings"

	"github.com/standardbeagle/semcode/internal/types"
)

// whereClause builds a SQL WHERE fragment (without the leading "WHERE")
// and its positional args for the filter fields both backends honor:
// scope, project_name, category, context_level, tags (all-of),
// min_importance.
func whereClause(filter *types.MetadataFilter) (string, []any) {
	if filter == nil {
		return "1=1", nil
	}

	var clauses []string
	var args []any

	if filter.Scope != "" {
		clauses = append(clauses, "scope = ?")
		args = append(args, string(filter.Scope))
	}
	if filter.ProjectName != "" {
		clauses = append(clauses, "project_name = ?")
		args = append(args, filter.ProjectName)
	}
	if filter.Category != "" {
		clauses = append(clauses, "category = ?")
		args = append(args, string(filter.Category))
	}
	if filter.ContextLevel != "" {
		clauses = append(clauses, "context_level = ?")
		args = append(args, string(filter.ContextLevel))
	}
	if filter.MinImportance > 0 {
		clauses = append(clauses, "importance >= ?")
		args = append(args, filter.MinImportance)
	}
	for _, tag := range filter.Tags {
		clauses = append(clauses, "tags_json LIKE ?")
		args = append(args, "%"+jsonQuoted(tag)+"%")
	}

	if len(clauses) == 0 {
		return "1=1", nil
	}
	return strings.Join(clauses, " AND "), args
}

func jsonQuoted(s string) string {
	return fmt.Sprintf("%q", s)
}
