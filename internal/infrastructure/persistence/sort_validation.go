package persistence

import (
	"strings"
)

// ValidateSortOrder normalizes orderDir to ASC or DESC, falling back to
// defaultDir for anything else
func ValidateSortOrder(orderDir, defaultDir string) string {
	switch strings.ToUpper(strings.TrimSpace(orderDir)) {
	case "ASC":
		return "ASC"
	case "DESC":
		return "DESC"
	}
	return defaultDir
}

// ValidateSortField returns sortField if it is whitelisted, defaultField
// otherwise. Column names are never taken from input unchecked.
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}

// orderClause builds a safe ORDER BY expression
func orderClause(field, dir string, allowed map[string]bool, defaultField, defaultDir string) string {
	return ValidateSortField(field, allowed, defaultField) + " " + ValidateSortOrder(dir, defaultDir)
}
