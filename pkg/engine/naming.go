package engine

import (
	"strings"
	"unicode"

	"github.com/jinzhu/inflection"
)

// Irregular plurals inflection does not know about, or gets wrong for
// table names.
var irregularPlurals = map[string]string{
	"datum":      "data",
	"medium":     "media",
	"index":      "indices",
	"matrix":     "matrices",
	"vertex":     "vertices",
	"criterion":  "criteria",
	"phenomenon": "phenomena",
	"radius":     "radii",
	"formula":    "formulae",
	"focus":      "foci",
	"nucleus":    "nuclei",
	"syllabus":   "syllabi",
	"curriculum": "curricula",
	"hero":       "heroes",
	"potato":     "potatoes",
	"tomato":     "tomatoes",
	"echo":       "echoes",
	"status":     "statuses",
	"alias":      "aliases",
	"bus":        "buses",
}

func init() {
	for singular, plural := range irregularPlurals {
		inflection.AddIrregular(singular, plural)
	}
}

// TableName converts an entity name to its default table name
//
// Examples:
//
//	Car → cars
//	OrderItem → order_items
//	Person → people
func TableName(entity string) string {
	snake := ToSnakeCase(entity)
	if snake == "" {
		return ""
	}
	head, last := "", snake
	if i := strings.LastIndexByte(snake, '_'); i >= 0 {
		head, last = snake[:i+1], snake[i+1:]
	}
	return head + inflection.Plural(last)
}

// SingularizeName converts a plural entity or table name to singular.
func SingularizeName(name string) string {
	if name == "" {
		return name
	}
	return inflection.Singular(name)
}

// ToSnakeCase converts PascalCase or camelCase to snake_case, keeping
// acronyms together (UserID → user_id, HTTPServer → http_server).
func ToSnakeCase(s string) string {
	runes := []rune(s)
	var b strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
					b.WriteByte('_')
				}
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
