package introspect

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/chameleon-db/bulkdml/pkg/engine"
)

// ToSchema maps every table to an entity.
func ToSchema(tables []TableInfo) *engine.Schema {
	schema := engine.NewSchema()
	for _, table := range tables {
		schema.Add(ToEntity(table))
	}
	return schema
}

// ToEntity maps a table to an entity named after the singular of the
// table, with one property per column.
func ToEntity(table TableInfo) *engine.Entity {
	entity := &engine.Entity{
		Name:  toEntityName(table.Name),
		Table: table.Name,
	}
	for _, col := range table.Columns {
		entity.AddField(&engine.Field{
			Name:       toPascalCase(col.Name),
			Column:     col.Name,
			Type:       fieldTypeFor(col.Type),
			Nullable:   col.Nullable,
			PrimaryKey: col.PrimaryKey,
		})
	}
	return entity
}

// toEntityName singularizes the last word of a snake_case table name and
// converts the result to PascalCase.
func toEntityName(tableName string) string {
	name := strings.ToLower(tableName)
	head, last := "", name
	if i := strings.LastIndexByte(name, '_'); i >= 0 {
		head, last = name[:i+1], name[i+1:]
	}
	return toPascalCase(head + engine.SingularizeName(last))
}

// toPascalCase upper-cases the first letter of every word and drops the
// separators. The rest of each word is kept as is (userID becomes UserID).
func toPascalCase(s string) string {
	title := cases.Title(language.Und, cases.NoLower)
	words := strings.FieldsFunc(s, func(r rune) bool {
		return r == '_' || r == '-' || r == ' '
	})
	for i, word := range words {
		words[i] = title.String(word)
	}
	return strings.Join(words, "")
}

// fieldTypeFor maps a database column type to a field type. Unknown types
// map to String.
func fieldTypeFor(dbType string) engine.FieldType {
	t := strings.ToLower(strings.TrimSpace(dbType))
	if i := strings.IndexByte(t, '('); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}

	switch {
	case t == "uuid":
		return engine.FieldTypeUUID
	case t == "bool" || t == "boolean":
		return engine.FieldTypeBool
	case strings.HasSuffix(t, "serial"),
		t == "int", t == "integer", t == "smallint", t == "bigint", t == "tinyint", t == "mediumint",
		t == "int2", t == "int4", t == "int8":
		return engine.FieldTypeInt
	case t == "numeric" || t == "decimal" || t == "money":
		return engine.FieldTypeDecimal
	case t == "real" || t == "float" || t == "double" || t == "double precision" || t == "float4" || t == "float8":
		return engine.FieldTypeFloat
	case strings.HasPrefix(t, "timestamp") || t == "date" || t == "datetime":
		return engine.FieldTypeTimestamp
	default:
		return engine.FieldTypeString
	}
}
