package engine

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Schema is the mapping metadata: which entity lives in which table and
// which property lives in which column.
type Schema struct {
	Entities []*Entity `json:"entities"`
}

// Entity represents a mapped entity (table)
type Entity struct {
	Name   string            `json:"name"`
	Table  string            `json:"table"`
	Fields map[string]*Field `json:"fields"`

	// GoType is set when the entity was mapped from a struct.
	GoType reflect.Type `json:"-"`
	order  []string
}

// Field represents an entity property (column)
type Field struct {
	Name       string    `json:"name"`
	Column     string    `json:"column"`
	Type       FieldType `json:"field_type"`
	Nullable   bool      `json:"nullable"`
	PrimaryKey bool      `json:"primary_key"`

	// Index is the reflect field path inside GoType.
	Index []int `json:"-"`
}

// FieldType represents the type of a field and can be simple or complex
type FieldType struct {
	Kind  string      `json:"-"` // e.g., "UUID", "String", "Int"
	Param interface{} `json:"-"` // e.g., element type for Array
}

// Simple field type constants
var (
	FieldTypeUUID      = FieldType{Kind: "UUID"}
	FieldTypeString    = FieldType{Kind: "String"}
	FieldTypeInt       = FieldType{Kind: "Int"}
	FieldTypeDecimal   = FieldType{Kind: "Decimal"}
	FieldTypeBool      = FieldType{Kind: "Bool"}
	FieldTypeTimestamp = FieldType{Kind: "Timestamp"}
	FieldTypeFloat     = FieldType{Kind: "Float"}
)

// NewSchema returns a schema holding entities.
func NewSchema(entities ...*Entity) *Schema {
	s := &Schema{}
	s.Add(entities...)
	return s
}

// Add registers entities, replacing any with the same name.
func (s *Schema) Add(entities ...*Entity) *Schema {
	for _, e := range entities {
		if e == nil {
			continue
		}
		replaced := false
		for i, existing := range s.Entities {
			if existing.Name == e.Name {
				s.Entities[i] = e
				replaced = true
				break
			}
		}
		if !replaced {
			s.Entities = append(s.Entities, e)
		}
	}
	return s
}

// GetEntity returns an entity by name, or nil if not found
func (s *Schema) GetEntity(name string) *Entity {
	for _, entity := range s.Entities {
		if entity.Name == name {
			return entity
		}
	}
	return nil
}

// LookupEntity finds an entity by exact name, then case-insensitively by
// name, table or singular form.
func (s *Schema) LookupEntity(name string) (*Entity, error) {
	if e := s.GetEntity(name); e != nil {
		return e, nil
	}
	singular := SingularizeName(name)
	for _, e := range s.Entities {
		if strings.EqualFold(e.Name, name) ||
			strings.EqualFold(e.Table, name) ||
			strings.EqualFold(e.Name, singular) {
			return e, nil
		}
	}
	return nil, &UnknownEntityError{Entity: name, Available: s.EntityNames()}
}

// EntityNames returns the registered entity names, sorted.
func (s *Schema) EntityNames() []string {
	names := make([]string, 0, len(s.Entities))
	for _, e := range s.Entities {
		names = append(names, e.Name)
	}
	sort.Strings(names)
	return names
}

// ToJSON converts a Schema to JSON string
func (s *Schema) ToJSON() (string, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ─────────────────────────────────────────────────────────────
// Entity helpers
// ─────────────────────────────────────────────────────────────

// AddField registers a field, keeping declaration order.
func (e *Entity) AddField(f *Field) *Entity {
	if e.Fields == nil {
		e.Fields = make(map[string]*Field)
	}
	if f.Column == "" {
		f.Column = ToSnakeCase(f.Name)
	}
	if _, exists := e.Fields[f.Name]; !exists {
		e.order = append(e.order, f.Name)
	}
	e.Fields[f.Name] = f
	return e
}

// FieldNames returns property names in declaration order, or sorted when
// the entity was built without AddField.
func (e *Entity) FieldNames() []string {
	if len(e.order) == len(e.Fields) {
		return append([]string(nil), e.order...)
	}
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Column returns the column mapped to property.
func (e *Entity) Column(property string) (string, error) {
	if f, ok := e.Fields[property]; ok {
		return f.Column, nil
	}
	return "", &UnknownFieldError{Entity: e.Name, Field: property, Available: e.FieldNames()}
}

// PrimaryKey returns the key field, or nil for keyless entities.
func (e *Entity) PrimaryKey() *Field {
	for _, name := range e.FieldNames() {
		if f := e.Fields[name]; f.PrimaryKey {
			return f
		}
	}
	return nil
}

// ─────────────────────────────────────────────────────────────
// Struct mapping
// ─────────────────────────────────────────────────────────────

type tabler interface {
	TableName() string
}

// MapEntity maps struct T using `db:"column,pk"` tags. Untagged exported
// fields map to their snake_case name, `db:"-"` skips a field and a field
// named Id or ID is the key when none is tagged pk.
func MapEntity[T any]() (*Entity, error) {
	return MapEntityOf(reflect.TypeFor[T]())
}

// MustMapEntity is MapEntity that panics, for package-level mappings.
func MustMapEntity[T any]() *Entity {
	e, err := MapEntity[T]()
	if err != nil {
		panic(err)
	}
	return e
}

// MapEntityOf is MapEntity for a reflect.Type.
func MapEntityOf(t reflect.Type) (*Entity, error) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("cannot map %s: not a struct", t)
	}

	e := &Entity{
		Name:   t.Name(),
		Table:  TableName(t.Name()),
		GoType: t,
	}
	if tn, ok := reflect.New(t).Interface().(tabler); ok {
		e.Table = tn.TableName()
	}

	mapStructFields(e, t, nil)
	if len(e.Fields) == 0 {
		return nil, fmt.Errorf("cannot map %s: no exported fields", t)
	}

	if e.PrimaryKey() == nil {
		for _, name := range []string{"Id", "ID"} {
			if f, ok := e.Fields[name]; ok {
				f.PrimaryKey = true
				break
			}
		}
	}
	return e, nil
}

func mapStructFields(e *Entity, t reflect.Type, parent []int) {
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		index := append(append([]int(nil), parent...), i)

		if sf.Anonymous && sf.Type.Kind() == reflect.Struct && sf.Tag.Get("db") == "" {
			mapStructFields(e, sf.Type, index)
			continue
		}
		if !sf.IsExported() {
			continue
		}

		tag := sf.Tag.Get("db")
		if tag == "-" {
			continue
		}
		column, opts, _ := strings.Cut(tag, ",")

		e.AddField(&Field{
			Name:       sf.Name,
			Column:     column,
			Type:       fieldTypeOf(sf.Type),
			Nullable:   sf.Type.Kind() == reflect.Pointer,
			PrimaryKey: hasOption(opts, "pk"),
			Index:      index,
		})
	}
}

func hasOption(opts, want string) bool {
	for _, o := range strings.Split(opts, ",") {
		if strings.TrimSpace(o) == want {
			return true
		}
	}
	return false
}

var timeType = reflect.TypeFor[time.Time]()

func fieldTypeOf(t reflect.Type) FieldType {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == timeType {
		return FieldTypeTimestamp
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return FieldTypeInt
	case reflect.Float32, reflect.Float64:
		return FieldTypeFloat
	case reflect.Bool:
		return FieldTypeBool
	case reflect.String:
		return FieldTypeString
	case reflect.Slice, reflect.Array:
		return FieldType{Kind: "Array", Param: fieldTypeOf(t.Elem()).Kind}
	default:
		return FieldType{Kind: t.Kind().String()}
	}
}

// ─────────────────────────────────────────────────────────────
// FieldType
// ─────────────────────────────────────────────────────────────

// UnmarshalJSON deserializes FieldType from JSON
// Can be: "UUID" (string) or {"Array": "String"} (object)
func (ft *FieldType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*ft = FieldType{Kind: s}
		return nil
	}

	var obj map[string]interface{}
	if err := json.Unmarshal(data, &obj); err == nil {
		if len(obj) != 1 {
			return fmt.Errorf("invalid FieldType object: expected 1 key, got %d", len(obj))
		}
		for key, value := range obj {
			*ft = FieldType{Kind: key, Param: value}
			return nil
		}
	}

	return fmt.Errorf("cannot unmarshal FieldType from %s", string(data))
}

// MarshalJSON serializes FieldType to JSON
func (ft FieldType) MarshalJSON() ([]byte, error) {
	if ft.Param == nil {
		return json.Marshal(ft.Kind)
	}
	obj := map[string]interface{}{ft.Kind: ft.Param}
	return json.Marshal(obj)
}

// String returns a string representation of the FieldType
func (ft FieldType) String() string {
	if ft.Param == nil {
		return ft.Kind
	}
	return fmt.Sprintf("%s(%v)", ft.Kind, ft.Param)
}

// Coerce converts command-line text into a value of this type.
func (ft FieldType) Coerce(s string) (any, error) {
	switch strings.ToLower(ft.Kind) {
	case "int":
		return strconv.ParseInt(s, 10, 64)
	case "float", "decimal":
		return strconv.ParseFloat(s, 64)
	case "bool":
		return strconv.ParseBool(s)
	case "uuid":
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, err
		}
		return id.String(), nil
	case "timestamp":
		return time.Parse(time.RFC3339, s)
	default:
		return s, nil
	}
}

// ColumnNames returns column names in the same order as FieldNames.
func (e *Entity) ColumnNames() []string {
	names := e.FieldNames()
	columns := make([]string, len(names))
	for i, name := range names {
		columns[i] = e.Fields[name].Column
	}
	return columns
}
