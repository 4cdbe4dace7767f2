package engine

import (
	"fmt"

	"github.com/google/uuid"
)

// IdentityMap holds at most one tracked instance per entity and key.
// It is the in-memory state a session clears before a bulk statement.
type IdentityMap struct {
	objects map[string]map[string]any
}

func NewIdentityMap() *IdentityMap {
	return &IdentityMap{
		objects: make(map[string]map[string]any),
	}
}

// Get returns the tracked instance for entity and id.
func (im *IdentityMap) Get(entity string, id any) (any, bool) {
	key := IdentityKey(id)
	if key == "" {
		return nil, false
	}
	obj, ok := im.objects[entity][key]
	return obj, ok
}

// Put tracks obj; an instance already tracked under the same key wins and
// is returned.
func (im *IdentityMap) Put(entity string, id any, obj any) any {
	key := IdentityKey(id)
	if key == "" {
		return obj
	}
	if im.objects[entity] == nil {
		im.objects[entity] = make(map[string]any)
	}
	if existing, ok := im.objects[entity][key]; ok {
		return existing
	}
	im.objects[entity][key] = obj
	return obj
}

// Remove stops tracking the instance for entity and id.
func (im *IdentityMap) Remove(entity string, id any) {
	key := IdentityKey(id)
	if m := im.objects[entity]; m != nil {
		delete(m, key)
	}
}

// Len is the number of tracked instances across entities.
func (im *IdentityMap) Len() int {
	n := 0
	for _, m := range im.objects {
		n += len(m)
	}
	return n
}

// Clear drops every tracked instance.
func (im *IdentityMap) Clear() {
	im.objects = make(map[string]map[string]any)
}

// IdentityKey converts a key value to a stable string. Zero-valued keys
// ("" and 0) have no identity.
func IdentityKey(id any) string {
	switch v := id.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case [16]byte:
		return uuid.UUID(v).String()
	case uuid.UUID:
		return v.String()
	case int:
		return intKey(int64(v))
	case int32:
		return intKey(int64(v))
	case int64:
		return intKey(v)
	case uint:
		return intKey(int64(v))
	case uint32:
		return intKey(int64(v))
	case uint64:
		return intKey(int64(v))
	default:
		return fmt.Sprintf("%v", v)
	}
}

func intKey(v int64) string {
	if v == 0 {
		return ""
	}
	return fmt.Sprintf("%d", v)
}
