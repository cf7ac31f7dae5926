package cache

// Record is a single identified item inside a cached list payload. Fields
// are opaque to the cache; only ID is interpreted, for optimistic matching.
type Record struct {
	ID     string                 `json:"id"`
	Fields map[string]interface{} `json:"fields"`
}

// Clone returns a deep copy of the record
func (r Record) Clone() Record {
	return Record{
		ID:     r.ID,
		Fields: cloneMap(r.Fields),
	}
}

// CloneRecords returns a deep copy of a record list, preserving order
func CloneRecords(records []Record) []Record {
	if records == nil {
		return nil
	}
	cloned := make([]Record, len(records))
	for i, r := range records {
		cloned[i] = r.Clone()
	}
	return cloned
}

func cloneMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	cloned := make(map[string]interface{}, len(m))
	for k, v := range m {
		cloned[k] = cloneValue(v)
	}
	return cloned
}

func cloneSlice(s []interface{}) []interface{} {
	cloned := make([]interface{}, len(s))
	for i, v := range s {
		cloned[i] = cloneValue(v)
	}
	return cloned
}

func cloneValue(v interface{}) interface{} {
	switch typed := v.(type) {
	case map[string]interface{}:
		return cloneMap(typed)
	case []interface{}:
		return cloneSlice(typed)
	default:
		// Scalars (and anything JSON-shaped data won't contain) copy by value
		return typed
	}
}
