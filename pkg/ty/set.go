package ty

import "fmt"

// UniSet maps a key to the set of unique values observed for it. Used to
// accumulate available fields and their sample values from log entries.
type UniSet[T comparable] map[string][]T

// Add records value under key if not already present.
func (us UniSet[T]) Add(key string, value T) {
	values := us[key]
	for _, v := range values {
		if v == value {
			return
		}
	}
	us[key] = append(values, value)
}

// Keys returns the set of keys.
func (us UniSet[T]) Keys() []string {
	keys := make([]string, 0, len(us))
	for k := range us {
		keys = append(keys, k)
	}
	return keys
}

// AddField records an arbitrary value under key in a string UniSet,
// stringifying non-string values.
func AddField(key string, value interface{}, set *UniSet[string]) {
	switch v := value.(type) {
	case string:
		set.Add(key, v)
	default:
		set.Add(key, fmt.Sprint(v))
	}
}
