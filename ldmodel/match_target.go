package ldmodel

// TargetContainsKey returns true if the specified context key is in this flag Target.
//
// The Target is passed by reference for efficiency only; the function will not modify it.
// Passing a nil value will cause a panic.
func TargetContainsKey(t *Target, key string) bool {
	if t.preprocessed.valuesMap != nil {
		return t.preprocessed.valuesMap[key]
	}
	for _, value := range t.Values {
		if value == key {
			return true
		}
	}
	return false
}
