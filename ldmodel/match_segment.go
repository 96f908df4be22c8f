package ldmodel

// SegmentIncludesKey returns true if the specified context key is in this Segment's
// top-level Included list. That list applies only to contexts of the default kind;
// inclusions for other kinds are in IncludedContexts.
//
// This does not check whether the context satisfies the segment's rules, and it does not
// consider the Excluded list. Exclusion takes precedence over inclusion, so a caller must
// check SegmentExcludesKey first.
//
// The Segment is passed by reference for efficiency only; the function will not modify it.
// Passing a nil value will cause a panic.
func SegmentIncludesKey(s *Segment, key string) bool {
	if s.preprocessed.includeMap != nil {
		return s.preprocessed.includeMap[key]
	}
	for _, value := range s.Included {
		if value == key {
			return true
		}
	}
	return false
}

// SegmentExcludesKey returns true if the specified context key is in this Segment's
// top-level Excluded list. That list applies only to contexts of the default kind;
// exclusions for other kinds are in ExcludedContexts.
//
// The Segment is passed by reference for efficiency only; the function will not modify it.
// Passing a nil value will cause a panic.
func SegmentExcludesKey(s *Segment, key string) bool {
	if s.preprocessed.excludeMap != nil {
		return s.preprocessed.excludeMap[key]
	}
	for _, value := range s.Excluded {
		if value == key {
			return true
		}
	}
	return false
}

// SegmentTargetContainsKey returns true if the specified context key is in this SegmentTarget.
//
// The SegmentTarget is passed by reference for efficiency only; the function will not modify
// it. Passing a nil value will cause a panic.
func SegmentTargetContainsKey(t *SegmentTarget, key string) bool {
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
