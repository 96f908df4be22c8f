// Package ldmodel contains the SDK's internal representation of feature flags and segments.
//
// The details of the JSON schema for flags and segments are an implementation detail of the
// SDK, to be used only by LaunchDarkly components. Application code should not use these types
// directly. Flag and segment data normally enters the SDK in JSON form, and should be
// deserialized with the functions in this package rather than with encoding/json so that the
// precomputed evaluation data is attached correctly.
//
// Matching logic that depends only on the data model (clause operators, target lists, segment
// include/exclude lists) is implemented here, so that it can use precomputed lookup structures
// that are private to the model types. Everything that requires access to more than one flag
// or segment, such as prerequisites, rollouts, and segment rules, is in the evaluation package.
package ldmodel
