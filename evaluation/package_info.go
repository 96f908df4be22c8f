// Package evaluation contains the engine for evaluating feature flags against contexts.
//
// This package is intended for internal use by SDK components and by services that need to
// replicate the evaluation behavior of the SDK. Applications should normally not refer to it
// directly; evaluations are done through the SDK client API.
//
// The Evaluator only reads flag and segment data; it is the caller's responsibility to provide
// that data through a DataProvider implementation, and to generate any analytics events based on
// the evaluation results.
package evaluation
