// Package ldbuilders contains helpers for constructing the data model objects defined by ldmodel.
//
// Using these builders avoids unnecessary dependencies on implementation details of the data
// model (such as the use of ldvalue.OptionalInt for optional numeric properties), and guarantees
// that the preprocessing step that normally happens on deserialization is also applied to
// objects built in code.
package ldbuilders
