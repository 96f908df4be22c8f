// Package ldservices provides HTTP handlers that simulate the behavior of LaunchDarkly service
// endpoints.
//
// This is mainly intended for use in the Go SDK's unit tests and unit tests of related components,
// but it could also be useful in testing applications that use the Go SDK if it is desirable to
// use real HTTP rather than other kinds of test fixtures.
package ldservices
