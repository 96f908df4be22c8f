// Package sharedtest provides helper code and test data that may be used by tests in any of the
// SDK packages.
//
// Non-test code should never import this package or any of its subpackages.
package sharedtest
