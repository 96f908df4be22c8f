// Package mocks contains instrumented mock implementations of SDK component interfaces, for use
// in tests of the components that interact with them.
package mocks
