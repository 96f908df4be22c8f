package sharedtest

import (
	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/launchdarkly/go-server-sdk-core/subsystems"
)

// NewSimpleTestContext returns a basic implementation of ClientContext for use in test code.
func NewSimpleTestContext(sdkKey string) subsystems.BasicClientContext {
	return NewTestContext(sdkKey, nil, nil)
}

// NewTestContext returns a basic implementation of ClientContext for use in test code, where we
// may want to set the HTTP and/or logging configuration to something other than the defaults.
func NewTestContext(
	sdkKey string,
	optHTTPConfig *subsystems.HTTPConfiguration,
	optLoggingConfig *subsystems.LoggingConfiguration,
) subsystems.BasicClientContext {
	context := subsystems.BasicClientContext{SDKKey: sdkKey}
	if optHTTPConfig != nil {
		context.HTTP = *optHTTPConfig
	}
	if optLoggingConfig != nil {
		context.Logging = *optLoggingConfig
	} else {
		context.Logging = TestLoggingConfig()
	}
	return context
}

// TestLoggingConfig returns a LoggingConfiguration with disabled loggers, for tests that do not
// need to capture log output.
func TestLoggingConfig() subsystems.LoggingConfiguration {
	return subsystems.LoggingConfiguration{Loggers: ldlog.NewDisabledLoggers()}
}

// TestLoggingConfigWithLoggers returns a LoggingConfiguration that uses the specified loggers.
func TestLoggingConfigWithLoggers(loggers ldlog.Loggers) subsystems.LoggingConfiguration {
	return subsystems.LoggingConfiguration{Loggers: loggers}
}
