package subsystems

import (
	"net/http"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
)

// ClientContext provides context information from the SDK client when creating other components.
//
// This is passed as a parameter to component constructors such as NewStreamProcessor. The
// BasicClientContext implementation is sufficient for all purposes within this module; the
// interface allows a higher-level SDK to attach additional state of its own.
type ClientContext interface {
	// GetSDKKey returns the configured SDK key.
	GetSDKKey() string

	// GetHTTP returns the configured HTTPConfiguration.
	GetHTTP() HTTPConfiguration

	// GetLogging returns the configured LoggingConfiguration.
	GetLogging() LoggingConfiguration

	// GetDataSourceUpdateSink returns the component that DataSource implementations use to deliver
	// data and status updates to the SDK.
	//
	// This component is only available when the SDK is creating a DataSource. Otherwise the method
	// returns nil.
	GetDataSourceUpdateSink() DataSourceUpdateSink

	// GetDataStoreUpdateSink returns the component that DataStore implementations use to deliver
	// data store status updates to the SDK.
	//
	// This component is only available when the SDK is creating a DataStore. Otherwise the method
	// returns nil.
	GetDataStoreUpdateSink() DataStoreUpdateSink
}

// HTTPConfiguration encapsulates top-level HTTP configuration that applies to all SDK components.
type HTTPConfiguration struct {
	// DefaultHeaders contains the basic headers that should be added to all HTTP requests from
	// SDK components to LaunchDarkly services, based on the current SDK configuration. This map
	// should not be modified after it is set.
	DefaultHeaders http.Header

	// CreateHTTPClient is a function that returns a new HTTP client instance based on the SDK
	// configuration.
	//
	// If nil, components obtain a client equivalent to http.DefaultClient.
	CreateHTTPClient func() *http.Client
}

// DefaultHTTPClientFactory is the client factory that components use when
// HTTPConfiguration.CreateHTTPClient is not set.
func DefaultHTTPClientFactory() *http.Client {
	client := *http.DefaultClient
	return &client
}

// LoggingConfiguration encapsulates the SDK's general logging configuration.
type LoggingConfiguration struct {
	// Loggers is the configured ldlog.Loggers instance for general SDK logging.
	Loggers ldlog.Loggers

	// LogDataSourceOutageAsErrorAfter is the time threshold, if any, after which the SDK will
	// log a data source outage at Error level instead of Warn level. If zero, outages are only
	// logged at Warn level.
	LogDataSourceOutageAsErrorAfter time.Duration

	// LogEvaluationErrors is true if evaluation errors, such as referencing a flag that does not
	// exist, should be logged.
	LogEvaluationErrors bool
}

// BasicClientContext is the basic implementation of the ClientContext interface.
type BasicClientContext struct {
	SDKKey               string
	HTTP                 HTTPConfiguration
	Logging              LoggingConfiguration
	DataSourceUpdateSink DataSourceUpdateSink
	DataStoreUpdateSink  DataStoreUpdateSink
}

func (b BasicClientContext) GetSDKKey() string { return b.SDKKey } //nolint:revive

func (b BasicClientContext) GetHTTP() HTTPConfiguration { //nolint:revive
	ret := b.HTTP
	if ret.CreateHTTPClient == nil {
		ret.CreateHTTPClient = DefaultHTTPClientFactory
	}
	return ret
}

func (b BasicClientContext) GetLogging() LoggingConfiguration { return b.Logging } //nolint:revive

func (b BasicClientContext) GetDataSourceUpdateSink() DataSourceUpdateSink { //nolint:revive
	return b.DataSourceUpdateSink
}

func (b BasicClientContext) GetDataStoreUpdateSink() DataStoreUpdateSink { //nolint:revive
	return b.DataStoreUpdateSink
}
