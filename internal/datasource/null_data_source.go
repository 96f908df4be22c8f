package datasource

import "github.com/launchdarkly/go-server-sdk-core/subsystems"

// NewNullDataSource returns a stub implementation of DataSource, used when streaming and polling
// are both disabled (such as in LDD mode, where all data comes from a persistent store that is
// populated by some other process).
func NewNullDataSource() subsystems.DataSource {
	return nullDataSource{}
}

type nullDataSource struct{}

func (n nullDataSource) IsInitialized() bool {
	return true
}

func (n nullDataSource) Close() error {
	return nil
}

func (n nullDataSource) Start(closeWhenReady chan<- struct{}) {
	close(closeWhenReady)
}
