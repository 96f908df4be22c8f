package interfaces

import (
	"github.com/launchdarkly/go-sdk-common/v3/ldcontext"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

// FlagTracker is an interface for tracking changes in feature flag configurations.
//
// An implementation of this interface is returned by the SDK client's GetFlagTracker method.
// Application code should not implement this interface.
type FlagTracker interface {
	// AddFlagChangeListener subscribes for notifications of feature flag changes in general.
	//
	// The returned channel will receive a new FlagChangeEvent value whenever the SDK receives any change to
	// any feature flag's configuration, or to a segment that is referenced by a feature flag. The
	// notification does not include any information about the nature of the change; it only conveys the
	// flag key. If you want to track a specific flag's value, use AddFlagValueChangeListener instead.
	//
	// Change events only work if the SDK is actually connecting to LaunchDarkly (or using the file data
	// source). If the SDK is only reading flags from a database to which some other process writes flag
	// data, then the SDK will not know when flags have changed in that database.
	//
	// It is the caller's responsibility to consume values from the channel. Allowing values to accumulate in
	// the channel can cause an SDK goroutine to be blocked. If you no longer need the channel, call
	// RemoveFlagChangeListener.
	AddFlagChangeListener() <-chan FlagChangeEvent

	// RemoveFlagChangeListener unsubscribes from notifications of feature flag changes. The specified channel
	// must be one that was previously returned by AddFlagChangeListener; otherwise, the method has no effect.
	RemoveFlagChangeListener(listener <-chan FlagChangeEvent)

	// AddFlagValueChangeListener subscribes for notifications of changes in a specific feature flag's value
	// for a specific evaluation context.
	//
	// When you call this method, it first immediately evaluates the feature flag. It then starts listening
	// for feature flag configuration changes (using the same mechanism as AddFlagChangeListener), and whenever
	// the specified feature flag changes, it re-evaluates the flag for the same context. It then pushes a new
	// FlagValueChangeEvent to the channel if and only if the resulting value has changed.
	//
	// All feature flag evaluations require an instance of ldcontext.Context. If the feature flag you are
	// tracking does not have any context targeting rules, you must still pass a dummy context such as
	// ldcontext.New("for-global-flags"). If you do not want the user to appear on your dashboard, use
	// the Anonymous property: ldcontext.NewBuilder("for-global-flags").Anonymous(true).Build().
	AddFlagValueChangeListener(flagKey string, context ldcontext.Context, defaultValue ldvalue.Value) <-chan FlagValueChangeEvent

	// RemoveFlagValueChangeListener unsubscribes from notifications of feature flag value changes. The
	// specified channel must be one that was previously returned by AddFlagValueChangeListener; otherwise,
	// the method has no effect.
	RemoveFlagValueChangeListener(listener <-chan FlagValueChangeEvent)
}

// FlagChangeEvent is a notification of a change in a feature flag's configuration, or in a segment
// that is referenced by a feature flag. See FlagTracker.
type FlagChangeEvent struct {
	// Key is the key of the feature flag whose configuration has changed.
	//
	// The specified flag may have been modified directly, or this may be an indirect change due to a
	// change in some other flag that is a prerequisite of this flag, or a segment that is referenced
	// in the flag's rules.
	Key string
}

// FlagValueChangeEvent is a notification of a change in a feature flag's value for a specific
// evaluation context. See FlagTracker.
type FlagValueChangeEvent struct {
	// Key is the key of the feature flag whose configuration has changed.
	//
	// The specified flag may have been modified directly, or this may be an indirect change due to a
	// change in some other flag that is a prerequisite of this flag, or a segment that is referenced
	// in the flag's rules.
	Key string

	// OldValue is the last known value of the flag for the specified evaluation context prior to the
	// update.
	//
	// Since flag values can be of any JSON data type, this is represented as ldvalue.Value. That type
	// has methods for converting to a primitive Go type such as Value.BoolValue().
	//
	// If the flag did not exist before or could not be evaluated, this will be whatever value was
	// specified as the default in the call to AddFlagValueChangeListener.
	OldValue ldvalue.Value

	// NewValue is the new value of the flag for the specified evaluation context.
	//
	// Since flag values can be of any JSON data type, this is represented as ldvalue.Value. That type
	// has methods for converting to a primitive Go type such as Value.BoolValue().
	//
	// If the flag was deleted or could not be evaluated, this will be whatever value was specified as
	// the default in the call to AddFlagValueChangeListener.
	NewValue ldvalue.Value
}
