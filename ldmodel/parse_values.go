package ldmodel

import (
	"regexp"
	"time"

	"github.com/launchdarkly/go-semver"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

func parseDateTime(value ldvalue.Value) (time.Time, bool) {
	switch value.Type() {
	case ldvalue.StringType:
		t, err := time.Parse(time.RFC3339Nano, value.StringValue())
		if err == nil {
			return t.UTC(), true
		}
	case ldvalue.NumberType:
		return unixMillisToUtcTime(value.Float64Value()), true
	}
	return time.Time{}, false
}

func unixMillisToUtcTime(unixMillis float64) time.Time {
	return time.Unix(0, int64(unixMillis)*int64(time.Millisecond)).UTC()
}

func parseRegexp(value ldvalue.Value) (*regexp.Regexp, bool) {
	if value.Type() == ldvalue.StringType {
		if r, err := regexp.Compile(value.StringValue()); err == nil {
			return r, true
		}
	}
	return nil, false
}

func parseSemVer(value ldvalue.Value) (semver.Version, bool) {
	if value.Type() == ldvalue.StringType {
		// The LaunchDarkly flag data model uses a slightly looser version syntax than strict
		// SemVer, where the minor and patch versions can be omitted ("2" == "2.0.0").
		if sv, err := semver.ParseAs(value.StringValue(), semver.ParseModeAllowMissingMinorAndPatch); err == nil {
			return sv, true
		}
	}
	return semver.Version{}, false
}
