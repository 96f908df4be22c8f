package datasource

import (
	"testing"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/launchdarkly/go-sdk-common/v3/ldlogtest"

	"github.com/stretchr/testify/assert"
)

func TestIsHTTPErrorRecoverable(t *testing.T) {
	for _, statusCode := range []int{400, 408, 429, 500, 503} {
		assert.True(t, isHTTPErrorRecoverable(statusCode), "status %d should be recoverable", statusCode)
	}
	for _, statusCode := range []int{401, 403, 404, 405} {
		assert.False(t, isHTTPErrorRecoverable(statusCode), "status %d should not be recoverable", statusCode)
	}
}

func TestHTTPErrorDescription(t *testing.T) {
	assert.Equal(t, "HTTP error 401 (invalid SDK key)", httpErrorDescription(401))
	assert.Equal(t, "HTTP error 403 (invalid SDK key)", httpErrorDescription(403))
	assert.Equal(t, "HTTP error 500", httpErrorDescription(500))
}

func TestCheckIfErrorIsRecoverableAndLog(t *testing.T) {
	t.Run("recoverable errors are logged at Warn level", func(t *testing.T) {
		mockLog := ldlogtest.NewMockLog()

		recoverable := checkIfErrorIsRecoverableAndLog(mockLog.Loggers, "HTTP error 500", "in somewhere", 500, "will retry")

		assert.True(t, recoverable)
		assert.Equal(t, []string{"Error in somewhere (will retry): HTTP error 500"}, mockLog.GetOutput(ldlog.Warn))
		assert.Len(t, mockLog.GetOutput(ldlog.Error), 0)
	})

	t.Run("network errors are logged at Warn level", func(t *testing.T) {
		mockLog := ldlogtest.NewMockLog()

		recoverable := checkIfErrorIsRecoverableAndLog(mockLog.Loggers, "timed out", "in somewhere", 0, "will retry")

		assert.True(t, recoverable)
		assert.Equal(t, []string{"Error in somewhere (will retry): timed out"}, mockLog.GetOutput(ldlog.Warn))
	})

	t.Run("unrecoverable errors are logged at Error level", func(t *testing.T) {
		mockLog := ldlogtest.NewMockLog()

		recoverable := checkIfErrorIsRecoverableAndLog(mockLog.Loggers, "HTTP error 401", "in somewhere", 401, "will retry")

		assert.False(t, recoverable)
		assert.Equal(t, []string{"Error in somewhere (giving up permanently): HTTP error 401"}, mockLog.GetOutput(ldlog.Error))
		assert.Len(t, mockLog.GetOutput(ldlog.Warn), 0)
	})
}

func TestCheckForHTTPError(t *testing.T) {
	assert.NoError(t, checkForHTTPError(200, "url"))
	assert.NoError(t, checkForHTTPError(204, "url"))

	err401 := checkForHTTPError(401, "url")
	assert.Equal(t, httpStatusError{
		Message: "Invalid SDK key when accessing URL: url. Verify that your SDK key is correct.",
		Code:    401,
	}, err401)

	err404 := checkForHTTPError(404, "url")
	assert.Equal(t, httpStatusError{
		Message: "Resource not found when accessing URL: url. Verify that this resource exists.",
		Code:    404,
	}, err404)

	err503 := checkForHTTPError(503, "url")
	assert.Equal(t, httpStatusError{
		Message: "Unexpected response code: 503 when accessing URL: url",
		Code:    503,
	}, err503)
}
