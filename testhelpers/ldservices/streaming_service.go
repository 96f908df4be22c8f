package ldservices

import (
	"net/http"

	"github.com/launchdarkly/go-test-helpers/v3/httphelpers"
)

// ServerSideSDKStreamingPath is the expected request path for server-side SDK stream requests.
const ServerSideSDKStreamingPath = "/all"

// ServerSideStreamingServiceHandler creates an HTTP handler to mimic the LaunchDarkly server-side
// streaming service. It uses httphelpers.SSEHandler for the underlying SSE implementation, while
// enforcing that the request path is ServerSideSDKStreamingPath and that the method is GET (other
// requests are rejected with a 404).
//
//	initialData := ldservices.NewServerSDKData().Flags(flag1, flag2)
//	handler, stream := ldservices.ServerSideStreamingServiceHandler(initialData.ToPutEvent())
//	server := httptest.NewServer(handler)
//	stream.Enqueue(httphelpers.SSEEvent{Event: "patch", Data: myPatchData})
//	stream.Close() // force any current stream connections to be closed
func ServerSideStreamingServiceHandler(
	initialEvent httphelpers.SSEEvent,
) (http.Handler, httphelpers.SSEStreamControl) {
	handler, stream := httphelpers.SSEHandler(&initialEvent)
	return httphelpers.HandlerForPath(
		ServerSideSDKStreamingPath,
		httphelpers.HandlerForMethod("GET", handler, nil),
		nil,
	), stream
}
