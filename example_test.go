package httptracer

import (
	"context"
	"fmt"
	"net/http"

	"github.com/luxas/deklarative/httptracer/filetest"
)

func ExampleInstrument() {
	// Capture everything registered on exchange spans as YAML on stdout.
	tp, err := Provider().TestYAMLTo(filetest.Stdout).Build()
	if err != nil {
		fmt.Println(err)
		return
	}
	defer func() { _ = tp.Shutdown(context.Background()) }()

	// A stub transport standing in for the network; always unavailable.
	transport := Instrument().
		WithTracerProvider(tp).
		Transport(RoundTripperFunc(func(*http.Request) (*http.Response, error) {
			return &http.Response{StatusCode: http.StatusServiceUnavailable, Body: http.NoBody}, nil
		}))

	req, err := http.NewRequest(http.MethodGet, "http://example.com/brew", nil)
	if err != nil {
		fmt.Println(err)
		return
	}
	resp, err := transport.RoundTrip(req)
	if err != nil {
		fmt.Println(err)
		return
	}
	_ = resp.Body.Close()

	// Output:
	// # HTTP GET
	// - name: HTTP GET
	//   startConfig:
	//     spanKind: client
	//     attributes:
	//     - key: http.method
	//       value: GET
	//       type: STRING
	//     - key: http.url
	//       value: http://example.com/brew
	//       type: STRING
	//     - key: http.target
	//       value: /brew
	//       type: STRING
	//     - key: http.host
	//       value: example.com
	//       type: STRING
	//     - key: http.scheme
	//       value: http
	//       type: STRING
	//     - key: http.flavor
	//       value: "1.1"
	//       type: STRING
	//     - key: net.transport
	//       value: ip_tcp
	//       type: STRING
	//     - key: net.peer.name
	//       value: example.com
	//       type: STRING
	//     - key: net.peer.port
	//       value: 80
	//       type: INT64
	//   statusChanges:
	//   - code: Error
	//     description: Service Unavailable
	//   attributes:
	//   - key: http.status_code
	//     value: 503
	//     type: INT64
}
