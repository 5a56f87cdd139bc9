package service

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// newRESTClient builds the JSON client shared by every outbound adapter.
// Requests are traced through otelhttp; apiKey, when set, is sent as a bearer token.
func newRESTClient(baseURL, apiKey string, timeout time.Duration) *resty.Client {
	client := resty.New()
	client.SetTransport(otelhttp.NewTransport(http.DefaultTransport))
	client.SetBaseURL(strings.TrimSuffix(baseURL, "/"))
	client.SetHeader("Content-Type", "application/json")
	if apiKey != "" {
		client.SetAuthToken(apiKey)
	}
	if timeout > 0 {
		client.SetTimeout(timeout)
	}
	return client
}

// statusError describes a non-2xx reply, preferring the service's own message.
func statusError(service string, resp *resty.Response, message string) error {
	if message != "" {
		return fmt.Errorf("%s returned HTTP %d: %s", service, resp.StatusCode(), message)
	}
	body := strings.TrimSpace(string(resp.Body()))
	if len(body) > 512 {
		body = body[:512]
	}
	return fmt.Errorf("%s returned HTTP %d: %s", service, resp.StatusCode(), body)
}

func isSuccess(resp *resty.Response) bool {
	return resp.StatusCode() >= 200 && resp.StatusCode() < 300
}

// dataURL encodes image as a base64 data URL.
func dataURL(image []byte, mediaType string) string {
	return "data:" + mediaType + ";base64," + base64Encode(image)
}
