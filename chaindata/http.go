package chaindata

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/ethereum/go-ethereum/log"
	"github.com/nando-os/ghostpbm/eth"
)

// getJSON issues a GET and returns the body of a 2xx response. Anything else
// is an *eth.RPCError carrying the URL and response body.
func getJSON(ctx context.Context, client *http.Client, method, url string, header http.Header) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &eth.RPCError{Method: method, Message: "failed to create request", Err: err}
	}
	req.Header.Set("Accept", "application/json")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fail(&eth.RPCError{Method: method, Request: []byte(url), Message: "request failed", Err: err})
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fail(&eth.RPCError{Method: method, Request: []byte(url), Message: "failed to read response", Err: err})
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fail(&eth.RPCError{
			Method:   method,
			Message:  fmt.Sprintf("status %d", resp.StatusCode),
			Request:  []byte(url),
			Response: body,
		})
	}
	return body, nil
}

func fail(err *eth.RPCError) error {
	log.Error("Data source request failed",
		"method", err.Method,
		"request", string(err.Request),
		"response", string(err.Response),
		"error", err)
	return err
}
