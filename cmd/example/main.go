package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/fluxorio/asyncnet/pkg/async"
	"github.com/fluxorio/asyncnet/pkg/logging"
	"github.com/fluxorio/asyncnet/pkg/transport/httpclient"
)

// This program issues one HTTP GET through the async.Provider protocol and
// prints the result once it completes, demonstrating the Begin/Schedule/
// GetResult lifecycle a caller embedding this module follows.
func main() {
	logger := logging.NewDefaultLogger()

	provider := httpclient.New(httpclient.Config{
		Doer:               httpclient.NewNetHTTPDoer(&http.Client{Timeout: 10 * time.Second}),
		RateLimitPerSecond: 5,
		BreakerThreshold:   3,
		Logger:             logger,
	})

	done := make(chan struct{})
	block := &async.Block{
		Callback: func(b *async.Block) {
			defer close(done)
			status := async.GetStatus(b, false)
			if status != async.StatusSuccess {
				logger.Errorf("request failed: %v", status)
				return
			}
			size, _ := async.GetResultSize(b)
			buf := make([]byte, size)
			n, _ := async.GetResult(b, "GET", buf)
			fmt.Printf("received %d bytes\n", n)
		},
	}

	status := provider.Do(block, nil, httpclient.Request{
		Method: "GET",
		URL:    "https://example.com",
	})
	if status != async.StatusPending {
		logger.Errorf("Do returned %v instead of Pending", status)
		os.Exit(1)
	}

	<-done
}
