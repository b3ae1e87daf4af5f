package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/valyala/fasthttp"
)

// Sidecar probe: polls the server's /readyz and exits non-zero when the
// server is not ready. Suitable for container HEALTHCHECK directives where
// starting a full HTTP client stack per probe is wasteful.
func main() {
	target := flag.String("target", "http://127.0.0.1:8080/readyz", "readiness URL to probe")
	timeout := flag.Duration("timeout", 2*time.Second, "probe timeout")
	flag.Parse()

	c := &fasthttp.Client{
		ReadTimeout:  *timeout,
		WriteTimeout: *timeout,
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(*target)
	req.Header.SetMethod(fasthttp.MethodGet)

	if err := c.DoTimeout(req, resp, *timeout); err != nil {
		fmt.Fprintf(os.Stderr, "probe failed: %v\n", err)
		os.Exit(1)
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		fmt.Fprintf(os.Stderr, "not ready: status %d\n", resp.StatusCode())
		os.Exit(1)
	}
	fmt.Println(string(resp.Body()))
}
