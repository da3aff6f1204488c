// Sidecar readiness probe: checks the quorum-sync debug listener and
// reports one aggregate status, so orchestrators can point a single check
// at this process instead of parsing the daemon's endpoints themselves.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"time"

	"github.com/valyala/fasthttp"
)

type probeReport struct {
	Status   string `json:"status"`
	Sessions int    `json:"sessions,omitempty"`
	Error    string `json:"error,omitempty"`
}

func main() {
	listen := flag.String("listen", ":8081", "listen address for the probe")
	target := flag.String("target", "http://127.0.0.1:8080", "base URL of the quorum-sync debug listener")
	timeout := flag.Duration("timeout", 2*time.Second, "per-check request timeout")
	flag.Parse()

	client := &fasthttp.Client{
		ReadTimeout:  *timeout,
		WriteTimeout: *timeout,
	}

	handler := func(ctx *fasthttp.RequestCtx) {
		switch string(ctx.Path()) {
		case "/health", "/healthz":
			report, healthy := check(client, *target, *timeout)
			ctx.Response.Header.Set("Content-Type", "application/json")
			if healthy {
				ctx.SetStatusCode(fasthttp.StatusOK)
			} else {
				ctx.SetStatusCode(fasthttp.StatusServiceUnavailable)
			}
			body, _ := json.Marshal(report)
			_, _ = ctx.Write(body)
		default:
			ctx.SetStatusCode(fasthttp.StatusNotFound)
		}
	}

	fmt.Printf("probing %s, listening on %s\n", *target, *listen)
	if err := fasthttp.ListenAndServe(*listen, handler); err != nil {
		fmt.Printf("probe exit: %v\n", err)
	}
}

// check asks the daemon for liveness and, when alive, for its session
// table; the probe is healthy only when both answer.
func check(client *fasthttp.Client, target string, timeout time.Duration) (probeReport, bool) {
	status, _, err := client.GetTimeout(nil, target+"/healthz", timeout)
	if err != nil {
		return probeReport{Status: "unreachable", Error: err.Error()}, false
	}
	if status != fasthttp.StatusOK {
		return probeReport{Status: "unhealthy", Error: fmt.Sprintf("healthz returned %d", status)}, false
	}

	status, body, err := client.GetTimeout(nil, target+"/v1/sessions", timeout)
	if err != nil || status != fasthttp.StatusOK {
		return probeReport{Status: "degraded", Error: "session table unavailable"}, false
	}
	var sessions []json.RawMessage
	if err := json.Unmarshal(body, &sessions); err != nil {
		return probeReport{Status: "degraded", Error: "session table unreadable"}, false
	}
	return probeReport{Status: "ok", Sessions: len(sessions)}, true
}
