// Package debug serves a plain text diagnostics page.
package debug

import (
	"fmt"
	"net/http"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"github.com/attocash/wallet-core/jobs"
	"github.com/attocash/wallet-core/seeds"
	"github.com/gorilla/mux"
)

// Headers never echoed back.
var redactedHeaders = map[string]bool{
	"Authorization": true,
	"Cookie":        true,
}

type Service struct {
	Version   string
	Sha1ver   string
	BuildTime string

	Pool  *jobs.WorkerPool
	Seeds *seeds.Registry
}

func servePlainText(w http.ResponseWriter, s string) {
	w.Header().Set("Content-Type", "text/plain")
	w.Header().Set("Content-Length", strconv.Itoa(len(s)))
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(s)) // nolint
}

func (d *Service) HandleDebug(w http.ResponseWriter, r *http.Request) {
	v := mux.Vars(r)
	a := []string{fmt.Sprintf("url: %s %s", r.Method, r.RequestURI)}

	names := make([]string, 0, len(r.Header))
	for k := range r.Header {
		names = append(names, k)
	}
	sort.Strings(names)

	a = append(a, "Headers:")
	for _, k := range names {
		switch values := r.Header[k]; {
		case redactedHeaders[k]:
			a = append(a, fmt.Sprintf("  %s: <redacted>", k))
		case len(values) == 1:
			a = append(a, fmt.Sprintf("  %s: %v", k, values[0]))
		default:
			a = append(a, "  "+k+":")
			for _, v2 := range values {
				a = append(a, "    "+v2)
			}
		}
	}

	a = append(a, "")
	a = append(a, fmt.Sprintf("version: v%s (commit %s)", d.Version, d.Sha1ver))
	a = append(a, fmt.Sprintf("built on: %s", d.BuildTime))
	a = append(a, fmt.Sprintf("go: %s, goroutines: %d", runtime.Version(), runtime.NumGoroutine()))
	a = append(a, fmt.Sprintf("api version called: %s", v["apiVersion"]))

	if d.Pool != nil {
		s := d.Pool.Status()
		a = append(a, fmt.Sprintf("workers: %d, queued: %d/%d", s.WorkerCount, s.QueueSize, s.Capacity))
	}
	if d.Seeds != nil {
		a = append(a, fmt.Sprintf("seed state: %s", d.Seeds.Current().State))
	}

	servePlainText(w, strings.Join(a, "\n"))
}
