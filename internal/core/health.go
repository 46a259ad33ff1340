package core

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// healthCheckTimeout is the maximum time allowed for all health probes. A
// probe exceeding it reports unhealthy.
const healthCheckTimeout = 2 * time.Second

// HealthProbe is a subsystem health check. Each probe represents a critical
// dependency (database, redis) that must be reachable for the bot to work.
type HealthProbe interface {
	// Name returns a human-readable identifier, such as "database".
	Name() string

	// Check probes the subsystem, respecting the context deadline.
	Check(ctx context.Context) error
}

// ProbeFunc adapts a function to the HealthProbe interface.
type ProbeFunc struct {
	ProbeName string
	Fn        func(ctx context.Context) error
}

func (p ProbeFunc) Name() string                    { return p.ProbeName }
func (p ProbeFunc) Check(ctx context.Context) error { return p.Fn(ctx) }

// componentStatus is the health state of a single subsystem.
type componentStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// healthResponse is the JSON body for the health endpoint.
type healthResponse struct {
	Status     string                     `json:"status"`
	Components map[string]componentStatus `json:"components,omitempty"`
}

// HandleHealth runs all registered probes concurrently under a short timeout.
// 200 when every probe reports healthy, 503 otherwise. Public, mounted at
// GET /healthz.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	probes := s.HealthProbes
	if len(probes) == 0 {
		JSON(w, r, http.StatusOK, healthResponse{Status: "healthy"})
		return
	}

	type probeResult struct {
		name string
		err  error
	}

	results := make([]probeResult, len(probes))
	var wg sync.WaitGroup
	for i, p := range probes {
		wg.Add(1)
		go func(i int, p HealthProbe) {
			defer wg.Done()
			results[i] = probeResult{name: p.Name(), err: p.Check(ctx)}
		}(i, p)
	}
	wg.Wait()

	components := make(map[string]componentStatus, len(results))
	healthy := true
	for _, res := range results {
		if res.err != nil {
			healthy = false
			components[res.name] = componentStatus{Status: "unhealthy", Message: res.err.Error()}
		} else {
			components[res.name] = componentStatus{Status: "healthy"}
		}
	}

	status := http.StatusOK
	resp := healthResponse{Status: "healthy", Components: components}
	if !healthy {
		status = http.StatusServiceUnavailable
		resp.Status = "unhealthy"
	}
	JSON(w, r, status, resp)
}
