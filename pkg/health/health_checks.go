package health

import (
	"fmt"
	"runtime"
)

// Alive always reports healthy. It is the liveness check of a process that
// can still serve a request.
func Alive() CheckFunc {
	return func() Check {
		return Check{Name: "process", Status: StatusHealthy}
	}
}

// CapacityCheck reports how full the diagram store is. Above 80% it is
// degraded; at the limit it is unhealthy because creates will be refused.
// A limit of zero means unlimited.
func CapacityCheck(usage func() (open, limit int)) CheckFunc {
	return func() Check {
		open, limit := usage()
		check := Check{
			Name:    "diagrams",
			Details: map[string]any{"open": open, "limit": limit},
		}

		switch {
		case limit <= 0:
			check.Status = StatusHealthy
			check.Message = "Unlimited"
		case open >= limit:
			check.Status = StatusUnhealthy
			check.Message = "Diagram limit reached"
		case float64(open)/float64(limit) > 0.8:
			check.Status = StatusDegraded
			check.Message = "Nearly full"
		default:
			check.Status = StatusHealthy
			check.Message = fmt.Sprintf("%d of %d open", open, limit)
		}
		return check
	}
}

// ProbeCheck turns an error-returning probe into a check
func ProbeCheck(name string, probe func() error) CheckFunc {
	return func() Check {
		check := Check{Name: name, Status: StatusHealthy, Message: "OK"}
		if err := probe(); err != nil {
			check.Status = StatusUnhealthy
			check.Message = err.Error()
		}
		return check
	}
}

// MemoryCheck is degraded when the heap holds more than 90% of the memory
// obtained from the OS. getUsage defaults to runtime.ReadMemStats.
func MemoryCheck(getUsage func() (alloc, sys uint64)) CheckFunc {
	if getUsage == nil {
		getUsage = func() (uint64, uint64) {
			var m runtime.MemStats
			runtime.ReadMemStats(&m)
			return m.Alloc, m.Sys
		}
	}
	return func() Check {
		alloc, sys := getUsage()
		check := Check{
			Name:    "memory",
			Status:  StatusHealthy,
			Message: "Memory usage normal",
			Details: map[string]any{"allocBytes": alloc, "sysBytes": sys},
		}
		if sys > 0 && float64(alloc)/float64(sys) > 0.9 {
			check.Status = StatusDegraded
			check.Message = "High memory usage"
		}
		return check
	}
}
