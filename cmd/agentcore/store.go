package main

import (
	"fmt"

	"github.com/corebrain/agentcore/internal/audit"
)

// openTraceStore opens the trace store at path using the requested
// backend ("json" or "sqlite"), matching internal/config.AuditConfig.Backend.
func openTraceStore(path, backend string) (audit.TraceStore, error) {
	switch backend {
	case "", "json":
		return audit.NewStore(path)
	case "sqlite":
		return audit.NewSQLiteStore(path)
	default:
		return nil, fmt.Errorf("unknown audit backend %q (want json or sqlite)", backend)
	}
}
