// Package trace provides transparent SQL tracing for modernc.org/sqlite.
//
// It registers a "sqlite-trace" driver that wraps the standard "sqlite"
// driver, intercepting every Exec and Query at the database/sql/driver
// level. Switching the driver name is the only change needed:
//
//	db, _ := dbopen.Open("cache/chapters.db", dbopen.WithDriver(trace.DriverName))
//
// Every statement is logged through slog.Default with adaptive levels:
// Debug normally, Warn past SlowThreshold, Error on failure. The request id
// from kit is attached, correlating cache I/O with the tool call or HTTP
// request that caused it.
package trace

import (
	"database/sql"
	"sync/atomic"
	"time"

	sqlite "modernc.org/sqlite"
)

// DriverName is the database/sql driver name registered by this package.
const DriverName = "sqlite-trace"

var slowNs atomic.Int64

// SetSlowThreshold sets the duration past which statements log at Warn.
// Default: 100ms.
func SetSlowThreshold(d time.Duration) { slowNs.Store(int64(d)) }

func slowThreshold() time.Duration { return time.Duration(slowNs.Load()) }

func init() {
	SetSlowThreshold(100 * time.Millisecond)
	sql.Register(DriverName, &TracingDriver{
		Driver: &sqlite.Driver{},
	})
}
