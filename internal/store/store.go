// Package store persists members, membership periods, fee schedules and
// payments. Memory keeps everything in process, Files backs Memory with a
// project directory, and Postgres uses a SQL database.
package store

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a single requested record does not exist.
var ErrNotFound = errors.New("not found")

func day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
