package chrono

import (
	"time"
	_ "time/tzdata"
)

var portalLocation *time.Location

func init() {
	var err error
	portalLocation, err = time.LoadLocation("Asia/Ho_Chi_Minh")
	if err != nil {
		panic(err)
	}
}

// Portal returns the [*time.Location] the portal operates in (Asia/Ho_Chi_Minh).
func Portal() *time.Location {
	return portalLocation
}

// TimeAPI is the interface that anything depending on the system clock should use.
type TimeAPI interface {
	// Now returns the current time in the portal's timezone.
	Now() time.Time
	Location() *time.Location
}

// StandardTime is the standard implementation of TimeAPI using the standard library.
type StandardTime struct{}

func NewStandardTime() StandardTime {
	return StandardTime{}
}

func (StandardTime) Now() time.Time {
	return time.Now().In(portalLocation)
}

func (StandardTime) Location() *time.Location {
	return portalLocation
}

// FixedTime always returns the same instant, it is meant for tests.
type FixedTime struct {
	At time.Time
}

func (f FixedTime) Now() time.Time {
	return f.At.In(portalLocation)
}

func (FixedTime) Location() *time.Location {
	return portalLocation
}
