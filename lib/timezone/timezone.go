package timezone

import (
	"time"
	_ "time/tzdata"
)

var Location *time.Location

func init() {
	var err error
	Location, err = time.LoadLocation("Europe/Warsaw")
	if err != nil {
		panic(err)
	}
}

// the portal and its users are in Poland, times shown to the user are
// in Polish time regardless of where the crawler runs.
func In(t time.Time) time.Time {
	return t.In(Location)
}
