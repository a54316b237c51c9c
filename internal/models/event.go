package models

import "time"

// EventTime is an instant paired with the IANA time zone it should be
// rendered in. Calendar providers keep the zone per endpoint, so it travels
// with the timestamp rather than with the event.
type EventTime struct {
	Time     time.Time
	TimeZone string
}

// In returns the instant shifted into its own time zone, falling back to the
// instant as-is when the zone is unknown.
func (t EventTime) In() time.Time {
	loc, err := time.LoadLocation(t.TimeZone)
	if err != nil {
		return t.Time
	}
	return t.Time.In(loc)
}

// Event represents a calendar event independent of any provider.
type Event struct {
	ID          string    // identifier assigned by the owning calendar service
	Summary     string    // title of the event
	Description string    // free-form details
	Location    string    // address string as the provider shows it
	Start       EventTime // start instant with its display zone
	End         EventTime // end instant with its display zone
	Calendar    string    // name of the calendar holding the event
	Owner       string    // account the calendar belongs to
	UID         string    // iCalendar UID, used when mirroring over CalDAV
	Source      string    // where the event came from (e.g. "google-personal")
}

// Duration returns the event's time span.
func (e Event) Duration() time.Duration {
	return e.End.Time.Sub(e.Start.Time)
}
