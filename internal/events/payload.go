package events

// Progress is the payload carried by *_update events.
type Progress struct {
	Unit     string
	Done     int64
	Total    int64
	Fraction float64
	Speed    float64 // bytes/second, download only
}

// Failure is the payload carried by *_failed events. The same error is
// still readable on the unit when the retry policy runs.
type Failure struct {
	Unit string
	Err  string
}
