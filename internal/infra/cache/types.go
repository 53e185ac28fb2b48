package cache

import "time"

// Stats represents cache statistics.
type Stats struct {
	TrackCount    int       `json:"trackCount"`
	LineCount     int       `json:"lineCount"`
	SchemaVersion string    `json:"schemaVersion"`
	LastUpdated   time.Time `json:"lastUpdated"`
}
