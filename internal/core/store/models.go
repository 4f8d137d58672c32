package store

import "time"

// Snapshot is one capture of a URL as reported by the archive index.
type Snapshot struct {
	// CapturedAt is the index timestamp token, usually YYYYMMDDhhmmss.
	CapturedAt  string `json:"timestamp"`
	OriginalURL string `json:"url"`
	StatusCode  string `json:"statusCode"`
	MimeType    string `json:"mimeType"`
	// ArchiveURL is derived from CapturedAt and OriginalURL.
	ArchiveURL string `json:"snapshotUrl"`
}

// Personality is the voice a resurrection speaks with, fixed at creation.
type Personality struct {
	Era      string `json:"era"`
	Tone     string `json:"tone"`
	Domain   string `json:"domain"`
	Greeting string `json:"greeting"`
}

// IsZero reports whether no personality was derived.
func (p Personality) IsZero() bool {
	return p == Personality{}
}

// Record is a resurrection as owned by the store. Callers only ever see
// copies.
type Record struct {
	ID               string      `json:"id"`
	URL              string      `json:"url"`
	Status           string      `json:"status"`
	Snapshots        []Snapshot  `json:"snapshots"`
	SelectedSnapshot Snapshot    `json:"selectedSnapshot"`
	CreatedAt        time.Time   `json:"createdAt"`
	Personality      Personality `json:"personality"`
}

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	out := r
	if r.Snapshots != nil {
		out.Snapshots = make([]Snapshot, len(r.Snapshots))
		copy(out.Snapshots, r.Snapshots)
	}
	return out
}
