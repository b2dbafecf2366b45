package rotation

import (
	"errors"
	"fmt"
	"time"
)

// ArtifactIDLayout is the YYYY:MM:DD:HH:MM:SS layout used for artifact names.
// Every field is fixed-width and zero-padded, so string order is time order.
const ArtifactIDLayout = "2006:01:02:15:04:05"

// ErrMalformedArtifactID is returned when an artifact name is not a timestamp
// in ArtifactIDLayout.
var ErrMalformedArtifactID = errors.New("malformed artifact id")

// NewArtifactID formats t as an artifact identifier.
func NewArtifactID(t time.Time) string {
	return t.Format(ArtifactIDLayout)
}

// ParseArtifactID returns the creation instant encoded in id, interpreted in
// the local zone like the clock that produced it.
func ParseArtifactID(id string) (time.Time, error) {
	t, err := time.ParseInLocation(ArtifactIDLayout, id, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w %q: %v", ErrMalformedArtifactID, id, err)
	}
	return t, nil
}

// IsDue reports whether a tier of granularity g needs a new artifact at now.
// sortedIDs must be ascending; only the last (most recent) entry is inspected.
// A malformed most-recent id is an error rather than a guess either way.
func IsDue(g Granularity, sortedIDs []string, now time.Time) (bool, error) {
	if len(sortedIDs) == 0 {
		if _, err := Truncate(now, g); err != nil {
			return false, err
		}
		return true, nil
	}

	latest, err := ParseArtifactID(sortedIDs[len(sortedIDs)-1])
	if err != nil {
		return false, err
	}
	// Parse in now's location so the two bucket boundaries line up.
	latest = time.Date(latest.Year(), latest.Month(), latest.Day(),
		latest.Hour(), latest.Minute(), latest.Second(), 0, now.Location())

	latestBucket, err := Truncate(latest, g)
	if err != nil {
		return false, err
	}
	nowBucket, err := Truncate(now, g)
	if err != nil {
		return false, err
	}
	return !latestBucket.Equal(nowBucket), nil
}

// EvictionCandidate returns the artifact to delete after a successful
// creation. idsAfterInsert must be ascending and include the new artifact.
// At most one artifact is evicted per creation.
func EvictionCandidate(maxBackups int, idsAfterInsert []string) (string, bool) {
	if len(idsAfterInsert) == 0 || len(idsAfterInsert) <= maxBackups {
		return "", false
	}
	return idsAfterInsert[0], true
}
