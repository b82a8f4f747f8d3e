package jobs

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"ratingsync/internal/catalog"
	"ratingsync/internal/resolver/guid"
)

// ItemProgress tracks one catalog item through resolution.
type ItemProgress struct {
	ItemID    int64          `json:"item_id"`
	Title     string         `json:"title,omitempty"`
	Reference guid.Reference `json:"reference"`
	// Resolved is set once the lookup finished, whether or not an IMDB id
	// was found.
	Resolved bool   `json:"resolved"`
	IMDbID   string `json:"imdb_id,omitempty"`
	// Disabled marks items whose provider was switched off at lookup time.
	Disabled bool `json:"disabled,omitempty"`
}

// Failures counts items that could not be rated.
type Failures struct {
	// SkippedAgent counts items whose agent guid is not understood.
	SkippedAgent int `json:"skipped_agent"`
	// Disabled counts items whose provider is switched off.
	Disabled int `json:"disabled"`
	// Unresolved counts items without an IMDB id.
	Unresolved int `json:"unresolved"`
	// NoRating counts items whose IMDB id has no rating in the dataset.
	NoRating int `json:"no_rating"`
}

// Total returns the sum of all counters.
func (f Failures) Total() int {
	return f.SkippedAgent + f.Disabled + f.Unresolved + f.NoRating
}

// Job is the resumable unit of work for one library.
type Job struct {
	LibraryID   int64               `json:"library_id"`
	Library     string              `json:"library"`
	LibraryType catalog.LibraryType `json:"library_type"`
	UUID        string              `json:"uuid"`
	Stage       Stage               `json:"stage"`
	Items       []ItemProgress      `json:"items,omitempty"`
	Failures    Failures            `json:"failures"`
	Applied     int                 `json:"applied"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// New creates a job for lib at the initial stage.
func New(lib catalog.Library) *Job {
	now := time.Now().UTC()
	return &Job{
		LibraryID:   lib.ID,
		Library:     lib.Name,
		LibraryType: lib.Type,
		UUID:        uuid.NewString(),
		Stage:       StageQueued,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Advance moves the cursor to the immediate successor stage. Any other
// transition is a programming error.
func (j *Job) Advance(to Stage) error {
	if j.Stage.Terminal() {
		return fmt.Errorf("job %d: already %s", j.LibraryID, j.Stage)
	}
	if to != j.Stage.Next() {
		return fmt.Errorf("job %d: illegal transition %s -> %s", j.LibraryID, j.Stage, to)
	}
	j.Stage = to
	j.UpdatedAt = time.Now().UTC()
	return nil
}

// Pending returns the indexes of items not yet resolved.
func (j *Job) Pending() []int {
	var pending []int
	for i, item := range j.Items {
		if !item.Resolved {
			pending = append(pending, i)
		}
	}
	return pending
}

// Clone returns a deep copy of the job.
func (j *Job) Clone() *Job {
	clone := *j
	clone.Items = append([]ItemProgress(nil), j.Items...)
	return &clone
}
