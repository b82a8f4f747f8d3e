package jobs

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"sync"

	"ratingsync/internal/fileutil"
)

const stateVersion = 1

type stateDocument struct {
	Version int    `json:"version"`
	Jobs    []*Job `json:"jobs"`
}

// State is the persisted set of unfinished jobs, keyed by library id.
type State struct {
	path string

	mu   sync.Mutex
	jobs map[int64]*Job
}

// LoadState reads the state document at path. A missing document yields an
// empty state; an unreadable or corrupt one is an error since silently
// dropping jobs would lose resume progress.
func LoadState(path string) (*State, error) {
	s := &State{path: path, jobs: make(map[int64]*Job)}
	if path == "" {
		return s, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("read job state: %w", err)
	}
	if len(data) == 0 {
		return s, nil
	}

	var doc stateDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse job state %s: %w", path, err)
	}
	if doc.Version != stateVersion {
		return nil, fmt.Errorf("job state %s: unsupported version %d", path, doc.Version)
	}
	for _, job := range doc.Jobs {
		if job == nil {
			continue
		}
		if job.Stage.Terminal() {
			continue
		}
		if _, dup := s.jobs[job.LibraryID]; dup {
			return nil, fmt.Errorf("job state %s: duplicate library %d", path, job.LibraryID)
		}
		s.jobs[job.LibraryID] = job
	}
	return s, nil
}

// Path returns the document path.
func (s *State) Path() string { return s.path }

// Get returns the job for a library.
func (s *State) Get(libraryID int64) (*Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[libraryID]
	return job, ok
}

// Put records job, replacing any job for the same library.
func (s *State) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.LibraryID] = job
}

// Remove drops the job for a library.
func (s *State) Remove(libraryID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, libraryID)
}

// Clear drops every job.
func (s *State) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = make(map[int64]*Job)
}

// Len returns the number of jobs.
func (s *State) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Jobs returns the jobs ordered by library id.
func (s *State) Jobs() []*Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedLocked()
}

// Save writes the document atomically.
func (s *State) Save() error {
	if s.path == "" {
		return nil
	}
	s.mu.Lock()
	doc := stateDocument{Version: stateVersion, Jobs: s.sortedLocked()}
	err := fileutil.WriteJSON(s.path, doc)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("save job state: %w", err)
	}
	return nil
}

func (s *State) sortedLocked() []*Job {
	jobs := make([]*Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, job)
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].LibraryID < jobs[j].LibraryID
	})
	return jobs
}
