package jobs

import (
	"encoding/json"
	"fmt"
)

// Stage is the job cursor.
type Stage int

const (
	StageQueued Stage = iota
	StageEnumerateItems
	StageResolveIDs
	StageApplyRatings
	StageDone
)

var stageNames = [...]string{
	StageQueued:         "QUEUED",
	StageEnumerateItems: "ENUMERATE_ITEMS",
	StageResolveIDs:     "RESOLVE_IDS",
	StageApplyRatings:   "APPLY_RATINGS",
	StageDone:           "DONE",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("Stage(%d)", int(s))
	}
	return stageNames[s]
}

// Valid reports whether s is a known stage.
func (s Stage) Valid() bool {
	return s >= StageQueued && s <= StageDone
}

// Terminal reports whether s ends the job.
func (s Stage) Terminal() bool { return s == StageDone }

// Next returns the stage following s. DONE is its own successor.
func (s Stage) Next() Stage {
	if s >= StageDone {
		return StageDone
	}
	return s + 1
}

// ParseStage resolves a stage name.
func ParseStage(name string) (Stage, error) {
	for i, n := range stageNames {
		if n == name {
			return Stage(i), nil
		}
	}
	return 0, fmt.Errorf("unknown stage %q", name)
}

func (s Stage) MarshalJSON() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("marshal invalid stage %d", int(s))
	}
	return json.Marshal(s.String())
}

func (s *Stage) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return fmt.Errorf("stage must be a string: %w", err)
	}
	parsed, err := ParseStage(name)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
