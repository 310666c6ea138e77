package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
)

// ErrUnorderedFrames is returned when frame timestamps go backwards
var ErrUnorderedFrames = errors.New("frames: timestamps are not in non-decreasing order")

// PlayfieldCenter is the middle of the 512x384 gameplay area
var PlayfieldCenter = Vec2{X: 256, Y: 192}

// defaultLeadIn is how long before the first object the cursor starts at the playfield centre
const defaultLeadIn = 1000.0

// HitObject is a single circle the cursor has to reach at Time
type HitObject struct {
	Time     float64 `json:"time"`
	Position Vec2    `json:"position"`
}

// replayFile is the on-disk frame format
type replayFile struct {
	Frames []ReplayFrame `json:"frames"`
}

// beatmapFile is the on-disk hit object format consumed by the frame generator
type beatmapFile struct {
	HitObjects []HitObject `json:"hitObjects"`
}

// ValidateFrames checks a frame sequence is non-empty and ordered by time
func ValidateFrames(frames []ReplayFrame) error {
	if len(frames) == 0 {
		return ErrEmptyFrameSequence
	}
	for i := 1; i < len(frames); i++ {
		if frames[i].Time < frames[i-1].Time {
			return fmt.Errorf("%w: frame %d at %.2fms follows %.2fms", ErrUnorderedFrames, i, frames[i].Time, frames[i-1].Time)
		}
	}
	return nil
}

// LoadFrames reads and validates a frames file
func LoadFrames(path string) ([]ReplayFrame, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read frames file: %w", err)
	}
	var f replayFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse frames file %q: %w", path, err)
	}
	if err := ValidateFrames(f.Frames); err != nil {
		return nil, fmt.Errorf("invalid frames file %q: %w", path, err)
	}
	return f.Frames, nil
}

// SaveFrames writes frames in the format LoadFrames reads
func SaveFrames(path string, frames []ReplayFrame) error {
	data, err := json.MarshalIndent(replayFile{Frames: frames}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// LoadHitObjects reads a beatmap hit object file
func LoadHitObjects(path string) ([]HitObject, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read beatmap file: %w", err)
	}
	var b beatmapFile
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("failed to parse beatmap file %q: %w", path, err)
	}
	return b.HitObjects, nil
}

// GenerateAutoFrames builds the autoplay path for a beatmap: a lead-in frame at the
// playfield centre, then one frame on each hit object in time order.
func GenerateAutoFrames(objects []HitObject, leadIn float64) []ReplayFrame {
	sorted := make([]HitObject, len(objects))
	copy(sorted, objects)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time < sorted[j].Time })

	start := 0.0
	if len(sorted) > 0 {
		start = sorted[0].Time - leadIn
	}

	frames := make([]ReplayFrame, 0, len(sorted)+1)
	frames = append(frames, ReplayFrame{Time: start, Position: PlayfieldCenter})
	for _, obj := range sorted {
		frames = append(frames, ReplayFrame{Time: obj.Time, Position: obj.Position})
	}
	return frames
}
