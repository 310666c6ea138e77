package main

import "fmt"

// ModInfo describes the mod to the game host
type ModInfo struct {
	Name             string   `json:"name"`
	Acronym          string   `json:"acronym"`
	Description      string   `json:"description"`
	Type             string   `json:"type"`
	ScoreMultiplier  float64  `json:"scoreMultiplier"`
	IncompatibleMods []string `json:"incompatibleMods"`
	UserPlayable     bool     `json:"userPlayable"`
	RestartOnFail    bool     `json:"restartOnFail"`
}

// dockerMod is what the host sees when the mod is enabled
var dockerMod = ModInfo{
	Name:             "Docker",
	Acronym:          "NX",
	Description:      "Build to the beat",
	Type:             "automation",
	ScoreMultiplier:  1.0,
	IncompatibleMods: []string{"DifficultyAdjust"},
	UserPlayable:     false,
	RestartOnFail:    false,
}

// CheckCompatible returns an error if any enabled mod cannot run alongside this one
func (m ModInfo) CheckCompatible(enabled []string) error {
	for _, e := range enabled {
		for _, bad := range m.IncompatibleMods {
			if e == bad {
				return fmt.Errorf("%s is incompatible with %s", m.Name, e)
			}
		}
	}
	return nil
}

// BeatmapDifficulty holds the difficulty settings the host passes through the mod
type BeatmapDifficulty struct {
	CircleSize        float64 `json:"circleSize"`
	DrainRate         float64 `json:"drainRate"`
	OverallDifficulty float64 `json:"overallDifficulty"`
	ApproachRate      float64 `json:"approachRate"`
}

// ScoreRank is the grade awarded at the end of a play
type ScoreRank int

const (
	RankD ScoreRank = iota
	RankC
	RankB
	RankA
	RankS
	RankSH
	RankX
	RankXH
)

var rankNames = []string{"D", "C", "B", "A", "S", "SH", "X", "XH"}

func (r ScoreRank) String() string {
	if r < 0 || int(r) >= len(rankNames) {
		return "?"
	}
	return rankNames[r]
}

// ParseScoreRank parses a rank name as produced by String
func ParseScoreRank(s string) (ScoreRank, error) {
	for i, name := range rankNames {
		if name == s {
			return ScoreRank(i), nil
		}
	}
	return RankD, fmt.Errorf("unknown rank %q", s)
}

// ApplyToDifficulty forces the overall difficulty. The synthetic clicks are not always fast
// enough for tight hit windows.
func (s *Session) ApplyToDifficulty(d *BeatmapDifficulty) {
	d.OverallDifficulty = s.overallDifficulty
}

// AdjustRank leaves the rank untouched
func (s *Session) AdjustRank(rank ScoreRank, accuracy float64) ScoreRank {
	return rank
}
