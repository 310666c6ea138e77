package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// SessionRecord is the summary written when a session ends
type SessionRecord struct {
	ID        string    `json:"id"`
	Mod       string    `json:"mod"`
	StartedAt time.Time `json:"startedAt"`
	EndedAt   time.Time `json:"endedAt"`
	Reason    string    `json:"reason"`
	Cursor    int       `json:"cursor"`
	Frames    int       `json:"frames"`
	Deadline  string    `json:"deadline"`
	BuildMode string    `json:"buildMode"`
}

func recordFromStatus(st SessionStatus, mode BuildMode) SessionRecord {
	return SessionRecord{
		ID:        st.ID,
		Mod:       st.Mod.Acronym,
		StartedAt: st.StartedAt,
		EndedAt:   st.EndedAt,
		Reason:    st.Reason,
		Cursor:    st.Cursor,
		Frames:    st.Frames,
		Deadline:  st.Deadline,
		BuildMode: string(mode),
	}
}

// writeRecord stores a record as <dir>/<id>.json
func writeRecord(dir string, rec SessionRecord) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create records directory %q: %w", dir, err)
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, rec.ID+".json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write record: %w", err)
	}
	return path, nil
}

// readRecords loads every record in dir, newest first. Unreadable files are returned separately.
func readRecords(dir string) ([]SessionRecord, []string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, err
	}

	var records []SessionRecord
	var broken []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			broken = append(broken, path)
			continue
		}
		var rec SessionRecord
		if err := json.Unmarshal(data, &rec); err != nil || rec.ID == "" {
			broken = append(broken, path)
			continue
		}
		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].StartedAt.After(records[j].StartedAt)
	})
	return records, broken, nil
}

// handleList lists past sessions and optionally prunes old or unreadable records
func handleList(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	recordsFlag := fs.String("records", envOr("BEATBUILD_RECORDS", ""), "Session records directory")
	prune := fs.Bool("prune", false, "Remove unreadable records")
	olderThan := fs.Duration("older-than", 0, "With --prune, also remove records that started longer ago than this")
	if err := fs.Parse(args); err != nil {
		return err
	}

	dir, err := getRecordsDir(expandTilde(*recordsFlag))
	if err != nil {
		return err
	}

	records, broken, err := readRecords(dir)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Fprintln(stdout, "No sessions recorded yet")
			return nil
		}
		return fmt.Errorf("failed to read records directory: %w", err)
	}

	var prunedCount int
	for _, path := range broken {
		if *prune {
			if err := os.Remove(path); err != nil {
				fmt.Fprintf(stdout, "Warning: failed to remove %s: %v\n", path, err)
			} else {
				prunedCount++
			}
		} else {
			fmt.Fprintf(stdout, "Warning: unreadable record %s (use --prune to remove)\n", filepath.Base(path))
		}
	}

	var kept []SessionRecord
	for _, rec := range records {
		if *prune && *olderThan > 0 && time.Since(rec.StartedAt) > *olderThan {
			if err := os.Remove(filepath.Join(dir, rec.ID+".json")); err != nil {
				fmt.Fprintf(stdout, "Warning: failed to remove %s: %v\n", rec.ID, err)
				kept = append(kept, rec)
			} else {
				prunedCount++
			}
			continue
		}
		kept = append(kept, rec)
	}

	if len(kept) == 0 {
		fmt.Fprintln(stdout, "No sessions recorded yet")
	} else {
		fmt.Fprintf(stdout, "Recorded sessions (%d):\n", len(kept))
		for _, rec := range kept {
			duration := rec.EndedAt.Sub(rec.StartedAt).Truncate(time.Millisecond)
			fmt.Fprintf(stdout, "  %s  %s  %-7s %d/%d frames  %s  [%s]\n",
				shortID(rec.ID), rec.StartedAt.Format(time.RFC3339), rec.Reason, rec.Cursor+1, rec.Frames, duration, rec.BuildMode)
		}
	}

	if prunedCount > 0 {
		fmt.Fprintf(stdout, "\nRemoved %d record(s)\n", prunedCount)
	}
	return nil
}
