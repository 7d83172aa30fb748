package resultlog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Run is one finished run found under a results directory.
type Run struct {
	Dir     string
	Summary Summary
}

// ListRuns reads the summary of every run directory under root, newest first.
// Directories without a summary are skipped. A missing root is not an error.
func ListRuns(root string) ([]Run, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var runs []Run
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(root, e.Name())
		data, err := os.ReadFile(filepath.Join(dir, SummaryFile))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		var s Summary
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("%s: %w", dir, err)
		}
		if s.RunID == "" {
			s.RunID = e.Name()
		}
		runs = append(runs, Run{Dir: dir, Summary: s})
	}

	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].Summary.Start.After(runs[j].Summary.Start)
	})
	return runs, nil
}
