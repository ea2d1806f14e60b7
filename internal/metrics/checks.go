package metrics

import "sort"

// CheckRow is one line of a check breakdown.
type CheckRow struct {
	Name   string
	Passed int64
	Failed int64
}

// FlattenChecks converts the check map into rows sorted by descending failures,
// then by name for stability.
func FlattenChecks(checks map[string]CheckCounts) []CheckRow {
	if len(checks) == 0 {
		return nil
	}
	rows := make([]CheckRow, 0, len(checks))
	for name, c := range checks {
		rows = append(rows, CheckRow{Name: name, Passed: c.Passed, Failed: c.Failed})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Failed == rows[j].Failed {
			return rows[i].Name < rows[j].Name
		}
		return rows[i].Failed > rows[j].Failed
	})
	return rows
}
