package jobs

// RowError records a row that could not be imported.
type RowError struct {
	Row    int    `json:"row,omitempty"`
	Batch  int    `json:"batch,omitempty"`
	Reason string `json:"reason"`
}

// Stats is the progress record of a job. Every field is optional; absent
// counters have not been reported yet.
type Stats struct {
	Progress         *int       `json:"progress,omitempty"`
	Total            *int       `json:"total,omitempty"`
	Created          *int       `json:"created,omitempty"`
	Updated          *int       `json:"updated,omitempty"`
	Skipped          *int       `json:"skipped,omitempty"`
	Merged           *int       `json:"merged,omitempty"`
	Invalid          *int       `json:"invalid,omitempty"`
	Errors           []RowError `json:"errors,omitempty"`
	ProcessingTimeMs *int64     `json:"processingTimeMs,omitempty"`
}

// Merge folds update into s and returns the result. Counters and progress
// only move up, and errors are appended once each, so merging an older
// snapshot after a newer one cannot regress what a poller has seen.
func (s Stats) Merge(update Stats) Stats {
	out := s
	out.Progress = maxInt(s.Progress, update.Progress)
	out.Total = maxInt(s.Total, update.Total)
	out.Created = maxInt(s.Created, update.Created)
	out.Updated = maxInt(s.Updated, update.Updated)
	out.Skipped = maxInt(s.Skipped, update.Skipped)
	out.Merged = maxInt(s.Merged, update.Merged)
	out.Invalid = maxInt(s.Invalid, update.Invalid)

	if update.ProcessingTimeMs != nil && (s.ProcessingTimeMs == nil || *update.ProcessingTimeMs > *s.ProcessingTimeMs) {
		v := *update.ProcessingTimeMs
		out.ProcessingTimeMs = &v
	}

	out.Errors = append([]RowError(nil), s.Errors...)
	seen := make(map[RowError]bool, len(out.Errors))
	for _, e := range out.Errors {
		seen[e] = true
	}
	for _, e := range update.Errors {
		if !seen[e] {
			seen[e] = true
			out.Errors = append(out.Errors, e)
		}
	}
	return out
}

// ProgressValue returns the progress, or 0 when unreported.
func (s Stats) ProgressValue() int {
	if s.Progress == nil {
		return 0
	}
	return *s.Progress
}

// Int returns a pointer to v for building partial stats.
func Int(v int) *int {
	return &v
}

func maxInt(a, b *int) *int {
	switch {
	case a == nil && b == nil:
		return nil
	case a == nil:
		v := *b
		return &v
	case b == nil || *a >= *b:
		v := *a
		return &v
	}
	v := *b
	return &v
}
