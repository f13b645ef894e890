package models

// TasksEqual reports whether two tasks carry the same synchronized content.
//
// Updated is deliberately excluded from the comparison: it is the decision
// variable of conflict resolution, not an observation, and stamping it must
// never make an otherwise unchanged task look changed. Labels are compared
// as a set of titles since local labels carry no IDs before a round-trip.
func TasksEqual(a, b Task) bool {
	if a.Title != b.Title {
		return false
	}
	if a.Description != b.Description {
		return false
	}
	if !a.DueDate.Equal(b.DueDate) {
		return false
	}
	if a.Priority != b.Priority {
		return false
	}
	if a.Done != b.Done {
		return false
	}
	if !a.DoneAt.Equal(b.DoneAt) {
		return false
	}
	return LabelsEqual(a.Labels, b.Labels)
}

// LabelsEqual compares two label lists as sets of titles.
func LabelsEqual(a, b []Label) bool {
	as := labelTitleSet(a)
	bs := labelTitleSet(b)
	if len(as) != len(bs) {
		return false
	}
	for title := range as {
		if _, ok := bs[title]; !ok {
			return false
		}
	}
	return true
}

// VaultTasksEqual compares location and task content.
func VaultTasksEqual(a, b VaultTask) bool {
	return a.Filepath == b.Filepath && a.Lineno == b.Lineno && TasksEqual(a.Task, b.Task)
}

func labelTitleSet(labels []Label) map[string]struct{} {
	set := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		set[l.Title] = struct{}{}
	}
	return set
}
