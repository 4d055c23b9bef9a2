package gradebook

import "strings"

func matches(name, studentID, q string) bool {
	return strings.Contains(strings.ToLower(name), q) || strings.Contains(strings.ToLower(studentID), q)
}

// FilterRows keeps rows whose name or student id contains q, case-insensitively.
// Order is preserved; an empty query keeps everything.
func FilterRows(rows []StudentGradeRow, q string) []StudentGradeRow {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return rows
	}
	out := make([]StudentGradeRow, 0, len(rows))
	for _, r := range rows {
		if matches(r.StudentName, r.StudentID, q) {
			out = append(out, r)
		}
	}
	return out
}

// FilterEntries is FilterRows for the course view.
func FilterEntries(entries []CourseStudentEntry, q string) []CourseStudentEntry {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return entries
	}
	out := make([]CourseStudentEntry, 0, len(entries))
	for _, e := range entries {
		if matches(e.StudentName, e.StudentID, q) {
			out = append(out, e)
		}
	}
	return out
}
