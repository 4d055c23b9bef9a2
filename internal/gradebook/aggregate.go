package gradebook

// Aggregate folds assignment items and already grouped quiz items into a
// course roster. It never mutates its inputs and returns a fresh roster, so
// running it twice on the same inputs gives equal results.
//
// An item is registered when it has at least one grade row or when its fetch
// failed; a failed item shows up as a column without students. Students are
// ordered by first appearance, items keep their input order with assignments
// first.
func Aggregate(assignments, quizzes []ItemGrades) Roster {
	b := rosterBuilder{index: map[int64]int{}}
	for _, ig := range assignments {
		b.add(KindAssignment, ig)
	}
	for _, ig := range quizzes {
		b.add(KindQuiz, ig)
	}
	return Roster{Items: b.items, Students: b.students}
}

type rosterBuilder struct {
	items    []AssessmentItem
	students []CourseStudentEntry
	index    map[int64]int
}

func (b *rosterBuilder) add(kind Kind, ig ItemGrades) {
	if len(ig.Rows) == 0 && ig.Err == nil {
		return
	}
	item := ig.Item
	item.Type = kind
	b.items = append(b.items, item)

	for _, row := range ig.Rows {
		entry := b.entry(row)
		st := subTotalFromRow(row)
		target := entry.Assignments
		if kind == KindQuiz {
			target = entry.Quizzes
		}
		if prev, ok := target[item.ID]; ok {
			st = mergeSubTotals(prev, st)
		}
		target[item.ID] = st
	}
}

func (b *rosterBuilder) entry(row StudentGradeRow) *CourseStudentEntry {
	if i, ok := b.index[row.UserID]; ok {
		return &b.students[i]
	}
	b.index[row.UserID] = len(b.students)
	b.students = append(b.students, CourseStudentEntry{
		UserID:      row.UserID,
		StudentName: row.StudentName,
		StudentID:   row.StudentID,
		Assignments: map[int64]SubTotal{},
		Quizzes:     map[int64]SubTotal{},
	})
	return &b.students[len(b.students)-1]
}

func subTotalFromRow(row StudentGradeRow) SubTotal {
	problems := make(map[int64]ProblemGrade, len(row.ProblemGrades))
	for _, g := range row.ProblemGrades {
		problems[g.ProblemID] = g
	}
	return SubTotal{
		TotalScore:  row.TotalScore,
		TotalPoints: row.TotalPoints,
		Ratio:       Ratio(row.TotalScore, row.TotalPoints),
		Problems:    problems,
	}
}

// mergeSubTotals combines two subtotals of the same student and item, which
// happens when an upstream payload repeats a student.
func mergeSubTotals(a, b SubTotal) SubTotal {
	problems := make(map[int64]ProblemGrade, len(a.Problems)+len(b.Problems))
	for k, v := range a.Problems {
		problems[k] = v
	}
	for k, v := range b.Problems {
		problems[k] = v
	}
	score := a.TotalScore + b.TotalScore
	points := a.TotalPoints + b.TotalPoints
	return SubTotal{
		TotalScore:  score,
		TotalPoints: points,
		Ratio:       Ratio(score, points),
		Problems:    problems,
	}
}
