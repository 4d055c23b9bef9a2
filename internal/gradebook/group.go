package gradebook

import "errors"

// GroupQuizzesByTitle folds timed-test instances that share a title into one
// item. Titles are compared exactly: no trimming, no case folding.
//
// The grouped item keeps the first instance's id and title, concatenates the
// instances' problems without de-duplication and sums their weights. Each
// student's rows are summed across instances; on a colliding problem id the
// later instance's grade wins. Groups without any problem are dropped.
func GroupQuizzesByTitle(quizzes []ItemGrades) []ItemGrades {
	var order []string
	groups := make(map[string][]ItemGrades, len(quizzes))
	for _, q := range quizzes {
		title := q.Item.Title
		if _, seen := groups[title]; !seen {
			order = append(order, title)
		}
		groups[title] = append(groups[title], q)
	}

	out := make([]ItemGrades, 0, len(order))
	for _, title := range order {
		members := groups[title]
		first := members[0].Item
		item := AssessmentItem{
			Type:  KindQuiz,
			ID:    first.ID,
			Title: first.Title,
			DueAt: first.DueAt,
		}
		var errs []error
		for _, m := range members {
			item.Problems = append(item.Problems, m.Item.Problems...)
			item.TotalPoints += m.Item.TotalPoints
			if m.Err != nil {
				errs = append(errs, m.Err)
			}
		}
		if len(item.Problems) == 0 {
			continue
		}
		out = append(out, ItemGrades{
			Item: item,
			Rows: mergeRows(members),
			Err:  errors.Join(errs...),
		})
	}
	return out
}

func mergeRows(members []ItemGrades) []StudentGradeRow {
	var order []int64
	byUser := map[int64]*StudentGradeRow{}
	gradeIdx := map[int64]map[int64]int{}

	for _, m := range members {
		for _, r := range m.Rows {
			acc, ok := byUser[r.UserID]
			if !ok {
				acc = &StudentGradeRow{
					UserID:      r.UserID,
					StudentName: r.StudentName,
					StudentID:   r.StudentID,
				}
				byUser[r.UserID] = acc
				gradeIdx[r.UserID] = map[int64]int{}
				order = append(order, r.UserID)
			}
			acc.TotalScore += r.TotalScore
			acc.TotalPoints += r.TotalPoints
			idx := gradeIdx[r.UserID]
			for _, g := range r.ProblemGrades {
				if i, dup := idx[g.ProblemID]; dup {
					acc.ProblemGrades[i] = g
					continue
				}
				idx[g.ProblemID] = len(acc.ProblemGrades)
				acc.ProblemGrades = append(acc.ProblemGrades, g)
			}
		}
	}

	rows := make([]StudentGradeRow, 0, len(order))
	for _, id := range order {
		rows = append(rows, *byUser[id])
	}
	return rows
}
