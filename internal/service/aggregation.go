package service

import (
	"math"
	"strings"

	"github.com/noah-isme/gradeflow-api/internal/models"
)

// DefaultSubjectWeight applies to subjects absent from the weight lookup.
const DefaultSubjectWeight = 1.0

// appreciationSeparator joins the appreciations of one subject.
const appreciationSeparator = " - "

// round2 rounds half away from zero to two decimals.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// ComputeSubjectAverages groups a student's grades by subject, in first-seen
// order, and reduces each group to a weighted average on a /20 scale.
//
// Grades with a non-positive max_grade or weighting cannot contribute to the
// weighted mean. They are listed in IndividualGrades but left out of the sums,
// and a subject without any usable weight averages 0.
func ComputeSubjectAverages(grades []models.Grade) []models.SubjectAverage {
	result := make([]models.SubjectAverage, 0)
	index := make(map[string]int)
	totals := make([]struct{ weighted, weight float64 }, 0)
	appreciations := make([][]string, 0)

	for _, g := range grades {
		i, ok := index[g.Subject]
		if !ok {
			i = len(result)
			index[g.Subject] = i
			result = append(result, models.SubjectAverage{
				Subject:          g.Subject,
				MaxGrade:         models.NormalizedMaxGrade,
				Weighting:        g.Weighting,
				IndividualGrades: make([]models.GradeDetail, 0),
			})
			totals = append(totals, struct{ weighted, weight float64 }{})
			appreciations = append(appreciations, nil)
		}

		subject := &result[i]
		subject.GradeCount++
		subject.IndividualGrades = append(subject.IndividualGrades, models.GradeDetail{
			AssessmentName: g.DisplayName(),
			AssessmentType: g.AssessmentType,
			Grade:          g.Grade,
			MaxGrade:       g.MaxGrade,
			Weighting:      g.Weighting,
			Appreciation:   g.Appreciation,
		})
		if g.Appreciation != nil && strings.TrimSpace(*g.Appreciation) != "" {
			appreciations[i] = append(appreciations[i], *g.Appreciation)
		}

		if g.MaxGrade <= 0 || g.Weighting <= 0 {
			continue
		}
		totals[i].weighted += g.Grade / g.MaxGrade * models.NormalizedMaxGrade * g.Weighting
		totals[i].weight += g.Weighting
	}

	for i := range result {
		if totals[i].weight > 0 {
			result[i].Average = round2(totals[i].weighted / totals[i].weight)
		}
		if len(appreciations[i]) > 0 {
			joined := strings.Join(appreciations[i], appreciationSeparator)
			result[i].Appreciation = &joined
		}
	}
	return result
}

// ApplyWeights overrides each subject's weighting from the class weight map,
// defaulting to DefaultSubjectWeight for subjects without an entry.
func ApplyWeights(averages []models.SubjectAverage, weights map[string]float64) {
	for i := range averages {
		if w, ok := weights[averages[i].Subject]; ok {
			averages[i].Weighting = w
			continue
		}
		averages[i].Weighting = DefaultSubjectWeight
	}
}

// MergeClassStats copies class statistics onto the matching subjects.
// Subjects without statistics keep nil values.
func MergeClassStats(averages []models.SubjectAverage, stats []models.ClassSubjectStats) {
	bySubject := make(map[string]models.ClassSubjectStats, len(stats))
	for _, s := range stats {
		bySubject[s.SubjectName] = s
	}
	for i := range averages {
		s, ok := bySubject[averages[i].Subject]
		if !ok {
			continue
		}
		classAvg, minAvg, maxAvg := s.ClassAvg, s.MinAvg, s.MaxAvg
		averages[i].ClassAverage = &classAvg
		averages[i].MinAverage = &minAvg
		averages[i].MaxAverage = &maxAvg
	}
}

// OverallAverage is the weighting-weighted mean of subject averages, rounded
// for display. It is 0 when there are no subjects or no positive weight.
func OverallAverage(averages []models.SubjectAverage) float64 {
	var weighted, weight float64
	for _, s := range averages {
		if s.Weighting <= 0 {
			continue
		}
		weighted += s.Average * s.Weighting
		weight += s.Weighting
	}
	if weight == 0 {
		return 0
	}
	return round2(weighted / weight)
}

// ClassOverallAverage computes the class-wide overall average from the class
// statistics of the student's subjects, using the same weights. It returns nil
// when no subject carries class statistics.
func ClassOverallAverage(averages []models.SubjectAverage) *float64 {
	var weighted, weight float64
	for _, s := range averages {
		if s.ClassAverage == nil || s.Weighting <= 0 {
			continue
		}
		weighted += *s.ClassAverage * s.Weighting
		weight += s.Weighting
	}
	if weight == 0 {
		return nil
	}
	avg := round2(weighted / weight)
	return &avg
}

// weightMap turns the weight lookup rows into a subject keyed map.
func weightMap(rows []models.SubjectWeight) map[string]float64 {
	weights := make(map[string]float64, len(rows))
	for _, row := range rows {
		if row.Weighting > 0 {
			weights[row.SubjectName] = row.Weighting
		}
	}
	return weights
}
