package processor

import (
	"fmt"
	"strings"

	"github.com/gradepipe/gradepipe/internal/domain"
)

const gradingSystemPrompt = `You are an experienced teacher grading student work. ` +
	`Grade strictly against the provided rubric. Respond with a single JSON object ` +
	`with keys: "feedback" (string), "strengths" (array of strings), ` +
	`"opportunities" (array of strings), "overall_grade" (string), and "scores" ` +
	`(object mapping criterion id to numeric score). Do not include any text ` +
	`outside the JSON object.`

const rubricSystemPrompt = `You are an experienced teacher designing a grading rubric. ` +
	`Respond with a single JSON object with a "criteria" key: an array of objects ` +
	`with "title" (string), "description" (string), "max_score" (number), and ` +
	`"levels" (array of {"label", "score", "description"}). Do not include any ` +
	`text outside the JSON object.`

// buildGradingPrompt assembles the grading prompt from the assignment, the
// rubric criteria, and the student's document.
func buildGradingPrompt(task *domain.GradingTask, rubric *domain.Rubric, content string) string {
	var b strings.Builder

	b.WriteString("Assignment:\n")
	b.WriteString(task.AssignmentPrompt)
	b.WriteString("\n\nRubric:\n")

	for _, c := range rubric.Criteria {
		fmt.Fprintf(&b, "- [%s] %s (max %g points)", c.ID, c.Title, c.MaxScore)
		if c.Description != "" {
			b.WriteString(": ")
			b.WriteString(c.Description)
		}
		b.WriteString("\n")
		for _, l := range c.Levels {
			fmt.Fprintf(&b, "    %s (%g): %s\n", l.Label, l.Score, l.Description)
		}
	}

	b.WriteString("\nStudent submission:\n")
	b.WriteString(content)
	b.WriteString("\n\nGrade the submission against each rubric criterion, " +
		"using the bracketed criterion ids as the keys of \"scores\".")
	return b.String()
}

// buildRubricPrompt assembles the rubric generation prompt from the
// assignment and the teacher's rubric description.
func buildRubricPrompt(task *domain.GradingTask, rubric *domain.Rubric) string {
	var b strings.Builder

	b.WriteString("Assignment:\n")
	b.WriteString(task.AssignmentPrompt)

	if strings.TrimSpace(rubric.Prompt) != "" {
		b.WriteString("\n\nTeacher's rubric description:\n")
		b.WriteString(rubric.Prompt)
	}

	b.WriteString("\n\nProduce a grading rubric for this assignment.")
	return b.String()
}
