package main

import (
	"fmt"
	"strings"
)

const confusedResponseExcerptLen = 200

// formatCourseCatalog renders the course catalog the same way for every
// prompt that needs it: course id and name, then unit and topic lines.
func formatCourseCatalog(courses []Course) string {
	var b strings.Builder
	for _, course := range courses {
		fmt.Fprintf(&b, "Course %d: %s\n", course.ID, course.Name)
		for _, unit := range course.Units {
			fmt.Fprintf(&b, "  Unit: %s\n", unit.Name)
			fmt.Fprintf(&b, "    Topics: %s\n", strings.Join(unit.Topics, ", "))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func buildSessionAnalysisPrompt(courses []Course, conversations []Conversation) string {
	var transcript strings.Builder
	for _, conv := range conversations {
		fmt.Fprintf(&transcript, "Conversation %d:\n", conv.ID)
		fmt.Fprintf(&transcript, "Student: %s\n", conv.UserMessage)
		fmt.Fprintf(&transcript, "AI: %s\n\n", conv.AIResponse)
	}

	return fmt.Sprintf(`You analyze a tutoring session to classify it against a course catalog and flag exchanges where the student showed confusion.

Available courses:
%s
Full session transcript:
%s
Pick the single best-matching course, the unit within it, and the topics discussed. List the conversation numbers where the student was confused (asked for re-explanation, expressed not understanding, repeated a question, made conceptual errors). If no course fits, use null for course_id and unit and empty lists.

Respond with JSON only (no markdown):
{"course_id": 7, "unit": "Unit 1", "topics": ["pointers"], "confused_conversation_ids": [1]}`,
		formatCourseCatalog(courses), transcript.String())
}

func buildReviewRequestPrompt(courses []Course, request string) string {
	return fmt.Sprintf(`You convert a student's review request into structured criteria against a course catalog.

Available courses:
%s
Student request: %s

Match the request to one course by id, optionally a unit name, and the topics mentioned. Unit and topic names must come from the catalog. If you cannot tell which course is meant, use null for course_id.

Respond with JSON only (no markdown):
{"course_id": 7, "unit": "Unit 1", "topics": ["loops"]}`,
		formatCourseCatalog(courses), request)
}

// buildReviewGenerationPrompt shows the completion service only the flagged
// exchanges of each session, not the whole transcript. This bounds prompt
// size and keeps generation focused on the actual confusion.
func buildReviewGenerationPrompt(sessions []SessionData) string {
	var context strings.Builder
	for _, session := range sessions {
		fmt.Fprintf(&context, "Session %s:\n", session.SessionID)
		if session.Analysis != nil {
			fmt.Fprintf(&context, "Topics: %s\n", strings.Join(session.Analysis.Topics, ", "))
			if session.Analysis.Unit != nil {
				fmt.Fprintf(&context, "Unit: %s\n", *session.Analysis.Unit)
			}
		}
		for _, conv := range session.Conversations {
			if session.Analysis == nil || !containsID(session.Analysis.ConfusedConversationIDs, conv.ID) {
				continue
			}
			fmt.Fprintf(&context, "  Confused about: %s\n", conv.UserMessage)
			fmt.Fprintf(&context, "  Response: %s\n", excerpt(conv.AIResponse, confusedResponseExcerptLen))
		}
		context.WriteString("\n")
	}

	return fmt.Sprintf(`You build targeted review material from the confusion points of past tutoring sessions.

Confusion points:
%s
Write a short summary of what the student struggled with, then 3-5 review questions that target those exact points. Each question has a type (conceptual, coding, or applied) and a hint.

Respond with JSON only (no markdown):
{"summary": "...", "questions": [{"question": "...", "type": "conceptual", "hint": "..."}]}`,
		context.String())
}

func buildGradingPrompt(question, questionType, studentAnswer, hint string) string {
	if strings.TrimSpace(hint) == "" {
		hint = "No hint provided"
	}
	return fmt.Sprintf(`You grade a student's answer to a review question.

Question: %s
Question type: %s
Hint given: %s
Student answer: %s

Score the answer 0-100 and pick a category (Excellent, Good, Needs Work, or Incorrect). Give concrete feedback in each of the four fields.

Respond with JSON only (no markdown):
{"score_percentage": 85, "score_category": "Good", "feedback": {"strengths": "...", "areas_for_improvement": "...", "suggestions": "...", "encouragement": "..."}, "overall_assessment": "..."}`,
		question, questionType, hint, studentAnswer)
}

func buildCourseStructurePrompt(syllabusText string) string {
	return fmt.Sprintf(`You extract the unit and topic structure of a course from its syllabus text.

Syllabus:
%s

Identify the course's units in order and the topics each one covers. Topic names should be short lowercase phrases.

Respond with JSON only (no markdown):
[{"name": "Unit 1: Programming Basics", "topics": ["variables", "data types"]}]`,
		syllabusText)
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func excerpt(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
