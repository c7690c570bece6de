package main

import (
	"database/sql"
	"fmt"
	"strings"
	"testing"
)

func seedConfusedSession(t *testing.T, db *sql.DB, sessionID string, courseID int64, unit string, topics []string) {
	t.Helper()
	convID := insertTestConversation(t, db, sessionID, "I'm lost on "+strings.Join(topics, ", "), "Let me explain.")
	_, err := InsertConfusionRecord(db, ConfusionRecord{
		SessionID:               sessionID,
		CourseID:                &courseID,
		Unit:                    &unit,
		Topics:                  topics,
		ConfusedConversationIDs: []int64{convID},
	})
	if err != nil {
		t.Fatalf("insert confusion record: %v", err)
	}
}

func TestParseReviewRequestFailuresReturnEmptyCriteria(t *testing.T) {
	db := newTestDB(t)
	gen := NewReviewGenerator(db, newFakeCompleter())

	// No courses at all: no completion attempted.
	criteria := gen.ParseReviewRequest("review pointers please")
	if criteria.CourseID != nil {
		t.Fatalf("expected nil course id with no courses, got %v", *criteria.CourseID)
	}

	insertTestCourse(t, db, "CS 101", []CourseUnit{{Name: "Unit 1", Topics: []string{"pointers"}}})

	prose := NewReviewGenerator(db, newFakeCompleter("I think they want pointers"))
	criteria = prose.ParseReviewRequest("review pointers please")
	if criteria.CourseID != nil {
		t.Fatalf("expected nil course id on unparseable response, got %v", *criteria.CourseID)
	}
	if criteria.Topics == nil {
		t.Fatal("empty criteria should still carry an empty topics slice")
	}

	failing := NewReviewGenerator(db, &fakeCompleter{script: []fakeCompletion{{err: fmt.Errorf("upstream down")}}})
	criteria = failing.ParseReviewRequest("review pointers please")
	if criteria.CourseID != nil {
		t.Fatalf("expected nil course id on completion error, got %v", *criteria.CourseID)
	}
}

func TestGenerateReviewFromRequestMessages(t *testing.T) {
	db := newTestDB(t)
	courseID := insertTestCourse(t, db, "CS 101", []CourseUnit{
		{Name: "Unit 1", Topics: []string{"pointers"}},
	})

	// Unintelligible request.
	gen := NewReviewGenerator(db, newFakeCompleter("no json here"))
	result := gen.GenerateReviewFromRequest("blah")
	if result.Success {
		t.Fatal("expected failure for unintelligible request")
	}
	if !strings.Contains(result.Message, "Could not understand which course") {
		t.Fatalf("unexpected message: %q", result.Message)
	}

	// Parsed fine but no confusion records yet.
	gen = NewReviewGenerator(db, newFakeCompleter(
		fmt.Sprintf(`{"course_id": %d, "unit": null, "topics": []}`, courseID),
	))
	result = gen.GenerateReviewFromRequest("review CS 101")
	if result.Success {
		t.Fatal("expected failure with no confusion points")
	}
	if !strings.Contains(result.Message, "No confusion points found") {
		t.Fatalf("unexpected message: %q", result.Message)
	}
}

func TestGenerateReviewFromRequestHappyPath(t *testing.T) {
	db := newTestDB(t)
	courseID := insertTestCourse(t, db, "CS 101", []CourseUnit{
		{Name: "Unit 1", Topics: []string{"pointers"}},
	})
	seedConfusedSession(t, db, "s-ptr", courseID, "Unit 1", []string{"pointers"})

	llm := newFakeCompleter(
		fmt.Sprintf(`{"course_id": %d, "unit": "Unit 1", "topics": ["pointers"]}`, courseID),
		`{"summary": "You struggled with pointer dereferencing.",
		  "questions": [{"question": "What does *p mean?", "type": "short_answer", "hint": "Think about memory."}]}`,
	)
	gen := NewReviewGenerator(db, llm)

	result := gen.GenerateReviewFromRequest("quiz me on pointers in CS 101")
	if !result.Success {
		t.Fatalf("expected success, got message %q", result.Message)
	}
	if result.Content == nil || len(result.Content.Questions) != 1 {
		t.Fatalf("expected one question, got %+v", result.Content)
	}
	if result.Content.Questions[0].Type != "short_answer" {
		t.Fatalf("unexpected question type %q", result.Content.Questions[0].Type)
	}
	if result.Metadata == nil || result.Metadata.CourseID != courseID || result.Metadata.SessionCount != 1 {
		t.Fatalf("unexpected metadata %+v", result.Metadata)
	}
	if llm.calls != 2 {
		t.Fatalf("expected parse + synthesis completions, got %d", llm.calls)
	}
}

func TestGenerateReviewByCriteria(t *testing.T) {
	db := newTestDB(t)
	courseID := insertTestCourse(t, db, "CS 101", []CourseUnit{
		{Name: "Unit 1", Topics: []string{"pointers"}},
	})
	seedConfusedSession(t, db, "s-ptr", courseID, "Unit 1", []string{"pointers"})

	gen := NewReviewGenerator(db, newFakeCompleter(
		`{"summary": "Pointers recap.", "questions": [{"question": "Q1", "type": "conceptual", "hint": ""}]}`,
	))

	result := gen.GenerateReviewByCriteria(courseID+99, nil, nil)
	if result.Success || !strings.Contains(result.Message, "not found") {
		t.Fatalf("expected course-not-found failure, got %+v", result)
	}

	unit := "Unit 2"
	result = gen.GenerateReviewByCriteria(courseID, &unit, []string{"recursion"})
	if result.Success {
		t.Fatal("expected no-match failure")
	}
	if !strings.Contains(result.Message, "CS 101") ||
		!strings.Contains(result.Message, "in Unit 2") ||
		!strings.Contains(result.Message, "on recursion") {
		t.Fatalf("message should name course, unit and topics: %q", result.Message)
	}

	result = gen.GenerateReviewByCriteria(courseID, nil, []string{"pointers"})
	if !result.Success {
		t.Fatalf("expected success, got message %q", result.Message)
	}
	if result.Metadata == nil || result.Metadata.CourseName != "CS 101" {
		t.Fatalf("expected course name in metadata, got %+v", result.Metadata)
	}
}

func TestGenerateReviewContentFallback(t *testing.T) {
	db := newTestDB(t)

	gen := NewReviewGenerator(db, &fakeCompleter{script: []fakeCompletion{{err: fmt.Errorf("timeout")}}})
	content := gen.GenerateReviewContent(nil)
	if content.Summary != "Unable to generate review content at this time." {
		t.Fatalf("unexpected fallback summary %q", content.Summary)
	}
	if len(content.Questions) != 1 || content.Questions[0].Type != "general" {
		t.Fatalf("unexpected fallback questions %+v", content.Questions)
	}

	gen = NewReviewGenerator(db, newFakeCompleter("definitely not json"))
	content = gen.GenerateReviewContent(nil)
	if content.Summary != "Unable to generate review content at this time." {
		t.Fatalf("parse failure should fall back, got %q", content.Summary)
	}
}

func TestAvailableTopics(t *testing.T) {
	db := newTestDB(t)
	courseID := insertTestCourse(t, db, "CS 101", []CourseUnit{
		{Name: "Unit 1", Topics: []string{"pointers", "loops"}},
	})

	gen := NewReviewGenerator(db, newFakeCompleter())

	result := gen.AvailableTopics(courseID + 99)
	if result.Success || !strings.Contains(result.Message, "not found") {
		t.Fatalf("expected course-not-found failure, got %+v", result)
	}

	result = gen.AvailableTopics(courseID)
	if !result.Success {
		t.Fatalf("expected success with empty lists, got %+v", result)
	}
	if len(result.AvailableUnits) != 0 || len(result.AvailableTopics) != 0 {
		t.Fatalf("expected empty availability, got %+v", result)
	}
	if !strings.Contains(result.Message, "No confusion points found") {
		t.Fatalf("unexpected message %q", result.Message)
	}

	seedConfusedSession(t, db, "s1", courseID, "Unit 1", []string{"pointers", "loops"})
	seedConfusedSession(t, db, "s2", courseID, "Unit 2", []string{"loops"})

	result = gen.AvailableTopics(courseID)
	if !result.Success || result.SessionCount != 2 {
		t.Fatalf("expected 2 sessions, got %+v", result)
	}
	if len(result.AvailableUnits) != 2 || result.AvailableUnits[0] != "Unit 1" || result.AvailableUnits[1] != "Unit 2" {
		t.Fatalf("units should be sorted and unique, got %v", result.AvailableUnits)
	}
	if len(result.AvailableTopics) != 2 || result.AvailableTopics[0] != "loops" || result.AvailableTopics[1] != "pointers" {
		t.Fatalf("topics should be sorted and deduplicated, got %v", result.AvailableTopics)
	}
	if result.CourseName != "CS 101" {
		t.Fatalf("unexpected course name %q", result.CourseName)
	}
}

func TestConfusionSummary(t *testing.T) {
	db := newTestDB(t)
	courseID := insertTestCourse(t, db, "CS 101", []CourseUnit{
		{Name: "Unit 1", Topics: []string{"pointers"}},
	})
	gen := NewReviewGenerator(db, newFakeCompleter())

	result := gen.ConfusionSummary(courseID, nil, nil)
	if !result.Success {
		t.Fatalf("empty criteria summary should succeed, got %+v", result)
	}
	if result.Summary != "No confusion points found for the specified criteria." {
		t.Fatalf("unexpected summary %q", result.Summary)
	}

	seedConfusedSession(t, db, "s1", courseID, "Unit 1", []string{"pointers"})
	seedConfusedSession(t, db, "s2", courseID, "Unit 1", []string{"pointers", "memory"})

	result = gen.ConfusionSummary(courseID, nil, nil)
	if !result.Success || result.SessionCount != 2 || result.ConfusionCount != 2 {
		t.Fatalf("unexpected summary result %+v", result)
	}
	if result.Summary != "Found 2 confusion points across 2 sessions." {
		t.Fatalf("unexpected summary text %q", result.Summary)
	}
	if len(result.TopicsWithConfusion) != 2 || result.TopicsWithConfusion[0] != "memory" {
		t.Fatalf("topics should be sorted, got %v", result.TopicsWithConfusion)
	}
	if len(result.UnitsWithConfusion) != 1 || result.UnitsWithConfusion[0] != "Unit 1" {
		t.Fatalf("unexpected units %v", result.UnitsWithConfusion)
	}
}

func TestGradeAnswer(t *testing.T) {
	db := newTestDB(t)

	gen := NewReviewGenerator(db, newFakeCompleter(
		`{"score_percentage": 90, "score_category": "Excellent",
		  "feedback": {"strengths": "Clear reasoning.", "areas_for_improvement": "Minor details.",
		               "suggestions": "Review edge cases.", "encouragement": "Great work!"},
		  "overall_assessment": "Strong answer"}`,
	))
	result := gen.GradeAnswer("What does *p mean?", "short_answer", "It dereferences the pointer.", "")
	if result.ScorePercentage != 90 || result.ScoreCategory != "Excellent" {
		t.Fatalf("unexpected grade %+v", result)
	}
	if result.Feedback.Strengths != "Clear reasoning." {
		t.Fatalf("unexpected feedback %+v", result.Feedback)
	}

	gen = NewReviewGenerator(db, newFakeCompleter("I'd give it a B"))
	result = gen.GradeAnswer("Q", "conceptual", "A", "")
	if result.ScorePercentage != 75 || result.ScoreCategory != "Good" {
		t.Fatalf("expected neutral fallback grade, got %+v", result)
	}
	if result.OverallAssessment != "Answer submitted successfully" {
		t.Fatalf("unexpected fallback assessment %q", result.OverallAssessment)
	}
}
