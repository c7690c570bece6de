package main

import (
	"database/sql"
	"fmt"
	"log"
	"sort"
	"strings"
)

// ReviewGenerator turns accumulated confusion records into review material:
// it parses review requests, selects matching sessions, and asks the
// completion service for questions or grades. Generation never fails the
// user-facing flow; on upstream errors it degrades to fixed fallback content.
type ReviewGenerator struct {
	db  *sql.DB
	llm Completer
}

func NewReviewGenerator(db *sql.DB, llm Completer) *ReviewGenerator {
	return &ReviewGenerator{db: db, llm: llm}
}

type ReviewMetadata struct {
	CourseID     int64    `json:"course_id"`
	CourseName   string   `json:"course_name,omitempty"`
	Unit         *string  `json:"unit"`
	Topics       []string `json:"topics"`
	SessionCount int      `json:"session_count"`
}

type ReviewResult struct {
	Success  bool            `json:"success"`
	Message  string          `json:"message,omitempty"`
	Content  *ReviewContent  `json:"content,omitempty"`
	Metadata *ReviewMetadata `json:"metadata,omitempty"`
}

type TopicsResult struct {
	Success         bool     `json:"success"`
	Message         string   `json:"message,omitempty"`
	CourseName      string   `json:"course_name,omitempty"`
	AvailableUnits  []string `json:"available_units"`
	AvailableTopics []string `json:"available_topics"`
	SessionCount    int      `json:"session_count"`
}

type SummaryResult struct {
	Success             bool     `json:"success"`
	Summary             string   `json:"summary"`
	SessionCount        int      `json:"session_count"`
	ConfusionCount      int      `json:"confusion_count"`
	TopicsWithConfusion []string `json:"topics_with_confusion,omitempty"`
	UnitsWithConfusion  []string `json:"units_with_confusion,omitempty"`
}

// ParseReviewRequest converts a free-text review request into structured
// criteria. On any failure the criteria come back with a nil CourseID, which
// callers treat as "could not understand the request".
func (g *ReviewGenerator) ParseReviewRequest(request string) ReviewCriteria {
	empty := ReviewCriteria{Topics: []string{}}

	courses, err := GetCourses(g.db)
	if err != nil {
		log.Printf("parse review request: load courses error: %v", err)
		return empty
	}
	if len(courses) == 0 {
		log.Printf("parse review request: no courses available")
		return empty
	}

	responseText, err := g.llm.Complete(buildReviewRequestPrompt(courses, request), parsingMaxTokens)
	if err != nil {
		log.Printf("parse review request completion error: %v", err)
		return empty
	}

	criteria, err := parseCriteriaResponse(responseText)
	if err != nil {
		log.Printf("parse review request parse error: %v", err)
		return empty
	}
	return criteria
}

// GenerateReviewFromRequest is the full natural-language path: parse the
// request, select matching confusion sessions, and synthesize review content.
func (g *ReviewGenerator) GenerateReviewFromRequest(request string) ReviewResult {
	criteria := g.ParseReviewRequest(request)
	if criteria.CourseID == nil {
		return ReviewResult{
			Success: false,
			Message: "Could not understand which course you want to review. Please specify a course name or topic.",
		}
	}
	log.Printf("review request parsed course=%d unit=%v topics=%v", *criteria.CourseID, criteria.Unit, criteria.Topics)

	sessionIDs, err := FindConfusionSessions(g.db, *criteria.CourseID, criteria.Unit, criteria.Topics)
	if err != nil {
		log.Printf("review request: find sessions error: %v", err)
		return ReviewResult{Success: false, Message: "Error generating review. Please try again."}
	}
	if len(sessionIDs) == 0 {
		return ReviewResult{
			Success: false,
			Message: "No confusion points found for the requested topic. Try having some conversations first!",
		}
	}
	log.Printf("review request matched sessions=%d", len(sessionIDs))

	return g.buildReview(*criteria.CourseID, "", criteria.Unit, criteria.Topics, sessionIDs)
}

// GenerateReviewByCriteria is the structured counterpart used when the caller
// already knows the course id.
func (g *ReviewGenerator) GenerateReviewByCriteria(courseID int64, unit *string, topics []string) ReviewResult {
	course, err := GetCourseByID(g.db, courseID)
	if err != nil {
		log.Printf("review by criteria: load course error: %v", err)
		return ReviewResult{Success: false, Message: "Error generating review. Please try again."}
	}
	if course == nil {
		return ReviewResult{Success: false, Message: fmt.Sprintf("Course with ID %d not found", courseID)}
	}

	sessionIDs, err := FindConfusionSessions(g.db, courseID, unit, topics)
	if err != nil {
		log.Printf("review by criteria: find sessions error: %v", err)
		return ReviewResult{Success: false, Message: "Error generating review. Please try again."}
	}
	if len(sessionIDs) == 0 {
		unitInfo := ""
		if unit != nil {
			unitInfo = fmt.Sprintf(" in %s", *unit)
		}
		topicInfo := ""
		if len(topics) > 0 {
			topicInfo = fmt.Sprintf(" on %s", strings.Join(topics, ", "))
		}
		return ReviewResult{
			Success: false,
			Message: fmt.Sprintf("No confusion points found for %s%s%s. Try having some conversations about this topic first!",
				course.Name, unitInfo, topicInfo),
		}
	}

	return g.buildReview(courseID, course.Name, unit, topics, sessionIDs)
}

func (g *ReviewGenerator) buildReview(courseID int64, courseName string, unit *string, topics []string, sessionIDs []string) ReviewResult {
	sessionData, err := GetAllSessionData(g.db, sessionIDs)
	if err != nil {
		log.Printf("review: gather session data error: %v", err)
		return ReviewResult{Success: false, Message: "Error generating review. Please try again."}
	}

	content := g.GenerateReviewContent(sessionData)
	return ReviewResult{
		Success: true,
		Content: &content,
		Metadata: &ReviewMetadata{
			CourseID:     courseID,
			CourseName:   courseName,
			Unit:         unit,
			Topics:       topics,
			SessionCount: len(sessionIDs),
		},
	}
}

// GenerateReviewContent synthesizes a summary and question set from the
// flagged exchanges of the given sessions. It always returns a reviewable
// object: completion or parse failures degrade to a fixed fallback.
func (g *ReviewGenerator) GenerateReviewContent(sessions []SessionData) ReviewContent {
	responseText, err := g.llm.Complete(buildReviewGenerationPrompt(sessions), reviewMaxTokens)
	if err != nil {
		log.Printf("review content completion error: %v", err)
		return fallbackReviewContent()
	}

	content, err := parseReviewContentResponse(responseText)
	if err != nil {
		log.Printf("review content parse error: %v", err)
		return fallbackReviewContent()
	}
	return content
}

func fallbackReviewContent() ReviewContent {
	return ReviewContent{
		Summary: "Unable to generate review content at this time.",
		Questions: []ReviewQuestion{
			{
				Question: "Please review your course materials and try again later.",
				Type:     "general",
				Hint:     "Check back when the system is available.",
			},
		},
	}
}

// AvailableTopics reports the units and topics that have actually produced
// confusion for a course, so the UI offers only reviewable material rather
// than the full syllabus.
func (g *ReviewGenerator) AvailableTopics(courseID int64) TopicsResult {
	course, err := GetCourseByID(g.db, courseID)
	if err != nil {
		log.Printf("available topics: load course error: %v", err)
		return TopicsResult{Success: false, Message: "Error getting available topics. Please try again."}
	}
	if course == nil {
		return TopicsResult{Success: false, Message: fmt.Sprintf("Course with ID %d not found", courseID)}
	}

	sessionIDs, err := FindConfusionSessions(g.db, courseID, nil, nil)
	if err != nil {
		log.Printf("available topics: find sessions error: %v", err)
		return TopicsResult{Success: false, Message: "Error getting available topics. Please try again."}
	}
	if len(sessionIDs) == 0 {
		return TopicsResult{
			Success:         true,
			CourseName:      course.Name,
			AvailableUnits:  []string{},
			AvailableTopics: []string{},
			Message:         "No confusion points found for this course yet.",
		}
	}

	sessionData, err := GetAllSessionData(g.db, sessionIDs)
	if err != nil {
		log.Printf("available topics: gather session data error: %v", err)
		return TopicsResult{Success: false, Message: "Error getting available topics. Please try again."}
	}

	units := make(map[string]bool)
	topics := make(map[string]bool)
	for _, session := range sessionData {
		if session.Analysis == nil {
			continue
		}
		if session.Analysis.Unit != nil {
			units[*session.Analysis.Unit] = true
		}
		for _, topic := range session.Analysis.Topics {
			topics[topic] = true
		}
	}

	return TopicsResult{
		Success:         true,
		CourseName:      course.Name,
		AvailableUnits:  sortedKeys(units),
		AvailableTopics: sortedKeys(topics),
		SessionCount:    len(sessionIDs),
	}
}

// ConfusionSummary is a pure aggregation over confusion records with no
// completion-service call, cheap enough for dashboards.
func (g *ReviewGenerator) ConfusionSummary(courseID int64, unit *string, topics []string) SummaryResult {
	sessionIDs, err := FindConfusionSessions(g.db, courseID, unit, topics)
	if err != nil {
		log.Printf("confusion summary: find sessions error: %v", err)
		return SummaryResult{Success: false, Summary: "Error generating summary. Please try again."}
	}
	if len(sessionIDs) == 0 {
		return SummaryResult{
			Success: true,
			Summary: "No confusion points found for the specified criteria.",
		}
	}

	sessionData, err := GetAllSessionData(g.db, sessionIDs)
	if err != nil {
		log.Printf("confusion summary: gather session data error: %v", err)
		return SummaryResult{Success: false, Summary: "Error generating summary. Please try again."}
	}

	confusionCount := 0
	topicSet := make(map[string]bool)
	unitSet := make(map[string]bool)
	for _, session := range sessionData {
		if session.Analysis == nil {
			continue
		}
		confusionCount += len(session.Analysis.ConfusedConversationIDs)
		for _, topic := range session.Analysis.Topics {
			topicSet[topic] = true
		}
		if session.Analysis.Unit != nil {
			unitSet[*session.Analysis.Unit] = true
		}
	}

	return SummaryResult{
		Success:             true,
		Summary:             fmt.Sprintf("Found %d confusion points across %d sessions.", confusionCount, len(sessionIDs)),
		SessionCount:        len(sessionIDs),
		ConfusionCount:      confusionCount,
		TopicsWithConfusion: sortedKeys(topicSet),
		UnitsWithConfusion:  sortedKeys(unitSet),
	}
}

// GradeAnswer evaluates a student's answer to a review question. Like
// synthesis it never raises past this boundary: any failure yields a fixed
// neutral grade so the review flow keeps moving.
func (g *ReviewGenerator) GradeAnswer(question, questionType, studentAnswer, hint string) GradingResult {
	responseText, err := g.llm.Complete(buildGradingPrompt(question, questionType, studentAnswer, hint), gradingMaxTokens)
	if err != nil {
		log.Printf("grading completion error: %v", err)
		return fallbackGradingResult()
	}

	result, err := parseGradingResponse(responseText)
	if err != nil {
		log.Printf("grading parse error: %v", err)
		return fallbackGradingResult()
	}
	return result
}

func fallbackGradingResult() GradingResult {
	return GradingResult{
		ScorePercentage: 75,
		ScoreCategory:   "Good",
		Feedback: GradingFeedback{
			Strengths:           "Thank you for providing an answer.",
			AreasForImprovement: "We encountered an issue evaluating your response.",
			Suggestions:         "Please try submitting your answer again.",
			Encouragement:       "Keep up the good work! Practice makes perfect.",
		},
		OverallAssessment: "Answer submitted successfully",
	}
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
