package main

import "time"

type CourseUnit struct {
	Name   string   `json:"name"`
	Topics []string `json:"topics"`
}

type Course struct {
	ID        int64
	Name      string
	Units     []CourseUnit
	CreatedAt time.Time
}

type Conversation struct {
	ID          int64
	SessionID   string // groups related exchanges; many conversations per session
	UserMessage string
	AIResponse  string
	CreatedAt   time.Time
}

// ConfusionRecord is the persisted outcome of analyzing one session: which
// course/unit/topics it concerned and which exchanges showed confusion.
// A nil CourseID means no course could be classified; the record still marks
// the session as analyzed.
type ConfusionRecord struct {
	ID                      int64
	SessionID               string
	CourseID                *int64
	Unit                    *string
	Topics                  []string
	ConfusedConversationIDs []int64
	CreatedAt               time.Time
}

// SessionData joins a session's full transcript with its confusion analysis.
type SessionData struct {
	SessionID     string
	Conversations []Conversation
	Analysis      *ConfusionRecord
}

// ReviewCriteria is the structured form of a review request. A nil CourseID
// means the request could not be understood.
type ReviewCriteria struct {
	CourseID *int64   `json:"course_id"`
	Unit     *string  `json:"unit"`
	Topics   []string `json:"topics"`
}

type ReviewQuestion struct {
	Question string `json:"question"`
	Type     string `json:"type"`
	Hint     string `json:"hint"`
}

type ReviewContent struct {
	Summary   string           `json:"summary"`
	Questions []ReviewQuestion `json:"questions"`
}

type GradingFeedback struct {
	Strengths           string `json:"strengths"`
	AreasForImprovement string `json:"areas_for_improvement"`
	Suggestions         string `json:"suggestions"`
	Encouragement       string `json:"encouragement"`
}

type GradingResult struct {
	ScorePercentage   float64         `json:"score_percentage"`
	ScoreCategory     string          `json:"score_category"`
	Feedback          GradingFeedback `json:"feedback"`
	OverallAssessment string          `json:"overall_assessment"`
}

type DatabaseStats struct {
	Courses          int `json:"courses"`
	Conversations    int `json:"conversations"`
	Sessions         int `json:"sessions"`
	AnalyzedSessions int `json:"analyzed_sessions"`
}

type SessionStatus struct {
	SessionID         string `json:"session_id"`
	ConversationCount int    `json:"conversation_count"`
	NeedsAnalysis     bool   `json:"needs_analysis"`
}
