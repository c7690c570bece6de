package main

import (
	"database/sql"
	"log"
)

// Classifier analyzes one session at a time: full transcript plus course
// catalog go to the completion service, and the structured result is
// persisted as exactly one ConfusionRecord per session.
type Classifier struct {
	db  *sql.DB
	llm Completer
}

func NewClassifier(db *sql.DB, llm Completer) *Classifier {
	return &Classifier{db: db, llm: llm}
}

// AnalyzeSession classifies a session and persists its confusion record.
// Returns true when the session ends up analyzed (including the null-course
// case, which is recorded permanently so the session is never reprocessed)
// and false when the attempt failed and may be retried by a later sweep.
// Errors never escape; they are logged and collapse to false.
func (c *Classifier) AnalyzeSession(sessionID string) bool {
	analyzed, err := HasConfusionRecord(c.db, sessionID)
	if err != nil {
		log.Printf("classify session=%s record check error: %v", sessionID, err)
		return false
	}
	if analyzed {
		log.Printf("classify session=%s already analyzed, skipping", sessionID)
		return true
	}

	conversations, err := GetSessionConversations(c.db, sessionID)
	if err != nil {
		log.Printf("classify session=%s load conversations error: %v", sessionID, err)
		return false
	}
	if len(conversations) == 0 {
		log.Printf("classify session=%s has no conversations", sessionID)
		return false
	}

	courses, err := GetCourses(c.db)
	if err != nil {
		log.Printf("classify session=%s load courses error: %v", sessionID, err)
		return false
	}
	if len(courses) == 0 {
		log.Printf("classify session=%s: no courses available", sessionID)
		return false
	}

	log.Printf("classify session=%s conversations=%d courses=%d", sessionID, len(conversations), len(courses))

	prompt := buildSessionAnalysisPrompt(courses, conversations)
	responseText, err := c.llm.Complete(prompt, analysisMaxTokens)
	if err != nil {
		log.Printf("classify session=%s completion error: %v", sessionID, err)
		return false
	}

	analysis, err := parseAnalysisResponse(responseText)
	if err != nil {
		log.Printf("classify session=%s parse error: %v", sessionID, err)
		return false
	}

	// Persist even when no course matched: an unclassifiable session is
	// marked analyzed rather than retried forever.
	if _, err := InsertConfusionRecord(c.db, ConfusionRecord{
		SessionID:               sessionID,
		CourseID:                analysis.CourseID,
		Unit:                    analysis.Unit,
		Topics:                  analysis.Topics,
		ConfusedConversationIDs: analysis.ConfusedConversationIDs,
	}); err != nil {
		log.Printf("classify session=%s save error: %v", sessionID, err)
		return false
	}

	if analysis.CourseID == nil {
		log.Printf("classify session=%s: no course match, recorded null analysis", sessionID)
	} else {
		log.Printf("classify session=%s course=%d topics=%d confused=%d",
			sessionID, *analysis.CourseID, len(analysis.Topics), len(analysis.ConfusedConversationIDs))
	}
	return true
}

// SessionStatus reports a session's conversation count and whether it still
// needs analysis.
func (c *Classifier) SessionStatus(sessionID string) (SessionStatus, error) {
	conversations, err := GetSessionConversations(c.db, sessionID)
	if err != nil {
		return SessionStatus{}, err
	}
	status := SessionStatus{
		SessionID:         sessionID,
		ConversationCount: len(conversations),
	}
	if len(conversations) > 0 {
		analyzed, err := HasConfusionRecord(c.db, sessionID)
		if err != nil {
			return SessionStatus{}, err
		}
		status.NeedsAnalysis = !analyzed
	}
	return status, nil
}
