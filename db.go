package main

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS courses (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		name       TEXT NOT NULL,
		units      TEXT NOT NULL, -- JSON: [{"name": "Unit 1", "topics": ["topic1", "topic2"]}]
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS conversations (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id   TEXT NOT NULL,
		user_message TEXT NOT NULL,
		ai_response  TEXT NOT NULL,
		created_at   DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_conversations_session ON conversations(session_id);
	CREATE INDEX IF NOT EXISTS idx_conversations_created_at ON conversations(created_at);

	CREATE TABLE IF NOT EXISTS confusion_points (
		id                        INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id                TEXT NOT NULL,
		course_id                 INTEGER REFERENCES courses(id),
		unit                      TEXT,
		topics                    TEXT NOT NULL DEFAULT '[]', -- JSON array of topic strings
		confused_conversation_ids TEXT NOT NULL DEFAULT '[]', -- JSON array of conversation IDs
		created_at                DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_confusion_session ON confusion_points(session_id);
	CREATE INDEX IF NOT EXISTS idx_confusion_course ON confusion_points(course_id);
	`
	_, err = db.Exec(schema)
	if err != nil {
		return nil, err
	}

	return db, nil
}

func InsertCourse(db *sql.DB, name string, units []CourseUnit) (int64, error) {
	unitsJSON, err := json.Marshal(units)
	if err != nil {
		return 0, fmt.Errorf("marshal course units: %w", err)
	}
	res, err := db.Exec(`INSERT INTO courses (name, units) VALUES (?, ?)`, name, string(unitsJSON))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func GetCourses(db *sql.DB) ([]Course, error) {
	rows, err := db.Query(`SELECT id, name, units, created_at FROM courses ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var courses []Course
	for rows.Next() {
		var c Course
		var unitsJSON string
		if err := rows.Scan(&c.ID, &c.Name, &unitsJSON, &c.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(unitsJSON), &c.Units); err != nil {
			return nil, fmt.Errorf("decode units for course %d: %w", c.ID, err)
		}
		courses = append(courses, c)
	}
	return courses, rows.Err()
}

func GetCourseByID(db *sql.DB, id int64) (*Course, error) {
	var c Course
	var unitsJSON string
	err := db.QueryRow(`SELECT id, name, units, created_at FROM courses WHERE id = ?`, id).
		Scan(&c.ID, &c.Name, &unitsJSON, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(unitsJSON), &c.Units); err != nil {
		return nil, fmt.Errorf("decode units for course %d: %w", c.ID, err)
	}
	return &c, nil
}

func InsertConversation(db *sql.DB, sessionID, userMessage, aiResponse string) (int64, error) {
	res, err := db.Exec(
		`INSERT INTO conversations (session_id, user_message, ai_response) VALUES (?, ?, ?)`,
		sessionID, userMessage, aiResponse,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetSessionConversations returns a session's full transcript in ascending
// creation order.
func GetSessionConversations(db *sql.DB, sessionID string) ([]Conversation, error) {
	rows, err := db.Query(
		`SELECT id, session_id, user_message, ai_response, created_at
		 FROM conversations WHERE session_id = ? ORDER BY created_at ASC, id ASC`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conversations []Conversation
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(&c.ID, &c.SessionID, &c.UserMessage, &c.AIResponse, &c.CreatedAt); err != nil {
			return nil, err
		}
		conversations = append(conversations, c)
	}
	return conversations, rows.Err()
}

// GetRecentSessionIDs returns distinct session ids ordered by most recent
// activity.
func GetRecentSessionIDs(db *sql.DB, limit int) ([]string, error) {
	rows, err := db.Query(
		`SELECT session_id FROM conversations
		 GROUP BY session_id ORDER BY MAX(created_at) DESC, MAX(id) DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSessionIDs(rows)
}

func HasConfusionRecord(db *sql.DB, sessionID string) (bool, error) {
	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM confusion_points WHERE session_id = ?`, sessionID).Scan(&count)
	return count > 0, err
}

// GetUnanalyzedSessionIDs returns sessions that have conversations but no
// confusion record yet, most recently active first. This is the durable
// backstop behind the in-memory activity tracker.
func GetUnanalyzedSessionIDs(db *sql.DB) ([]string, error) {
	rows, err := db.Query(
		`SELECT c.session_id
		 FROM conversations c
		 LEFT JOIN confusion_points cp ON c.session_id = cp.session_id
		 WHERE cp.session_id IS NULL
		 GROUP BY c.session_id
		 ORDER BY MAX(c.created_at) DESC, MAX(c.id) DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSessionIDs(rows)
}

func InsertConfusionRecord(db *sql.DB, rec ConfusionRecord) (int64, error) {
	topics := rec.Topics
	if topics == nil {
		topics = []string{}
	}
	confusedIDs := rec.ConfusedConversationIDs
	if confusedIDs == nil {
		confusedIDs = []int64{}
	}
	topicsJSON, err := json.Marshal(topics)
	if err != nil {
		return 0, fmt.Errorf("marshal topics: %w", err)
	}
	idsJSON, err := json.Marshal(confusedIDs)
	if err != nil {
		return 0, fmt.Errorf("marshal confused ids: %w", err)
	}

	var courseID sql.NullInt64
	if rec.CourseID != nil {
		courseID = sql.NullInt64{Int64: *rec.CourseID, Valid: true}
	}
	var unit sql.NullString
	if rec.Unit != nil {
		unit = sql.NullString{String: *rec.Unit, Valid: true}
	}

	res, err := db.Exec(
		`INSERT INTO confusion_points (session_id, course_id, unit, topics, confused_conversation_ids)
		 VALUES (?, ?, ?, ?, ?)`,
		rec.SessionID, courseID, unit, string(topicsJSON), string(idsJSON),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func GetConfusionRecord(db *sql.DB, sessionID string) (*ConfusionRecord, error) {
	row := db.QueryRow(
		`SELECT id, session_id, course_id, unit, topics, confused_conversation_ids, created_at
		 FROM confusion_points WHERE session_id = ?`,
		sessionID,
	)
	rec, err := scanConfusionRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// FindConfusionSessions returns session ids whose confusion record matches the
// criteria, most recent record first. CourseID must match exactly; unit, if
// set, must match exactly; topics, if set, match when the record lists at
// least one of them (OR over topics, not AND). Topic matching is an explicit
// membership test over the decoded topic list, never a substring match on the
// stored JSON.
func FindConfusionSessions(db *sql.DB, courseID int64, unit *string, topics []string) ([]string, error) {
	query := `SELECT id, session_id, course_id, unit, topics, confused_conversation_ids, created_at
	          FROM confusion_points WHERE course_id = ?`
	params := []any{courseID}
	if unit != nil {
		query += ` AND unit = ?`
		params = append(params, *unit)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := db.Query(query, params...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []string
	seen := make(map[string]bool)
	for rows.Next() {
		rec, err := scanConfusionRecord(rows)
		if err != nil {
			return nil, err
		}
		if len(topics) > 0 && !anyTopicMatches(rec.Topics, topics) {
			continue
		}
		if seen[rec.SessionID] {
			continue
		}
		seen[rec.SessionID] = true
		sessions = append(sessions, rec.SessionID)
	}
	return sessions, rows.Err()
}

func anyTopicMatches(recorded, requested []string) bool {
	for _, want := range requested {
		for _, have := range recorded {
			if have == want {
				return true
			}
		}
	}
	return false
}

// GetAllSessionData joins each session's transcript with its confusion record.
func GetAllSessionData(db *sql.DB, sessionIDs []string) ([]SessionData, error) {
	var data []SessionData
	for _, sessionID := range sessionIDs {
		conversations, err := GetSessionConversations(db, sessionID)
		if err != nil {
			return nil, err
		}
		analysis, err := GetConfusionRecord(db, sessionID)
		if err != nil {
			return nil, err
		}
		data = append(data, SessionData{
			SessionID:     sessionID,
			Conversations: conversations,
			Analysis:      analysis,
		})
	}
	return data, nil
}

func GetDatabaseStats(db *sql.DB) (DatabaseStats, error) {
	var stats DatabaseStats
	queries := []struct {
		query string
		dst   *int
	}{
		{`SELECT COUNT(*) FROM courses`, &stats.Courses},
		{`SELECT COUNT(*) FROM conversations`, &stats.Conversations},
		{`SELECT COUNT(DISTINCT session_id) FROM conversations`, &stats.Sessions},
		{`SELECT COUNT(*) FROM confusion_points`, &stats.AnalyzedSessions},
	}
	for _, q := range queries {
		if err := db.QueryRow(q.query).Scan(q.dst); err != nil {
			return stats, err
		}
	}
	return stats, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConfusionRecord(row rowScanner) (*ConfusionRecord, error) {
	var rec ConfusionRecord
	var courseID sql.NullInt64
	var unit sql.NullString
	var topicsJSON, idsJSON string
	err := row.Scan(&rec.ID, &rec.SessionID, &courseID, &unit, &topicsJSON, &idsJSON, &rec.CreatedAt)
	if err != nil {
		return nil, err
	}
	if courseID.Valid {
		rec.CourseID = &courseID.Int64
	}
	if unit.Valid {
		rec.Unit = &unit.String
	}
	if err := json.Unmarshal([]byte(topicsJSON), &rec.Topics); err != nil {
		return nil, fmt.Errorf("decode topics for session %s: %w", rec.SessionID, err)
	}
	if err := json.Unmarshal([]byte(idsJSON), &rec.ConfusedConversationIDs); err != nil {
		return nil, fmt.Errorf("decode confused ids for session %s: %w", rec.SessionID, err)
	}
	return &rec, nil
}

func scanSessionIDs(rows *sql.Rows) ([]string, error) {
	var sessions []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		sessions = append(sessions, id)
	}
	return sessions, rows.Err()
}
