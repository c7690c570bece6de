package main

import (
	"bytes"
	"database/sql"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/ledongthuc/pdf"
)

// UploadResult reports the outcome of processing one syllabus upload.
type UploadResult struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	CourseID   int64  `json:"course_id,omitempty"`
	TextLength int    `json:"text_length,omitempty"`
}

// ExtractPDFText pulls the plain text out of a PDF syllabus.
func ExtractPDFText(r io.ReaderAt, size int64) (string, error) {
	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	textReader, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(textReader); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// ExtractCourseStructure asks the completion service for the unit/topic
// structure of a syllabus. When extraction fails the course still gets a
// single generic unit so the upload never dead-ends.
func ExtractCourseStructure(llm Completer, syllabusText string) []CourseUnit {
	responseText, err := llm.Complete(buildCourseStructurePrompt(syllabusText), structureMaxTokens)
	if err != nil {
		log.Printf("course structure completion error: %v", err)
		return fallbackCourseStructure()
	}

	units, err := parseUnitsResponse(responseText)
	if err != nil {
		log.Printf("course structure parse error: %v", err)
		return fallbackCourseStructure()
	}
	return units
}

func fallbackCourseStructure() []CourseUnit {
	return []CourseUnit{
		{Name: "General Course Content", Topics: []string{"course overview", "key concepts", "assignments"}},
	}
}

// ProcessSyllabus is the end-to-end ingestion path: PDF text extraction,
// structure extraction, and course persistence.
func ProcessSyllabus(db *sql.DB, llm Completer, courseName string, r io.ReaderAt, size int64) UploadResult {
	syllabusText, err := ExtractPDFText(r, size)
	if err != nil {
		log.Printf("syllabus upload course=%q pdf error: %v", courseName, err)
		return UploadResult{
			Success: false,
			Message: "Failed to extract text from PDF. Please ensure the file is a valid PDF with readable text.",
		}
	}
	if syllabusText == "" {
		return UploadResult{
			Success: false,
			Message: "Failed to extract text from PDF. Please ensure the file is a valid PDF with readable text.",
		}
	}
	log.Printf("syllabus upload course=%q extracted=%d chars", courseName, len(syllabusText))

	units := ExtractCourseStructure(llm, syllabusText)

	courseID, err := InsertCourse(db, courseName, units)
	if err != nil {
		log.Printf("syllabus upload course=%q save error: %v", courseName, err)
		return UploadResult{Success: false, Message: "Failed to save course to database."}
	}
	log.Printf("syllabus upload course=%q id=%d units=%d", courseName, courseID, len(units))

	return UploadResult{
		Success:    true,
		Message:    fmt.Sprintf("Successfully processed syllabus for %s", courseName),
		CourseID:   courseID,
		TextLength: len(syllabusText),
	}
}
