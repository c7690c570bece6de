package main

import (
	"database/sql"
	"fmt"
	"log"
	"strings"
)

const chatFallbackReply = "I'm sorry, I'm having trouble responding right now. Please try again."

// ChatReply produces the tutor's answer to a student message. Unlike session
// analysis, chat sees only the most recent historyLimit exchanges, enough
// context for continuity without unbounded prompt growth. Completion failures
// collapse to a fixed apologetic reply.
func ChatReply(db *sql.DB, llm Completer, sessionID, userMessage string, historyLimit int) string {
	prompt := userMessage

	if sessionID != "" {
		history, err := GetSessionConversations(db, sessionID)
		if err != nil {
			log.Printf("chat session=%s load history error: %v", sessionID, err)
			history = nil
		}
		if len(history) > historyLimit {
			history = history[len(history)-historyLimit:]
		}
		if len(history) > 0 {
			var b strings.Builder
			b.WriteString("You are a helpful AI tutor. Below is our recent conversation history for context:\n\n")
			b.WriteString("--- Previous Conversation ---\n")
			for _, conv := range history {
				fmt.Fprintf(&b, "Student: %s\nAI: %s\n\n", conv.UserMessage, conv.AIResponse)
			}
			b.WriteString("--- Current Question ---\n")
			b.WriteString(userMessage)
			prompt = b.String()
		}
	}

	reply, err := llm.Complete(prompt, chatMaxTokens)
	if err != nil {
		log.Printf("chat session=%s completion error: %v", sessionID, err)
		return chatFallbackReply
	}
	return reply
}
