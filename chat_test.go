package main

import (
	"fmt"
	"strings"
	"testing"
)

func TestChatReplyWithoutHistory(t *testing.T) {
	db := newTestDB(t)
	llm := newFakeCompleter("A pointer holds a memory address.")

	reply := ChatReply(db, llm, "fresh-session", "What is a pointer?", 10)
	if reply != "A pointer holds a memory address." {
		t.Fatalf("unexpected reply %q", reply)
	}
	if len(llm.prompts) != 1 {
		t.Fatalf("expected one completion, got %d", len(llm.prompts))
	}
	// With no prior exchanges the message goes through as-is.
	if llm.prompts[0] != "What is a pointer?" {
		t.Fatalf("expected bare prompt, got %q", llm.prompts[0])
	}
}

func TestChatReplyIncludesRecentHistory(t *testing.T) {
	db := newTestDB(t)
	insertTestConversation(t, db, "s1", "What is a pointer?", "A pointer holds an address.")
	insertTestConversation(t, db, "s1", "And dereferencing?", "Dereferencing reads the value.")

	llm := newFakeCompleter("Yes, *p reads the pointee.")
	ChatReply(db, llm, "s1", "So *p gives me the value?", 10)

	prompt := llm.prompts[0]
	for _, fragment := range []string{
		"--- Previous Conversation ---",
		"Student: What is a pointer?",
		"AI: Dereferencing reads the value.",
		"--- Current Question ---",
		"So *p gives me the value?",
	} {
		if !strings.Contains(prompt, fragment) {
			t.Fatalf("prompt missing %q:\n%s", fragment, prompt)
		}
	}
}

func TestChatReplyTruncatesHistory(t *testing.T) {
	db := newTestDB(t)
	for i := 0; i < 5; i++ {
		insertTestConversation(t, db, "s1",
			fmt.Sprintf("question %d", i), fmt.Sprintf("answer %d", i))
	}

	llm := newFakeCompleter("ok")
	ChatReply(db, llm, "s1", "latest question", 2)

	prompt := llm.prompts[0]
	if strings.Contains(prompt, "question 2") {
		t.Fatalf("older exchanges should be dropped:\n%s", prompt)
	}
	if !strings.Contains(prompt, "question 3") || !strings.Contains(prompt, "question 4") {
		t.Fatalf("last two exchanges should be kept:\n%s", prompt)
	}
}

func TestChatReplyFallback(t *testing.T) {
	db := newTestDB(t)
	llm := &fakeCompleter{script: []fakeCompletion{{err: fmt.Errorf("overloaded")}}}

	reply := ChatReply(db, llm, "s1", "hello?", 10)
	if reply != chatFallbackReply {
		t.Fatalf("expected fallback reply, got %q", reply)
	}
}
