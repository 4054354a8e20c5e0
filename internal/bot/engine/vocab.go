package engine

import "strings"

// Confirmation vocabulary shared by the pending-change resolver and the
// booking confirm step.  Matching is whole-message or first-word, lowercase.
var confirmationPositiveWords = []string{
	"yes", "y", "yeah", "yep", "yup", "sure", "ok", "okay",
	"confirm", "confirmed", "correct", "right", "haan", "ha",
}

var confirmationNegativeWords = []string{
	"no", "n", "nope", "nah", "cancel", "wrong", "nahi", "dont", "don't",
}

// Global commands recognized at any point in a conversation.
var restartWords = []string{
	"restart", "reset", "start over", "startover", "main menu", "menu",
}

var goodbyeWords = []string{
	"bye", "goodbye", "end", "end conversation", "quit", "exit", "stop",
}

var greetingWords = []string{
	"hi", "hello", "hey", "hola", "namaste", "good morning",
	"good afternoon", "good evening",
}

func matchesVocab(msg string, vocab []string) bool {
	norm := strings.Join(strings.Fields(strings.ToLower(msg)), " ")
	if norm == "" {
		return false
	}
	first, _, _ := strings.Cut(norm, " ")
	for _, w := range vocab {
		if norm == w || first == w {
			return true
		}
	}
	return false
}

func isPositive(msg string) bool { return matchesVocab(msg, confirmationPositiveWords) }
func isNegative(msg string) bool { return matchesVocab(msg, confirmationNegativeWords) }
func isRestart(msg string) bool  { return matchesVocab(msg, restartWords) }
func isGoodbye(msg string) bool  { return matchesVocab(msg, goodbyeWords) }
func isGreeting(msg string) bool { return matchesVocab(msg, greetingWords) }
