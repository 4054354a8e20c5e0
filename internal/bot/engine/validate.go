package engine

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/prasadmotors/dealerbot/internal/bot/nlu"
)

// Validators for free-form steps.  Each returns the value to commit, or a
// user-facing error message, or neither (the message is not an answer to
// this step at all).

var digitRe = regexp.MustCompile(`\d`)

func validateName(msg string) (string, string) {
	name := strings.TrimSpace(msg)
	if isGreeting(name) {
		return "", ""
	}
	if digitRe.MatchString(name) {
		return "", "Names usually don't have numbers in them. What should I call you?"
	}
	if len(name) < 2 || len(name) > 60 {
		return "", ""
	}
	return name, ""
}

func validatePhone(msg string) (string, string) {
	if phone, ok := nlu.Canonicalize(nlu.EntityPhone, msg); ok {
		return phone, ""
	}
	if digitRe.MatchString(msg) {
		return "", "That doesn't look like a valid number. Please share a 10-digit mobile number."
	}
	return "", ""
}

func validateYear(msg string) (string, string) {
	if year, ok := nlu.Canonicalize(nlu.EntityYear, msg); ok {
		return year, ""
	}
	if digitRe.MatchString(msg) {
		return "", "Which year was the car made? For example: 2019."
	}
	return "", ""
}

var kmsValueRe = regexp.MustCompile(`(?i)([\d,]+)\s*(k\b)?`)

func validateKms(msg string) (string, string) {
	m := kmsValueRe.FindStringSubmatch(msg)
	if m == nil || m[1] == "" {
		return "", ""
	}
	n, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
	if err != nil {
		return "", ""
	}
	if m[2] != "" {
		n *= 1000
	}
	if n <= 0 || n > 1_000_000 {
		return "", "That reading seems off. Roughly how many kilometres has the car done?"
	}
	return strconv.Itoa(n), ""
}

var dateWordRe = regexp.MustCompile(`(?i)\b(today|tonight|tomorrow|weekend|week|next|after|mon(day)?|tue(s|sday)?|wed(nesday)?|thu(rs|rsday)?|fri(day)?|sat(urday)?|sun(day)?|jan(uary)?|feb(ruary)?|mar(ch)?|apr(il)?|may|june?|july?|aug(ust)?|sep(t|tember)?|oct(ober)?|nov(ember)?|dec(ember)?)\b`)

// validateDate accepts short date-like phrases ("next Tuesday", "5th Sep").
// A message without any calendar signal, or a full sentence that merely
// mentions one, is not an answer to the date question.
func validateDate(msg string) (string, string) {
	v := strings.TrimSpace(msg)
	if len(v) < 2 || len(v) > 40 || len(strings.Fields(v)) > 4 {
		return "", ""
	}
	if !digitRe.MatchString(v) && !dateWordRe.MatchString(v) {
		return "", ""
	}
	return v, ""
}

func validateShortText(msg string) (string, string) {
	v := strings.TrimSpace(msg)
	if len(v) < 2 || len(v) > 60 {
		return "", ""
	}
	return v, ""
}

func validateAddress(msg string) (string, string) {
	addr := strings.TrimSpace(msg)
	if len(addr) < 5 {
		return "", "Could you share the full address, with area and landmark?"
	}
	return addr, ""
}

func validateMessage(msg string) (string, string) {
	v := strings.TrimSpace(msg)
	if len(v) < 2 {
		return "", ""
	}
	return v, ""
}
