package channel

import (
	"strings"
	"testing"

	"github.com/prasadmotors/dealerbot/internal/bot/engine"
)

func TestRenderResponseOptions(t *testing.T) {
	resp := &engine.Response{
		Message: "What's your budget?",
		Options: []string{"Under ₹5 Lakhs", "₹5-10 Lakhs"},
	}

	htmlBody, plainBody := renderResponse(resp)

	if !strings.Contains(htmlBody, "<ol><li>Under ₹5 Lakhs</li>") {
		t.Errorf("html missing numbered list: %q", htmlBody)
	}
	if !strings.Contains(plainBody, "1. Under ₹5 Lakhs") || !strings.Contains(plainBody, "2. ₹5-10 Lakhs") {
		t.Errorf("plain missing numbered options: %q", plainBody)
	}
	// The apostrophe must be escaped in HTML, untouched in plain text.
	if !strings.Contains(plainBody, "What's") {
		t.Errorf("plain text mangled: %q", plainBody)
	}
	if strings.Contains(htmlBody, "What's") {
		t.Errorf("html not escaped: %q", htmlBody)
	}
}

func TestRenderResponseCards(t *testing.T) {
	resp := &engine.Response{
		Message: "Here's what we have:",
		Items: []engine.Card{
			{Title: "2021 Hyundai Aura", Subtitle: "₹6.40 Lakhs", Detail: "Petrol, 30,000 km"},
		},
	}

	htmlBody, plainBody := renderResponse(resp)

	if !strings.Contains(htmlBody, "<b>2021 Hyundai Aura</b>") {
		t.Errorf("card title not bolded: %q", htmlBody)
	}
	if !strings.Contains(htmlBody, "<i>Petrol, 30,000 km</i>") {
		t.Errorf("card detail not italicised: %q", htmlBody)
	}
	if !strings.Contains(plainBody, "2021 Hyundai Aura\n₹6.40 Lakhs") {
		t.Errorf("plain card layout wrong: %q", plainBody)
	}
}

func TestRenderResponseNewlines(t *testing.T) {
	resp := &engine.Response{Message: "line one\nline two"}

	htmlBody, _ := renderResponse(resp)
	if !strings.Contains(htmlBody, "line one<br>line two") {
		t.Errorf("newline not converted: %q", htmlBody)
	}
}
