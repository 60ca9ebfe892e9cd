package filter

import (
	"testing"

	"github.com/dhcgn/mail-to-pairs/model"
)

func item(subject, from, body string) model.Item {
	return model.Item{
		Header: model.Header{From: from, To: "me@example.com", Subject: subject},
		Body:   body,
	}
}

func TestFilter_Allows_IncludeMode(t *testing.T) {
	f, err := New(Options{IncludeHeader: []string{"Subject: Test"}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if !f.Allows(item("Test Message", "sender@example.com", "This is the message body")) {
		t.Error("Expected item to be allowed (header matches)")
	}
	if f.Allows(item("Other", "sender@example.com", "This is the message body")) {
		t.Error("Expected item to be filtered out (header doesn't match)")
	}
}

func TestFilter_Allows_ExcludeMode(t *testing.T) {
	f, err := New(Options{ExcludeHeader: []string{"spam"}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if !f.Allows(item("Normal Message", "sender@example.com", "body")) {
		t.Error("Expected item to be allowed (no spam)")
	}
	if f.Allows(item("This is spam", "spammer@example.com", "body")) {
		t.Error("Expected item to be filtered out (contains spam)")
	}
}

func TestFilter_MutuallyExclusive(t *testing.T) {
	_, err := New(Options{
		IncludeHeader: []string{"test"},
		ExcludeHeader: []string{"spam"},
	})
	if err == nil {
		t.Error("Expected error when both include and exclude are specified")
	}
}

func TestFilter_InvalidPattern(t *testing.T) {
	if _, err := New(Options{IncludeBody: []string{"("}}); err == nil {
		t.Error("Expected error for invalid regex")
	}
}

func TestFilter_NoFilters(t *testing.T) {
	f, err := New(Options{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if f.Active() {
		t.Error("Expected filter to be inactive")
	}
	if !f.Allows(item("Any Message", "a@example.com", "Any body content")) {
		t.Error("Expected item to be allowed when no filters are active")
	}
}

func TestFilter_BodyFiltering(t *testing.T) {
	f, err := New(Options{IncludeBody: []string{"important"}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if !f.Allows(item("Message", "a@example.com", "This is an important message")) {
		t.Error("Expected item to be allowed (body matches)")
	}
	if f.Allows(item("Message", "a@example.com", "This is a regular message")) {
		t.Error("Expected item to be filtered out (body doesn't match)")
	}
}

func TestFilter_Stats(t *testing.T) {
	f, err := New(Options{ExcludeHeader: []string{"newsletter", "noreply@"}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	f.Allows(item("Weekly newsletter", "noreply@example.com", ""))
	f.Allows(item("Monthly newsletter", "team@example.com", ""))
	f.Allows(item("Hello", "friend@example.com", ""))

	stats := f.GetStats()
	if got := stats.ExcludeHeaderHits["newsletter"]; got != 2 {
		t.Errorf("newsletter hits = %d, want 2", got)
	}
	if got := stats.ExcludeHeaderHits["noreply@"]; got != 1 {
		t.Errorf("noreply@ hits = %d, want 1", got)
	}
	if len(stats.ExcludeHeaderPatterns) != 2 {
		t.Errorf("ExcludeHeaderPatterns = %v, want 2 entries", stats.ExcludeHeaderPatterns)
	}
}

func TestHeaderText(t *testing.T) {
	got := HeaderText(model.Header{From: "Ann", To: "Bob", Subject: "Hi", Sent: "Monday"})
	want := "From: Ann\nTo: Bob\nSubject: Hi\nDate: Monday\n"
	if got != want {
		t.Errorf("HeaderText() = %q, want %q", got, want)
	}
}
