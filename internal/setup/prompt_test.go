package setup

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
)

func newTestPrompter(input string) (*Prompter, *bytes.Buffer) {
	var out bytes.Buffer
	return NewPrompter(strings.NewReader(input), &out), &out
}

func TestPrompter_StringDefault(t *testing.T) {
	p, _ := newTestPrompter("\n")
	if got := p.String("URL", "http://x"); got != "http://x" {
		t.Errorf("got %q, want default", got)
	}
}

func TestPrompter_StringRequiredRepeats(t *testing.T) {
	p, out := newTestPrompter("\n  value \n")
	if got := p.String("Name", ""); got != "value" {
		t.Errorf("got %q, want value", got)
	}
	if !strings.Contains(out.String(), "required") {
		t.Error("expected a required-value hint")
	}
}

func TestPrompter_Confirm(t *testing.T) {
	tests := []struct {
		input      string
		defaultYes bool
		want       bool
	}{
		{"\n", true, true},
		{"\n", false, false},
		{"y\n", false, true},
		{"YES\n", false, true},
		{"n\n", true, false},
		{"", true, true},
	}
	for _, tt := range tests {
		p, _ := newTestPrompter(tt.input)
		if got := p.Confirm("ok?", tt.defaultYes); got != tt.want {
			t.Errorf("Confirm(%q, %v) = %v, want %v", tt.input, tt.defaultYes, got, tt.want)
		}
	}
}

func TestPrompter_SelectRetriesOutOfRange(t *testing.T) {
	p, out := newTestPrompter("0\nabc\n2\n")
	got, err := p.Select("Pick", []string{"a", "b"})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if got != 1 {
		t.Errorf("got %d, want 1", got)
	}
	if strings.Count(out.String(), "enter a number") != 2 {
		t.Errorf("expected two retry hints, output:\n%s", out.String())
	}
}

func TestPrompter_SelectNoInput(t *testing.T) {
	p, _ := newTestPrompter("")
	if _, err := p.Select("Pick", []string{"a"}); err == nil {
		t.Fatal("expected error at end of input")
	}
	if _, err := p.Select("Pick", nil); err == nil {
		t.Fatal("expected error for empty options")
	}
}

func TestPrompter_SearchShortListSelectsDirectly(t *testing.T) {
	p, _ := newTestPrompter("3\n")
	got, err := p.Search("District", []string{"I.", "II.", "III."})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if got != 2 {
		t.Errorf("got %d, want 2", got)
	}
}

func TestPrompter_SearchNarrowsLongList(t *testing.T) {
	options := make([]string, 0, 40)
	for i := range 40 {
		options = append(options, fmt.Sprintf("Utca %02d", i))
	}
	options[25] = "Bartók Béla út"
	options[31] = "Bartók tér"

	p, out := newTestPrompter("zzz\nbartók\n2\n")
	got, err := p.Search("Street", options)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if got != 31 {
		t.Errorf("got %d, want 31", got)
	}
	if !strings.Contains(out.String(), `nothing matches "zzz"`) {
		t.Errorf("expected no-match hint, output:\n%s", out.String())
	}
}
