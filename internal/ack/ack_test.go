package ack

import (
	"strings"
	"testing"
)

func TestRenderSubstitutesAllSlots(t *testing.T) {
	tmpl, err := Parse("Hello {customer_name},\n{assignee_name} from {team_name} is looking into this. {assignee_name}")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	got := tmpl.Render(Data{CustomerName: "Jane", AssigneeName: "Bob", TeamName: "T1"})
	for _, want := range []string{"Jane", "Bob", "T1"} {
		if !strings.Contains(got, want) {
			t.Errorf("rendered %q missing %q", got, want)
		}
	}
	if strings.ContainsAny(got, "{}") {
		t.Errorf("rendered %q still has placeholder braces", got)
	}
	if strings.Count(got, "Bob") != 2 {
		t.Errorf("repeated slot not substituted twice: %q", got)
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	cases := map[string]string{
		"unknown slot":   "Hi {customer}",
		"unterminated":   "Hi {customer_name",
		"stray closing":  "Hi customer_name}",
		"empty slot":     "Hi {}",
		"nested opening": "Hi {{customer_name}}",
	}
	for name, text := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse(text); err == nil {
				t.Errorf("Parse(%q) succeeded, want error", text)
			}
		})
	}
}

func TestSlotsAndPlainText(t *testing.T) {
	tmpl := MustParse("No slots here.")
	if len(tmpl.Slots()) != 0 {
		t.Errorf("slots = %v", tmpl.Slots())
	}
	if got := tmpl.Render(Data{}); got != "No slots here." {
		t.Errorf("render = %q", got)
	}

	tmpl = MustParse("{team_name}: {customer_name}")
	slots := tmpl.Slots()
	if len(slots) != 2 || slots[0] != SlotTeamName || slots[1] != SlotCustomerName {
		t.Errorf("slots = %v", slots)
	}
}
