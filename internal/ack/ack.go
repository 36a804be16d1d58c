// Package ack renders the acknowledgment message posted to a ticket's
// contact when the ticket is picked up.
//
// Templates use single-brace named slots. Only {customer_name},
// {assignee_name} and {team_name} are recognised; any other slot, or a
// stray brace, is rejected by Parse so a malformed template fails when
// the team registry is built rather than on the first ticket.
package ack

import (
	"fmt"
	"strings"
)

// Slot names accepted in acknowledgment templates.
const (
	SlotCustomerName = "customer_name"
	SlotAssigneeName = "assignee_name"
	SlotTeamName     = "team_name"
)

var knownSlots = map[string]struct{}{
	SlotCustomerName: {},
	SlotAssigneeName: {},
	SlotTeamName:     {},
}

// Data fills the template slots.
type Data struct {
	CustomerName string
	AssigneeName string
	TeamName     string
}

type segment struct {
	literal string
	slot    string
}

// Template is a validated acknowledgment template.
type Template struct {
	source   string
	segments []segment
}

// Parse validates text and returns a reusable Template.
func Parse(text string) (*Template, error) {
	t := &Template{source: text}
	rest := text
	for len(rest) > 0 {
		open := strings.IndexAny(rest, "{}")
		if open < 0 {
			t.segments = append(t.segments, segment{literal: rest})
			break
		}
		if rest[open] == '}' {
			return nil, fmt.Errorf("unexpected '}' at offset %d", len(text)-len(rest)+open)
		}
		if open > 0 {
			t.segments = append(t.segments, segment{literal: rest[:open]})
		}
		closing := strings.IndexByte(rest[open:], '}')
		if closing < 0 {
			return nil, fmt.Errorf("unterminated slot at offset %d", len(text)-len(rest)+open)
		}
		name := rest[open+1 : open+closing]
		if _, ok := knownSlots[name]; !ok {
			return nil, fmt.Errorf("unknown slot {%s}", name)
		}
		t.segments = append(t.segments, segment{slot: name})
		rest = rest[open+closing+1:]
	}
	return t, nil
}

// MustParse is Parse for compiled-in templates.
func MustParse(text string) *Template {
	t, err := Parse(text)
	if err != nil {
		panic(fmt.Sprintf("ack.MustParse: %v", err))
	}
	return t
}

// Slots returns the slot names used by the template in order of appearance.
func (t *Template) Slots() []string {
	var out []string
	for _, s := range t.segments {
		if s.slot != "" {
			out = append(out, s.slot)
		}
	}
	return out
}

// Source returns the template text as configured.
func (t *Template) Source() string {
	return t.source
}

// Render substitutes every slot.
func (t *Template) Render(data Data) string {
	var b strings.Builder
	for _, s := range t.segments {
		switch s.slot {
		case "":
			b.WriteString(s.literal)
		case SlotCustomerName:
			b.WriteString(data.CustomerName)
		case SlotAssigneeName:
			b.WriteString(data.AssigneeName)
		case SlotTeamName:
			b.WriteString(data.TeamName)
		}
	}
	return b.String()
}
