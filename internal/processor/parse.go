package processor

import (
	"regexp"
	"strings"
)

// FeedbackInfo holds the fields extracted from a course feedback form.
type FeedbackInfo struct {
	Course       string
	Version      string
	URL          string
	Chapter      string
	Section      string
	SectionTitle string
	UserName     string
	Feedback     string
}

var (
	courseLine   = regexp.MustCompile(`(?m)^\s*Course:[ \t]*(.*)$`)
	versionLine  = regexp.MustCompile(`(?m)^\s*Version:[ \t]*(.*)$`)
	urlLine      = regexp.MustCompile(`(?m)^\s*URL:[ \t]*(.*)$`)
	titleLine    = regexp.MustCompile(`(?m)^\s*Section Title:[ \t]*(.*)$`)
	userLine     = regexp.MustCompile(`(?m)^\s*User Name:[ \t]*(.*)$`)
	feedbackBody = regexp.MustCompile(`(?s)Description:\s*(.*?)\s*Copyright`)
	chapterRe    = regexp.MustCompile(`ch(\d{2})`)
	sectionRe    = regexp.MustCompile(`ch\d{2}s(\d{2})`)
	anySectionRe = regexp.MustCompile(`s(\d{2})`)
)

const (
	legacyHost  = "role.rhu.redhat.com/rol-rhu"
	currentHost = "rol.redhat.com/rol"
)

// ParseFeedback extracts what it can from a feedback description. Each
// field is independent; a missing line leaves it empty.
func ParseFeedback(description string) FeedbackInfo {
	info := FeedbackInfo{
		Version:      firstMatch(versionLine, description),
		SectionTitle: firstMatch(titleLine, description),
		UserName:     firstMatch(userLine, description),
		Feedback:     firstMatch(feedbackBody, description),
	}
	if course := strings.Fields(firstMatch(courseLine, description)); len(course) > 0 {
		info.Course = strings.ToUpper(course[0])
	}
	info.URL = strings.ReplaceAll(firstMatch(urlLine, description), legacyHost, currentHost)
	info.Chapter = firstMatch(chapterRe, info.URL)
	info.Section = firstMatch(sectionRe, info.URL)
	if info.Section == "" {
		info.Section = firstMatch(anySectionRe, info.URL)
	}
	return info
}

// ShortDescription composes "<COURSE>: chNNsNN - <title>". It returns ""
// when no course was found.
func (f FeedbackInfo) ShortDescription() string {
	if f.Course == "" {
		return ""
	}
	var location string
	if f.Chapter != "" {
		location = "ch" + f.Chapter
		if f.Section != "" {
			location += "s" + f.Section
		}
	}
	parts := make([]string, 0, 2)
	if location != "" {
		parts = append(parts, location)
	}
	if f.SectionTitle != "" {
		parts = append(parts, f.SectionTitle)
	}
	if len(parts) == 0 {
		return f.Course
	}
	return f.Course + ": " + strings.Join(parts, " - ")
}

func firstMatch(re *regexp.Regexp, text string) string {
	m := re.FindStringSubmatch(text)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimSpace(m[1])
}
