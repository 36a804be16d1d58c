package processor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/carias-rh/lx-toolbox/internal/ack"
	"github.com/carias-rh/lx-toolbox/internal/directory"
	"github.com/carias-rh/lx-toolbox/internal/domain"
)

// Enriched handles course feedback: it parses the feedback form in the
// description, looks the learner up in the directory and rewrites the
// short description.
type Enriched struct {
	dir    directory.Directory
	logger *zap.Logger
}

func NewEnriched(dir directory.Directory, logger *zap.Logger) *Enriched {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Enriched{dir: dir, logger: logger}
}

func (e *Enriched) Process(ctx context.Context, ticket domain.Ticket, team domain.TeamConfig, assignee string) (domain.UpdateSet, error) {
	if updates, ok := autoResolve(ticket, team, assignee); ok {
		return updates, nil
	}

	info := ParseFeedback(ticket.Description)
	updates := baseUpdates(team, assignee)
	if short := info.ShortDescription(); short != "" {
		updates.Fields[domain.FieldShortDesc] = short
	}
	if note := feedbackNote(info); note != "" {
		updates.Fields[domain.FieldWorkNotes] += "\n" + note
	}

	customer := customerName(e.displayName(ctx, ticket, info))
	if suppressed(ticket.ShortDescription, team.AckSuppressMarkers) {
		return updates, nil
	}
	if err := acknowledge(&updates, team, customer, assignee, true); err != nil {
		return domain.UpdateSet{}, err
	}
	return updates, nil
}

// displayName asks the directory for the learner's name; any failure
// falls back to the ticket's contact name.
func (e *Enriched) displayName(ctx context.Context, ticket domain.Ticket, info FeedbackInfo) string {
	account := info.UserName
	if account == "" {
		account = ticket.Contact
	}
	if e.dir == nil || account == "" {
		return ticket.ContactName
	}
	name, err := e.dir.DisplayName(ctx, account)
	if err != nil {
		level := e.logger.Warn
		if errors.Is(err, directory.ErrNotFound) {
			level = e.logger.Debug
		}
		level("directory lookup failed", zap.String("ticket", ticket.Number), zap.String("account", account), zap.Error(err))
		return ticket.ContactName
	}
	return name
}

func feedbackNote(info FeedbackInfo) string {
	var b strings.Builder
	add := func(label, value string) {
		if value != "" {
			fmt.Fprintf(&b, "%s: %s\n", label, value)
		}
	}
	add("Course", info.Course)
	add("Version", info.Version)
	add("URL", info.URL)
	add("User", info.UserName)
	add("Feedback", info.Feedback)
	return strings.TrimRight(b.String(), "\n")
}

func ackData(team domain.TeamConfig, customer, assignee string) ack.Data {
	return ack.Data{CustomerName: customer, AssigneeName: assignee, TeamName: team.Name}
}
