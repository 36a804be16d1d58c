package registry

import "github.com/carias-rh/lx-toolbox/internal/domain"

// Team keys compiled into the binary.
const (
	TeamLXFeedback    = "lx-feedback"
	TeamRHLSSupport   = "rhls-support"
	TeamCertification = "certification"
)

const feedbackAck = `Dear {customer_name},

Thank you for taking the time to send us your feedback about the course.
{assignee_name} from the {team_name} team has picked up your ticket and will get back to you shortly.

Best Regards,
{team_name}`

const supportAck = `Hello {customer_name},

We have received your request. {assignee_name} ({team_name}) is now working on it.
If you need to add anything, reply to this message or write to training@redhat.com.

Regards,
{team_name}`

const certificationAck = `Hello {customer_name},

Your certification request has been assigned to {assignee_name} from {team_name}.`

// Builtin returns the compiled-in team records. New teams are added here.
func Builtin() []domain.TeamConfig {
	return []domain.TeamConfig{
		{
			Key:             TeamLXFeedback,
			Name:            "Learner Experience",
			AssignmentGroup: "LX Feedback",
			Category:        "Content",
			Subcategory:     "Course Feedback",
			IssueType:       "Feedback",
			TargetStates:    []domain.TicketState{domain.TicketStateNew, domain.TicketStateAwaiting},
			AutoResolveReporters: []string{
				"noreply@redhat.com",
				"rol-notifications@redhat.com",
			},
			AckTemplate:       feedbackAck,
			EnableRoundRobin:  true,
			TimeWorkedSeconds: 300,
			Processor:         domain.ProcessorEnriched,
		},
		{
			Key:                  TeamRHLSSupport,
			Name:                 "RHLS Support",
			AssignmentGroup:      "RHLS Support",
			Category:             "Subscription",
			Subcategory:          "Access",
			IssueType:            "Question",
			TargetStates:         []domain.TicketState{domain.TicketStateNew},
			AutoResolveReporters: []string{"do-not-reply@redhat.com"},
			AckTemplate:          supportAck,
			AckSuppressMarkers:   []string{"[AUTO]", "Automatic reply", "Out of Office"},
			AckRewrites: []domain.Rewrite{
				{From: "training@redhat.com", To: "training-support@redhat.com"},
			},
			TimeWorkedSeconds: 120,
			Processor:         domain.ProcessorStandard,
		},
		{
			Key:             TeamCertification,
			Name:            "Certification Ops",
			AssignmentGroup: "Certification Operations",
			Category:        "Certification",
			Subcategory:     "Exam",
			IssueType:       "Request",
			TargetStates:    []domain.TicketState{domain.TicketStateNew},
			AckTemplate:     certificationAck,
			Processor:       domain.ProcessorGeneric,
		},
	}
}
