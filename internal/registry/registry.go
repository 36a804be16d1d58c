package registry

import (
	"fmt"
	"sort"

	"github.com/carias-rh/lx-toolbox/internal/ack"
	"github.com/carias-rh/lx-toolbox/internal/config"
	"github.com/carias-rh/lx-toolbox/internal/domain"
	apperrors "github.com/carias-rh/lx-toolbox/pkg/util"
)

// Registry is the immutable team key -> TeamConfig mapping.
type Registry struct {
	teams map[string]domain.TeamConfig
	keys  []string
}

// New validates teams and builds a registry. Every acknowledgment
// template is parsed here.
func New(teams []domain.TeamConfig) (*Registry, error) {
	r := &Registry{teams: make(map[string]domain.TeamConfig, len(teams))}
	for _, team := range teams {
		if err := validate(team); err != nil {
			return nil, apperrors.NewConfigurationError(fmt.Sprintf("team %q: %v", team.Key, err),
				map[string]any{"team": team.Key})
		}
		if _, dup := r.teams[team.Key]; dup {
			return nil, apperrors.NewConfigurationError(fmt.Sprintf("duplicate team %q", team.Key),
				map[string]any{"team": team.Key})
		}
		tmpl, err := ack.Parse(team.AckTemplate)
		if err != nil {
			return nil, apperrors.NewConfigurationError(fmt.Sprintf("team %q ack template: %v", team.Key, err),
				map[string]any{"team": team.Key})
		}
		team.Ack = tmpl
		if team.Processor == "" {
			team.Processor = domain.ProcessorGeneric
		}
		r.teams[team.Key] = clone(team)
		r.keys = append(r.keys, team.Key)
	}
	sort.Strings(r.keys)
	return r, nil
}

// Default builds the compiled-in registry with the deployment's
// operational overrides applied.
func Default(cfg *config.Config) (*Registry, error) {
	teams := Builtin()
	for i := range teams {
		teams[i] = ApplyOverride(teams[i], cfg.Team(teams[i].Key))
	}
	return New(teams)
}

// ApplyOverride fills assignees, default assignee and round-robin address.
func ApplyOverride(team domain.TeamConfig, override config.TeamOverride) domain.TeamConfig {
	if len(override.Assignees) > 0 {
		team.Assignees = append([]string(nil), override.Assignees...)
	}
	if override.DefaultAssignee != "" {
		team.DefaultAssignee = override.DefaultAssignee
	}
	if override.RoundRobinURL != "" {
		team.RoundRobinURL = override.RoundRobinURL
	}
	return team
}

// Get returns the configuration for a team key.
func (r *Registry) Get(key string) (domain.TeamConfig, error) {
	team, ok := r.teams[key]
	if !ok {
		return domain.TeamConfig{}, apperrors.NewUnknownTeam(key)
	}
	return clone(team), nil
}

// Keys returns the registered team keys, sorted.
func (r *Registry) Keys() []string {
	return append([]string(nil), r.keys...)
}

func validate(team domain.TeamConfig) error {
	switch {
	case team.Key == "":
		return fmt.Errorf("missing key")
	case team.Name == "":
		return fmt.Errorf("missing name")
	case team.AssignmentGroup == "":
		return fmt.Errorf("missing assignment group")
	case len(team.TargetStates) == 0:
		return fmt.Errorf("no target states")
	}
	switch team.Processor {
	case "", domain.ProcessorStandard, domain.ProcessorEnriched, domain.ProcessorGeneric:
	default:
		return fmt.Errorf("unknown processor %q", team.Processor)
	}
	return nil
}

// clone copies the slice fields so callers cannot mutate the registry.
func clone(team domain.TeamConfig) domain.TeamConfig {
	team.TargetStates = append([]domain.TicketState(nil), team.TargetStates...)
	team.AutoResolveReporters = append([]string(nil), team.AutoResolveReporters...)
	team.AckSuppressMarkers = append([]string(nil), team.AckSuppressMarkers...)
	team.Assignees = append([]string(nil), team.Assignees...)
	team.AckRewrites = append([]domain.Rewrite(nil), team.AckRewrites...)
	return team
}
