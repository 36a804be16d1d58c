package rotation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/carias-rh/lx-toolbox/internal/domain"
	apperrors "github.com/carias-rh/lx-toolbox/pkg/util"
)

// ErrRotationUnavailable means a round-robin rotation failed and no
// default assignee was configured to take over. It fails one ticket only.
var ErrRotationUnavailable = errors.New("round robin unavailable and no default assignee")

// Resolver decides who receives the next ticket of a team.
type Resolver struct {
	rotation        Rotation
	remote          Rotation
	defaultAssignee string
	logger          *zap.Logger
}

// NewResolver builds a resolver. rotation serves teams without a
// round-robin url; remote serves teams that have one.
func NewResolver(rotation, remote Rotation, defaultAssignee string, logger *zap.Logger) *Resolver {
	if rotation == nil {
		rotation = NewLocalRotation()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		rotation:        rotation,
		remote:          remote,
		defaultAssignee: strings.TrimSpace(defaultAssignee),
		logger:          logger,
	}
}

// Resolve returns the assignee for the next ticket. Round-robin teams ask
// their rotation and fall back to the configured default on failure;
// other teams use explicit, then the team default, then the global
// default. No candidate at all is a configuration error, except after a
// rotation failure, which yields ErrRotationUnavailable.
func (r *Resolver) Resolve(ctx context.Context, team domain.TeamConfig, explicit string) (string, error) {
	if !team.EnableRoundRobin {
		return r.fallback(team, explicit)
	}
	rot := r.rotation
	if r.usesRemote(team) {
		rot = r.remote
	}
	name, err := rot.Next(ctx, team)
	if err == nil && strings.TrimSpace(name) != "" {
		return strings.TrimSpace(name), nil
	}
	if err == nil {
		err = errors.New("empty assignee")
	}
	r.logger.Warn("round robin unavailable, using default assignee",
		zap.String("team", team.Key), zap.Error(err))
	assignee, fbErr := r.fallback(team, "")
	if fbErr != nil && !errors.Is(err, ErrNoAssignees) {
		return "", fmt.Errorf("team %q: %w: %w", team.Key, ErrRotationUnavailable, err)
	}
	return assignee, fbErr
}

// Check reports, without any network call, whether team can be given an
// assignee at all. A round-robin team whose rotation lives behind the
// network (a remote service or a shared cursor) also needs a default to
// fall back on. The CLI runs it before the first fetch.
func (r *Resolver) Check(team domain.TeamConfig, explicit string) error {
	if !team.EnableRoundRobin {
		_, err := r.fallback(team, explicit)
		return err
	}
	remote := r.usesRemote(team)
	if !remote && len(team.Assignees) == 0 {
		_, err := r.fallback(team, "")
		return err
	}
	if _, local := r.rotation.(*LocalRotation); local && !remote {
		return nil
	}
	if _, err := r.fallback(team, ""); err != nil {
		return apperrors.NewConfigurationError(
			fmt.Sprintf("round robin for team %q can fail over the network: set the team default assignee or DEFAULT_ASSIGNEE", team.Key),
			map[string]any{"team": team.Key})
	}
	return nil
}

func (r *Resolver) usesRemote(team domain.TeamConfig) bool {
	return team.RoundRobinURL != "" && r.remote != nil
}

func (r *Resolver) fallback(team domain.TeamConfig, explicit string) (string, error) {
	for _, candidate := range []string{explicit, team.DefaultAssignee, r.defaultAssignee} {
		if c := strings.TrimSpace(candidate); c != "" {
			return c, nil
		}
	}
	return "", apperrors.NewConfigurationError(
		fmt.Sprintf("no assignee available for team %q: pass --assignee or set DEFAULT_ASSIGNEE", team.Key),
		map[string]any{"team": team.Key})
}
