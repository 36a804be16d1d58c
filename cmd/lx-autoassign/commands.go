package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"go.uber.org/zap"

	httptransport "github.com/carias-rh/lx-toolbox/internal/api/http"
	"github.com/carias-rh/lx-toolbox/internal/api/http/handlers"
	"github.com/carias-rh/lx-toolbox/internal/auth"
	"github.com/carias-rh/lx-toolbox/internal/directory"
	"github.com/carias-rh/lx-toolbox/internal/domain"
	"github.com/carias-rh/lx-toolbox/internal/processor"
	"github.com/carias-rh/lx-toolbox/internal/repository"
	"github.com/carias-rh/lx-toolbox/internal/service"
	"github.com/carias-rh/lx-toolbox/internal/servicenow"
	apperrors "github.com/carias-rh/lx-toolbox/pkg/util"
)

func runAssign(ctx context.Context, args []string, stdout io.Writer) error {
	var (
		g          globalFlags
		assignee   string
		continuous bool
		interval   int
		limit      int
		statusAddr string
	)
	fs := newFlagSet("assign", &g)
	fs.StringVar(&assignee, "assignee", "", "assignee for teams without round robin")
	fs.BoolVar(&continuous, "continuous", false, "keep polling until interrupted")
	fs.IntVar(&interval, "interval", 0, "seconds between cycles in continuous mode (default from config)")
	fs.IntVar(&limit, "limit", 0, "maximum tickets per cycle (default from config)")
	fs.StringVar(&statusAddr, "status-addr", "", "serve the status API on this address in continuous mode")
	if err := fs.Parse(args); err != nil {
		return err
	}
	teamKey, err := teamArg(fs)
	if err != nil {
		return err
	}

	a, err := newApp(g, stdout)
	if err != nil {
		return err
	}
	defer a.close()

	team, err := a.registry.Get(teamKey)
	if err != nil {
		return err
	}
	snow, err := a.ticketing()
	if err != nil {
		return err
	}
	resolver := a.resolver()
	if err := resolver.Check(team, assignee); err != nil {
		return err
	}
	a.openRedis(ctx)
	if limit <= 0 {
		limit = a.cfg.Assignment.FetchLimit
	}

	svc := service.NewAssignmentService(service.AssignmentDependencies{
		Source:     snow,
		Updater:    snow,
		Resolver:   resolver,
		Processor:  processor.NewDispatcher(a.directory(ctx), a.logger),
		Dispatcher: a.dispatcher(ctx),
		Metrics:    a.metrics,
		Logger:     a.logger,
		FetchLimit: limit,
	})

	if !continuous {
		summary, err := svc.RunOnce(ctx, team, assignee)
		if err != nil {
			return err
		}
		printSummary(stdout, summary)
		return nil
	}

	every := a.cfg.Assignment.PollInterval()
	if interval > 0 {
		every = time.Duration(interval) * time.Second
	}
	if statusAddr == "" {
		statusAddr = a.cfg.Status.Addr
	}
	if statusAddr != "" {
		stopStatus := a.serveStatus(ctx, statusAddr, svc, snow)
		defer stopStatus()
	}
	svc.OnStateChange(func(s service.LoopState) {
		a.logger.Debug("loop state", zap.String("team", team.Key), zap.String("state", string(s)))
	})
	a.logger.Info("continuous assignment started", zap.String("team", team.Key), zap.Duration("interval", every))
	return svc.Run(ctx, team, assignee, every)
}

// serveStatus starts the status API and returns its shutdown func.
func (a *app) serveStatus(ctx context.Context, addr string, svc *service.AssignmentService, snow *servicenow.Client) func() {
	deps := map[string]handlers.Pinger{"servicenow": snow}
	if rd := a.openRedis(ctx); rd.Enabled() {
		deps["redis"] = rd
	}
	if a.postgres.Enabled() {
		deps["postgres"] = a.postgres
	}
	tokens := auth.NewTokenManager(a.cfg.Status.JWTSecret, a.cfg.Status.TokenTTLMinutes)
	statusApp := httptransport.NewApp(httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(a.cfg.App.Name, a.cfg.App.Version, deps),
		Status:         handlers.NewStatusHandler(svc, a.metrics),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
	}, a.logger, a.metrics)

	go func() {
		a.logger.Info("status api listening", zap.String("addr", addr))
		if err := statusApp.Listen(addr); err != nil {
			a.logger.Error("status api stopped", zap.Error(err))
		}
	}()
	return func() {
		if err := statusApp.ShutdownWithTimeout(5 * time.Second); err != nil {
			a.logger.Warn("status api shutdown", zap.Error(err))
		}
	}
}

func printSummary(w io.Writer, s domain.RunSummary) {
	fmt.Fprintf(w, "team %s run %s: processed %d, succeeded %d, failed %d (%s)\n",
		s.Team, s.RunID, s.Processed, s.Succeeded, s.Failed, s.Duration.Round(time.Millisecond))
	for _, o := range s.Outcomes {
		status := "assigned"
		switch {
		case !o.Success:
			status = "FAILED " + o.Reason
		case o.Resolved:
			status = "auto-resolved"
		}
		fmt.Fprintf(w, "  %-12s %-20s %s\n", o.Number, o.Assignee, status)
	}
}

func runListTickets(ctx context.Context, args []string, stdout io.Writer) error {
	var (
		g     globalFlags
		limit int
	)
	fs := newFlagSet("list-tickets", &g)
	fs.IntVar(&limit, "limit", 0, "maximum tickets to list (default from config)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	teamKey, err := teamArg(fs)
	if err != nil {
		return err
	}

	a, err := newApp(g, stdout)
	if err != nil {
		return err
	}
	defer a.close()

	team, err := a.registry.Get(teamKey)
	if err != nil {
		return err
	}
	snow, err := a.ticketing()
	if err != nil {
		return err
	}
	if limit <= 0 {
		limit = a.cfg.Assignment.FetchLimit
	}
	tickets, err := snow.ListUnassigned(ctx, team, limit)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NUMBER\tSTATE\tCREATED\tCONTACT\tSHORT DESCRIPTION")
	for _, t := range tickets {
		created := ""
		if !t.CreatedAt.IsZero() {
			created = t.CreatedAt.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", t.Number, t.State, created, t.Contact, t.ShortDescription)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%d unassigned ticket(s) for %s\n", len(tickets), team.Key)
	return nil
}

func runHistory(ctx context.Context, args []string, stdout io.Writer) error {
	var (
		g     globalFlags
		limit int
	)
	fs := newFlagSet("history", &g)
	fs.IntVar(&limit, "limit", 20, "maximum entries")
	if err := fs.Parse(args); err != nil {
		return err
	}
	teamKey, err := teamArg(fs)
	if err != nil {
		return err
	}

	a, err := newApp(g, stdout)
	if err != nil {
		return err
	}
	defer a.close()

	if _, err := a.registry.Get(teamKey); err != nil {
		return err
	}
	if a.cfg.Postgres.DSN == "" {
		return apperrors.NewConfigurationError("history requires POSTGRES_DSN", nil)
	}
	pg, err := a.openPostgres(ctx)
	if err != nil {
		return err
	}
	audit := service.NewAuditService(repository.NewAssignmentAuditRepository(pg.PoolHandle()), a.logger)
	entries, err := audit.History(ctx, teamKey, limit)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "WHEN\tEVENT\tTICKET\tASSIGNEE\tREASON")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			e.OccurredAt.Format(time.RFC3339), e.EventType, e.TicketNumber, e.Assignee, e.Reason)
	}
	return tw.Flush()
}

func runTeams(ctx context.Context, args []string, stdout io.Writer) error {
	var g globalFlags
	fs := newFlagSet("teams", &g)
	if err := fs.Parse(args); err != nil {
		return err
	}
	a, err := newApp(g, stdout)
	if err != nil {
		return err
	}
	defer a.close()

	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tNAME\tGROUP\tPROCESSOR\tROUND ROBIN\tASSIGNEES")
	for _, key := range a.registry.Keys() {
		team, _ := a.registry.Get(key)
		rr := "no"
		switch {
		case team.EnableRoundRobin && team.RoundRobinURL != "":
			rr = "remote"
		case team.EnableRoundRobin:
			rr = "local"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			team.Key, team.Name, team.AssignmentGroup, team.Processor, rr, strings.Join(team.Assignees, ","))
	}
	return tw.Flush()
}

type check struct {
	name     string
	required bool
	ping     func(context.Context) error
}

func runTest(ctx context.Context, args []string, stdout io.Writer) error {
	var g globalFlags
	fs := newFlagSet("test", &g)
	if err := fs.Parse(args); err != nil {
		return err
	}
	a, err := newApp(g, stdout)
	if err != nil {
		return err
	}
	defer a.close()

	snow, err := a.ticketing()
	if err != nil {
		return err
	}
	checks := []check{{name: "servicenow", required: true, ping: snow.Ping}}
	if a.cfg.Directory.BaseURL != "" {
		dir := directory.NewClient(a.cfg.Directory)
		checks = append(checks, check{name: "directory", ping: dir.Ping})
	}
	if rd := a.openRedis(ctx); rd.Enabled() {
		checks = append(checks, check{name: "redis", ping: rd.Ping})
	}
	if a.cfg.Postgres.DSN != "" {
		checks = append(checks, check{name: "postgres", ping: func(ctx context.Context) error {
			pg, err := a.openPostgres(ctx)
			if err != nil {
				return err
			}
			return pg.Ping(ctx)
		}})
	}

	var failed error
	for _, c := range checks {
		pctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err := c.ping(pctx)
		cancel()
		if err != nil {
			fmt.Fprintf(stdout, "%-12s FAILED: %v\n", c.name, err)
			if c.required {
				failed = apperrors.NewSourceUnavailable(err)
			} else if failed == nil {
				failed = errors.New(c.name + " check failed")
			}
			continue
		}
		fmt.Fprintf(stdout, "%-12s ok\n", c.name)
	}
	return failed
}

func runToken(ctx context.Context, args []string, stdout io.Writer) error {
	var (
		g       globalFlags
		subject string
	)
	fs := newFlagSet("token", &g)
	fs.StringVar(&subject, "subject", "", "who the token is issued to")
	if err := fs.Parse(args); err != nil {
		return err
	}
	a, err := newApp(g, stdout)
	if err != nil {
		return err
	}
	defer a.close()

	if a.cfg.Status.JWTSecret == "" {
		return apperrors.NewConfigurationError("token requires STATUS_JWT_SECRET", nil)
	}
	if subject == "" {
		return apperrors.NewConfigurationError("token requires --subject", nil)
	}
	tokens := auth.NewTokenManager(a.cfg.Status.JWTSecret, a.cfg.Status.TokenTTLMinutes)
	token, expires, err := tokens.GenerateToken(subject, auth.ScopeWake)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, token)
	a.logger.Debug("issued status token", zap.String("subject", subject), zap.Time("expires_at", expires))
	return nil
}
