package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/teazle/autosocialai/internal/domain"
	"github.com/teazle/autosocialai/internal/metrics"
	"github.com/teazle/autosocialai/internal/ports"
)

const (
	defaultLookaheadDays = 7
	defaultTimezone      = "Asia/Singapore"
	defaultPostingTime   = "10:00"
)

// Generator produces one scheduled item for a client.
type Generator interface {
	Generate(ctx context.Context, profile domain.ClientProfile, scheduledAt time.Time) (Outcome, error)
}

// PlannerDeps wires the planner.
type PlannerDeps struct {
	Clients       ports.ClientRepository
	Pipeline      ports.PipelineRepository
	Generator     Generator
	LookaheadDays int
	Metrics       *metrics.Metrics
	Logger        *slog.Logger
}

// Planner keeps every active client's calendar filled.
type Planner struct {
	clients   ports.ClientRepository
	pipeline  ports.PipelineRepository
	generator Generator
	lookahead int
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       func() time.Time
}

// NewPlanner constructs the planner.
func NewPlanner(deps PlannerDeps) *Planner {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	lookahead := deps.LookaheadDays
	if lookahead <= 0 {
		lookahead = defaultLookaheadDays
	}
	return &Planner{
		clients:   deps.Clients,
		pipeline:  deps.Pipeline,
		generator: deps.Generator,
		lookahead: lookahead,
		metrics:   deps.Metrics,
		logger:    logger.With("component", "planner"),
		now:       time.Now,
	}
}

// PlanReport summarises one planning run.
type PlanReport struct {
	Clients   int       `json:"clients"`
	Scheduled int       `json:"scheduled"`
	Needed    int       `json:"needed"`
	Created   []Outcome `json:"-"`
	Failed    int       `json:"failed"`
}

// CreatedCount is the number of items persisted by the run.
func (r PlanReport) CreatedCount() int {
	return len(r.Created)
}

func (r *PlanReport) add(other PlanReport) {
	r.Clients += other.Clients
	r.Scheduled += other.Scheduled
	r.Needed += other.Needed
	r.Created = append(r.Created, other.Created...)
	r.Failed += other.Failed
}

// Run plans every active client over the default lookahead. One client's
// failure does not stop the others.
func (p *Planner) Run(ctx context.Context) (PlanReport, error) {
	if p.clients == nil || p.pipeline == nil || p.generator == nil {
		return PlanReport{}, nil
	}
	started := time.Now()
	defer func() { p.metrics.ObserveJob("generation", time.Since(started)) }()

	profiles, err := p.clients.ListActiveClients(ctx)
	if err != nil {
		return PlanReport{}, fmt.Errorf("list clients: %w", err)
	}

	var report PlanReport
	for _, profile := range profiles {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		r, err := p.PlanClient(ctx, profile, p.lookahead)
		report.add(r)
		if err != nil {
			report.Failed++
			p.logger.Error("planning failed", "client_id", profile.Client.ID, "error", err)
		}
	}
	p.logger.Info("planning finished", "clients", report.Clients, "created", report.CreatedCount(), "failed", report.Failed)
	return report, nil
}

// RunClient plans a single client, whatever its status, over days.
func (p *Planner) RunClient(ctx context.Context, clientID string, days int) (PlanReport, error) {
	if p.clients == nil {
		return PlanReport{}, fmt.Errorf("planner: missing client repository")
	}
	profile, err := p.clients.GetClient(ctx, clientID)
	if err != nil {
		return PlanReport{}, fmt.Errorf("load client: %w", err)
	}
	return p.PlanClient(ctx, profile, days)
}

// PlanClient generates the posts the client still needs in the next days.
// Free slots are filled in order, one generation at a time.
func (p *Planner) PlanClient(ctx context.Context, profile domain.ClientProfile, days int) (PlanReport, error) {
	if p.pipeline == nil || p.generator == nil {
		return PlanReport{}, fmt.Errorf("planner: missing collaborators")
	}
	if days <= 0 {
		days = p.lookahead
	}
	report := PlanReport{Clients: 1}
	logger := p.logger.With("client_id", profile.Client.ID)

	if err := domain.Check(profile.Rules); err != nil {
		return report, fmt.Errorf("content rules: %w", err)
	}

	now := p.now()
	taken, err := p.pipeline.ListScheduled(ctx, profile.Client.ID, now, now.AddDate(0, 0, days))
	if err != nil {
		return report, fmt.Errorf("list scheduled: %w", err)
	}
	report.Scheduled = len(taken)

	needed := max(0, profile.Rules.PostsPerWeek*days/7-len(taken))
	report.Needed = needed
	if needed == 0 {
		logger.Debug("calendar full", "scheduled", len(taken))
		return report, nil
	}

	var slots []time.Time
	for _, at := range PostingSlots(now, clientLocation(profile.Client.Timezone), profile.Rules, days) {
		if slices.ContainsFunc(taken, at.Equal) {
			continue
		}
		slots = append(slots, at)
		if len(slots) == needed {
			break
		}
	}
	if len(slots) == 0 {
		return report, nil
	}

	logger.Info("generating posts", "needed", needed, "slots", len(slots))
	for _, at := range slots {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		outcome, err := p.generator.Generate(ctx, profile, at)
		if outcome.Item.ID != "" {
			report.Created = append(report.Created, outcome)
		}
		if err != nil {
			report.Failed++
			logger.Warn("post generation failed", "scheduled_at", at, "error", err)
		}
	}
	return report, nil
}

// PostingSlots lists the posting times within days from now, on the rule's
// posting days and at its posting time in loc. Past times are skipped.
func PostingSlots(now time.Time, loc *time.Location, rules domain.ContentRules, days int) []time.Time {
	if loc == nil {
		loc = time.UTC
	}
	hour, minute := parseClock(rules.PostingTime)
	postingDays := rules.PostingDays
	if len(postingDays) == 0 {
		postingDays = []int{1, 3, 5}
	}

	local := now.In(loc)
	end := now.AddDate(0, 0, days)
	var slots []time.Time
	for i := 0; i <= days; i++ {
		day := local.AddDate(0, 0, i)
		if !slices.Contains(postingDays, int(day.Weekday())) {
			continue
		}
		at := time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, loc)
		if !at.After(now) || !at.Before(end) {
			continue
		}
		slots = append(slots, at)
	}
	return slots
}

func parseClock(value string) (int, int) {
	if value == "" {
		value = defaultPostingTime
	}
	h, m, ok := strings.Cut(value, ":")
	if !ok {
		return 10, 0
	}
	hour, err1 := strconv.Atoi(h)
	minute, err2 := strconv.Atoi(m)
	if err1 != nil || err2 != nil || hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 10, 0
	}
	return hour, minute
}

func clientLocation(tz string) *time.Location {
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC
	}
	return loc
}
