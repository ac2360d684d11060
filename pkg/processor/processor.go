// Package processor orchestrates webhook handling after routing: duplicate
// suppression, payload normalization, team resolution, review eligibility,
// enrichment fetches and trigger dispatch.
package processor

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"reviewhook/internal"
	"reviewhook/pkg/auth"
	"reviewhook/pkg/branch"
	"reviewhook/pkg/command"
	"reviewhook/pkg/dedup"
	"reviewhook/pkg/event"
	"reviewhook/pkg/mapper"
	"reviewhook/pkg/scm"
	"reviewhook/pkg/storage"
)

// ConfigFilePath is where a repository can override review settings.
const ConfigFilePath = ".reviewhook.yml"

// TeamSource resolves the teams onboarded for a repository.
type TeamSource interface {
	FindTeamsForRepository(ctx context.Context, platform, repoID string) ([]storage.TeamRecord, error)
}

// Dispatcher hands a ReviewTrigger to the automation-execution side.
type Dispatcher interface {
	TriggerReviewAutomation(ctx context.Context, trigger event.ReviewTrigger) error
}

// RuleSyncer ingests the changed files of a merged pull request.
type RuleSyncer interface {
	SyncRulesFromChangedFiles(ctx context.Context, team event.OrgTeam, repo event.Repository, number int, files []scm.PullRequestFile) error
}

// ChatNotifier receives plain mentions that are not review commands.
type ChatNotifier interface {
	NotifyMention(ctx context.Context, team event.OrgTeam, repo event.Repository, number int, body string) error
}

// TokenResolver resolves platform credentials for a raw payload.
type TokenResolver interface {
	Resolve(ctx context.Context, platform event.Platform, payload []byte) (auth.AuthContext, error)
}

// ClientFactory builds code-management clients. *scm.Factory satisfies it.
type ClientFactory interface {
	NewClient(ctx context.Context, authCtx auth.AuthContext) (scm.Client, error)
}

// Config carries the processor defaults applied when a team or repository
// does not override them.
type Config struct {
	// DefaultBranchPatterns apply when neither the repository config file
	// nor the team record configures patterns. Empty means every target
	// branch is eligible.
	DefaultBranchPatterns []string
	// MentionToken is the bot handle commands are addressed to.
	MentionToken string
	// DedupTTL is the duplicate-suppression window.
	DedupTTL time.Duration
}

// Processor implements the pull-request and comment pipelines behind the
// router. All failures are logged and swallowed; nothing propagates back
// to the webhook response path.
type Processor struct {
	cfg        Config
	teams      TeamSource
	prs        storage.PullRequestStore
	resolver   TokenResolver
	clients    ClientFactory
	dispatcher Dispatcher
	ruleSync   RuleSyncer
	chat       ChatNotifier
	logger     *log.Logger

	suppressors map[event.Platform]*dedup.Suppressor

	detectorMu sync.Mutex
	detectors  map[string]*command.Detector

	tasks sync.WaitGroup
}

// New creates a Processor. teams, resolver, clients and dispatcher are
// required; prs, ruleSync and chat are optional and their steps are
// skipped when nil.
func New(cfg Config, teams TeamSource, prs storage.PullRequestStore, resolver TokenResolver, clients ClientFactory, dispatcher Dispatcher, ruleSync RuleSyncer, chat ChatNotifier, logger *log.Logger) *Processor {
	if logger == nil {
		logger = log.Default()
	}
	if cfg.MentionToken == "" {
		cfg.MentionToken = command.DefaultMention
	}
	suppressors := make(map[event.Platform]*dedup.Suppressor, 4)
	for _, platform := range []event.Platform{
		event.PlatformGitHub,
		event.PlatformGitLab,
		event.PlatformBitbucket,
		event.PlatformAzureRepos,
	} {
		suppressors[platform] = dedup.New(platform, cfg.DedupTTL)
	}
	return &Processor{
		cfg:         cfg,
		teams:       teams,
		prs:         prs,
		resolver:    resolver,
		clients:     clients,
		dispatcher:  dispatcher,
		ruleSync:    ruleSync,
		chat:        chat,
		logger:      logger,
		suppressors: suppressors,
		detectors:   make(map[string]*command.Detector),
	}
}

// Shutdown waits for in-flight dispatch tasks to finish.
func (p *Processor) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.tasks.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ProcessPullRequest runs the pull-request pipeline for one admitted
// delivery.
func (p *Processor) ProcessPullRequest(ctx context.Context, evt event.WebhookEvent) error {
	resourceID, fingerprint := deliveryFingerprint(evt)
	if p.suppressors[evt.Platform].IsDuplicate(resourceID, evt.EventName, fingerprint) {
		internal.IncDuplicateSuppressed(string(evt.Platform))
		p.logger.Printf("duplicate delivery suppressed platform=%s event=%s resource=%s", evt.Platform, evt.EventName, resourceID)
		return nil
	}

	m := mapper.For(evt.Platform)
	if m == nil {
		return fmt.Errorf("no mapper for platform %s", evt.Platform)
	}
	action := m.Action(evt.Payload, evt.EventName)
	pr := m.PullRequest(evt.Payload)
	repo := m.Repository(evt.Payload)
	if action == "" || pr == nil || repo == nil {
		p.logger.Printf("payload mapping incomplete platform=%s event=%s, dropping", evt.Platform, evt.EventName)
		return nil
	}

	teams, err := p.teams.FindTeamsForRepository(ctx, string(evt.Platform), repo.ID)
	if err != nil {
		return fmt.Errorf("team lookup for %s/%s: %w", evt.Platform, repo.FullName, err)
	}
	if len(teams) == 0 {
		p.logger.Printf("repository not onboarded platform=%s repo=%s, dropping", evt.Platform, repo.FullName)
		return nil
	}

	client := p.newClient(ctx, evt)

	stored := p.loadPullRequestRecord(ctx, evt.Platform, repo.ID, pr.Number)
	decision := p.decide(ctx, evt, action, pr, stored)

	for _, team := range teams {
		p.handleForTeam(ctx, evt, team, action, pr, repo, client, decision)
	}

	p.persistPullRequest(ctx, evt.Platform, repo, pr, client)
	return nil
}

// handleForTeam applies eligibility and dispatch for one team binding.
func (p *Processor) handleForTeam(ctx context.Context, evt event.WebhookEvent, team storage.TeamRecord, action event.Action, pr *event.PullRequest, repo *event.Repository, client scm.Client, decision triggerDecision) {
	orgTeam := event.OrgTeam{OrganizationID: team.Organization, TeamID: team.Team}

	if action == event.ActionMerged {
		p.syncRulesAfterMerge(ctx, orgTeam, *repo, pr, client)
	}
	if !decision.trigger {
		p.logger.Printf("persist-only platform=%s repo=%s pr=%d action=%s reason=%s", evt.Platform, repo.FullName, pr.Number, action, decision.reason)
		return
	}

	patterns := p.resolvePatterns(ctx, team, *repo, pr, client)
	if !branch.Eligible(pr.HeadRef, pr.BaseRef, patterns) {
		internal.IncIneligibleBranch(string(evt.Platform))
		p.logger.Printf("branch not eligible platform=%s repo=%s pr=%d target=%s", evt.Platform, repo.FullName, pr.Number, pr.BaseRef)
		return
	}

	p.dispatchAsync(event.ReviewTrigger{
		OrgTeam:     orgTeam,
		Platform:    evt.Platform,
		Repository:  *repo,
		PullRequest: *pr,
		Action:      action,
		Origin:      event.OriginWebhook,
	})
}

// ProcessComment runs the comment pipeline: deleted and empty comments are
// ignored, explicit start commands re-enter the review pipeline bypassing
// dedup and branch eligibility, and plain mentions go to the chat side.
func (p *Processor) ProcessComment(ctx context.Context, evt event.WebhookEvent) error {
	m := mapper.For(evt.Platform)
	if m == nil {
		return fmt.Errorf("no mapper for platform %s", evt.Platform)
	}
	comment := m.Comment(evt.Payload)
	if comment == nil || comment.IsDeletedAction || strings.TrimSpace(comment.Body) == "" {
		return nil
	}
	repo := m.Repository(evt.Payload)
	pr := m.PullRequest(evt.Payload)
	if repo == nil || pr == nil {
		p.logger.Printf("comment payload mapping incomplete platform=%s event=%s, dropping", evt.Platform, evt.EventName)
		return nil
	}

	teams, err := p.teams.FindTeamsForRepository(ctx, string(evt.Platform), repo.ID)
	if err != nil {
		return fmt.Errorf("team lookup for %s/%s: %w", evt.Platform, repo.FullName, err)
	}
	if len(teams) == 0 {
		p.logger.Printf("repository not onboarded platform=%s repo=%s, dropping", evt.Platform, repo.FullName)
		return nil
	}

	client := p.newClient(ctx, evt)

	for _, team := range teams {
		mention := team.MentionToken
		if mention == "" {
			mention = p.cfg.MentionToken
		}
		detector, err := p.detectorFor(mention)
		if err != nil {
			p.logger.Printf("invalid mention token %q: %v", mention, err)
			continue
		}
		result := detector.Classify(comment.Body, evt.Platform)
		orgTeam := event.OrgTeam{OrganizationID: team.Organization, TeamID: team.Team}

		switch {
		case result.IsStartCommand && !result.HasReviewMarker:
			internal.IncCommand(string(evt.Platform))
			full := p.completePullRequest(ctx, client, *repo, pr)
			p.dispatchAsync(event.ReviewTrigger{
				OrgTeam:     orgTeam,
				Platform:    evt.Platform,
				Repository:  *repo,
				PullRequest: *full,
				Action:      event.ActionCommand,
				Origin:      event.OriginCommand,
			})
		case result.IsMention && !result.HasReviewMarker:
			if p.chat == nil {
				p.logger.Printf("mention without command platform=%s repo=%s pr=%d, no chat collaborator configured", evt.Platform, repo.FullName, pr.Number)
				continue
			}
			if err := p.chat.NotifyMention(ctx, orgTeam, *repo, pr.Number, comment.Body); err != nil {
				p.logger.Printf("chat notify failed platform=%s repo=%s pr=%d: %v", evt.Platform, repo.FullName, pr.Number, err)
			}
		}
	}
	return nil
}

// triggerDecision is the outcome of the per-platform rule table: trigger
// the full automation, or only persist state.
type triggerDecision struct {
	trigger bool
	reason  string
}

func trigger() triggerDecision {
	return triggerDecision{trigger: true}
}

func persistOnly(reason string) triggerDecision {
	return triggerDecision{reason: reason}
}

// decide applies the platform rule table for pull-request events.
func (p *Processor) decide(ctx context.Context, evt event.WebhookEvent, action event.Action, pr *event.PullRequest, stored *storage.PullRequestRecord) triggerDecision {
	switch evt.Platform {
	case event.PlatformGitHub:
		return decideGitHub(evt, pr)
	case event.PlatformGitLab:
		return decideGitLab(evt, pr)
	case event.PlatformBitbucket:
		return decideBitbucket(evt, pr, stored)
	case event.PlatformAzureRepos:
		return decideAzure(action, pr)
	default:
		return persistOnly("unknown platform")
	}
}

// decideGitHub triggers automation for opened, synchronize and
// ready_for_review. Closed pull requests emit a closed or merged trigger
// so the dispatch rules can route them elsewhere, reopened only persists.
func decideGitHub(evt event.WebhookEvent, pr *event.PullRequest) triggerDecision {
	rawAction, _ := evt.Payload["action"].(string)
	switch rawAction {
	case "opened", "synchronize":
		return trigger()
	case "ready_for_review":
		if pr.IsDraft {
			return persistOnly("still draft")
		}
		return trigger()
	case "closed":
		return trigger()
	case "reopened":
		return persistOnly("reopened persists only")
	default:
		return persistOnly("unhandled action " + rawAction)
	}
}

// decideGitLab triggers on open/reopen, on updates that carry new commits
// (last_commit.id differs from oldrev) and on the draft to ready
// transition. Marking a ready MR as draft and description-only updates do
// not trigger.
func decideGitLab(evt event.WebhookEvent, pr *event.PullRequest) triggerDecision {
	attrs, _ := evt.Payload["object_attributes"].(map[string]interface{})
	rawAction, _ := attrs["action"].(string)
	switch rawAction {
	case "open", "reopen":
		return trigger()
	case "update":
		changed := mapper.GitLabChangedFields(evt.Payload)
		for _, field := range changed {
			if field == "draft" || field == "work_in_progress" {
				if pr.IsDraft {
					return persistOnly("marked draft")
				}
				return trigger()
			}
		}
		oldRev := mapper.GitLabOldRev(evt.Payload)
		lastCommit := ""
		if commit, _ := attrs["last_commit"].(map[string]interface{}); commit != nil {
			lastCommit, _ = commit["id"].(string)
		}
		if oldRev != "" && lastCommit != "" && lastCommit != oldRev {
			return trigger()
		}
		return persistOnly("update without new commits")
	case "merge", "close":
		return persistOnly(rawAction + " event")
	default:
		return persistOnly("unhandled action " + rawAction)
	}
}

// decideBitbucket triggers for newly created pull requests and for updates
// while the pull request is still open, skipping updates whose head commit
// was already processed.
func decideBitbucket(evt event.WebhookEvent, pr *event.PullRequest, stored *storage.PullRequestRecord) triggerDecision {
	switch evt.EventName {
	case "pullrequest:created":
		return trigger()
	case "pullrequest:updated":
		if pr.State != event.StateOpen {
			return persistOnly("not open")
		}
		if stored != nil && pr.HeadSHA != "" {
			for _, sha := range stored.CommitSHAs {
				if sha == pr.HeadSHA {
					return persistOnly("head commit already processed")
				}
			}
		}
		return trigger()
	case "pullrequest:fulfilled", "pullrequest:rejected":
		return persistOnly(evt.EventName)
	default:
		return persistOnly("unhandled event " + evt.EventName)
	}
}

// decideAzure triggers for created pull requests and for updates while the
// pull request remains active.
func decideAzure(action event.Action, pr *event.PullRequest) triggerDecision {
	switch action {
	case event.ActionOpened:
		return trigger()
	case event.ActionUpdated:
		if pr.State != event.StateOpen {
			return persistOnly("not active")
		}
		return trigger()
	case event.ActionMerged, event.ActionClosed:
		return persistOnly(string(action) + " event")
	default:
		return persistOnly("unhandled action")
	}
}

// syncRulesAfterMerge runs the post-merge rule-sync chain: only when the
// merge target is the repository default branch, fetch the changed files
// and hand them to the rule-sync collaborator. Every fetch failure is
// logged and contained here.
func (p *Processor) syncRulesAfterMerge(ctx context.Context, team event.OrgTeam, repo event.Repository, pr *event.PullRequest, client scm.Client) {
	if p.ruleSync == nil || client == nil {
		return
	}
	defaultBranch, err := client.GetDefaultBranch(ctx, repo)
	if err != nil {
		p.logger.Printf("default branch fetch failed repo=%s: %v", repo.FullName, err)
		return
	}
	if mapper.TrimRefPrefix(pr.BaseRef) != mapper.TrimRefPrefix(defaultBranch) {
		return
	}
	files, err := client.GetFilesByPullRequestID(ctx, repo, pr.Number)
	if err != nil {
		p.logger.Printf("changed files fetch failed repo=%s pr=%d: %v", repo.FullName, pr.Number, err)
		return
	}
	if len(files) == 0 {
		return
	}
	if err := p.ruleSync.SyncRulesFromChangedFiles(ctx, team, repo, pr.Number, files); err != nil {
		p.logger.Printf("rule sync failed repo=%s pr=%d: %v", repo.FullName, pr.Number, err)
	}
}

// repoConfig is the optional per-repository override file.
type repoConfig struct {
	BranchPatterns []string `yaml:"branch_patterns"`
}

// resolvePatterns picks branch patterns in precedence order: repository
// config file, team record, processor defaults. The config file is fetched
// with the head, base, default-branch ref fallback so merged branches with
// deleted sources still resolve.
func (p *Processor) resolvePatterns(ctx context.Context, team storage.TeamRecord, repo event.Repository, pr *event.PullRequest, client scm.Client) []string {
	if client != nil {
		refs := []string{
			mapper.TrimRefPrefix(pr.HeadRef),
			mapper.TrimRefPrefix(pr.BaseRef),
		}
		if defaultBranch, err := client.GetDefaultBranch(ctx, repo); err == nil {
			refs = append(refs, mapper.TrimRefPrefix(defaultBranch))
		}
		if content, _, err := scm.ContentWithFallback(ctx, client, repo, ConfigFilePath, refs); err == nil {
			var cfg repoConfig
			if err := yaml.Unmarshal(content, &cfg); err != nil {
				p.logger.Printf("invalid %s in repo=%s: %v", ConfigFilePath, repo.FullName, err)
			} else if len(cfg.BranchPatterns) > 0 {
				return cfg.BranchPatterns
			}
		}
	}
	if len(team.BranchPatterns) > 0 {
		return team.BranchPatterns
	}
	return p.cfg.DefaultBranchPatterns
}

// completePullRequest fills in fields comment payloads usually lack by
// fetching the pull request. Comment events carry the PR number but not
// its refs on most platforms.
func (p *Processor) completePullRequest(ctx context.Context, client scm.Client, repo event.Repository, pr *event.PullRequest) *event.PullRequest {
	if pr.HeadRef != "" && pr.BaseRef != "" {
		return pr
	}
	if client == nil {
		return pr
	}
	fetched, err := client.GetPullRequestByNumber(ctx, repo, pr.Number)
	if err != nil || fetched == nil {
		p.logger.Printf("pull request fetch failed repo=%s pr=%d: %v", repo.FullName, pr.Number, err)
		return pr
	}
	return fetched
}

// persistPullRequest saves the snapshot and the commit SHAs seen so far.
// Failures are logged; persistence never blocks the pipeline.
func (p *Processor) persistPullRequest(ctx context.Context, platform event.Platform, repo *event.Repository, pr *event.PullRequest, client scm.Client) {
	if p.prs == nil {
		return
	}
	record := storage.PullRequestRecord{
		Platform:     string(platform),
		RepoID:       repo.ID,
		RepoFullName: repo.FullName,
		Number:       pr.Number,
		Title:        pr.Title,
		State:        string(pr.State),
		HeadRef:      pr.HeadRef,
		BaseRef:      pr.BaseRef,
		HeadSHA:      pr.HeadSHA,
		AuthorID:     pr.Author.ID,
	}
	if pr.State == event.StateMerged {
		now := time.Now().UTC()
		record.MergedAt = &now
	}
	if client != nil {
		if commits, err := client.GetCommitsForPullRequest(ctx, *repo, pr.Number); err == nil {
			for _, commit := range commits {
				record.CommitSHAs = append(record.CommitSHAs, commit.SHA)
			}
		}
	}
	if len(record.CommitSHAs) == 0 && pr.HeadSHA != "" {
		record.CommitSHAs = []string{pr.HeadSHA}
	}
	if err := p.prs.UpsertPullRequest(ctx, record); err != nil {
		p.logger.Printf("pull request persist failed platform=%s repo=%s pr=%d: %v", platform, repo.FullName, pr.Number, err)
	}
}

func (p *Processor) loadPullRequestRecord(ctx context.Context, platform event.Platform, repoID string, number int) *storage.PullRequestRecord {
	if p.prs == nil {
		return nil
	}
	record, err := p.prs.GetPullRequest(ctx, string(platform), repoID, number)
	if err != nil {
		p.logger.Printf("pull request lookup failed platform=%s repo=%s pr=%d: %v", platform, repoID, number, err)
		return nil
	}
	return record
}

// newClient resolves credentials and builds the platform client. A nil
// client is tolerated downstream; enrichment steps are skipped.
func (p *Processor) newClient(ctx context.Context, evt event.WebhookEvent) scm.Client {
	if p.resolver == nil || p.clients == nil {
		return nil
	}
	authCtx, err := p.resolver.Resolve(ctx, evt.Platform, evt.RawPayload)
	if err != nil {
		p.logger.Printf("credential resolution failed platform=%s: %v", evt.Platform, err)
		return nil
	}
	client, err := p.clients.NewClient(ctx, authCtx)
	if err != nil {
		p.logger.Printf("client construction failed platform=%s: %v", evt.Platform, err)
		return nil
	}
	return client
}

func (p *Processor) detectorFor(mention string) (*command.Detector, error) {
	p.detectorMu.Lock()
	defer p.detectorMu.Unlock()
	if detector, ok := p.detectors[mention]; ok {
		return detector, nil
	}
	detector, err := command.NewDetector(mention)
	if err != nil {
		return nil, err
	}
	p.detectors[mention] = detector
	return detector, nil
}

// dispatchAsync hands the trigger to the automation collaborator without
// blocking the webhook response path. The goroutine is tracked so shutdown
// can drain it, and panics are contained.
func (p *Processor) dispatchAsync(trigger event.ReviewTrigger) {
	p.tasks.Add(1)
	go func() {
		defer p.tasks.Done()
		defer func() {
			if rec := recover(); rec != nil {
				p.logger.Printf("panic dispatching trigger repo=%s pr=%d: %v", trigger.Repository.FullName, trigger.PullRequest.Number, rec)
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := p.dispatcher.TriggerReviewAutomation(ctx, trigger); err != nil {
			p.logger.Printf("trigger dispatch failed repo=%s pr=%d: %v", trigger.Repository.FullName, trigger.PullRequest.Number, err)
		}
	}()
}

// deliveryFingerprint extracts the identifying fields the suppressor
// hashes: the resource id plus the platform's action and timestamp or
// revision fields. The full payload never participates, so incidental
// field reordering cannot defeat the match.
func deliveryFingerprint(evt event.WebhookEvent) (string, map[string]interface{}) {
	switch evt.Platform {
	case event.PlatformGitHub:
		pr, _ := evt.Payload["pull_request"].(map[string]interface{})
		resource := fingerprintID(pr, "number")
		return resource, map[string]interface{}{
			"action":     evt.Payload["action"],
			"updated_at": fingerprintField(pr, "updated_at"),
			"head_sha":   fingerprintField(fingerprintMap(pr, "head"), "sha"),
		}
	case event.PlatformGitLab:
		attrs, _ := evt.Payload["object_attributes"].(map[string]interface{})
		resource := fingerprintID(attrs, "iid")
		return resource, map[string]interface{}{
			"action":     fingerprintField(attrs, "action"),
			"updated_at": fingerprintField(attrs, "updated_at"),
			"oldrev":     fingerprintField(attrs, "oldrev"),
		}
	case event.PlatformBitbucket:
		pr, _ := evt.Payload["pullrequest"].(map[string]interface{})
		resource := fingerprintID(pr, "id")
		return resource, map[string]interface{}{
			"state":      fingerprintField(pr, "state"),
			"updated_on": fingerprintField(pr, "updated_on"),
		}
	case event.PlatformAzureRepos:
		resource, _ := evt.Payload["resource"].(map[string]interface{})
		id := fingerprintID(resource, "pullRequestId")
		if id == "" {
			id = fingerprintID(fingerprintMap(resource, "pullRequest"), "pullRequestId")
		}
		return id, map[string]interface{}{
			"eventType": evt.Payload["eventType"],
			"createdAt": evt.Payload["createdDate"],
		}
	default:
		return "", map[string]interface{}{"event": evt.EventName}
	}
}

func fingerprintMap(m map[string]interface{}, key string) map[string]interface{} {
	if m == nil {
		return nil
	}
	value, _ := m[key].(map[string]interface{})
	return value
}

func fingerprintField(m map[string]interface{}, key string) interface{} {
	if m == nil {
		return nil
	}
	return m[key]
}

func fingerprintID(m map[string]interface{}, key string) string {
	if m == nil {
		return ""
	}
	switch v := m[key].(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%.0f", v)
	default:
		return ""
	}
}
