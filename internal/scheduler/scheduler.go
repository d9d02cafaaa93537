// Package scheduler drives campaign delivery: one recurring tick per running
// campaign, each tick sending at most one email.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"

	"github.com/vipul43/kiwis-outreach/internal/events"
	"github.com/vipul43/kiwis-outreach/internal/models"
	"github.com/vipul43/kiwis-outreach/internal/repository"
	"github.com/vipul43/kiwis-outreach/internal/service"
)

const (
	DefaultInterval      = 220 * time.Second
	DefaultSendTimeout   = 30 * time.Second
	DefaultMaxAttempts   = 3
	DefaultCheckInterval = time.Minute

	// statusMessage values shown to operators; provider error text is only logged
	authPausedMessage = "Mailbox authorization expired or was revoked. Reconnect the mailbox and resume the campaign."
)

// CampaignStore is the campaign persistence the scheduler needs
type CampaignStore interface {
	GetByID(ctx context.Context, campaignID string) (*models.Campaign, error)
	CompareAndSetStatus(ctx context.Context, campaignID string, from, to models.CampaignStatus, statusMessage *string) error
	ListByStatus(ctx context.Context, status models.CampaignStatus) ([]models.Campaign, error)
	ListDueScheduled(ctx context.Context, now time.Time) ([]models.Campaign, error)
	IncrementSentCount(ctx context.Context, campaignID string) error
}

// Cursor selects and retires contacts
type Cursor interface {
	GetCurrentAndNext(ctx context.Context, campaignID string) (*models.Contact, *models.Contact, error)
	MarkProcessed(ctx context.Context, contactID string) error
	RecordFailure(ctx context.Context, contactID string, reason string) (int, error)
}

// EmailStore records deliveries
type EmailStore interface {
	Create(ctx context.Context, email *models.Email) error
	CountSentSince(ctx context.Context, campaignID string, since time.Time) (int64, error)
}

// CredentialProvider produces a usable mailbox credential for an owner
type CredentialProvider interface {
	EnsureValidCredential(ctx context.Context, userID string) (*service.Credential, error)
}

// Options tunes dispatch. Zero values fall back to the defaults.
type Options struct {
	Interval       time.Duration
	CheckInterval  time.Duration
	SendTimeout    time.Duration
	MaxAttempts    int
	SendsPerMinute int // per owner mailbox; 0 disables the ceiling
}

type Scheduler struct {
	campaigns    CampaignStore
	cursor       Cursor
	emails       EmailStore
	credentials  CredentialProvider
	sender       service.MailSender
	generator    service.ContentGenerator
	publisher    events.Publisher
	transitioner *service.Transitioner
	registry     *Registry
	cron         *cron.Cron
	opts         Options
	now          func() time.Time

	ctxMu   sync.RWMutex
	baseCtx context.Context

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	limitersMu sync.Mutex
	limiters   map[string]*rate.Limiter
}

// New creates a Scheduler. generator and publisher may be nil.
func New(
	campaigns CampaignStore,
	cursor Cursor,
	emails EmailStore,
	credentials CredentialProvider,
	sender service.MailSender,
	generator service.ContentGenerator,
	publisher events.Publisher,
	c *cron.Cron,
	opts Options,
) *Scheduler {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.CheckInterval <= 0 {
		opts.CheckInterval = DefaultCheckInterval
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = DefaultSendTimeout
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}

	return &Scheduler{
		campaigns:    campaigns,
		cursor:       cursor,
		emails:       emails,
		credentials:  credentials,
		sender:       sender,
		generator:    generator,
		publisher:    publisher,
		transitioner: service.NewTransitioner(campaigns, publisher),
		registry:     NewRegistry(c),
		cron:         c,
		opts:         opts,
		now:          time.Now,
		baseCtx:      context.Background(),
		locks:        make(map[string]*sync.Mutex),
		limiters:     make(map[string]*rate.Limiter),
	}
}

// Transitioner exposes the status transitioner so operator actions publish
// through the same path as the scheduler
func (s *Scheduler) Transitioner() *service.Transitioner {
	return s.transitioner
}

// Registry returns the live timer registry
func (s *Scheduler) Registry() *Registry {
	return s.registry
}

// Run reconciles timers with stored status, starts the cron runner and the
// scheduled-campaign activation check, and blocks until ctx is done. Ticks in
// flight are allowed to finish before Run returns.
func (s *Scheduler) Run(ctx context.Context) error {
	s.ctxMu.Lock()
	s.baseCtx = ctx
	s.ctxMu.Unlock()

	log.Printf("Starting dispatch scheduler (interval: %s)", s.opts.Interval)

	s.cron.Start()

	if err := s.ReconcileAll(ctx); err != nil {
		log.Printf("Warning: failed to reconcile campaigns on startup: %v", err)
	}

	s.cron.Schedule(cron.Every(s.opts.CheckInterval), cron.FuncJob(s.housekeep))

	<-ctx.Done()
	log.Println("Dispatch scheduler shutting down...")

	stopped := s.cron.Stop()
	<-stopped.Done()

	log.Println("Dispatch scheduler stopped")
	return ctx.Err()
}

// Start begins dispatching a campaign: one immediate tick, then a recurring
// timer. A campaign that already has a timer, or is being started by another
// caller, is left alone. If the owner has no usable credential the campaign
// is paused and no timer is registered.
func (s *Scheduler) Start(ctx context.Context, campaignID string) error {
	if !s.registry.Claim(campaignID) {
		log.Printf("Campaign %s already dispatching, ignoring start", campaignID)
		return nil
	}
	registered := false
	defer func() {
		if !registered {
			s.registry.Release(campaignID)
		}
	}()

	campaign, err := service.LoadCampaign(ctx, s.campaigns, campaignID)
	if err != nil {
		return err
	}

	switch campaign.Status {
	case models.CampaignStatusRunning:
	case models.CampaignStatusScheduled:
		if err := s.transitioner.Apply(ctx, campaign, service.EventActivate, nil); err != nil {
			return err
		}
	default:
		return &service.ConflictError{
			Resource: "campaign",
			Message:  fmt.Sprintf("cannot dispatch campaign in status %s", campaign.Status),
		}
	}

	credCtx, cancel := context.WithTimeout(ctx, s.opts.SendTimeout)
	cred, err := s.credentials.EnsureValidCredential(credCtx, campaign.OwnerID)
	cancel()
	if err != nil {
		if service.IsAuthError(err) {
			s.pauseForAuth(ctx, campaign, err)
		}
		return err
	}

	s.logMailbox(ctx, campaign, cred)

	if err := s.Tick(ctx, campaignID); err != nil {
		log.Printf("Initial tick for campaign %s failed: %v", campaignID, err)
	}

	// The first tick may already have completed or paused the campaign
	current, err := s.campaigns.GetByID(ctx, campaignID)
	if err != nil {
		return fmt.Errorf("failed to reload campaign: %w", err)
	}
	if current.Status != models.CampaignStatusRunning {
		log.Printf("Campaign %s is %s after first tick, not registering timer", campaignID, current.Status)
		return nil
	}

	registered = s.registry.Register(campaignID, s.opts.Interval, s.timerJob(campaignID))
	if registered {
		log.Printf("Registered dispatch timer for campaign %s", campaignID)
	}
	return nil
}

// Stop cancels the campaign's timer if there is one
func (s *Scheduler) Stop(campaignID string) {
	if s.registry.Remove(campaignID) {
		log.Printf("Removed dispatch timer for campaign %s", campaignID)
	}
}

// NextRun returns when the campaign's timer fires next, or the zero time if
// it has none
func (s *Scheduler) NextRun(campaignID string) time.Time {
	return s.registry.Next(campaignID)
}

// ReconcileAll rebuilds the registry from stored status: every running
// campaign is started, every other registered campaign loses its timer.
func (s *Scheduler) ReconcileAll(ctx context.Context) error {
	running, err := s.campaigns.ListByStatus(ctx, models.CampaignStatusRunning)
	if err != nil {
		return err
	}

	runningIDs := make(map[string]bool, len(running))
	for _, campaign := range running {
		runningIDs[campaign.ID] = true
	}

	for _, id := range s.registry.IDs() {
		if !runningIDs[id] {
			s.Stop(id)
		}
	}

	stopped, err := s.campaigns.ListByStatus(ctx, models.CampaignStatusStopped)
	if err != nil {
		log.Printf("Warning: failed to list stopped campaigns: %v", err)
	}
	for _, campaign := range stopped {
		s.Stop(campaign.ID)
	}

	log.Printf("Reconciling %d running campaign(s)", len(running))

	for _, campaign := range running {
		if err := s.Start(ctx, campaign.ID); err != nil {
			log.Printf("Failed to start campaign %s: %v", campaign.ID, err)
		}
	}
	return nil
}

// ActivateDue moves scheduled campaigns whose date has passed to running and
// starts them
func (s *Scheduler) ActivateDue(ctx context.Context) error {
	due, err := s.campaigns.ListDueScheduled(ctx, s.now().UTC())
	if err != nil {
		return err
	}

	for i := range due {
		campaign := &due[i]
		log.Printf("Activating scheduled campaign %s", campaign.ID)
		if err := s.Start(ctx, campaign.ID); err != nil {
			log.Printf("Failed to activate campaign %s: %v", campaign.ID, err)
		}
	}
	return nil
}

// RestartOrphaned starts running campaigns that have no timer, such as ones
// whose start failed on a transient error
func (s *Scheduler) RestartOrphaned(ctx context.Context) error {
	running, err := s.campaigns.ListByStatus(ctx, models.CampaignStatusRunning)
	if err != nil {
		return err
	}

	for _, campaign := range running {
		if s.registry.Has(campaign.ID) {
			continue
		}
		log.Printf("Campaign %s is running without a timer, restarting", campaign.ID)
		if err := s.Start(ctx, campaign.ID); err != nil {
			log.Printf("Failed to restart campaign %s: %v", campaign.ID, err)
		}
	}
	return nil
}

// Tick runs one dispatch step for the campaign. Overlapping ticks for the
// same campaign are skipped. Panics are recovered and returned as errors.
// Cancelling ctx prevents new ticks; a tick already underway finishes its
// provider and store calls, each bounded by SendTimeout.
func (s *Scheduler) Tick(ctx context.Context, campaignID string) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	lock := s.campaignLock(campaignID)
	if !lock.TryLock() {
		log.Printf("Tick for campaign %s still in progress, skipping", campaignID)
		return nil
	}
	defer lock.Unlock()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tick panicked: %v", r)
		}
	}()

	return s.tick(context.WithoutCancel(ctx), campaignID)
}

func (s *Scheduler) tick(ctx context.Context, campaignID string) error {
	campaign, err := s.campaigns.GetByID(ctx, campaignID)
	if err != nil {
		if errors.Is(err, repository.ErrCampaignNotFound) {
			log.Printf("Campaign %s no longer exists, stopping", campaignID)
			s.Stop(campaignID)
			return &service.NotFoundError{Resource: "campaign", ID: campaignID}
		}
		return fmt.Errorf("failed to load campaign: %w", err)
	}

	if campaign.Status != models.CampaignStatusRunning {
		s.Stop(campaignID)
		if service.IsTerminal(campaign.Status) {
			s.forgetLock(campaignID)
		}
		return nil
	}

	credCtx, cancel := context.WithTimeout(ctx, s.opts.SendTimeout)
	cred, err := s.credentials.EnsureValidCredential(credCtx, campaign.OwnerID)
	cancel()
	if err != nil {
		if service.IsAuthError(err) {
			s.pauseForAuth(ctx, campaign, err)
			return err
		}
		return fmt.Errorf("failed to get credential: %w", err)
	}

	contact, _, err := s.cursor.GetCurrentAndNext(ctx, campaignID)
	if err != nil {
		return err
	}
	if contact == nil {
		s.complete(ctx, campaign)
		return nil
	}

	reached, err := s.dailyLimitReached(ctx, campaign)
	if err != nil {
		return err
	}
	if reached {
		log.Printf("Campaign %s reached its daily limit of %d, waiting", campaignID, campaign.DailyLimit)
		return nil
	}

	if !s.ownerLimiter(campaign.OwnerID).Allow() {
		log.Printf("Mailbox send ceiling reached for owner %s, deferring campaign %s", campaign.OwnerID, campaignID)
		return nil
	}

	return s.deliver(ctx, campaign, contact, cred)
}

func (s *Scheduler) deliver(ctx context.Context, campaign *models.Campaign, contact *models.Contact, cred *service.Credential) error {
	subject := service.Render(campaign.SubjectTemplate, contact)
	body := service.Render(campaign.BodyTemplate, contact)
	body, generatedByAI := s.personalizeBody(ctx, campaign, contact, subject, body)

	sendCtx, cancel := context.WithTimeout(ctx, s.opts.SendTimeout)
	messageID, err := s.sender.SendMessage(sendCtx, cred.AccessToken, service.OutgoingMessage{
		To:      contact.Email,
		Subject: subject,
		HTML:    body,
	})
	cancel()
	if err != nil {
		return s.handleSendFailure(ctx, campaign, contact, err)
	}

	sentAt := s.now().UTC()
	email := &models.Email{
		ID:                uuid.New().String(),
		CampaignID:        campaign.ID,
		ContactID:         contact.ID,
		Subject:           subject,
		Content:           body,
		Status:            models.EmailStatusSent,
		ProviderMessageID: &messageID,
		SentAt:            &sentAt,
		GeneratedByAI:     generatedByAI,
	}

	// The message is out; record it, count it, then retire the contact.
	// A crash between these steps resends at most once.
	if err := s.emails.Create(ctx, email); err != nil {
		log.Printf("Failed to record email for contact %s in campaign %s: %v", contact.ID, campaign.ID, err)
	} else if err := s.campaigns.IncrementSentCount(ctx, campaign.ID); err != nil {
		log.Printf("Failed to increment sent count for campaign %s: %v", campaign.ID, err)
	}

	if err := s.cursor.MarkProcessed(ctx, contact.ID); err != nil {
		return fmt.Errorf("failed to mark contact %s processed: %w", contact.ID, err)
	}

	if err := s.publisher.Publish(ctx, events.NewEmailSent(campaign.ID, contact.ID, email.ID, messageID)); err != nil {
		log.Printf("Warning: failed to publish email.sent for campaign %s: %v", campaign.ID, err)
	}

	log.Printf("Sent email %s to contact %s for campaign %s (message: %s)", email.ID, contact.ID, campaign.ID, messageID)
	return nil
}

// handleSendFailure pauses on auth failures, leaves throttled sends for the
// next tick, and counts other failures against the contact. A contact that
// fails permanently or too often is retired without an Email row.
func (s *Scheduler) handleSendFailure(ctx context.Context, campaign *models.Campaign, contact *models.Contact, sendErr error) error {
	if service.IsAuthError(sendErr) {
		s.pauseForAuth(ctx, campaign, sendErr)
		return sendErr
	}

	deliveryErr, _ := service.AsDeliveryError(sendErr)
	if deliveryErr != nil && deliveryErr.Throttled {
		log.Printf("Provider throttled campaign %s, retrying next tick: %v", campaign.ID, sendErr)
		return sendErr
	}

	// An interrupted call says nothing about the contact
	if errors.Is(sendErr, context.Canceled) {
		log.Printf("Send to contact %s in campaign %s was interrupted, retrying next tick", contact.ID, campaign.ID)
		return sendErr
	}

	attempts, err := s.cursor.RecordFailure(ctx, contact.ID, sendErr.Error())
	if err != nil {
		log.Printf("Failed to record send failure for contact %s: %v", contact.ID, err)
	}

	permanent := deliveryErr != nil && deliveryErr.Permanent
	if permanent || attempts >= s.opts.MaxAttempts {
		log.Printf("Skipping contact %s in campaign %s after %d attempt(s) (permanent: %v): %v",
			contact.ID, campaign.ID, attempts, permanent, sendErr)
		if err := s.cursor.MarkProcessed(ctx, contact.ID); err != nil {
			log.Printf("Failed to retire contact %s: %v", contact.ID, err)
		}
		return sendErr
	}

	log.Printf("Send to contact %s failed (attempt %d/%d), retrying next tick: %v",
		contact.ID, attempts, s.opts.MaxAttempts, sendErr)
	return sendErr
}

func (s *Scheduler) personalizeBody(ctx context.Context, campaign *models.Campaign, contact *models.Contact, subject, body string) (string, bool) {
	if !campaign.UseAI || s.generator == nil {
		return body, false
	}

	genCtx, cancel := context.WithTimeout(ctx, s.opts.SendTimeout)
	defer cancel()

	generated, err := s.generator.PersonalizeBody(genCtx, service.EmailDraft{
		CampaignName: campaign.Name,
		Subject:      subject,
		Body:         body,
		Contact:      service.NewPersonalizationContext(contact),
	})
	if err != nil {
		log.Printf("Warning: AI personalization failed for contact %s, using template: %v", contact.ID, err)
		return body, false
	}
	return generated, true
}

func (s *Scheduler) pauseForAuth(ctx context.Context, campaign *models.Campaign, cause error) {
	log.Printf("Pausing campaign %s: %v", campaign.ID, cause)

	message := authPausedMessage
	if err := s.transitioner.Apply(ctx, campaign, service.EventPause, &message); err != nil {
		log.Printf("Failed to pause campaign %s: %v", campaign.ID, err)
	}
	s.Stop(campaign.ID)
}

func (s *Scheduler) complete(ctx context.Context, campaign *models.Campaign) {
	log.Printf("Campaign %s has no remaining contacts, completing", campaign.ID)

	if err := s.transitioner.Apply(ctx, campaign, service.EventComplete, nil); err != nil {
		log.Printf("Failed to complete campaign %s: %v", campaign.ID, err)
	}
	s.Stop(campaign.ID)
	if service.IsTerminal(campaign.Status) {
		s.forgetLock(campaign.ID)
	}
}

func (s *Scheduler) dailyLimitReached(ctx context.Context, campaign *models.Campaign) (bool, error) {
	if campaign.DailyLimit <= 0 {
		return false, nil
	}

	now := s.now().UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	sent, err := s.emails.CountSentSince(ctx, campaign.ID, midnight)
	if err != nil {
		return false, err
	}
	return sent >= int64(campaign.DailyLimit), nil
}

// logMailbox logs which mailbox a campaign sends from. Diagnostic only.
func (s *Scheduler) logMailbox(ctx context.Context, campaign *models.Campaign, cred *service.Credential) {
	profileCtx, cancel := context.WithTimeout(ctx, s.opts.SendTimeout)
	defer cancel()

	profile, err := s.sender.GetProfile(profileCtx, cred.AccessToken)
	if err != nil {
		log.Printf("Warning: failed to get mailbox profile for campaign %s: %v", campaign.ID, err)
		return
	}
	log.Printf("Campaign %s sending from %s (%d messages in mailbox)", campaign.ID, profile.EmailAddress, profile.MessagesTotal)
}

// housekeep runs on CheckInterval: it activates due scheduled campaigns and
// restarts running campaigns that lost their timer
func (s *Scheduler) housekeep() {
	ctx := s.runContext()
	if err := s.ActivateDue(ctx); err != nil {
		log.Printf("Error activating scheduled campaigns: %v", err)
	}
	if err := s.RestartOrphaned(ctx); err != nil {
		log.Printf("Error restarting orphaned campaigns: %v", err)
	}
}

func (s *Scheduler) timerJob(campaignID string) func() {
	return func() {
		if err := s.Tick(s.runContext(), campaignID); err != nil {
			log.Printf("Tick for campaign %s failed: %v", campaignID, err)
		}
	}
}

func (s *Scheduler) runContext() context.Context {
	s.ctxMu.RLock()
	defer s.ctxMu.RUnlock()
	return s.baseCtx
}

func (s *Scheduler) campaignLock(campaignID string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	lock, ok := s.locks[campaignID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[campaignID] = lock
	}
	return lock
}

// forgetLock drops the tick lock of a campaign that will not tick again
// until it is explicitly started
func (s *Scheduler) forgetLock(campaignID string) {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	delete(s.locks, campaignID)
}

// ownerLimiter returns the owner's mailbox token bucket. Campaigns sharing an
// owner share the bucket.
func (s *Scheduler) ownerLimiter(ownerID string) *rate.Limiter {
	s.limitersMu.Lock()
	defer s.limitersMu.Unlock()

	limiter, ok := s.limiters[ownerID]
	if !ok {
		limit := rate.Inf
		if s.opts.SendsPerMinute > 0 {
			limit = rate.Every(time.Minute / time.Duration(s.opts.SendsPerMinute))
		}
		limiter = rate.NewLimiter(limit, 1)
		s.limiters[ownerID] = limiter
	}
	return limiter
}
