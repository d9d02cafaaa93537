package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/vipul43/kiwis-outreach/internal/events"
	"github.com/vipul43/kiwis-outreach/internal/models"
	"github.com/vipul43/kiwis-outreach/internal/repository"
	"github.com/vipul43/kiwis-outreach/internal/service"
)

// memStore is an in-memory campaign, contact and email store
type memStore struct {
	mu        sync.Mutex
	campaigns map[string]*models.Campaign
	contacts  []*models.Contact
	emails    []*models.Email
	createErr error
	markErr   error
}

func newMemStore() *memStore {
	return &memStore{campaigns: make(map[string]*models.Campaign)}
}

func (m *memStore) addCampaign(c models.Campaign) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.campaigns[c.ID] = &c
}

func (m *memStore) addContacts(campaignID string, ids ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range ids {
		assignedAt := base.Add(time.Duration(len(m.contacts)+i) * time.Second)
		cid := campaignID
		m.contacts = append(m.contacts, &models.Contact{
			ID:                     id,
			Email:                  id + "@example.com",
			CampaignID:             &cid,
			AssignedAt:             &assignedAt,
			ScheduledForProcessing: true,
		})
	}
}

func (m *memStore) campaign(id string) models.Campaign {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.campaigns[id]
}

func (m *memStore) contact(id string) models.Contact {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.contacts {
		if c.ID == id {
			return *c
		}
	}
	return models.Contact{}
}

func (m *memStore) sentEmails(campaignID, contactID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.emails {
		if e.CampaignID == campaignID && e.ContactID == contactID && e.SentAt != nil {
			n++
		}
	}
	return n
}

// CampaignStore

func (m *memStore) GetByID(_ context.Context, id string) (*models.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok {
		return nil, repository.ErrCampaignNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memStore) CompareAndSetStatus(_ context.Context, id string, from, to models.CampaignStatus, msg *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok {
		return repository.ErrCampaignNotFound
	}
	if c.Status != from {
		return repository.ErrStatusChanged
	}
	c.Status = to
	c.StatusMessage = msg
	return nil
}

func (m *memStore) ListByStatus(_ context.Context, status models.CampaignStatus) ([]models.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Campaign
	for _, c := range m.campaigns {
		if c.Status == status {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) ListDueScheduled(_ context.Context, now time.Time) ([]models.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Campaign
	for _, c := range m.campaigns {
		if c.Status == models.CampaignStatusScheduled && c.ScheduledDate != nil && !c.ScheduledDate.After(now) {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *memStore) IncrementSentCount(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok {
		return repository.ErrCampaignNotFound
	}
	c.SentCount++
	return nil
}

// service.ContactStore

func (m *memStore) ListPending(_ context.Context, campaignID string, limit int) ([]models.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Contact
	for _, c := range m.contacts {
		if c.CampaignID == nil || *c.CampaignID != campaignID || !c.ScheduledForProcessing || c.ProcessedAt != nil {
			continue
		}
		if m.hasSentLocked(campaignID, c.ID) {
			continue
		}
		out = append(out, *c)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *memStore) hasSentLocked(campaignID, contactID string) bool {
	for _, e := range m.emails {
		if e.CampaignID == campaignID && e.ContactID == contactID && e.SentAt != nil {
			return true
		}
	}
	return false
}

func (m *memStore) MarkProcessed(_ context.Context, contactID string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.markErr != nil {
		return false, m.markErr
	}
	for _, c := range m.contacts {
		if c.ID == contactID {
			if c.ProcessedAt != nil {
				return false, nil
			}
			c.ProcessedAt = &at
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) IncrementAttempts(_ context.Context, contactID string, lastError string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.contacts {
		if c.ID == contactID {
			c.SendAttempts++
			c.LastError = &lastError
			return c.SendAttempts, nil
		}
	}
	return 0, repository.ErrContactNotFound
}

func (m *memStore) Progress(_ context.Context, campaignID string) (*repository.ContactProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var p repository.ContactProgress
	for _, c := range m.contacts {
		if c.CampaignID == nil || *c.CampaignID != campaignID {
			continue
		}
		p.Total++
		done := c.ProcessedAt != nil || m.hasSentLocked(campaignID, c.ID)
		if done {
			p.Processed++
		}
		if c.ScheduledForProcessing {
			p.Scheduled++
			if !done {
				p.Remaining++
			}
		}
	}
	return &p, nil
}

// EmailStore

func (m *memStore) Create(_ context.Context, email *models.Email) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	if email.SentAt != nil && m.hasSentLocked(email.CampaignID, email.ContactID) {
		return fmt.Errorf("duplicate sent email for contact %s", email.ContactID)
	}
	cp := *email
	m.emails = append(m.emails, &cp)
	return nil
}

func (m *memStore) CountSentSince(_ context.Context, campaignID string, since time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, e := range m.emails {
		if e.CampaignID == campaignID && e.SentAt != nil && !e.SentAt.Before(since) {
			n++
		}
	}
	return n, nil
}

type mockCredentials struct {
	EnsureValidCredentialFunc func(ctx context.Context, userID string) (*service.Credential, error)
}

func (m *mockCredentials) EnsureValidCredential(ctx context.Context, userID string) (*service.Credential, error) {
	return m.EnsureValidCredentialFunc(ctx, userID)
}

func validCredentials() *mockCredentials {
	return &mockCredentials{
		EnsureValidCredentialFunc: func(ctx context.Context, userID string) (*service.Credential, error) {
			return &service.Credential{UserID: userID, AccessToken: "access-token", ExpiresAt: time.Now().Add(time.Hour)}, nil
		},
	}
}

type mockSender struct {
	mu              sync.Mutex
	sent            []service.OutgoingMessage
	SendMessageFunc func(ctx context.Context, accessToken string, msg service.OutgoingMessage) (string, error)
}

func (m *mockSender) SendMessage(ctx context.Context, accessToken string, msg service.OutgoingMessage) (string, error) {
	if m.SendMessageFunc != nil {
		id, err := m.SendMessageFunc(ctx, accessToken, msg)
		if err != nil {
			return "", err
		}
		m.record(msg)
		return id, nil
	}
	m.record(msg)
	return fmt.Sprintf("msg-%d", m.count()), nil
}

func (m *mockSender) GetProfile(ctx context.Context, accessToken string) (*service.MailboxProfile, error) {
	return &service.MailboxProfile{EmailAddress: "owner@example.com", MessagesTotal: 42}, nil
}

func (m *mockSender) record(msg service.OutgoingMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
}

func (m *mockSender) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func (m *mockSender) messages() []service.OutgoingMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]service.OutgoingMessage(nil), m.sent...)
}

type mockGenerator struct {
	PersonalizeBodyFunc func(ctx context.Context, draft service.EmailDraft) (string, error)
}

func (m *mockGenerator) PersonalizeBody(ctx context.Context, draft service.EmailDraft) (string, error) {
	return m.PersonalizeBodyFunc(ctx, draft)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}
