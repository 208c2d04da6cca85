package campaign

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/acme/whatsapp-campaign-center/internal/config"
	"github.com/acme/whatsapp-campaign-center/internal/domain"
	"github.com/acme/whatsapp-campaign-center/internal/queue"
	"github.com/acme/whatsapp-campaign-center/internal/roster"
	"github.com/acme/whatsapp-campaign-center/internal/scheduler"
	apperrors "github.com/acme/whatsapp-campaign-center/pkg/errors"
)

type fakeCampaignRepo struct {
	defs map[uuid.UUID]*domain.CampaignDefinition
}

func (f *fakeCampaignRepo) Create(_ context.Context, def *domain.CampaignDefinition) error {
	if f.defs == nil {
		f.defs = make(map[uuid.UUID]*domain.CampaignDefinition)
	}
	f.defs[def.ID] = def
	return nil
}

func (f *fakeCampaignRepo) Get(_ context.Context, id uuid.UUID) (*domain.CampaignDefinition, error) {
	def, ok := f.defs[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return def, nil
}

func (f *fakeCampaignRepo) GetByName(_ context.Context, name string) (*domain.CampaignDefinition, error) {
	for _, def := range f.defs {
		if def.Name == name {
			return def, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (f *fakeCampaignRepo) List(_ context.Context, _ *uuid.UUID, _ int) ([]*domain.CampaignDefinition, error) {
	out := make([]*domain.CampaignDefinition, 0, len(f.defs))
	for _, def := range f.defs {
		out = append(out, def)
	}
	return out, nil
}

type fakeContactRepo struct {
	upserts  int
	existing map[string]*domain.Contact
}

func (f *fakeContactRepo) Upsert(_ context.Context, phone string, patch domain.ContactPatch) (*domain.Contact, error) {
	f.upserts++
	if f.existing == nil {
		f.existing = make(map[string]*domain.Contact)
	}
	contact, ok := f.existing[phone]
	if !ok {
		contact = &domain.Contact{ID: uuid.New(), Phone: phone}
		f.existing[phone] = contact
	}
	contact.Merge(patch)
	return contact, nil
}

func (f *fakeContactRepo) GetByPhone(_ context.Context, phone string) (*domain.Contact, error) {
	contact, ok := f.existing[phone]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return contact, nil
}

func (f *fakeContactRepo) SetCPC(_ context.Context, _ string, _ bool, _ time.Time) error {
	return nil
}

type fakeDeliveryRepo struct {
	created  []domain.Delivery
	statuses map[uuid.UUID]domain.DeliveryStatus

	total, sent, failed int64
	phones              []string
	earliest            time.Time
	earliestErr         error
}

func (f *fakeDeliveryRepo) Create(_ context.Context, d *domain.Delivery) error {
	f.created = append(f.created, *d)
	return nil
}

func (f *fakeDeliveryRepo) SetStatus(_ context.Context, id uuid.UUID, status domain.DeliveryStatus, _ int, _ *string) error {
	if f.statuses == nil {
		f.statuses = make(map[uuid.UUID]domain.DeliveryStatus)
	}
	f.statuses[id] = status
	return nil
}

func (f *fakeDeliveryRepo) ListByCampaign(_ context.Context, _ string, _ int, _ int) ([]domain.Delivery, error) {
	return f.created, nil
}

func (f *fakeDeliveryRepo) Counts(_ context.Context, _ string) (int64, int64, int64, error) {
	return f.total, f.sent, f.failed, nil
}

func (f *fakeDeliveryRepo) Phones(_ context.Context, _ string) ([]string, error) {
	return f.phones, nil
}

func (f *fakeDeliveryRepo) EarliestCreatedAt(_ context.Context, _ string) (time.Time, error) {
	if f.earliestErr != nil {
		return time.Time{}, f.earliestErr
	}
	return f.earliest, nil
}

type fakeConversations struct {
	replies  map[string]bool
	appended []domain.ConversationMessage
}

func (f *fakeConversations) Append(_ context.Context, msg domain.ConversationMessage) error {
	f.appended = append(f.appended, msg)
	return nil
}

func (f *fakeConversations) HasInboundSince(_ context.Context, phone string, _ time.Time) (bool, error) {
	return f.replies[phone], nil
}

type fakeResolver struct {
	pool *roster.Roster
	err  error
}

func (f *fakeResolver) Resolve(_ context.Context, _ *uuid.UUID) (*roster.Roster, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.pool, nil
}

type fakeDispatcher struct {
	jobs []queue.DeliveryJob
	err  error
}

func (f *fakeDispatcher) Dispatch(_ context.Context, job queue.DeliveryJob) error {
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, job)
	return nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newTestService(
	campaigns *fakeCampaignRepo,
	contacts *fakeContactRepo,
	deliveries *fakeDeliveryRepo,
	conversations *fakeConversations,
	resolver *fakeResolver,
	dispatcher *fakeDispatcher,
) *Service {
	return NewService(campaigns, contacts, deliveries, conversations, resolver, dispatcher, config.DispatchConfig{
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
	})
}

func seedDefinition(repo *fakeCampaignRepo, policy domain.SendPolicy) *domain.CampaignDefinition {
	def := &domain.CampaignDefinition{
		ID:      uuid.New(),
		Name:    "august-collections",
		Policy:  policy,
		Message: "hello {{name}}",
	}
	_ = repo.Create(context.Background(), def)
	return def
}

func twoSlots() *roster.Roster {
	opA, opB := uuid.New(), uuid.New()
	return &roster.Roster{
		Operators: []domain.Operator{{ID: opA}, {ID: opB}},
		Slots: []scheduler.Slot{
			{LineID: uuid.New(), OperatorID: opA},
			{LineID: uuid.New(), OperatorID: opB},
		},
	}
}

func TestUploadContactsSchedulesBatch(t *testing.T) {
	campaigns := &fakeCampaignRepo{}
	contacts := &fakeContactRepo{}
	deliveries := &fakeDeliveryRepo{}
	dispatcher := &fakeDispatcher{}
	resolver := &fakeResolver{pool: twoSlots()}
	svc := newTestService(campaigns, contacts, deliveries, &fakeConversations{}, resolver, dispatcher)

	now := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	svc.clock = fixedClock(now)

	def := seedDefinition(campaigns, domain.SendPolicy{Speed: domain.SpeedFast})

	summary, err := svc.UploadContacts(context.Background(), def.ID, UploadInput{
		Rows: []ContactRow{
			{Phone: "11 98765-0001", Name: "Ana"},
			{Phone: "11 98765-0002", Name: "Bruno"},
			{Phone: "11 98765-0003", Name: "Carla"},
			{Phone: "11 98765-0004", Name: "Davi"},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if summary.Queued != 4 {
		t.Fatalf("expected 4 queued, got %d", summary.Queued)
	}
	if summary.Rounds != 2 || summary.Lines != 2 {
		t.Fatalf("expected 2 rounds over 2 lines, got rounds=%d lines=%d", summary.Rounds, summary.Lines)
	}
	if len(summary.FailedContacts) != 0 {
		t.Fatalf("expected no failures, got %v", summary.FailedContacts)
	}
	if len(deliveries.created) != 4 || len(dispatcher.jobs) != 4 {
		t.Fatalf("expected 4 rows and 4 jobs, got %d rows %d jobs", len(deliveries.created), len(dispatcher.jobs))
	}

	// Fast tier: 3 minutes per contact gives a 12m window for 4 contacts,
	// split across 2 rounds as a single 12m interval.
	for _, job := range dispatcher.jobs {
		want := now.Add(time.Duration(job.Round) * 12 * time.Minute)
		if !job.FireAt.Equal(want) {
			t.Errorf("round %d: fire at %v, want %v", job.Round, job.FireAt, want)
		}
		if job.MaxAttempts != 3 {
			t.Errorf("expected 3 attempts, got %d", job.MaxAttempts)
		}
		if job.Message != "hello {{name}}" {
			t.Errorf("unexpected message %q", job.Message)
		}
	}

	for _, d := range deliveries.created {
		if d.Status != domain.DeliveryStatusPending {
			t.Errorf("expected pending row, got %s", d.Status)
		}
		if d.CampaignName != def.Name {
			t.Errorf("unexpected campaign name %q", d.CampaignName)
		}
	}
}

func TestUploadContactsCollectsRowFailures(t *testing.T) {
	campaigns := &fakeCampaignRepo{}
	deliveries := &fakeDeliveryRepo{}
	dispatcher := &fakeDispatcher{}
	svc := newTestService(campaigns, &fakeContactRepo{}, deliveries, &fakeConversations{}, &fakeResolver{pool: twoSlots()}, dispatcher)

	def := seedDefinition(campaigns, domain.SendPolicy{Speed: domain.SpeedMedium})

	summary, err := svc.UploadContacts(context.Background(), def.ID, UploadInput{
		Rows: []ContactRow{
			{Phone: "11 98765-0001", Name: "Ana"},
			{Phone: "---", Name: "NoPhone"},
			{Phone: "5511987650001", Name: "Ana Again"},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if summary.Queued != 1 {
		t.Fatalf("expected 1 queued, got %d", summary.Queued)
	}
	if len(summary.FailedContacts) != 2 {
		t.Fatalf("expected 2 failed contacts, got %v", summary.FailedContacts)
	}
	reasons := map[string]bool{}
	for _, fc := range summary.FailedContacts {
		reasons[fc.Reason] = true
	}
	if !reasons["invalid phone"] || !reasons["duplicate phone in batch"] {
		t.Fatalf("unexpected failure reasons: %v", summary.FailedContacts)
	}
}

func TestUploadContactsRejectedWithoutOperators(t *testing.T) {
	campaigns := &fakeCampaignRepo{}
	deliveries := &fakeDeliveryRepo{}
	dispatcher := &fakeDispatcher{}
	resolver := &fakeResolver{err: apperrors.ErrNoOperatorsAvailable}
	svc := newTestService(campaigns, &fakeContactRepo{}, deliveries, &fakeConversations{}, resolver, dispatcher)

	def := seedDefinition(campaigns, domain.SendPolicy{Speed: domain.SpeedFast})

	_, err := svc.UploadContacts(context.Background(), def.ID, UploadInput{
		Rows: []ContactRow{{Phone: "11 98765-0001"}},
	})
	if !errors.Is(err, apperrors.ErrNoOperatorsAvailable) {
		t.Fatalf("expected ErrNoOperatorsAvailable, got %v", err)
	}
	if len(deliveries.created) != 0 || len(dispatcher.jobs) != 0 {
		t.Fatalf("expected nothing persisted on rejection")
	}
}

func TestUploadContactsMarksRowFailedWhenEnqueueFails(t *testing.T) {
	campaigns := &fakeCampaignRepo{}
	deliveries := &fakeDeliveryRepo{}
	dispatcher := &fakeDispatcher{err: errors.New("broker down")}
	svc := newTestService(campaigns, &fakeContactRepo{}, deliveries, &fakeConversations{}, &fakeResolver{pool: twoSlots()}, dispatcher)

	def := seedDefinition(campaigns, domain.SendPolicy{Speed: domain.SpeedFast})

	summary, err := svc.UploadContacts(context.Background(), def.ID, UploadInput{
		Rows: []ContactRow{{Phone: "11 98765-0001", Name: "Ana"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Queued != 0 || len(summary.FailedContacts) != 1 {
		t.Fatalf("expected single failed contact, got %+v", summary)
	}
	if len(deliveries.created) != 1 {
		t.Fatalf("expected delivery row written before enqueue, got %d", len(deliveries.created))
	}
	if got := deliveries.statuses[deliveries.created[0].ID]; got != domain.DeliveryStatusFailed {
		t.Fatalf("expected row marked failed, got %q", got)
	}
}

func TestStatsAggregatesCounts(t *testing.T) {
	deliveries := &fakeDeliveryRepo{
		total:    10,
		sent:     6,
		failed:   1,
		phones:   []string{"5511987650001", "5511987650002", "5511987650003"},
		earliest: time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC),
	}
	conversations := &fakeConversations{replies: map[string]bool{
		"5511987650001": true,
		"5511987650003": true,
	}}
	svc := newTestService(&fakeCampaignRepo{}, &fakeContactRepo{}, deliveries, conversations, &fakeResolver{}, &fakeDispatcher{})

	stats, err := svc.Stats(context.Background(), "august-collections")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if stats.Pending != 3 {
		t.Errorf("expected 3 pending, got %d", stats.Pending)
	}
	if stats.Responses != 2 {
		t.Errorf("expected 2 responses, got %d", stats.Responses)
	}
	if stats.SuccessRate != "60.00" {
		t.Errorf("expected success rate 60.00, got %s", stats.SuccessRate)
	}
	if stats.ResponseRate != "20.00" {
		t.Errorf("expected response rate 20.00, got %s", stats.ResponseRate)
	}
}

func TestStatsZeroTotal(t *testing.T) {
	deliveries := &fakeDeliveryRepo{earliestErr: apperrors.ErrNotFound}
	svc := newTestService(&fakeCampaignRepo{}, &fakeContactRepo{}, deliveries, &fakeConversations{}, &fakeResolver{}, &fakeDispatcher{})

	stats, err := svc.Stats(context.Background(), "empty")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.SuccessRate != "0" || stats.ResponseRate != "0" {
		t.Fatalf("expected zero-guard rates, got %s / %s", stats.SuccessRate, stats.ResponseRate)
	}
}

func TestValidateDefinitionInput(t *testing.T) {
	bad := []CreateDefinitionInput{
		{Name: "", Message: "hi"},
		{Name: "x"},
		{Name: "x", Message: "hi", Speed: "turbo"},
	}
	for _, tc := range bad {
		if err := validateDefinitionInput(tc); !errors.Is(err, apperrors.ErrValidation) {
			t.Errorf("expected validation error for %+v, got %v", tc, err)
		}
	}

	ok := CreateDefinitionInput{Name: "x", Message: "hi", Speed: domain.SpeedSlow}
	if err := validateDefinitionInput(ok); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestParseContactCSV(t *testing.T) {
	data := []byte("name,phone,cpf\nAna,11 98765-0001,12345678901\n,,\nBruno,11 98765-0002,\n")

	rows, lineErrors, err := ParseContactCSV(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if len(lineErrors) != 1 {
		t.Fatalf("expected 1 line error, got %v", lineErrors)
	}
	if rows[0].Name != "Ana" || rows[0].CPF != "12345678901" {
		t.Errorf("unexpected first row: %+v", rows[0])
	}
}

func TestParseContactCSVRequiresPhoneColumn(t *testing.T) {
	if _, _, err := ParseContactCSV([]byte("name,email\nAna,a@example.com\n")); !errors.Is(err, apperrors.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
