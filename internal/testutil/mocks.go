package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/craigrbailey/BillPilot-sub000/internal/domain"
)

// MockOwnerRepository is a mock implementation of domain.OwnerRepository
type MockOwnerRepository struct {
	mu       sync.Mutex
	Owners   map[int32]*domain.Owner
	ByAuth0  map[string]*domain.Owner
	nextID   int32
	CreateFn func(auth0ID, email string, name *string) (*domain.Owner, error)
}

// NewMockOwnerRepository creates a new MockOwnerRepository
func NewMockOwnerRepository() *MockOwnerRepository {
	return &MockOwnerRepository{
		Owners:  make(map[int32]*domain.Owner),
		ByAuth0: make(map[string]*domain.Owner),
		nextID:  1,
	}
}

// AddOwner seeds an owner and returns it
func (m *MockOwnerRepository) AddOwner(auth0ID, email string) *domain.Owner {
	m.mu.Lock()
	defer m.mu.Unlock()
	o := &domain.Owner{ID: m.nextID, Auth0ID: auth0ID, Email: email, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	m.nextID++
	m.Owners[o.ID] = o
	m.ByAuth0[auth0ID] = o
	return o
}

// GetByID retrieves an owner by ID
func (m *MockOwnerRepository) GetByID(_ context.Context, id int32) (*domain.Owner, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.Owners[id]; ok {
		return o, nil
	}
	return nil, domain.ErrOwnerNotFound
}

// GetByAuth0ID retrieves an owner by Auth0 ID
func (m *MockOwnerRepository) GetByAuth0ID(_ context.Context, auth0ID string) (*domain.Owner, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.ByAuth0[auth0ID]; ok {
		return o, nil
	}
	return nil, domain.ErrOwnerNotFound
}

// CreateOrGetByAuth0ID creates or retrieves an owner by Auth0 ID
func (m *MockOwnerRepository) CreateOrGetByAuth0ID(_ context.Context, auth0ID, email string, name *string) (*domain.Owner, error) {
	if m.CreateFn != nil {
		return m.CreateFn(auth0ID, email, name)
	}
	m.mu.Lock()
	if o, ok := m.ByAuth0[auth0ID]; ok {
		m.mu.Unlock()
		return o, nil
	}
	m.mu.Unlock()
	o := m.AddOwner(auth0ID, email)
	o.Name = name
	return o, nil
}

// MockCategoryRepository is a mock implementation of domain.CategoryRepository
type MockCategoryRepository struct {
	mu         sync.Mutex
	Categories map[int32]*domain.Category
	nextID     int32
}

// NewMockCategoryRepository creates a new MockCategoryRepository
func NewMockCategoryRepository() *MockCategoryRepository {
	return &MockCategoryRepository{Categories: make(map[int32]*domain.Category), nextID: 1}
}

// AddCategory seeds a category and returns it
func (m *MockCategoryRepository) AddCategory(ownerID int32, name string) *domain.Category {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := &domain.Category{ID: m.nextID, OwnerID: ownerID, Name: name, CreatedAt: time.Now()}
	m.nextID++
	m.Categories[c.ID] = c
	return c
}

// GetByID retrieves a category by ID
func (m *MockCategoryRepository) GetByID(_ context.Context, ownerID int32, id int32) (*domain.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.Categories[id]
	if !ok {
		return nil, domain.ErrCategoryNotFound
	}
	if c.OwnerID != ownerID {
		return nil, domain.ErrAccessDenied
	}
	return c, nil
}

// ListByOwner lists an owner's categories by name
func (m *MockCategoryRepository) ListByOwner(_ context.Context, ownerID int32) ([]*domain.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*domain.Category
	for _, c := range m.Categories {
		if c.OwnerID == ownerID {
			result = append(result, c)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// MockRecurringTemplateRepository is a mock implementation of domain.RecurringTemplateRepository
type MockRecurringTemplateRepository struct {
	mu        sync.Mutex
	Templates map[int32]*domain.RecurringTemplate
	nextID    int32

	// Obligations, when set, receives the cascade on Delete
	Obligations *MockObligationRepository
	ListAllErr  error
}

// NewMockRecurringTemplateRepository creates a new MockRecurringTemplateRepository
func NewMockRecurringTemplateRepository() *MockRecurringTemplateRepository {
	return &MockRecurringTemplateRepository{Templates: make(map[int32]*domain.RecurringTemplate), nextID: 1}
}

// Create stores a template
func (m *MockRecurringTemplateRepository) Create(_ context.Context, t *domain.RecurringTemplate) (*domain.RecurringTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	created := *t
	created.ID = m.nextID
	created.CreatedAt = time.Now()
	created.UpdatedAt = created.CreatedAt
	m.nextID++
	m.Templates[created.ID] = &created
	return &created, nil
}

// GetByID retrieves a template by ID
func (m *MockRecurringTemplateRepository) GetByID(_ context.Context, ownerID int32, id int32) (*domain.RecurringTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.Templates[id]
	if !ok {
		return nil, domain.ErrTemplateNotFound
	}
	if t.OwnerID != ownerID {
		return nil, domain.ErrAccessDenied
	}
	return t, nil
}

// ListByOwner lists an owner's templates; an empty kind lists both kinds
func (m *MockRecurringTemplateRepository) ListByOwner(_ context.Context, ownerID int32, kind domain.Kind) ([]*domain.RecurringTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*domain.RecurringTemplate
	for _, t := range m.Templates {
		if t.OwnerID == ownerID && (kind == "" || t.Kind == kind) {
			result = append(result, t)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// ListAllRecurring lists every repeating template across owners
func (m *MockRecurringTemplateRepository) ListAllRecurring(_ context.Context) ([]*domain.RecurringTemplate, error) {
	if m.ListAllErr != nil {
		return nil, m.ListAllErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*domain.RecurringTemplate
	for _, t := range m.Templates {
		if t.Frequency.IsRecurring() {
			result = append(result, t)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].OwnerID != result[j].OwnerID {
			return result[i].OwnerID < result[j].OwnerID
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// Delete removes a template and, when linked, its obligations
func (m *MockRecurringTemplateRepository) Delete(ctx context.Context, ownerID int32, id int32) error {
	if _, err := m.GetByID(ctx, ownerID, id); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.Templates, id)
	m.mu.Unlock()
	if m.Obligations != nil {
		m.Obligations.deleteWhere(func(o *domain.Obligation) bool {
			return o.TemplateID != nil && *o.TemplateID == id
		})
	}
	return nil
}

// MockObligationRepository is a mock implementation of domain.ObligationRepository.
// It also owns the payment ledger so MockPaymentRepository can mutate both under one lock.
type MockObligationRepository struct {
	mu          sync.Mutex
	Obligations map[int32]*domain.Obligation
	Ledger      map[int32]*domain.PaymentLedgerEntry
	// Watermarks mirrors recurring_templates.generated_through
	Watermarks  map[int32]time.Time
	nextID      int32
	nextEntryID int32

	ListCalls   int
	ListErr     error
	ExtendCalls int

	// RaceFailures makes the next N ExtendLineage calls fail with ErrGenerationRace
	RaceFailures int
	ExtendErr    error
}

// NewMockObligationRepository creates a new MockObligationRepository
func NewMockObligationRepository() *MockObligationRepository {
	return &MockObligationRepository{
		Obligations: make(map[int32]*domain.Obligation),
		Ledger:      make(map[int32]*domain.PaymentLedgerEntry),
		Watermarks:  make(map[int32]time.Time),
		nextID:      1,
		nextEntryID: 1,
	}
}

func (m *MockObligationRepository) insertLocked(o *domain.Obligation) *domain.Obligation {
	created := *o
	created.ID = m.nextID
	created.CreatedAt = time.Now()
	created.UpdatedAt = created.CreatedAt
	m.nextID++
	m.Obligations[created.ID] = &created
	out := created
	return &out
}

func (m *MockObligationRepository) getLocked(ownerID, id int32) (*domain.Obligation, error) {
	o, ok := m.Obligations[id]
	if !ok {
		return nil, domain.ErrObligationNotFound
	}
	if o.OwnerID != ownerID {
		return nil, domain.ErrAccessDenied
	}
	return o, nil
}

// Create stores an obligation
func (m *MockObligationRepository) Create(_ context.Context, o *domain.Obligation) (*domain.Obligation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertLocked(o), nil
}

// GetByID returns a copy of the stored obligation
func (m *MockObligationRepository) GetByID(_ context.Context, ownerID int32, id int32) (*domain.Obligation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, err := m.getLocked(ownerID, id)
	if err != nil {
		return nil, err
	}
	out := *o
	return &out, nil
}

// ListByOwner returns copies ordered by due date; an empty kind lists both kinds
func (m *MockObligationRepository) ListByOwner(_ context.Context, ownerID int32, kind domain.Kind) ([]*domain.Obligation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ListCalls++
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	var result []*domain.Obligation
	for _, o := range m.Obligations {
		if o.OwnerID == ownerID && (kind == "" || o.Kind == kind) {
			out := *o
			result = append(result, &out)
		}
	}
	sortObligations(result)
	return result, nil
}

// Update edits the mutable fields of an obligation
func (m *MockObligationRepository) Update(_ context.Context, ownerID int32, id int32, input *domain.UpdateObligationInput) (*domain.Obligation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, err := m.getLocked(ownerID, id)
	if err != nil {
		return nil, err
	}
	o.Name = input.Name
	o.Amount = input.Amount
	o.DueDate = input.DueDate
	o.CategoryID = input.CategoryID
	o.Notes = input.Notes
	o.UpdatedAt = time.Now()
	out := *o
	return &out, nil
}

// Delete removes one obligation or its lineage group
func (m *MockObligationRepository) Delete(_ context.Context, ownerID int32, id int32, cascade bool) (int64, error) {
	m.mu.Lock()
	o, err := m.getLocked(ownerID, id)
	m.mu.Unlock()
	if err != nil {
		return 0, err
	}
	if !cascade {
		return m.deleteWhere(func(x *domain.Obligation) bool { return x.ID == id }), nil
	}
	root := o.LineageRoot()
	return m.deleteWhere(func(x *domain.Obligation) bool {
		return x.OwnerID == ownerID && (x.ID == root || x.ID == id || (x.ParentID != nil && *x.ParentID == root))
	}), nil
}

func (m *MockObligationRepository) deleteWhere(match func(*domain.Obligation) bool) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, o := range m.Obligations {
		if match(o) {
			delete(m.Obligations, id)
			for entryID, e := range m.Ledger {
				if e.ObligationID == id {
					delete(m.Ledger, entryID)
				}
			}
			n++
		}
	}
	return n
}

// FindMaxDueDate returns the latest due date stored for a template
func (m *MockObligationRepository) FindMaxDueDate(_ context.Context, templateID int32) (*time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxDueLocked(templateID), nil
}

func (m *MockObligationRepository) maxDueLocked(templateID int32) *time.Time {
	var latest *time.Time
	for _, o := range m.Obligations {
		if o.TemplateID != nil && *o.TemplateID == templateID {
			if latest == nil || o.DueDate.After(*latest) {
				d := o.DueDate
				latest = &d
			}
		}
	}
	return latest
}

// ExtendLineage plans and inserts under the store lock, rejecting duplicate (template, due date) pairs.
// Like the real store it resumes after the later of the max due date and the watermark.
func (m *MockObligationRepository) ExtendLineage(_ context.Context, t *domain.RecurringTemplate, plan domain.OccurrencePlanner) ([]*domain.Obligation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ExtendCalls++
	if m.ExtendErr != nil {
		return nil, m.ExtendErr
	}
	if m.RaceFailures > 0 {
		m.RaceFailures--
		return nil, domain.ErrGenerationRace
	}

	var through *time.Time
	if w, ok := m.Watermarks[t.ID]; ok {
		through = &w
	}
	dates := plan(domain.ResumeAfter(m.maxDueLocked(t.ID), through))
	existing := make(map[time.Time]bool)
	var root *int32
	var earliest *domain.Obligation
	for _, o := range m.Obligations {
		if o.TemplateID != nil && *o.TemplateID == t.ID {
			existing[o.DueDate] = true
			if earliest == nil || o.DueDate.Before(earliest.DueDate) {
				earliest = o
			}
		}
	}
	if earliest != nil {
		r := earliest.LineageRoot()
		root = &r
	}
	for _, d := range dates {
		if existing[d] {
			return nil, domain.ErrGenerationRace
		}
	}

	created := make([]*domain.Obligation, 0, len(dates))
	for _, d := range dates {
		o := domain.NewOccurrence(t, d)
		o.ParentID = root
		inserted := m.insertLocked(o)
		if root == nil {
			r := inserted.ID
			root = &r
		}
		created = append(created, inserted)
	}
	if len(dates) > 0 {
		m.Watermarks[t.ID] = dates[len(dates)-1]
	}
	return created, nil
}

// CountByTemplate counts stored obligations for a template
func (m *MockObligationRepository) CountByTemplate(templateID int32) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, o := range m.Obligations {
		if o.TemplateID != nil && *o.TemplateID == templateID {
			n++
		}
	}
	return n
}

// MockPaymentRepository is a mock implementation of domain.PaymentRepository backed by
// the ledger inside a MockObligationRepository
type MockPaymentRepository struct {
	Store       *MockObligationRepository
	MarkPaidErr error
}

// NewMockPaymentRepository creates a new MockPaymentRepository over store
func NewMockPaymentRepository(store *MockObligationRepository) *MockPaymentRepository {
	return &MockPaymentRepository{Store: store}
}

// MarkPaid applies the paid transition and records a ledger entry atomically
func (m *MockPaymentRepository) MarkPaid(_ context.Context, ownerID int32, obligationID int32, paidDate time.Time) (*domain.Obligation, *domain.PaymentLedgerEntry, error) {
	if m.MarkPaidErr != nil {
		return nil, nil, m.MarkPaidErr
	}
	s := m.Store
	s.mu.Lock()
	defer s.mu.Unlock()

	o, err := s.getLocked(ownerID, obligationID)
	if err != nil {
		return nil, nil, err
	}
	if err := o.CanMarkPaid(); err != nil {
		return nil, nil, err
	}
	entry := o.ApplyPaid(paidDate)
	entry.ID = s.nextEntryID
	entry.CreatedAt = time.Now()
	s.nextEntryID++
	s.Ledger[entry.ID] = entry

	out := *o
	stored := *entry
	return &out, &stored, nil
}

// MarkUnpaid removes the latest ledger entry and applies the unpaid transition atomically
func (m *MockPaymentRepository) MarkUnpaid(_ context.Context, ownerID int32, obligationID int32) (*domain.Obligation, error) {
	s := m.Store
	s.mu.Lock()
	defer s.mu.Unlock()

	o, err := s.getLocked(ownerID, obligationID)
	if err != nil {
		return nil, err
	}
	entries := s.entriesLocked(obligationID)
	var latest *domain.PaymentLedgerEntry
	if len(entries) > 0 {
		latest = entries[0]
	}
	if err := o.CanMarkUnpaid(latest); err != nil {
		return nil, err
	}
	delete(s.Ledger, latest.ID)
	o.ApplyUnpaid()

	out := *o
	return &out, nil
}

// ListByObligation lists ledger entries for one obligation, newest first
func (m *MockPaymentRepository) ListByObligation(_ context.Context, ownerID int32, obligationID int32) ([]*domain.PaymentLedgerEntry, error) {
	s := m.Store
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.getLocked(ownerID, obligationID); err != nil {
		return nil, err
	}
	return s.entriesLocked(obligationID), nil
}

// ListByOwner lists an owner's ledger entries with from <= paid date < to
func (m *MockPaymentRepository) ListByOwner(_ context.Context, ownerID int32, from, to time.Time) ([]*domain.PaymentLedgerEntry, error) {
	s := m.Store
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []*domain.PaymentLedgerEntry
	for _, e := range s.Ledger {
		if e.OwnerID == ownerID && !e.PaidDate.Before(from) && e.PaidDate.Before(to) {
			out := *e
			result = append(result, &out)
		}
	}
	sortLedger(result)
	return result, nil
}

// AddLedgerEntry seeds a ledger entry without touching the obligation
func (m *MockPaymentRepository) AddLedgerEntry(e *domain.PaymentLedgerEntry) {
	s := m.Store
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = s.nextEntryID
	s.nextEntryID++
	s.Ledger[e.ID] = e
}

func (m *MockObligationRepository) entriesLocked(obligationID int32) []*domain.PaymentLedgerEntry {
	var result []*domain.PaymentLedgerEntry
	for _, e := range m.Ledger {
		if e.ObligationID == obligationID {
			out := *e
			result = append(result, &out)
		}
	}
	sortLedger(result)
	return result
}

func sortLedger(entries []*domain.PaymentLedgerEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].PaidDate.Equal(entries[j].PaidDate) {
			return entries[i].PaidDate.After(entries[j].PaidDate)
		}
		return entries[i].ID > entries[j].ID
	})
}

func sortObligations(list []*domain.Obligation) {
	sort.Slice(list, func(i, j int) bool {
		if !list[i].DueDate.Equal(list[j].DueDate) {
			return list[i].DueDate.Before(list[j].DueDate)
		}
		return list[i].ID < list[j].ID
	})
}

// MockNotificationSettingsRepository is a mock implementation of domain.NotificationSettingsRepository
type MockNotificationSettingsRepository struct {
	mu        sync.Mutex
	Providers map[int32]map[domain.ProviderType]*domain.ProviderConfig
	Types     map[int32]map[domain.NotificationType]*domain.TypeConfig
	nextID    int32
	ListErr   error
}

// NewMockNotificationSettingsRepository creates a new MockNotificationSettingsRepository
func NewMockNotificationSettingsRepository() *MockNotificationSettingsRepository {
	return &MockNotificationSettingsRepository{
		Providers: make(map[int32]map[domain.ProviderType]*domain.ProviderConfig),
		Types:     make(map[int32]map[domain.NotificationType]*domain.TypeConfig),
		nextID:    1,
	}
}

// ListProviders lists an owner's providers by type
func (m *MockNotificationSettingsRepository) ListProviders(_ context.Context, ownerID int32) ([]*domain.ProviderConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*domain.ProviderConfig
	for _, p := range m.Providers[ownerID] {
		out := *p
		result = append(result, &out)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Type < result[j].Type })
	return result, nil
}

// GetProvider returns ErrProviderNotConfigured when absent
func (m *MockNotificationSettingsRepository) GetProvider(_ context.Context, ownerID int32, providerType domain.ProviderType) (*domain.ProviderConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.Providers[ownerID][providerType]
	if !ok {
		return nil, domain.ErrProviderNotConfigured
	}
	out := *p
	return &out, nil
}

// UpsertProvider creates or replaces a provider configuration
func (m *MockNotificationSettingsRepository) UpsertProvider(_ context.Context, cfg *domain.ProviderConfig) (*domain.ProviderConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Providers[cfg.OwnerID] == nil {
		m.Providers[cfg.OwnerID] = make(map[domain.ProviderType]*domain.ProviderConfig)
	}
	stored := *cfg
	if existing, ok := m.Providers[cfg.OwnerID][cfg.Type]; ok {
		stored.ID = existing.ID
	} else {
		stored.ID = m.nextID
		m.nextID++
	}
	stored.UpdatedAt = time.Now()
	m.Providers[cfg.OwnerID][cfg.Type] = &stored
	out := stored
	return &out, nil
}

// ListTypes lists an owner's type configurations
func (m *MockNotificationSettingsRepository) ListTypes(_ context.Context, ownerID int32) ([]*domain.TypeConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*domain.TypeConfig
	for _, c := range m.Types[ownerID] {
		out := *c
		result = append(result, &out)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Type < result[j].Type })
	return result, nil
}

// UpsertType creates or replaces a type configuration
func (m *MockNotificationSettingsRepository) UpsertType(_ context.Context, cfg *domain.TypeConfig) (*domain.TypeConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Types[cfg.OwnerID] == nil {
		m.Types[cfg.OwnerID] = make(map[domain.NotificationType]*domain.TypeConfig)
	}
	stored := *cfg
	if existing, ok := m.Types[cfg.OwnerID][cfg.Type]; ok {
		stored.ID = existing.ID
	} else {
		stored.ID = m.nextID
		m.nextID++
	}
	stored.UpdatedAt = time.Now()
	m.Types[cfg.OwnerID][cfg.Type] = &stored
	out := stored
	return &out, nil
}

// ListEnabledByType lists enabled configurations for one type ordered by owner
func (m *MockNotificationSettingsRepository) ListEnabledByType(_ context.Context, notificationType domain.NotificationType) ([]*domain.TypeConfig, error) {
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*domain.TypeConfig
	for _, byType := range m.Types {
		if c, ok := byType[notificationType]; ok && c.Enabled {
			out := *c
			result = append(result, &out)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].OwnerID < result[j].OwnerID })
	return result, nil
}
