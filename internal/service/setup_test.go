package service

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/craigrbailey/BillPilot-sub000/internal/cache"
	"github.com/craigrbailey/BillPilot-sub000/internal/testutil"
	"github.com/craigrbailey/BillPilot-sub000/internal/websocket"
)

// recordingPublisher captures published events per owner
type recordingPublisher struct {
	mu     sync.Mutex
	events map[int32][]websocket.Event
}

func newRecordingPublisher() *recordingPublisher {
	return &recordingPublisher{events: make(map[int32][]websocket.Event)}
}

func (p *recordingPublisher) Publish(ownerID int32, event websocket.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events[ownerID] = append(p.events[ownerID], event)
}

func (p *recordingPublisher) types(ownerID int32) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var result []string
	for _, e := range p.events[ownerID] {
		result = append(result, e.Type)
	}
	return result
}

type testEnv struct {
	ownerRepo      *testutil.MockOwnerRepository
	categoryRepo   *testutil.MockCategoryRepository
	templateRepo   *testutil.MockRecurringTemplateRepository
	obligationRepo *testutil.MockObligationRepository
	paymentRepo    *testutil.MockPaymentRepository
	cache          *cache.Cache
	publisher      *recordingPublisher

	templates   *TemplateService
	obligations *ObligationService
	payments    *PaymentService
}

func newTestEnv() *testEnv {
	env := &testEnv{
		ownerRepo:      testutil.NewMockOwnerRepository(),
		categoryRepo:   testutil.NewMockCategoryRepository(),
		templateRepo:   testutil.NewMockRecurringTemplateRepository(),
		obligationRepo: testutil.NewMockObligationRepository(),
		cache:          cache.New(100, time.Minute),
		publisher:      newRecordingPublisher(),
	}
	env.templateRepo.Obligations = env.obligationRepo
	env.paymentRepo = testutil.NewMockPaymentRepository(env.obligationRepo)

	logger := zerolog.Nop()
	env.templates = NewTemplateService(env.templateRepo, env.obligationRepo, env.categoryRepo, env.cache, env.publisher, logger, 12)
	env.obligations = NewObligationService(env.obligationRepo, env.categoryRepo, env.cache, env.publisher, logger)
	env.payments = NewPaymentService(env.paymentRepo, env.cache, env.publisher, logger)
	return env
}

// at pins the template service clock
func (e *testEnv) at(now time.Time, horizonMonths int) {
	e.templates.now = func() time.Time { return now }
	e.templates.horizonMonths = horizonMonths
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
