package handler

import (
	"context"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/craigrbailey/BillPilot-sub000/internal/cache"
	"github.com/craigrbailey/BillPilot-sub000/internal/domain"
	"github.com/craigrbailey/BillPilot-sub000/internal/middleware"
	"github.com/craigrbailey/BillPilot-sub000/internal/notify"
	"github.com/craigrbailey/BillPilot-sub000/internal/service"
	"github.com/craigrbailey/BillPilot-sub000/internal/testutil"
)

// fakeDispatcher records test deliveries and fails them with testErr
type fakeDispatcher struct {
	mu      sync.Mutex
	tested  []notify.Target
	testErr error
}

func (d *fakeDispatcher) Send(context.Context, int32, domain.Message, []notify.Target) error {
	return nil
}

func (d *fakeDispatcher) Test(_ context.Context, _ int32, target notify.Target) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tested = append(d.tested, target)
	return d.testErr
}

type handlerEnv struct {
	e *echo.Echo

	ownerRepo      *testutil.MockOwnerRepository
	categoryRepo   *testutil.MockCategoryRepository
	templateRepo   *testutil.MockRecurringTemplateRepository
	obligationRepo *testutil.MockObligationRepository
	paymentRepo    *testutil.MockPaymentRepository
	settingsRepo   *testutil.MockNotificationSettingsRepository
	dispatcher     *fakeDispatcher

	auth        *AuthHandler
	obligations *ObligationHandler
	templates   *TemplateHandler
	payments    *PaymentHandler
	categories  *CategoryHandler
	settings    *NotificationSettingsHandler
}

func newHandlerEnv() *handlerEnv {
	env := &handlerEnv{
		e:              echo.New(),
		ownerRepo:      testutil.NewMockOwnerRepository(),
		categoryRepo:   testutil.NewMockCategoryRepository(),
		templateRepo:   testutil.NewMockRecurringTemplateRepository(),
		obligationRepo: testutil.NewMockObligationRepository(),
		settingsRepo:   testutil.NewMockNotificationSettingsRepository(),
		dispatcher:     &fakeDispatcher{},
	}
	env.templateRepo.Obligations = env.obligationRepo
	env.paymentRepo = testutil.NewMockPaymentRepository(env.obligationRepo)

	logger := zerolog.Nop()
	c := cache.New(100, time.Minute)

	authService := service.NewAuthService(env.ownerRepo)
	obligationService := service.NewObligationService(env.obligationRepo, env.categoryRepo, c, nil, logger)
	paymentService := service.NewPaymentService(env.paymentRepo, c, nil, logger)
	templateService := service.NewTemplateService(env.templateRepo, env.obligationRepo, env.categoryRepo, c, nil, logger, 12)
	settingsService := service.NewNotificationSettingsService(env.settingsRepo, env.ownerRepo, env.dispatcher, c, nil, logger)

	env.auth = NewAuthHandler(authService)
	env.obligations = NewObligationHandler(obligationService, paymentService)
	env.templates = NewTemplateHandler(templateService)
	env.payments = NewPaymentHandler(paymentService)
	env.categories = NewCategoryHandler(service.NewCategoryService(env.categoryRepo, c))
	env.settings = NewNotificationSettingsHandler(settingsService)
	return env
}

// newContext builds a request context. params are name/value pairs for path parameters.
func (env *handlerEnv) newContext(method, target, body string, params ...string) (echo.Context, *httptest.ResponseRecorder) {
	var req = httptest.NewRequest(method, target, nil)
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := env.e.NewContext(req, rec)

	var names, values []string
	for i := 0; i+1 < len(params); i += 2 {
		names = append(names, params[i])
		values = append(values, params[i+1])
	}
	if len(names) > 0 {
		c.SetParamNames(names...)
		c.SetParamValues(values...)
	}
	return c, rec
}

// setupAuthContext puts validated claims and, when ownerID is set, the resolved owner on the request
func setupAuthContext(c echo.Context, auth0ID, email, name string, ownerID int32) {
	claims := &validator.ValidatedClaims{
		RegisteredClaims: validator.RegisteredClaims{Subject: auth0ID},
		CustomClaims:     &middleware.CustomClaims{Email: email, Name: name},
	}
	ctx := context.WithValue(c.Request().Context(), middleware.ClaimsKey, claims)
	ctx = context.WithValue(ctx, middleware.Auth0IDKey, auth0ID)
	if ownerID > 0 {
		ctx = context.WithValue(ctx, middleware.OwnerIDKey, ownerID)
	}
	c.SetRequest(c.Request().WithContext(ctx))
}

// asOwner is setupAuthContext for a seeded owner
func asOwner(c echo.Context, ownerID int32) {
	setupAuthContext(c, "auth0|test", "owner@example.com", "Test Owner", ownerID)
}

func getBill(env *handlerEnv) echo.HandlerFunc   { return env.obligations.GetBill }
func getIncome(env *handlerEnv) echo.HandlerFunc { return env.obligations.GetIncome }

func itoa(id int32) string {
	return strconv.Itoa(int(id))
}
