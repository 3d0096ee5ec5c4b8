package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/ecodeli/ecodeli/internal/authorization"
	billingdomain "github.com/ecodeli/ecodeli/internal/billing/domain"
	"github.com/ecodeli/ecodeli/internal/config"
	invoicedomain "github.com/ecodeli/ecodeli/internal/invoice/domain"
	notificationdomain "github.com/ecodeli/ecodeli/internal/notification/domain"
	obsmetrics "github.com/ecodeli/ecodeli/internal/observability/metrics"
	"github.com/ecodeli/ecodeli/internal/period"
	"github.com/ecodeli/ecodeli/internal/plan"
	pricingdomain "github.com/ecodeli/ecodeli/internal/pricing/domain"
	"github.com/ecodeli/ecodeli/internal/pricing/engine"
	providerdomain "github.com/ecodeli/ecodeli/internal/provider/domain"
	"github.com/ecodeli/ecodeli/internal/ratelimit"
	subscriptiondomain "github.com/ecodeli/ecodeli/internal/subscription/domain"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const testCronSecret = "s3cret"

type fakeBillingService struct {
	lastReq billingdomain.RunRequest
	calls   int
	runErr  error
	status  billingdomain.StatusResult
}

func (f *fakeBillingService) RunMonthlyBilling(ctx context.Context, req billingdomain.RunRequest) (billingdomain.RunResult, error) {
	f.calls++
	f.lastReq = req
	if f.runErr != nil {
		return billingdomain.RunResult{}, f.runErr
	}
	if _, err := period.Parse(req.Period); req.Period != "" && err != nil {
		return billingdomain.RunResult{}, err
	}
	return billingdomain.RunResult{RunID: "run-1", Period: req.Period, Force: req.Force}, nil
}

func (f *fakeBillingService) Status(ctx context.Context) (billingdomain.StatusResult, error) {
	return f.status, nil
}

type fakePricingService struct {
	lastCheckout pricingdomain.CheckoutRequest
}

func (f *fakePricingService) Preview(ctx context.Context, req pricingdomain.QuoteRequest) (engine.Quote, error) {
	tier, err := plan.ParseTier(req.Plan)
	if err != nil {
		return engine.Quote{}, err
	}
	return engine.QuotePrice(req.BasePrice, tier, req.IsPriority, req.IsSmallPackage)
}

func (f *fakePricingService) Checkout(ctx context.Context, req pricingdomain.CheckoutRequest) (pricingdomain.CheckoutResult, error) {
	f.lastCheckout = req
	quote, err := engine.QuotePrice(req.BasePrice, plan.TierStarter, req.IsPriority, req.IsSmallPackage)
	if err != nil {
		return pricingdomain.CheckoutResult{}, err
	}
	if req.ExpectedPrice != nil && !req.ExpectedPrice.Equal(quote.FinalPrice) {
		return pricingdomain.CheckoutResult{}, pricingdomain.ErrQuoteMismatch
	}
	return pricingdomain.CheckoutResult{Quote: quote}, nil
}

func (f *fakePricingService) StorageQuote(ctx context.Context, req pricingdomain.StorageQuoteRequest) (engine.StorageQuote, error) {
	return engine.QuoteStorageRental(req.PricePerDay, req.Days, plan.TierFree)
}

func (f *fakePricingService) Insurance(ctx context.Context, req pricingdomain.InsuranceRequest) (pricingdomain.InsuranceResult, error) {
	tier, err := plan.ParseTier(req.Plan)
	if err != nil {
		return pricingdomain.InsuranceResult{}, err
	}
	eligible, err := engine.CanUseInsurance(tier, req.Value)
	if err != nil {
		return pricingdomain.InsuranceResult{}, err
	}
	return pricingdomain.InsuranceResult{Plan: tier, Value: req.Value, Eligible: eligible}, nil
}

type fakeSubscriptionService struct {
	plans map[string]plan.Tier
}

func (f *fakeSubscriptionService) ActivePlan(ctx context.Context, userID string) (plan.Tier, error) {
	if tier, ok := f.plans[userID]; ok {
		return tier, nil
	}
	return plan.TierFree, nil
}

func (f *fakeSubscriptionService) Get(ctx context.Context, userID string) (subscriptiondomain.SubscriptionView, error) {
	tier, _ := f.ActivePlan(ctx, userID)
	return subscriptiondomain.SubscriptionView{UserID: userID, Plan: tier, Status: subscriptiondomain.SubscriptionStatusActive}, nil
}

func (f *fakeSubscriptionService) ChangePlan(ctx context.Context, req subscriptiondomain.ChangePlanRequest) (subscriptiondomain.SubscriptionView, error) {
	tier, err := plan.ParseTier(req.Plan)
	if err != nil {
		return subscriptiondomain.SubscriptionView{}, err
	}
	f.plans[req.UserID] = tier
	return f.Get(ctx, req.UserID)
}

func (f *fakeSubscriptionService) PriorityCreditsRemaining(ctx context.Context, userID string, at time.Time) (subscriptiondomain.PriorityCredits, error) {
	return subscriptiondomain.PriorityCredits{}, nil
}

func (f *fakeSubscriptionService) ConsumePriorityCredit(ctx context.Context, userID string, at time.Time, confirm func(covered bool) error) error {
	return confirm(false)
}

type fakeInvoiceService struct {
	invoices map[snowflake.ID]invoicedomain.InvoiceDetail
	listReq  invoicedomain.ListRequest
}

func (f *fakeInvoiceService) List(ctx context.Context, req invoicedomain.ListRequest) ([]invoicedomain.Invoice, error) {
	f.listReq = req
	var out []invoicedomain.Invoice
	for _, detail := range f.invoices {
		if req.ProviderID != nil && detail.ProviderID != *req.ProviderID {
			continue
		}
		out = append(out, detail.Invoice)
	}
	return out, nil
}

func (f *fakeInvoiceService) Get(ctx context.Context, id snowflake.ID) (invoicedomain.InvoiceDetail, error) {
	detail, ok := f.invoices[id]
	if !ok {
		return invoicedomain.InvoiceDetail{}, invoicedomain.ErrInvoiceNotFound
	}
	return detail, nil
}

func (f *fakeInvoiceService) MarkPaid(ctx context.Context, id snowflake.ID) (invoicedomain.InvoiceDetail, error) {
	detail, err := f.Get(ctx, id)
	if err != nil {
		return detail, err
	}
	if detail.Status == invoicedomain.InvoiceStatusPaid {
		return detail, invoicedomain.ErrInvoiceAlreadyPaid
	}
	detail.Status = invoicedomain.InvoiceStatusPaid
	f.invoices[id] = detail
	return detail, nil
}

func (f *fakeInvoiceService) MarkTransferFailed(ctx context.Context, id snowflake.ID, reason string) (invoicedomain.InvoiceDetail, error) {
	return f.Get(ctx, id)
}

func (f *fakeInvoiceService) RenderPDF(ctx context.Context, id snowflake.ID) (invoicedomain.Document, error) {
	detail, err := f.Get(ctx, id)
	if err != nil {
		return invoicedomain.Document{}, err
	}
	return invoicedomain.Document{
		Filename: detail.InvoiceNumber + ".pdf",
		Body:     strings.NewReader("%PDF-1.4"),
	}, nil
}

type fakeNotificationService struct {
	lastUser   string
	lastUnread bool
}

func (f *fakeNotificationService) Notify(ctx context.Context, userID, title, message string, kind notificationdomain.NotificationType, data map[string]any) error {
	return nil
}

func (f *fakeNotificationService) List(ctx context.Context, userID string, unreadOnly bool, limit int) ([]notificationdomain.Notification, error) {
	f.lastUser = userID
	f.lastUnread = unreadOnly
	return []notificationdomain.Notification{{UserID: userID, Title: "hello"}}, nil
}

type fakeProviderRepo struct {
	providers []providerdomain.Provider
}

func (f *fakeProviderRepo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*providerdomain.Provider, error) {
	for i := range f.providers {
		if f.providers[i].ID == id {
			return &f.providers[i], nil
		}
	}
	return nil, nil
}

func (f *fakeProviderRepo) FindByUserID(ctx context.Context, db *gorm.DB, userID string) (*providerdomain.Provider, error) {
	for i := range f.providers {
		if f.providers[i].UserID == userID {
			return &f.providers[i], nil
		}
	}
	return nil, nil
}

func (f *fakeProviderRepo) ListBillable(ctx context.Context, db *gorm.DB, start, end time.Time) ([]providerdomain.Provider, error) {
	return nil, nil
}

func (f *fakeProviderRepo) CountActive(ctx context.Context, db *gorm.DB) (int64, error) {
	return int64(len(f.providers)), nil
}

type testServer struct {
	server        *Server
	engine        *gin.Engine
	billing       *fakeBillingService
	pricing       *fakePricingService
	invoices      *fakeInvoiceService
	notifications *fakeNotificationService
}

const (
	aliceProviderID snowflake.ID = 1001
	bobProviderID   snowflake.ID = 1002
	aliceInvoiceID  snowflake.ID = 5001
	bobInvoiceID    snowflake.ID = 5002
)

func newTestServer(t *testing.T, cronSecret string) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	enforcer, err := authorization.NewMemoryEnforcer()
	require.NoError(t, err)

	engine := gin.New()
	engine.Use(ErrorHandlingMiddleware())

	ts := &testServer{
		engine:  engine,
		billing: &fakeBillingService{},
		pricing: &fakePricingService{},
		invoices: &fakeInvoiceService{invoices: map[snowflake.ID]invoicedomain.InvoiceDetail{
			aliceInvoiceID: {
				Invoice:  invoicedomain.Invoice{ID: aliceInvoiceID, ProviderID: aliceProviderID, InvoiceNumber: "PROV-202405-001001", Status: invoicedomain.InvoiceStatusGenerated},
				Provider: invoicedomain.InvoiceParty{ID: aliceProviderID, UserID: "alice"},
			},
			bobInvoiceID: {
				Invoice:  invoicedomain.Invoice{ID: bobInvoiceID, ProviderID: bobProviderID, InvoiceNumber: "PROV-202405-001002", Status: invoicedomain.InvoiceStatusGenerated},
				Provider: invoicedomain.InvoiceParty{ID: bobProviderID, UserID: "bob"},
			},
		}},
		notifications: &fakeNotificationService{},
	}

	ts.server = NewServer(ServerParams{
		Gin:             engine,
		Cfg:             config.Config{CronSecret: cronSecret},
		AuthzSvc:        authorization.NewService(authorization.Params{Log: zap.NewNop(), Enforcer: enforcer}),
		BillingSvc:      ts.billing,
		PricingSvc:      ts.pricing,
		SubscriptionSvc: &fakeSubscriptionService{plans: map[string]plan.Tier{}},
		InvoiceSvc:      ts.invoices,
		NotificationSvc: ts.notifications,
		ProviderRepo: &fakeProviderRepo{providers: []providerdomain.Provider{
			{ID: aliceProviderID, UserID: "alice"},
			{ID: bobProviderID, UserID: "bob"},
		}},
	})
	return ts
}

func (ts *testServer) do(method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)
	return rec
}

func actorHeaders(id string, role authorization.Role) map[string]string {
	return map[string]string{HeaderActorID: id, HeaderActorRole: string(role)}
}

func cronHeaders(secret string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + secret}
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

func TestCronMonthlyBilling_Auth(t *testing.T) {
	ts := newTestServer(t, testCronSecret)

	rec := ts.do(http.MethodPost, "/api/cron/monthly-billing", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(http.MethodPost, "/api/cron/monthly-billing", nil, cronHeaders("wrong"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(http.MethodPost, "/api/cron/monthly-billing", nil, map[string]string{"Authorization": testCronSecret})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	assert.Zero(t, ts.billing.calls)
}

func TestCronMonthlyBilling_EmptySecretRejectsEverything(t *testing.T) {
	ts := newTestServer(t, "")

	rec := ts.do(http.MethodPost, "/api/cron/monthly-billing", nil, cronHeaders(""))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", decodeError(t, rec).Type)
	assert.Zero(t, ts.billing.calls)
}

func TestCronMonthlyBilling_RunsRequestedPeriod(t *testing.T) {
	ts := newTestServer(t, testCronSecret)

	rec := ts.do(http.MethodPost, "/api/cron/monthly-billing?force=true", map[string]any{"month": "2024-05"}, cronHeaders(testCronSecret))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, "2024-05", ts.billing.lastReq.Period)
	assert.True(t, ts.billing.lastReq.Force)
	assert.Equal(t, obsmetrics.TriggerHTTP, ts.billing.lastReq.Trigger)

	var resp struct {
		Data billingdomain.RunResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "run-1", resp.Data.RunID)
}

func TestCronMonthlyBilling_QueryMonthWithoutBody(t *testing.T) {
	ts := newTestServer(t, testCronSecret)

	rec := ts.do(http.MethodPost, "/api/cron/monthly-billing?month=2024-04", nil, cronHeaders(testCronSecret))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "2024-04", ts.billing.lastReq.Period)
	assert.False(t, ts.billing.lastReq.Force)
}

func TestCronMonthlyBilling_BadPeriod(t *testing.T) {
	ts := newTestServer(t, testCronSecret)

	rec := ts.do(http.MethodPost, "/api/cron/monthly-billing", map[string]any{"month": "2024-5"}, cronHeaders(testCronSecret))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	payload := decodeError(t, rec)
	assert.Equal(t, "validation_error", payload.Type)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "invalid_period", payload.Errors[0].Code)
	assert.Equal(t, "period", payload.Errors[0].Field)
}

func TestCronMonthlyBilling_RunInProgress(t *testing.T) {
	ts := newTestServer(t, testCronSecret)
	ts.billing.runErr = fmt.Errorf("acquire: %w", billingdomain.ErrRunInProgress)

	rec := ts.do(http.MethodPost, "/api/cron/monthly-billing", nil, cronHeaders(testCronSecret))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "conflict", decodeError(t, rec).Type)
}

func TestCronMonthlyBilling_Status(t *testing.T) {
	ts := newTestServer(t, testCronSecret)
	ts.billing.status = billingdomain.StatusResult{BilledPeriod: "2024-05", InvoiceCount: 3}

	rec := ts.do(http.MethodGet, "/api/cron/monthly-billing", nil, cronHeaders(testCronSecret))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "2024-05", resp.Data["billed_period"])
	assert.NotContains(t, resp.Data, "period")
	assert.EqualValues(t, 3, resp.Data["invoice_count"])
}

func TestAdminBillingRun(t *testing.T) {
	ts := newTestServer(t, testCronSecret)

	rec := ts.do(http.MethodPost, "/api/admin/billing/runs", nil, actorHeaders("p1", authorization.RoleProvider))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(http.MethodPost, "/api/admin/billing/runs?month=2024-05", nil, actorHeaders("a1", authorization.RoleAdmin))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, obsmetrics.TriggerManual, ts.billing.lastReq.Trigger)
}

func TestListPlans(t *testing.T) {
	ts := newTestServer(t, testCronSecret)

	rec := ts.do(http.MethodGet, "/api/plans", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data []plan.Plan `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 3)
	assert.Equal(t, plan.TierFree, resp.Data[0].Tier)
}

func TestPreviewQuote(t *testing.T) {
	ts := newTestServer(t, testCronSecret)
	body := map[string]any{"plan": "free", "base_price": "100", "is_priority": true}

	rec := ts.do(http.MethodPost, "/api/pricing/quote", body, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(http.MethodPost, "/api/pricing/quote", body, actorHeaders("c1", authorization.RoleClient))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Data engine.Quote `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, decimal.NewFromInt(115).Equal(resp.Data.FinalPrice), resp.Data.FinalPrice.String())
}

type denyLimiter struct {
	seen []string
}

func (d *denyLimiter) AllowActor(ctx context.Context, actorID string) (ratelimit.Result, error) {
	d.seen = append(d.seen, actorID)
	return ratelimit.Result{Allowed: false, Limit: 20, RetryAfter: 1500 * time.Millisecond}, nil
}

func TestPricingRateLimit(t *testing.T) {
	ts := newTestServer(t, testCronSecret)
	limiter := &denyLimiter{}
	ts.server.pricingLimiter = limiter

	rec := ts.do(http.MethodPost, "/api/pricing/quote", map[string]any{"plan": "FREE", "base_price": "10"}, actorHeaders("c1", authorization.RoleClient))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))
	assert.Equal(t, "20", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "rate_limited", decodeError(t, rec).Type)
	assert.Equal(t, []string{"c1"}, limiter.seen)

	// Plans are public and never throttled.
	rec = ts.do(http.MethodGet, "/api/plans", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, limiter.seen, 1)
}

func TestPreviewQuote_InvalidPlan(t *testing.T) {
	ts := newTestServer(t, testCronSecret)

	rec := ts.do(http.MethodPost, "/api/pricing/quote", map[string]any{"plan": "GOLD", "base_price": "10"}, actorHeaders("c1", authorization.RoleClient))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	payload := decodeError(t, rec)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "invalid_plan", payload.Errors[0].Code)
}

func TestCheckout(t *testing.T) {
	ts := newTestServer(t, testCronSecret)
	body := map[string]any{"base_price": "100", "is_small_package": true}

	rec := ts.do(http.MethodPost, "/api/pricing/checkout", body, actorHeaders("m1", authorization.RoleMerchant))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(http.MethodPost, "/api/pricing/checkout", body, actorHeaders("c1", authorization.RoleClient))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "c1", ts.pricing.lastCheckout.UserID)

	body["expected_price"] = "1"
	rec = ts.do(http.MethodPost, "/api/pricing/checkout", body, actorHeaders("c1", authorization.RoleClient))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "quote_mismatch", decodeError(t, rec).Type)
}

func TestInsuranceEligibility(t *testing.T) {
	ts := newTestServer(t, testCronSecret)
	headers := actorHeaders("c1", authorization.RoleClient)

	rec := ts.do(http.MethodGet, "/api/pricing/insurance?plan=STARTER&value=115", nil, headers)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		Data pricingdomain.InsuranceResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Data.Eligible)

	rec = ts.do(http.MethodGet, "/api/pricing/insurance?plan=STARTER&value=abc", nil, headers)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubscriptionMe(t *testing.T) {
	ts := newTestServer(t, testCronSecret)
	headers := actorHeaders("c1", authorization.RoleClient)

	rec := ts.do(http.MethodPut, "/api/subscriptions/me", map[string]any{"plan": "premium"}, headers)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(http.MethodGet, "/api/subscriptions/me", nil, headers)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Data subscriptiondomain.SubscriptionView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, plan.TierPremium, resp.Data.Plan)

	rec = ts.do(http.MethodPut, "/api/subscriptions/me", map[string]any{}, headers)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodGet, "/api/subscriptions/me", nil, actorHeaders("d1", authorization.RoleDeliverer))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestActorRequired_RejectsUnknownRole(t *testing.T) {
	ts := newTestServer(t, testCronSecret)

	rec := ts.do(http.MethodGet, "/api/subscriptions/me", nil, map[string]string{HeaderActorID: "c1", HeaderActorRole: "root"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestInvoiceVisibility(t *testing.T) {
	ts := newTestServer(t, testCronSecret)
	alice := actorHeaders("alice", authorization.RoleProvider)

	rec := ts.do(http.MethodGet, fmt.Sprintf("/api/invoices/%d", aliceInvoiceID), nil, alice)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(http.MethodGet, fmt.Sprintf("/api/invoices/%d", bobInvoiceID), nil, alice)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(http.MethodGet, fmt.Sprintf("/api/invoices/%d", bobInvoiceID), nil, actorHeaders("a1", authorization.RoleAdmin))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(http.MethodGet, "/api/invoices/abc", nil, alice)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodGet, fmt.Sprintf("/api/invoices/%d", aliceInvoiceID), nil, actorHeaders("c1", authorization.RoleClient))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestListProviderInvoices(t *testing.T) {
	ts := newTestServer(t, testCronSecret)
	alice := actorHeaders("alice", authorization.RoleProvider)

	rec := ts.do(http.MethodGet, "/api/providers/me/invoices?period=2024-05", nil, alice)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		Data []map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, aliceInvoiceID.String(), resp.Data[0]["id"])
	assert.Equal(t, "2024-05", ts.invoices.listReq.Period)

	rec = ts.do(http.MethodGet, fmt.Sprintf("/api/providers/%d/invoices", bobProviderID), nil, alice)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(http.MethodGet, fmt.Sprintf("/api/providers/%d/invoices", bobProviderID), nil, actorHeaders("a1", authorization.RoleAdmin))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(http.MethodGet, "/api/providers/9999/invoices", nil, actorHeaders("a1", authorization.RoleAdmin))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(http.MethodGet, "/api/providers/me/invoices?limit=0", nil, alice)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDownloadInvoicePDF(t *testing.T) {
	ts := newTestServer(t, testCronSecret)

	rec := ts.do(http.MethodGet, fmt.Sprintf("/api/invoices/%d/pdf", aliceInvoiceID), nil, actorHeaders("alice", authorization.RoleProvider))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "PROV-202405-001001.pdf")
	assert.True(t, strings.HasPrefix(rec.Body.String(), "%PDF"))
}

func TestMarkInvoicePaid_AdminOnly(t *testing.T) {
	ts := newTestServer(t, testCronSecret)
	path := fmt.Sprintf("/api/invoices/%d/paid", aliceInvoiceID)

	rec := ts.do(http.MethodPost, path, nil, actorHeaders("alice", authorization.RoleProvider))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(http.MethodPost, path, nil, actorHeaders("a1", authorization.RoleAdmin))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(http.MethodPost, path, nil, actorHeaders("a1", authorization.RoleAdmin))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestMarkTransferFailed_RequiresReason(t *testing.T) {
	ts := newTestServer(t, testCronSecret)
	path := fmt.Sprintf("/api/invoices/%d/transfer-failed", aliceInvoiceID)

	rec := ts.do(http.MethodPost, path, map[string]any{}, actorHeaders("a1", authorization.RoleAdmin))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodPost, path, map[string]any{"reason": "iban closed"}, actorHeaders("a1", authorization.RoleAdmin))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListMyNotifications(t *testing.T) {
	ts := newTestServer(t, testCronSecret)

	rec := ts.do(http.MethodGet, "/api/notifications?unread=true", nil, actorHeaders("alice", authorization.RoleProvider))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", ts.notifications.lastUser)
	assert.True(t, ts.notifications.lastUnread)

	rec = ts.do(http.MethodGet, "/api/notifications?unread=maybe", nil, actorHeaders("alice", authorization.RoleProvider))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMapError(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{name: "period", err: fmt.Errorf("%w: %q", period.ErrInvalidPeriod, "x"), status: http.StatusBadRequest},
		{name: "amount", err: engine.ErrInvalidAmount, status: http.StatusBadRequest},
		{name: "forbidden", err: authorization.ErrForbidden, status: http.StatusForbidden},
		{name: "invalid_actor", err: authorization.ErrInvalidActor, status: http.StatusUnauthorized},
		{name: "in_progress", err: billingdomain.ErrRunInProgress, status: http.StatusConflict},
		{name: "transfer_not_pending", err: invoicedomain.ErrTransferNotPending, status: http.StatusConflict},
		{name: "not_found", err: gorm.ErrRecordNotFound, status: http.StatusNotFound},
		{name: "provider_not_found", err: providerdomain.ErrProviderNotFound, status: http.StatusNotFound},
		{name: "rate_limited", err: ErrRateLimited, status: http.StatusTooManyRequests},
		{name: "collision", err: billingdomain.ErrInvoiceNumberCollision, status: http.StatusInternalServerError},
		{name: "unknown", err: io.ErrUnexpectedEOF, status: http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, _ := mapError(tc.err)
			assert.Equal(t, tc.status, status)
		})
	}
}

func TestClassifyErrorForLog(t *testing.T) {
	typ, code := classifyErrorForLog(period.ErrInvalidPeriod)
	assert.Equal(t, "validation_error", typ)
	assert.Equal(t, "invalid_period", code)

	typ, code = classifyErrorForLog(ErrForbidden)
	assert.Equal(t, "forbidden", typ)
	assert.Equal(t, "forbidden", code)
}
