package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	slotleads "github.com/phbpx/slotleads"
	"github.com/phbpx/slotleads/access"
	"github.com/phbpx/slotleads/handler"
	"github.com/phbpx/slotleads/memory"
	"github.com/phbpx/slotleads/submission"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

const secret = "test-secret"

type api struct {
	t      *testing.T
	router http.Handler
}

func newAPI(t *testing.T, check handler.StatusCheck) api {
	t.Helper()

	log := otelzap.New(zap.NewNop()).Sugar()
	guard := access.NewGuard(memory.NewRoleStore(), access.Config{Bootstrap: "founder"})
	offer := slotleads.Offer{
		Plan:         "1 Year Pro Subscription",
		Amount:       decimal.NewFromInt(299),
		Currency:     "INR",
		PaymentLink:  "upi://pay?pa=merchant@upi",
		Instructions: "Pay then confirm.",
	}
	service := submission.NewService(memory.NewSubmissionStore(), memory.NewSlotCounter(3), guard, offer, log)

	if check == nil {
		check = func(context.Context) error { return nil }
	}

	router := handler.NewRouter(
		"test",
		handler.NewAuthenticator(secret, log),
		handler.NewSubmissionHandler(service, log),
		handler.NewRoleHandler(guard, log),
		check,
		log,
	)
	return api{t: t, router: router}
}

func (a api) do(method, path, caller, body string) *httptest.ResponseRecorder {
	a.t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if caller != "" {
		token, err := handler.IssueToken(secret, slotleads.Identity(caller), time.Hour)
		require.NoError(a.t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, into interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), into))
}

const ashaBody = `{"name":"Asha","email":"asha@x.com","whatsapp":"9876543210"}`

func TestSubmissionLifecycle(t *testing.T) {
	a := newAPI(t, nil)

	rec := a.do(http.MethodPost, "/submissions", "asha", ashaBody)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created struct {
		ID uint64 `json:"id"`
	}
	decodeBody(t, rec, &created)
	assert.Equal(t, uint64(1), created.ID)

	rec = a.do(http.MethodGet, "/slots", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"remaining":2}`, rec.Body.String())

	rec = a.do(http.MethodGet, "/submissions/1", "asha", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var sub slotleads.Submission
	decodeBody(t, rec, &sub)
	assert.Equal(t, slotleads.StatusPending, sub.PaymentStatus)
	assert.Nil(t, sub.PaymentDate)
	assert.NotContains(t, rec.Body.String(), "renewal_date")

	rec = a.do(http.MethodPost, "/submissions/1/paid", "asha", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(http.MethodGet, "/submissions/1", "asha", "")
	require.Equal(t, http.StatusOK, rec.Code)
	sub = slotleads.Submission{}
	decodeBody(t, rec, &sub)
	assert.Equal(t, slotleads.StatusPaid, sub.PaymentStatus)
	require.NotNil(t, sub.PaymentDate)
	require.NotNil(t, sub.RenewalDate)
	assert.True(t, sub.PaymentDate.AddDate(1, 0, 0).Equal(*sub.RenewalDate))
}

func TestSubmissionErrors(t *testing.T) {
	a := newAPI(t, nil)
	require.Equal(t, http.StatusCreated, a.do(http.MethodPost, "/submissions", "asha", ashaBody).Code)

	tests := []struct {
		name   string
		method string
		path   string
		caller string
		body   string
		status int
	}{
		{"missing field", http.MethodPost, "/submissions", "asha", `{"name":"Asha","email":"asha@x.com"}`, http.StatusBadRequest},
		{"blank field", http.MethodPost, "/submissions", "asha", `{"name":" ","email":"asha@x.com","whatsapp":"1"}`, http.StatusBadRequest},
		{"malformed body", http.MethodPost, "/submissions", "asha", `{`, http.StatusBadRequest},
		{"bad id", http.MethodGet, "/submissions/abc", "asha", "", http.StatusBadRequest},
		{"absent", http.MethodGet, "/submissions/42", "asha", "", http.StatusNotFound},
		{"not owner", http.MethodGet, "/submissions/1", "ravi", "", http.StatusForbidden},
		{"pay not owner", http.MethodPost, "/submissions/1/paid", "ravi", "", http.StatusForbidden},
		{"pay absent", http.MethodPost, "/submissions/42/paid", "asha", "", http.StatusNotFound},
		{"list non admin", http.MethodGet, "/submissions", "asha", "", http.StatusForbidden},
		{"list anonymous", http.MethodGet, "/submissions", "", "", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := a.do(tt.method, tt.path, tt.caller, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func TestRoles(t *testing.T) {
	a := newAPI(t, nil)

	rec := a.do(http.MethodPut, "/roles/yara", "asha", `{"role":"admin"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(http.MethodPut, "/roles/founder", "founder", `{"role":"admin"}`)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = a.do(http.MethodPut, "/roles/yara", "founder", `{"role":"admin"}`)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = a.do(http.MethodGet, "/roles/me", "yara", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"identity":"yara","role":"admin","is_admin":true}`, rec.Body.String())

	rec = a.do(http.MethodGet, "/roles/me", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"identity":"","role":"guest","is_admin":false}`, rec.Body.String())

	rec = a.do(http.MethodPut, "/roles/ravi", "yara", `{"role":"superuser"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminListsInCreationOrder(t *testing.T) {
	a := newAPI(t, nil)
	require.Equal(t, http.StatusNoContent, a.do(http.MethodPut, "/roles/founder", "founder", `{"role":"admin"}`).Code)

	for _, caller := range []string{"asha", "ravi", ""} {
		require.Equal(t, http.StatusCreated, a.do(http.MethodPost, "/submissions", caller, ashaBody).Code)
	}

	rec := a.do(http.MethodGet, "/submissions", "founder", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var subs []slotleads.Submission
	decodeBody(t, rec, &subs)
	require.Len(t, subs, 3)
	for i, sub := range subs {
		assert.Equal(t, slotleads.SubmissionID(i+1), sub.ID)
	}
	assert.Equal(t, slotleads.Identity("ravi"), subs[1].Owner)

	rec = a.do(http.MethodGet, "/slots", "", "")
	assert.JSONEq(t, `{"remaining":0}`, rec.Body.String())
}

func TestAuthentication(t *testing.T) {
	a := newAPI(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/roles/me", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	forged, err := handler.IssueToken("other-secret", "boss", time.Hour)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/roles/me", nil)
	req.Header.Set("Authorization", "Bearer "+forged)
	rec = httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	expired, err := handler.IssueToken(secret, "asha", -time.Minute)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/roles/me", nil)
	req.Header.Set("Authorization", "Bearer "+expired)
	rec = httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestOffer(t *testing.T) {
	a := newAPI(t, nil)

	rec := a.do(http.MethodGet, "/offer", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	decodeBody(t, rec, &body)
	assert.Equal(t, "1 Year Pro Subscription", body["plan"])
	assert.Equal(t, "299.00 INR", body["price"])
	assert.Equal(t, "Pay then confirm.", body["instructions"])
}

func TestReadiness(t *testing.T) {
	rec := newAPI(t, nil).do(http.MethodGet, "/readiness", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	down := newAPI(t, func(context.Context) error { return errors.New("db down") })
	rec = down.do(http.MethodGet, "/readiness", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
