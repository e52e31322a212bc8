package adapter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/omise/omise-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Kilat-Pet-Delivery/service-boarding/pkg/domain"
)

// handlerTransport answers Omise API calls from an in-process handler.
type handlerTransport struct {
	h http.Handler
}

func (t handlerTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	w := httptest.NewRecorder()
	t.h.ServeHTTP(w, r)
	return w.Result(), nil
}

func newTestOmiseGateway(t *testing.T, mux *http.ServeMux) *OmiseGateway {
	t.Helper()
	gw, err := NewOmiseGateway("pkey_test_1", "skey_test_1", zap.NewNop())
	require.NoError(t, err)
	gw.client.Client = &http.Client{Transport: handlerTransport{h: mux}}
	return gw
}

func eventBody(id, key, charge string) string {
	return fmt.Sprintf(`{"object":"event","id":%q,"key":%q,"data":%s}`, id, key, charge)
}

func TestOmiseGateway_ParseWebhookMapsCharge(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		charge     string
		wantType   EventType
		wantRef    string
		wantInstr  string
		wantFailed string
	}{
		{
			name:      "authorized hold on customer card",
			key:       "charge.create",
			charge:    `{"object":"charge","id":"chrg_1","status":"pending","authorized":true,"paid":false,"customer":"cust_1","card":{"object":"card","id":"card_1","brand":"Visa","last_digits":"4242"},"metadata":{"booking_id":"b-1"}}`,
			wantType:  EventHoldAuthorized,
			wantRef:   "chrg_1",
			wantInstr: "card_1",
		},
		{
			name:     "captured charge without customer",
			key:      "charge.capture",
			charge:   `{"object":"charge","id":"chrg_2","status":"successful","authorized":true,"paid":true,"card":{"object":"card","id":"card_2","brand":"MasterCard","last_digits":"5454"}}`,
			wantType: EventPaymentSucceeded,
			wantRef:  "chrg_2",
		},
		{
			name:       "failed charge",
			key:        "charge.complete",
			charge:     `{"object":"charge","id":"chrg_3","status":"failed","authorized":false,"paid":false,"failure_code":"insufficient_fund","failure_message":"insufficient funds"}`,
			wantType:   EventPaymentFailed,
			wantRef:    "chrg_3",
			wantFailed: "insufficient_fund",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("/events/evnt_1", func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(eventBody("evnt_1", tt.key, tt.charge)))
			})
			gw := newTestOmiseGateway(t, mux)

			ev, err := gw.ParseWebhook(context.Background(), []byte(`{"id":"evnt_1","key":"forged"}`))
			require.NoError(t, err)
			assert.Equal(t, "evnt_1", ev.ID)
			assert.Equal(t, tt.wantType, ev.Type)
			assert.Equal(t, tt.wantRef, ev.Reference)
			assert.Equal(t, tt.wantInstr, ev.InstrumentRef)
			assert.Equal(t, tt.wantFailed, ev.FailureCode)
		})
	}
}

func TestOmiseGateway_ParseWebhookIgnoresOtherKeys(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/events/evnt_2", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(eventBody("evnt_2", "customer.create", `{"object":"customer","id":"cust_1"}`)))
	})
	gw := newTestOmiseGateway(t, mux)

	ev, err := gw.ParseWebhook(context.Background(), []byte(`{"id":"evnt_2"}`))
	require.NoError(t, err)
	assert.Equal(t, EventIgnored, ev.Type)
	assert.Empty(t, ev.Reference)
}

func TestOmiseGateway_ParseWebhookRejects(t *testing.T) {
	mux := http.NewServeMux()
	calls := 0
	mux.HandleFunc("/events/evnt_missing", func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"object":"error","code":"not_found","message":"event was not found"}`))
	})
	gw := newTestOmiseGateway(t, mux)

	_, err := gw.ParseWebhook(context.Background(), []byte(`not json`))
	assert.True(t, errors.Is(err, domain.ErrValidation))

	_, err = gw.ParseWebhook(context.Background(), []byte(`{"id":"evnt_missing"}`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrGateway))
	assert.False(t, errors.Is(err, domain.ErrCardDeclined))
	// Client errors are not retried.
	assert.Equal(t, 1, calls)
}

func TestChargeEvent_CardOnlyReusableWithCustomer(t *testing.T) {
	ch := &omise.Charge{
		Authorized: true,
		Card:       &omise.Card{Brand: "Visa", LastDigits: "4242"},
	}
	ch.ID = "chrg_9"
	ch.Card.ID = "card_9"

	ev := chargeEvent("evnt_9", ch)
	assert.Equal(t, EventHoldAuthorized, ev.Type)
	assert.Equal(t, "4242", ev.CardLast4)
	assert.Empty(t, ev.InstrumentRef)

	ch.CustomerID = "cust_9"
	assert.Equal(t, "card_9", chargeEvent("evnt_9", ch).InstrumentRef)
}

func TestGatewayError_ClassifiesDeclines(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		wantDeclined bool
	}{
		{"invalid card", &omise.Error{StatusCode: 400, Code: "invalid_card"}, true},
		{"fraud check", &omise.Error{StatusCode: 400, Code: "failed_fraud_check"}, true},
		{"wrapped decline", fmt.Errorf("do: %w", &omise.Error{Code: "used_token"}), true},
		{"server error", &omise.Error{StatusCode: 500, Code: "internal_error"}, false},
		{"transport", errors.New("connection reset"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := gatewayError("capture", tt.err)
			assert.True(t, errors.Is(err, domain.ErrGateway))
			assert.Equal(t, tt.wantDeclined, errors.Is(err, domain.ErrCardDeclined))
			assert.Equal(t, !tt.wantDeclined, errors.Is(err, domain.ErrGatewayTransient))
		})
	}
}

func TestOmiseGateway_CreateHoldDeclinedCharge(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/charges", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"object":"charge","id":"chrg_d","status":"failed","failure_code":"payment_rejected","failure_message":"rejected"}`))
	})
	gw := newTestOmiseGateway(t, mux)

	_, err := gw.CreateHold(context.Background(), HoldRequest{AmountCents: 5000, Currency: "EUR", InstrumentToken: "tokn_1"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrCardDeclined))
	assert.Contains(t, err.Error(), "create_hold")
}
