package gateway

import (
	"context"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/escrowhq/escrow/config"
	"github.com/escrowhq/escrow/internal/apierror"
	"github.com/escrowhq/escrow/model"
)

func newTestClient() *Client {
	return NewClient(config.GatewayConfig{
		Endpoint:   "https://gateway.test",
		APIKey:     "sk_test_123",
		TimeoutSec: 5,
	})
}

func TestIdempotencyKey(t *testing.T) {
	assert.Equal(t, "txn_1:release", IdempotencyKey("txn_1", OpRelease))
	assert.Equal(t, "txn_1:refund", IdempotencyKey("txn_1", OpRefund))
}

func TestCreateHold(t *testing.T) {
	client := newTestClient()
	httpmock.ActivateNonDefault(client.http)
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("POST", "https://gateway.test/v1/holds",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "txn_1:hold", req.Header.Get("Idempotency-Key"))
			assert.Equal(t, "Bearer sk_test_123", req.Header.Get("Authorization"))
			return httpmock.NewJsonResponse(201, map[string]string{"ref": "hold_abc"})
		})

	ref, err := client.CreateHold(context.Background(), HoldParams{
		TransactionID:  "txn_1",
		Amount:         100000,
		Currency:       "USD",
		ApplicationFee: 5000,
	})
	require.NoError(t, err)
	assert.Equal(t, "hold_abc", ref)
}

func TestReleaseToPayee(t *testing.T) {
	client := newTestClient()
	httpmock.ActivateNonDefault(client.http)
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("POST", "https://gateway.test/v1/holds/hold_abc/transfers",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "txn_1:release", req.Header.Get("Idempotency-Key"))
			return httpmock.NewJsonResponse(201, map[string]string{"ref": "tr_xyz"})
		})

	ref, err := client.ReleaseToPayee(context.Background(), ReleaseParams{
		TransactionID:      "txn_1",
		HoldRef:            "hold_abc",
		Amount:             95000,
		DestinationAccount: "acct_42",
	})
	require.NoError(t, err)
	assert.Equal(t, "tr_xyz", ref)
}

func TestReleaseWithoutDestinationFailsLocally(t *testing.T) {
	client := newTestClient()
	httpmock.ActivateNonDefault(client.http)
	defer httpmock.DeactivateAndReset()

	_, err := client.ReleaseToPayee(context.Background(), ReleaseParams{
		TransactionID: "txn_1",
		HoldRef:       "hold_abc",
		Amount:        95000,
	})
	require.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	require.True(t, ok)
	assert.Equal(t, apierror.ErrReleaseFailed, apiErr.Code)
	// No HTTP call was made.
	assert.Zero(t, httpmock.GetTotalCallCount())
}

func TestRefundToPayer(t *testing.T) {
	client := newTestClient()
	httpmock.ActivateNonDefault(client.http)
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("POST", "https://gateway.test/v1/holds/hold_abc/refunds",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "txn_1:refund", req.Header.Get("Idempotency-Key"))
			return httpmock.NewJsonResponse(201, map[string]string{"ref": "re_123"})
		})

	ref, err := client.RefundToPayer(context.Background(), RefundParams{
		TransactionID: "txn_1",
		HoldRef:       "hold_abc",
	})
	require.NoError(t, err)
	assert.Equal(t, "re_123", ref)
}

func TestGatewayErrorMapping(t *testing.T) {
	client := newTestClient()
	httpmock.ActivateNonDefault(client.http)
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("POST", "https://gateway.test/v1/holds",
		httpmock.NewJsonResponderOrPanic(402, map[string]string{"error": "card declined"}))

	_, err := client.CreateHold(context.Background(), HoldParams{
		TransactionID: "txn_1",
		Amount:        100,
		Currency:      "USD",
	})
	require.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	require.True(t, ok)
	assert.Equal(t, apierror.ErrGateway, apiErr.Code)
	assert.Contains(t, apiErr.Message, "card declined")
	assert.True(t, apierror.Retryable(err))
}

func TestGetConnectAccount(t *testing.T) {
	client := newTestClient()
	httpmock.ActivateNonDefault(client.http)
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("GET", "https://gateway.test/v1/accounts/usr_2",
		httpmock.NewJsonResponderOrPanic(200, model.ConnectAccount{
			PrincipalID:        "usr_2",
			AccountRef:         "acct_42",
			Status:             model.AccountActive,
			OnboardingComplete: true,
			PayoutsEnabled:     true,
		}))

	account, err := client.GetConnectAccount(context.Background(), "usr_2")
	require.NoError(t, err)
	assert.Equal(t, "acct_42", account.AccountRef)
	assert.True(t, account.PayoutReady())
}

func TestGetConnectAccountNotFound(t *testing.T) {
	client := newTestClient()
	httpmock.ActivateNonDefault(client.http)
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("GET", "https://gateway.test/v1/accounts/usr_9",
		httpmock.NewStringResponder(404, `{}`))

	_, err := client.GetConnectAccount(context.Background(), "usr_9")
	require.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	require.True(t, ok)
	assert.Equal(t, apierror.ErrNotFound, apiErr.Code)
}
