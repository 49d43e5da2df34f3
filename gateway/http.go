package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/escrowhq/escrow/config"
	"github.com/escrowhq/escrow/internal/apierror"
	"github.com/escrowhq/escrow/model"
)

// Client is the HTTP implementation of Gateway against the processor's REST
// API. It never retries on its own; callers retry with the same idempotency
// key after a failure.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

func NewClient(conf config.GatewayConfig) *Client {
	return &Client{
		endpoint: conf.Endpoint,
		apiKey:   conf.APIKey,
		http:     &http.Client{Timeout: conf.Timeout()},
	}
}

type holdRequest struct {
	Amount             int64  `json:"amount"`
	Currency           string `json:"currency"`
	ApplicationFee     int64  `json:"application_fee,omitempty"`
	DestinationAccount string `json:"destination_account,omitempty"`
}

type transferRequest struct {
	Amount             int64  `json:"amount"`
	DestinationAccount string `json:"destination_account"`
}

type refundRequest struct {
	Amount int64 `json:"amount,omitempty"`
}

type refResponse struct {
	Ref   string `json:"ref"`
	Error string `json:"error,omitempty"`
}

func (c *Client) CreateHold(ctx context.Context, params HoldParams) (string, error) {
	body := holdRequest{
		Amount:             params.Amount,
		Currency:           params.Currency,
		ApplicationFee:     params.ApplicationFee,
		DestinationAccount: params.DestinationAccount,
	}
	return c.post(ctx, "/v1/holds", IdempotencyKey(params.TransactionID, OpHold), body)
}

func (c *Client) ReleaseToPayee(ctx context.Context, params ReleaseParams) (string, error) {
	if params.DestinationAccount == "" {
		return "", apierror.NewAPIError(apierror.ErrReleaseFailed, "payee has no payout-ready connect account", params.TransactionID)
	}
	body := transferRequest{
		Amount:             params.Amount,
		DestinationAccount: params.DestinationAccount,
	}
	path := fmt.Sprintf("/v1/holds/%s/transfers", params.HoldRef)
	return c.post(ctx, path, IdempotencyKey(params.TransactionID, OpRelease), body)
}

func (c *Client) RefundToPayer(ctx context.Context, params RefundParams) (string, error) {
	body := refundRequest{Amount: params.Amount}
	path := fmt.Sprintf("/v1/holds/%s/refunds", params.HoldRef)
	return c.post(ctx, path, IdempotencyKey(params.TransactionID, OpRefund), body)
}

func (c *Client) GetConnectAccount(ctx context.Context, principalID string) (*model.ConnectAccount, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/v1/accounts/"+principalID, nil)
	if err != nil {
		return nil, errors.Wrap(err, "building account lookup request")
	}
	c.setHeaders(req, "")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrGateway, "connect account lookup failed", err)
	}
	defer closeBody(resp.Body)

	if resp.StatusCode == http.StatusNotFound {
		return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("no connect account for principal '%s'", principalID), nil)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, gatewayError(resp)
	}

	var account model.ConnectAccount
	if err := json.NewDecoder(resp.Body).Decode(&account); err != nil {
		return nil, errors.Wrap(err, "decoding connect account")
	}
	return &account, nil
}

func (c *Client) post(ctx context.Context, path, idempotencyKey string, body interface{}) (string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "", errors.Wrap(err, "marshaling gateway request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(payload))
	if err != nil {
		return "", errors.Wrap(err, "building gateway request")
	}
	c.setHeaders(req, idempotencyKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", apierror.NewAPIError(apierror.ErrGateway, "gateway call failed", err)
	}
	defer closeBody(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", gatewayError(resp)
	}

	var result refResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", errors.Wrap(err, "decoding gateway response")
	}
	return result.Ref, nil
}

func (c *Client) setHeaders(req *http.Request, idempotencyKey string) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}
}

func gatewayError(resp *http.Response) error {
	var result refResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil || result.Error == "" {
		result.Error = fmt.Sprintf("gateway returned status %d", resp.StatusCode)
	}
	return apierror.NewAPIError(apierror.ErrGateway, result.Error, resp.StatusCode)
}

func closeBody(body io.ReadCloser) {
	if err := body.Close(); err != nil {
		logrus.Error(err)
	}
}
