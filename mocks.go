/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package escrow

import (
	"context"

	"github.com/escrowhq/escrow/gateway"
	"github.com/escrowhq/escrow/internal/apierror"
	"github.com/escrowhq/escrow/model"
)

// MockGateway is a test double for the payment gateway. Each hook, when set,
// replaces the default canned response.
type MockGateway struct {
	mockCreateHold        func(gateway.HoldParams) (string, error)
	mockReleaseToPayee    func(gateway.ReleaseParams) (string, error)
	mockRefundToPayer     func(gateway.RefundParams) (string, error)
	mockGetConnectAccount func(string) (*model.ConnectAccount, error)

	HoldCalls    []gateway.HoldParams
	ReleaseCalls []gateway.ReleaseParams
	RefundCalls  []gateway.RefundParams
}

func (m *MockGateway) CreateHold(_ context.Context, params gateway.HoldParams) (string, error) {
	m.HoldCalls = append(m.HoldCalls, params)
	if m.mockCreateHold != nil {
		return m.mockCreateHold(params)
	}
	return "hold_" + params.TransactionID, nil
}

func (m *MockGateway) ReleaseToPayee(_ context.Context, params gateway.ReleaseParams) (string, error) {
	m.ReleaseCalls = append(m.ReleaseCalls, params)
	if m.mockReleaseToPayee != nil {
		return m.mockReleaseToPayee(params)
	}
	return "tr_" + params.TransactionID, nil
}

func (m *MockGateway) RefundToPayer(_ context.Context, params gateway.RefundParams) (string, error) {
	m.RefundCalls = append(m.RefundCalls, params)
	if m.mockRefundToPayer != nil {
		return m.mockRefundToPayer(params)
	}
	return "re_" + params.TransactionID, nil
}

func (m *MockGateway) GetConnectAccount(_ context.Context, principalID string) (*model.ConnectAccount, error) {
	if m.mockGetConnectAccount != nil {
		return m.mockGetConnectAccount(principalID)
	}
	return nil, apierror.NewAPIError(apierror.ErrNotFound, "no connect account", nil)
}
