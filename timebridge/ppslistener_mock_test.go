/*
Copyright (c) Facebook, Inc. and its affiliates.

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

package timebridge

import (
	"context"
	"reflect"

	"go.uber.org/mock/gomock"
)

// MockPPSListener is a hand-written gomock mock of the PPSListener
// collaborator, in the style of this codebase's mockgen output (see
// ptp/sptp/client's MockClock) but authored by hand since there is
// nothing to generate a mock from beyond this package's own
// one-method interface.
type MockPPSListener struct {
	ctrl     *gomock.Controller
	recorder *MockPPSListenerMockRecorder
}

// MockPPSListenerMockRecorder is the mock recorder for MockPPSListener.
type MockPPSListenerMockRecorder struct {
	mock *MockPPSListener
}

// NewMockPPSListener creates a new mock instance.
func NewMockPPSListener(ctrl *gomock.Controller) *MockPPSListener {
	mock := &MockPPSListener{ctrl: ctrl}
	mock.recorder = &MockPPSListenerMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockPPSListener) EXPECT() *MockPPSListenerMockRecorder {
	return m.recorder
}

// Listen mocks base method.
func (m *MockPPSListener) Listen(ctx context.Context, hooks PPSHooks) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Listen", ctx, hooks)
	ret0, _ := ret[0].(error)
	return ret0
}

// Listen indicates an expected call of Listen.
func (mr *MockPPSListenerMockRecorder) Listen(ctx, hooks any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Listen", reflect.TypeOf((*MockPPSListener)(nil).Listen), ctx, hooks)
}

// blockingListener is a tiny real (non-gomock) PPSListener used by
// tests that need an actual cancelable goroutine rather than a
// one-shot expectation: it blocks on ctx, then calls WrapHook.
type blockingListener struct {
	started chan struct{}
}

func newBlockingListener() *blockingListener {
	return &blockingListener{started: make(chan struct{}, 1)}
}

func (b *blockingListener) Listen(ctx context.Context, hooks PPSHooks) error {
	select {
	case b.started <- struct{}{}:
	default:
	}
	<-ctx.Done()
	hooks.WrapHook()
	return nil
}
