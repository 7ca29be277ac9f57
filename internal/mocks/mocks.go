// File: internal/mocks/mocks.go
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/xkilldash9x/automate-cli/internal/automation"
	"github.com/xkilldash9x/automate-cli/internal/config"
)

// -- Config Mock --

// MockConfig mocks the config.Interface.
type MockConfig struct {
	mock.Mock
}

var _ config.Interface = (*MockConfig)(nil)

// --- Getters ---

func (m *MockConfig) Logger() config.LoggerConfig {
	args := m.Called()
	return args.Get(0).(config.LoggerConfig)
}

func (m *MockConfig) Automation() config.AutomationConfig {
	args := m.Called()
	return args.Get(0).(config.AutomationConfig)
}

func (m *MockConfig) Network() config.NetworkConfig {
	args := m.Called()
	return args.Get(0).(config.NetworkConfig)
}

func (m *MockConfig) Stub() config.StubConfig {
	args := m.Called()
	return args.Get(0).(config.StubConfig)
}

func (m *MockConfig) Snapshot() config.Snapshot {
	args := m.Called()
	return args.Get(0).(config.Snapshot)
}

// --- Setters ---

func (m *MockConfig) SetAutomationEndpoint(e string) { m.Called(e) }

func (m *MockConfig) SetAutomationRequestTimeout(d time.Duration) { m.Called(d) }

func (m *MockConfig) SetNetworkIgnoreTLSErrors(b bool) { m.Called(b) }

// -- Automation Service Mock --

// MockAutomationService mocks automation.Service.
type MockAutomationService struct {
	mock.Mock
}

var _ automation.Service = (*MockAutomationService)(nil)

func (m *MockAutomationService) CheckHealth(ctx context.Context) bool {
	return m.Called(ctx).Bool(0)
}

func (m *MockAutomationService) RunDirect(ctx context.Context, objective string) automation.Result {
	args := m.Called(ctx, objective)
	return args.Get(0).(automation.Result)
}

func (m *MockAutomationService) Execute(ctx context.Context, req automation.ExecutionRequest) automation.Result {
	args := m.Called(ctx, req)
	return args.Get(0).(automation.Result)
}

func (m *MockAutomationService) GenerateActions(ctx context.Context, objective string) ([]automation.Action, error) {
	args := m.Called(ctx, objective)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]automation.Action), args.Error(1)
}

func (m *MockAutomationService) SetEndpoint(address string) { m.Called(address) }
func (m *MockAutomationService) Endpoint() string           { return m.Called().String(0) }
func (m *MockAutomationService) IsConnected() bool          { return m.Called().Bool(0) }

func (m *MockAutomationService) State() automation.ConnectionState {
	return m.Called().Get(0).(automation.ConnectionState)
}

// -- Service Factory Mock --

// MockServiceFactory mocks the factory the CLI uses to build its automation service.
type MockServiceFactory struct {
	mock.Mock
}

func (m *MockServiceFactory) Create(cfg config.Interface, logger *zap.Logger) (automation.Service, error) {
	args := m.Called(cfg, logger)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(automation.Service), args.Error(1)
}
