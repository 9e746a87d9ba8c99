package workflow

import (
	"context"
	"errors"
	"sync"
	"testing"

	"archie-core-shopify-sync/internal/application"
	"archie-core-shopify-sync/internal/domain"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"
)

type fakeOwners struct {
	owners  []string
	pending map[string]*domain.SyncLogEntry
}

func (f *fakeOwners) ListActiveOwners(context.Context) ([]string, error) {
	return f.owners, nil
}

func (f *fakeOwners) PendingOrdersRun(_ context.Context, ownerID string) (*domain.SyncLogEntry, error) {
	return f.pending[ownerID], nil
}

// fakeEngine serves pageCount pages of 250 orders for every owner
type fakeEngine struct {
	mu        sync.Mutex
	pageCount int
	failOwner string
	failErr   error
	requests  []application.SyncOrdersRequest
}

func (f *fakeEngine) SyncOrdersPage(_ context.Context, req application.SyncOrdersRequest) (*domain.SyncPageResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if req.OwnerID == f.failOwner {
		return nil, f.failErr
	}

	page := 1
	if req.Cursor != "" {
		page = int(req.Cursor[len(req.Cursor)-1]-'0') + 1
	}
	logID := req.LogID
	if logID == "" {
		logID = "log-" + req.OwnerID
	}
	result := &domain.SyncPageResult{Processed: 250, TotalProcessed: 250 * page, LogID: logID}
	if page >= f.pageCount {
		result.Completed = true
		return result, nil
	}
	result.NextCursor = "cursor-" + string(rune('0'+page))
	return result, nil
}

func (f *fakeEngine) SyncProducts(_ context.Context, req application.SyncProductsRequest) (*domain.SyncPageResult, error) {
	return &domain.SyncPageResult{Processed: 7, TotalProcessed: 7, LogID: "products-" + req.OwnerID, Completed: true}, nil
}

func (f *fakeEngine) requestsFor(ownerID string) []application.SyncOrdersRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []application.SyncOrdersRequest
	for _, r := range f.requests {
		if r.OwnerID == ownerID {
			out = append(out, r)
		}
	}
	return out
}

type FleetSyncWorkflowSuite struct {
	suite.Suite
	testsuite.WorkflowTestSuite

	env    *testsuite.TestWorkflowEnvironment
	owners *fakeOwners
	engine *fakeEngine
}

func (s *FleetSyncWorkflowSuite) SetupTest() {
	s.env = s.NewTestWorkflowEnvironment()
	s.owners = &fakeOwners{owners: []string{"owner-a", "owner-b", "owner-c"}, pending: map[string]*domain.SyncLogEntry{}}
	s.engine = &fakeEngine{pageCount: 2}
	Register(s.env, NewActivities(s.owners, s.engine, zerolog.Nop()))
}

func (s *FleetSyncWorkflowSuite) AfterTest(_, _ string) {
	s.env.AssertExpectations(s.T())
}

func (s *FleetSyncWorkflowSuite) run(input FleetSyncInput) application.FleetSyncResult {
	s.env.ExecuteWorkflow(FleetSyncWorkflowName, input)
	s.Require().True(s.env.IsWorkflowCompleted())
	s.Require().NoError(s.env.GetWorkflowError())

	var result application.FleetSyncResult
	s.Require().NoError(s.env.GetWorkflowResult(&result))
	return result
}

func (s *FleetSyncWorkflowSuite) TestDrainsEveryOwner() {
	result := s.run(FleetSyncInput{Mode: domain.SyncModeAuto, Concurrency: 2})

	s.Equal(3, result.Owners)
	s.Equal(3, result.Succeeded)
	s.Equal(0, result.Failed)
	for i, owner := range []string{"owner-a", "owner-b", "owner-c"} {
		r := result.Results[i]
		s.Equal(owner, r.OwnerID)
		s.Equal(500, r.OrdersProcessed)
		s.Equal(7, r.ProductsProcessed)
		s.Equal(2, r.Pages)
	}

	requests := s.engine.requestsFor("owner-b")
	s.Require().Len(requests, 2)
	s.Equal("", requests[0].Cursor)
	s.Equal("", requests[0].LogID)
	s.Equal("cursor-1", requests[1].Cursor)
	s.Equal("log-owner-b", requests[1].LogID)
	s.Equal(domain.SyncModeAuto, requests[1].Mode)
	s.Equal("cron", requests[1].InitiatedBy)
}

func (s *FleetSyncWorkflowSuite) TestResumesPendingRun() {
	s.owners.owners = []string{"owner-a"}
	s.owners.pending["owner-a"] = &domain.SyncLogEntry{ID: "log-old", Cursor: "cursor-1", Status: domain.SyncStatusInProgress}

	result := s.run(FleetSyncInput{})
	s.Equal(1, result.Succeeded)
	s.Equal(1, result.Results[0].Pages)

	requests := s.engine.requestsFor("owner-a")
	s.Require().Len(requests, 1)
	s.Equal("log-old", requests[0].LogID)
	s.Equal("cursor-1", requests[0].Cursor)
	s.Equal(domain.SyncModeManual, requests[0].Mode)
}

func (s *FleetSyncWorkflowSuite) TestOwnerFailureIsIsolated() {
	s.engine.failOwner = "owner-b"
	s.engine.failErr = &domain.AuthenticationError{Status: 401, Message: "token revoked"}

	result := s.run(FleetSyncInput{Concurrency: 1})
	s.Equal(2, result.Succeeded)
	s.Equal(1, result.Failed)
	s.Equal(string(domain.SyncStatusError), result.Results[1].Status)
	s.Contains(result.Results[1].Error, "token revoked")

	// non-retryable: a single attempt
	s.Len(s.engine.requestsFor("owner-b"), 1)
}

func (s *FleetSyncWorkflowSuite) TestMaxPagesGuard() {
	s.owners.owners = []string{"owner-a"}
	s.engine.pageCount = 10

	result := s.run(FleetSyncInput{MaxPages: 3})
	s.Equal(1, result.Failed)
	s.Equal(3, result.Results[0].Pages)
	s.Equal(750, result.Results[0].OrdersProcessed)
	s.Contains(result.Results[0].Error, application.ErrMaxPagesReached.Error())
}

func (s *FleetSyncWorkflowSuite) TestProductsFailure() {
	s.owners.owners = []string{"owner-a"}
	s.env.OnActivity(SyncProductsActivityName, mock.Anything, mock.Anything).
		Return(domain.SyncPageResult{}, temporal.NewNonRetryableApplicationError("store unavailable", ErrTypeConfiguration, nil)).
		Once()

	result := s.run(FleetSyncInput{})
	s.Equal(1, result.Failed)
	s.Equal(500, result.Results[0].OrdersProcessed)
	s.Contains(result.Results[0].Error, "store unavailable")
}

func (s *FleetSyncWorkflowSuite) TestNoOwners() {
	s.owners.owners = nil
	result := s.run(FleetSyncInput{})
	s.Equal(0, result.Owners)
	s.Empty(result.Results)
}

func TestFleetSyncWorkflowSuite(t *testing.T) {
	suite.Run(t, new(FleetSyncWorkflowSuite))
}

func TestActivityError(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		wantType     string
		nonRetryable bool
	}{
		{"auth", &domain.AuthenticationError{Status: 401}, ErrTypeReconnectRequired, true},
		{"validation", domain.NewValidationError("cursor", "log_id required"), ErrTypeInvalidRequest, true},
		{"unknown log", domain.ErrSyncLogNotFound, ErrTypeInvalidRequest, true},
		{"no connection", domain.ErrNoConnection, ErrTypeNoConnection, true},
		{"closed run", domain.ErrSyncRunClosed, ErrTypeSyncRunClosed, true},
		{"configuration", domain.NewConfigurationError("ENCRYPTION_KEY", "missing"), ErrTypeConfiguration, true},
		{"rate limited", &domain.RateLimitError{}, ErrTypeRateLimited, false},
		{"in progress", domain.ErrSyncInProgress, ErrTypeSyncInProgress, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var appErr *temporal.ApplicationError
			require.True(t, errors.As(activityError(tt.err), &appErr))
			assert.Equal(t, tt.wantType, appErr.Type())
			assert.Equal(t, tt.nonRetryable, appErr.NonRetryable())
		})
	}

	plain := errors.New("socket closed")
	assert.Equal(t, plain, activityError(plain))
}
