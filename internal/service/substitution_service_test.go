package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vikarapp/vikar-api/internal/models"
	appErrors "github.com/vikarapp/vikar-api/pkg/errors"
)

type mockSubstitutionRepo struct {
	records   map[string]*models.Substitution
	insertErr error
	renewErr  error
	nextID    int
}

func newMockSubstitutionRepo() *mockSubstitutionRepo {
	return &mockSubstitutionRepo{records: make(map[string]*models.Substitution)}
}

func (m *mockSubstitutionRepo) add(sub models.Substitution) *models.Substitution {
	copied := sub
	m.records[copied.ID] = &copied
	return &copied
}

func (m *mockSubstitutionRepo) Find(_ context.Context, filter models.SubstitutionFilter) ([]models.Substitution, error) {
	var out []models.Substitution
	for _, sub := range m.records {
		if filter.Status != "" && sub.Status != filter.Status {
			continue
		}
		if filter.TeacherUPN != "" && !strings.EqualFold(sub.TeacherUPN, filter.TeacherUPN) {
			continue
		}
		if filter.SubstituteUPN != "" && !strings.EqualFold(sub.SubstituteUPN, filter.SubstituteUPN) {
			continue
		}
		if len(filter.IDs) > 0 {
			found := false
			for _, id := range filter.IDs {
				if id == sub.ID {
					found = true
					break
				}
			}
			if !found {
				continue
			}
		}
		out = append(out, *sub)
	}
	return out, nil
}

func (m *mockSubstitutionRepo) FindPending(_ context.Context) ([]models.Substitution, error) {
	var out []models.Substitution
	for _, sub := range m.records {
		if sub.Status == models.StatusPending {
			out = append(out, *sub)
		}
	}
	return out, nil
}

func (m *mockSubstitutionRepo) FindExpiredActive(_ context.Context, now time.Time) ([]models.Substitution, error) {
	var out []models.Substitution
	for _, sub := range m.records {
		if sub.Status == models.StatusActive && !sub.ExpirationAt.After(now) {
			out = append(out, *sub)
		}
	}
	return out, nil
}

func (m *mockSubstitutionRepo) Insert(_ context.Context, sub *models.Substitution) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	if sub.ID == "" {
		m.nextID++
		sub.ID = fmt.Sprintf("sub-%03d", m.nextID)
	}
	sub.CreatedAt = time.Now().UTC()
	sub.UpdatedAt = sub.CreatedAt
	copied := *sub
	m.records[sub.ID] = &copied
	return nil
}

func (m *mockSubstitutionRepo) Renew(_ context.Context, id string, expiration time.Time, resetToPending bool) error {
	if m.renewErr != nil {
		return m.renewErr
	}
	sub, ok := m.records[id]
	if !ok {
		return errors.New("no such record")
	}
	sub.ExpirationAt = expiration
	sub.RenewalCount++
	if resetToPending {
		sub.Status = models.StatusPending
	}
	return nil
}

func (m *mockSubstitutionRepo) SetStatus(_ context.Context, id, status string) error {
	sub, ok := m.records[id]
	if !ok {
		return errors.New("no such record")
	}
	sub.Status = status
	return nil
}

type mockDirectory struct {
	users   map[string]*models.DirectoryUser
	owned   map[string][]models.DirectoryObject
	owners  map[string][]models.DirectoryUser
	members map[string][]models.DirectoryUser

	addOwnerErr    error
	addedOwners    []string
	removedOwners  []string
	removedMembers []string
}

func newMockDirectory() *mockDirectory {
	return &mockDirectory{
		users:   make(map[string]*models.DirectoryUser),
		owned:   make(map[string][]models.DirectoryObject),
		owners:  make(map[string][]models.DirectoryUser),
		members: make(map[string][]models.DirectoryUser),
	}
}

func (m *mockDirectory) GetUser(_ context.Context, upn string) (*models.DirectoryUser, error) {
	if user, ok := m.users[strings.ToLower(upn)]; ok {
		return user, nil
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
}

func (m *mockDirectory) GetOwnedObjects(_ context.Context, upn string) ([]models.DirectoryObject, error) {
	return m.owned[strings.ToLower(upn)], nil
}

func (m *mockDirectory) GetGroupOwners(_ context.Context, groupID string) ([]models.DirectoryUser, error) {
	return m.owners[groupID], nil
}

func (m *mockDirectory) GetGroupMembers(_ context.Context, groupID string) ([]models.DirectoryUser, error) {
	return m.members[groupID], nil
}

func (m *mockDirectory) AddGroupOwner(_ context.Context, groupID, userID string) error {
	if m.addOwnerErr != nil {
		return m.addOwnerErr
	}
	m.addedOwners = append(m.addedOwners, groupID+":"+userID)
	m.owners[groupID] = append(m.owners[groupID], models.DirectoryUser{ID: userID})
	return nil
}

func (m *mockDirectory) RemoveGroupOwner(_ context.Context, groupID, userID string) error {
	m.removedOwners = append(m.removedOwners, groupID+":"+userID)
	return nil
}

func (m *mockDirectory) RemoveGroupMember(_ context.Context, groupID, userID string) error {
	m.removedMembers = append(m.removedMembers, groupID+":"+userID)
	return nil
}

func (m *mockDirectory) SearchUsersInGroup(_ context.Context, searchTerm, _ string) ([]models.DirectoryUser, error) {
	var out []models.DirectoryUser
	for _, user := range m.users {
		if strings.Contains(strings.ToLower(user.DisplayName), strings.ToLower(searchTerm)) {
			out = append(out, *user)
		}
	}
	return out, nil
}

type stubLocations struct {
	locations map[string][]models.Location
	err       error
}

func (s *stubLocations) PermittedLocations(_ context.Context, schoolName string) ([]models.Location, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.locations[schoolName], nil
}

type stubAudit struct {
	entries []string
}

func (s *stubAudit) TryRecord(_ context.Context, _ models.Invocation, entryType, message string, _ interface{}) {
	s.entries = append(s.entries, entryType+": "+message)
}

type stubStats struct {
	events []string
}

func (s *stubStats) Publish(_ context.Context, teamID, status, _ string) {
	s.events = append(s.events, teamID+":"+status)
}

type stubMetrics struct {
	transitions   map[string]int
	sweepFailures map[string]int
}

func newStubMetrics() *stubMetrics {
	return &stubMetrics{transitions: make(map[string]int), sweepFailures: make(map[string]int)}
}

func (s *stubMetrics) CountTransition(transition string)  { s.transitions[transition]++ }
func (s *stubMetrics) ObserveSweep(string, time.Duration) {}
func (s *stubMetrics) CountSweepFailure(sweep string)     { s.sweepFailures[sweep]++ }

type lifecycleFixture struct {
	svc     *SubstitutionService
	repo    *mockSubstitutionRepo
	dir     *mockDirectory
	audit   *stubAudit
	stats   *stubStats
	metrics *stubMetrics
	now     time.Time
}

func newLifecycleFixture(t *testing.T) *lifecycleFixture {
	t.Helper()
	f := &lifecycleFixture{
		repo:    newMockSubstitutionRepo(),
		dir:     newMockDirectory(),
		audit:   &stubAudit{},
		stats:   &stubStats{},
		metrics: newStubMetrics(),
		now:     time.Date(2025, time.September, 1, 10, 30, 0, 0, time.UTC),
	}
	locations := &stubLocations{locations: map[string][]models.Location{
		"North School": {{ID: "loc-1", Name: "North School"}},
	}}
	f.svc = NewSubstitutionService(f.repo, f.dir, locations, f.audit, f.stats, f.metrics, nil, 0, 2, 1, nil, zap.NewNop())
	f.svc.now = func() time.Time { return f.now }
	return f
}

func (f *lifecycleFixture) seedDirectory() {
	f.dir.users["teacher@school.no"] = &models.DirectoryUser{
		ID: "t-1", DisplayName: "Terje Teacher", UserPrincipalName: "teacher@school.no", CompanyName: "North School",
	}
	f.dir.users["sub@school.no"] = &models.DirectoryUser{
		ID: "s-1", DisplayName: "Siri Substitute", UserPrincipalName: "sub@school.no", CompanyName: "North School",
	}
	f.dir.owned["teacher@school.no"] = []models.DirectoryObject{
		{ID: "team-1", DisplayName: "9A Math", Mail: "section_9a-math", ODataType: models.GroupODataType},
	}
}

func adminRequestor() *models.Requestor {
	return &models.Requestor{UPN: "admin@school.no", Company: "North School", Roles: []string{models.RoleAdmin}}
}

func teacherRequestor() *models.Requestor {
	return &models.Requestor{UPN: "teacher@school.no", Company: "North School"}
}

func substituteRequestor() *models.Requestor {
	return &models.Requestor{UPN: "sub@school.no", Company: "North School"}
}

func batchOf(entries ...SubstitutionEntry) CreateBatchRequest {
	return CreateBatchRequest{Substitutions: entries}
}

func singleEntry() SubstitutionEntry {
	return SubstitutionEntry{TeacherUPN: "teacher@school.no", SubstituteUPN: "sub@school.no", TeamID: "team-1"}
}

func TestCreateBatchCreatesAndActivates(t *testing.T) {
	f := newLifecycleFixture(t)
	f.seedDirectory()
	inv := models.NewHTTPInvocation("req-1", "POST", "/substitutions", "/substitutions", "", adminRequestor())

	result, err := f.svc.CreateBatch(context.Background(), inv, batchOf(singleEntry()))
	require.NoError(t, err)
	require.Len(t, result.Entries, 1)
	assert.Equal(t, models.OutcomeCreated, result.Entries[0].Outcome)
	assert.False(t, result.Rejected())

	created := result.Entries[0].Substitution
	require.NotNil(t, created)
	assert.Equal(t, "9a-math", created.TeamSDSID)

	// Expiration lands two days out at the configured hour.
	expected := time.Date(2025, time.September, 3, 1, 0, 0, 0, time.UTC)
	assert.Equal(t, expected, created.ExpirationAt)

	// The inline activation already granted ownership.
	assert.Equal(t, []string{"team-1:s-1"}, f.dir.addedOwners)
	assert.Equal(t, models.StatusActive, f.repo.records[created.ID].Status)
	assert.Equal(t, []string{"team-1:active"}, f.stats.events)
}

func TestCreateBatchStaysPendingWhenGrantFails(t *testing.T) {
	f := newLifecycleFixture(t)
	f.seedDirectory()
	f.dir.addOwnerErr = appErrors.Clone(appErrors.ErrReconciliation, "directory down")
	inv := models.NewHTTPInvocation("req-1", "POST", "/substitutions", "/substitutions", "", adminRequestor())

	result, err := f.svc.CreateBatch(context.Background(), inv, batchOf(singleEntry()))
	require.NoError(t, err)
	require.Len(t, result.Entries, 1)
	assert.Equal(t, models.OutcomeCreated, result.Entries[0].Outcome)

	created := result.Entries[0].Substitution
	assert.Equal(t, models.StatusPending, f.repo.records[created.ID].Status)
}

func TestCreateBatchRejectsSelfSubstitution(t *testing.T) {
	f := newLifecycleFixture(t)
	f.seedDirectory()
	inv := models.NewHTTPInvocation("req-1", "POST", "/substitutions", "/substitutions", "", adminRequestor())

	entry := singleEntry()
	entry.SubstituteUPN = "Teacher@School.NO"
	_, err := f.svc.CreateBatch(context.Background(), inv, batchOf(entry))
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation.Code))
}

func TestCreateBatchNonAdminMustBeTheSubstitute(t *testing.T) {
	f := newLifecycleFixture(t)
	f.seedDirectory()
	requestor := &models.Requestor{UPN: "other@school.no", Company: "North School"}
	inv := models.NewHTTPInvocation("req-1", "POST", "/substitutions", "/substitutions", "", requestor)

	_, err := f.svc.CreateBatch(context.Background(), inv, batchOf(singleEntry()))
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden.Code))
}

func TestCreateBatchSubstituteMayRequestForSelf(t *testing.T) {
	f := newLifecycleFixture(t)
	f.seedDirectory()
	inv := models.NewHTTPInvocation("req-1", "POST", "/substitutions", "/substitutions", "", substituteRequestor())

	result, err := f.svc.CreateBatch(context.Background(), inv, batchOf(singleEntry()))
	require.NoError(t, err)
	require.Len(t, result.Entries, 1)
	assert.Equal(t, models.OutcomeCreated, result.Entries[0].Outcome)
	assert.Equal(t, []string{"team-1:s-1"}, f.dir.addedOwners)
}

func TestCreateBatchPermittedLocationGate(t *testing.T) {
	f := newLifecycleFixture(t)
	f.seedDirectory()
	f.dir.users["teacher@school.no"].CompanyName = "South School"
	inv := models.NewHTTPInvocation("req-1", "POST", "/substitutions", "/substitutions", "", substituteRequestor())

	_, err := f.svc.CreateBatch(context.Background(), inv, batchOf(singleEntry()))
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden.Code))
	assert.Empty(t, f.repo.records)
}

func TestCreateBatchLocationsResolvedFromSubstituteProfile(t *testing.T) {
	f := newLifecycleFixture(t)
	f.seedDirectory()
	// The token claim is stale; the directory profile decides.
	requestor := substituteRequestor()
	requestor.Company = "South School"
	inv := models.NewHTTPInvocation("req-1", "POST", "/substitutions", "/substitutions", "", requestor)

	result, err := f.svc.CreateBatch(context.Background(), inv, batchOf(singleEntry()))
	require.NoError(t, err)
	require.Len(t, result.Entries, 1)
	assert.Equal(t, models.OutcomeCreated, result.Entries[0].Outcome)
}

func TestCreateBatchRejectsSubstituteWithoutLocations(t *testing.T) {
	f := newLifecycleFixture(t)
	f.seedDirectory()
	f.dir.users["sub@school.no"].CompanyName = "South School"
	inv := models.NewHTTPInvocation("req-1", "POST", "/substitutions", "/substitutions", "", substituteRequestor())

	_, err := f.svc.CreateBatch(context.Background(), inv, batchOf(singleEntry()))
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden.Code))
	assert.Contains(t, err.Error(), "permitted locations")
}

func TestCreateBatchUnknownSubstitute(t *testing.T) {
	f := newLifecycleFixture(t)
	f.seedDirectory()
	delete(f.dir.users, "sub@school.no")
	inv := models.NewHTTPInvocation("req-1", "POST", "/substitutions", "/substitutions", "", adminRequestor())

	_, err := f.svc.CreateBatch(context.Background(), inv, batchOf(singleEntry()))
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation.Code))
}

func TestCreateBatchTeamNotOwned(t *testing.T) {
	f := newLifecycleFixture(t)
	f.seedDirectory()
	entry := singleEntry()
	entry.TeamID = "team-missing"
	inv := models.NewHTTPInvocation("req-1", "POST", "/substitutions", "/substitutions", "", adminRequestor())

	_, err := f.svc.CreateBatch(context.Background(), inv, batchOf(entry))
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation.Code))
}

func TestCreateBatchGateFailureLeavesNoPartialWrites(t *testing.T) {
	f := newLifecycleFixture(t)
	f.seedDirectory()
	f.dir.users["sub2@school.no"] = &models.DirectoryUser{
		ID: "s-2", DisplayName: "Stein Substitute", UserPrincipalName: "sub2@school.no", CompanyName: "North School",
	}
	inv := models.NewHTTPInvocation("req-1", "POST", "/substitutions", "/substitutions", "", adminRequestor())

	second := singleEntry()
	second.SubstituteUPN = "sub2@school.no"
	second.TeamID = "team-missing"
	result, err := f.svc.CreateBatch(context.Background(), inv, batchOf(singleEntry(), second))

	// The second entry fails its ownership gate, so the first entry must
	// not have been persisted or granted either.
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation.Code))
	assert.Nil(t, result)
	assert.Empty(t, f.repo.records)
	assert.Empty(t, f.dir.addedOwners)
}

func TestCreateBatchRejectsNonClassTeam(t *testing.T) {
	f := newLifecycleFixture(t)
	f.seedDirectory()
	f.dir.owned["teacher@school.no"] = []models.DirectoryObject{
		{ID: "team-1", DisplayName: "Staff", Mail: "staff-group", ODataType: models.GroupODataType},
	}
	inv := models.NewHTTPInvocation("req-1", "POST", "/substitutions", "/substitutions", "", adminRequestor())

	_, err := f.svc.CreateBatch(context.Background(), inv, batchOf(singleEntry()))
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation.Code))
}

func TestCreateBatchRenewsActiveRecord(t *testing.T) {
	f := newLifecycleFixture(t)
	f.seedDirectory()
	existing := f.repo.add(models.Substitution{
		ID: "sub-1", Status: models.StatusActive,
		TeacherUPN: "teacher@school.no", SubstituteUPN: "sub@school.no",
		SubstituteID: "s-1", TeamID: "team-1", RenewalCount: 1,
		ExpirationAt: f.now.Add(12 * time.Hour),
	})
	inv := models.NewHTTPInvocation("req-1", "POST", "/substitutions", "/substitutions", "", adminRequestor())

	result, err := f.svc.CreateBatch(context.Background(), inv, batchOf(singleEntry()))
	require.NoError(t, err)
	require.Len(t, result.Entries, 1)
	assert.Equal(t, models.OutcomeRenewed, result.Entries[0].Outcome)

	renewed := f.repo.records[existing.ID]
	assert.Equal(t, models.StatusActive, renewed.Status)
	assert.Equal(t, 2, renewed.RenewalCount)
	assert.Equal(t, time.Date(2025, time.September, 3, 1, 0, 0, 0, time.UTC), renewed.ExpirationAt)
	// Renewal keeps the existing record; nothing new is granted.
	assert.Empty(t, f.dir.addedOwners)
}

func TestCreateBatchRenewsExpiredRecord(t *testing.T) {
	f := newLifecycleFixture(t)
	f.seedDirectory()
	existing := f.repo.add(models.Substitution{
		ID: "sub-1", Status: models.StatusExpired,
		TeacherUPN: "teacher@school.no", SubstituteUPN: "sub@school.no",
		SubstituteID: "s-1", TeamID: "team-1", RenewalCount: 3,
		ExpirationAt: f.now.Add(-24 * time.Hour),
	})
	inv := models.NewHTTPInvocation("req-1", "POST", "/substitutions", "/substitutions", "", adminRequestor())

	result, err := f.svc.CreateBatch(context.Background(), inv, batchOf(singleEntry()))
	require.NoError(t, err)
	require.Len(t, result.Entries, 1)
	assert.Equal(t, models.OutcomeRenewedExpired, result.Entries[0].Outcome)

	renewed := f.repo.records[existing.ID]
	assert.Equal(t, 4, renewed.RenewalCount)
	// Reset to pending, then re-granted straight away.
	assert.Equal(t, models.StatusActive, renewed.Status)
	assert.Equal(t, []string{"team-1:s-1"}, f.dir.addedOwners)
}

func TestCreateBatchAbortRejectsRemainingEntries(t *testing.T) {
	f := newLifecycleFixture(t)
	f.seedDirectory()
	f.dir.users["sub2@school.no"] = &models.DirectoryUser{
		ID: "s-2", DisplayName: "Stein Substitute", UserPrincipalName: "sub2@school.no", CompanyName: "North School",
	}
	f.repo.insertErr = errors.New("connection reset")
	inv := models.NewHTTPInvocation("req-1", "POST", "/substitutions", "/substitutions", "", adminRequestor())

	second := singleEntry()
	second.SubstituteUPN = "sub2@school.no"
	result, err := f.svc.CreateBatch(context.Background(), inv, batchOf(singleEntry(), second))
	require.Error(t, err)
	require.NotNil(t, result)
	require.Len(t, result.Entries, 2)
	assert.Equal(t, models.OutcomeRejected, result.Entries[0].Outcome)
	assert.Equal(t, models.OutcomeRejected, result.Entries[1].Outcome)
	assert.True(t, result.Rejected())
}

func TestActivateSweepGrantsAllPending(t *testing.T) {
	f := newLifecycleFixture(t)
	f.repo.add(models.Substitution{ID: "sub-1", Status: models.StatusPending, SubstituteID: "s-1", TeamID: "team-1"})
	f.repo.add(models.Substitution{ID: "sub-2", Status: models.StatusPending, SubstituteID: "s-2", TeamID: "team-2"})
	inv := models.NewTimerInvocation("timer-1", "activation-sweep")

	result, err := f.svc.Activate(context.Background(), inv, false)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Processed)
	assert.Equal(t, 2, result.Transitions)
	assert.Zero(t, result.Failed)
	assert.Equal(t, models.StatusActive, f.repo.records["sub-1"].Status)
	assert.Equal(t, models.StatusActive, f.repo.records["sub-2"].Status)

	// A second pass finds nothing to do.
	again, err := f.svc.Activate(context.Background(), inv, false)
	require.NoError(t, err)
	assert.Zero(t, again.Processed)
}

func TestActivateOnlyFirstStopsAfterOneRecord(t *testing.T) {
	f := newLifecycleFixture(t)
	f.repo.add(models.Substitution{ID: "sub-1", Status: models.StatusPending, SubstituteID: "s-1", TeamID: "team-1"})
	f.repo.add(models.Substitution{ID: "sub-2", Status: models.StatusPending, SubstituteID: "s-2", TeamID: "team-2"})
	inv := models.NewTimerInvocation("timer-1", "activation-sweep")

	result, err := f.svc.Activate(context.Background(), inv, true)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 1, result.Transitions)
}

func TestActivateSweepContainsPerRecordFailures(t *testing.T) {
	f := newLifecycleFixture(t)
	f.repo.add(models.Substitution{ID: "sub-1", Status: models.StatusPending, SubstituteID: "s-1", TeamID: "team-1"})
	f.dir.addOwnerErr = appErrors.Clone(appErrors.ErrReconciliation, "directory down")
	inv := models.NewTimerInvocation("timer-1", "activation-sweep")

	result, err := f.svc.Activate(context.Background(), inv, false)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 1, result.Failed)
	assert.Zero(t, result.Transitions)
	assert.Equal(t, models.StatusPending, f.repo.records["sub-1"].Status)
	assert.Equal(t, 1, f.metrics.sweepFailures[SweepActivation])
}

func TestDeactivateRemovesOwnershipAndMembership(t *testing.T) {
	f := newLifecycleFixture(t)
	f.repo.add(models.Substitution{
		ID: "sub-1", Status: models.StatusActive, SubstituteID: "s-1", TeamID: "team-1",
		ExpirationAt: f.now.Add(-time.Hour),
	})
	f.dir.owners["team-1"] = []models.DirectoryUser{{ID: "s-1"}}
	f.dir.members["team-1"] = []models.DirectoryUser{{ID: "s-1"}}
	inv := models.NewTimerInvocation("timer-1", "deactivation-sweep-nightly")

	result, err := f.svc.Deactivate(context.Background(), inv)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Transitions)
	assert.Equal(t, []string{"team-1:s-1"}, f.dir.removedOwners)
	assert.Equal(t, []string{"team-1:s-1"}, f.dir.removedMembers)
	assert.Equal(t, models.StatusExpired, f.repo.records["sub-1"].Status)
	assert.Equal(t, []string{"team-1:expired"}, f.stats.events)
}

func TestDeactivateMarksExpiredWithoutAccess(t *testing.T) {
	f := newLifecycleFixture(t)
	f.repo.add(models.Substitution{
		ID: "sub-1", Status: models.StatusActive, SubstituteID: "s-1", TeamID: "team-1",
		ExpirationAt: f.now.Add(-time.Hour),
	})
	inv := models.NewTimerInvocation("timer-1", "deactivation-sweep-nightly")

	result, err := f.svc.Deactivate(context.Background(), inv)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Transitions)
	assert.Empty(t, f.dir.removedOwners)
	assert.Empty(t, f.dir.removedMembers)
	assert.Equal(t, models.StatusExpired, f.repo.records["sub-1"].Status)
}

func TestDeactivateSkipsUnexpiredRecords(t *testing.T) {
	f := newLifecycleFixture(t)
	f.repo.add(models.Substitution{
		ID: "sub-1", Status: models.StatusActive, SubstituteID: "s-1", TeamID: "team-1",
		ExpirationAt: f.now.Add(time.Hour),
	})
	inv := models.NewTimerInvocation("timer-1", "deactivation-sweep-nightly")

	result, err := f.svc.Deactivate(context.Background(), inv)
	require.NoError(t, err)
	assert.Zero(t, result.Processed)
	assert.Equal(t, models.StatusActive, f.repo.records["sub-1"].Status)
}

func TestDeactivateByIDsIgnoresExpiration(t *testing.T) {
	f := newLifecycleFixture(t)
	f.repo.add(models.Substitution{
		ID: "sub-1", Status: models.StatusActive, SubstituteID: "s-1", TeamID: "team-1",
		ExpirationAt: f.now.Add(48 * time.Hour),
	})
	f.dir.owners["team-1"] = []models.DirectoryUser{{ID: "s-1"}}
	inv := models.NewHTTPInvocation("req-1", "PUT", "/substitutions/deactivate", "/substitutions/deactivate", "", adminRequestor())

	result, err := f.svc.DeactivateByIDs(context.Background(), inv, []string{"sub-1"})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Transitions)
	assert.Equal(t, models.StatusExpired, f.repo.records["sub-1"].Status)
}

func TestDeactivateByIDsAlreadyExpiredEmitsNoEvent(t *testing.T) {
	f := newLifecycleFixture(t)
	f.repo.add(models.Substitution{
		ID: "sub-1", Status: models.StatusExpired, SubstituteID: "s-1", TeamID: "team-1",
		ExpirationAt: f.now.Add(-24 * time.Hour),
	})
	inv := models.NewHTTPInvocation("req-1", "PUT", "/substitutions/deactivate", "/substitutions/deactivate", "", adminRequestor())

	result, err := f.svc.DeactivateByIDs(context.Background(), inv, []string{"sub-1"})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)
	assert.Zero(t, result.Transitions)
	assert.Empty(t, f.stats.events)
}

func TestDeactivateByIDsUnknownRecord(t *testing.T) {
	f := newLifecycleFixture(t)
	inv := models.NewHTTPInvocation("req-1", "PUT", "/substitutions/deactivate", "/substitutions/deactivate", "", adminRequestor())

	_, err := f.svc.DeactivateByIDs(context.Background(), inv, []string{"sub-404"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound.Code))
}

func TestListNonAdminDefaultsToOwnRecords(t *testing.T) {
	f := newLifecycleFixture(t)
	f.repo.add(models.Substitution{ID: "sub-1", Status: models.StatusActive, TeacherUPN: "teacher@school.no", SubstituteUPN: "sub@school.no"})
	f.repo.add(models.Substitution{ID: "sub-2", Status: models.StatusActive, TeacherUPN: "other@school.no", SubstituteUPN: "sub@school.no"})

	subs, err := f.svc.List(context.Background(), teacherRequestor(), models.SubstitutionFilter{})
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "sub-1", subs[0].ID)
}

func TestListNonAdminCannotQueryOthers(t *testing.T) {
	f := newLifecycleFixture(t)

	_, err := f.svc.List(context.Background(), teacherRequestor(), models.SubstitutionFilter{TeacherUPN: "other@school.no"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden.Code))
}

func TestListAdminSeesEverything(t *testing.T) {
	f := newLifecycleFixture(t)
	f.repo.add(models.Substitution{ID: "sub-1", Status: models.StatusActive, TeacherUPN: "teacher@school.no"})
	f.repo.add(models.Substitution{ID: "sub-2", Status: models.StatusExpired, TeacherUPN: "other@school.no"})

	subs, err := f.svc.List(context.Background(), adminRequestor(), models.SubstitutionFilter{})
	require.NoError(t, err)
	assert.Len(t, subs, 2)
}
