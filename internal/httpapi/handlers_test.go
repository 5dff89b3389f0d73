package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"casedesk.io/internal/audit"
	"casedesk.io/internal/cases"
	"casedesk.io/internal/coverage"
	"casedesk.io/internal/customers"
	"casedesk.io/internal/identity"
	"casedesk.io/internal/sla"
)

// --- in-memory stores ---

type fakeIdentityStore struct {
	users       map[int64]identity.User
	roles       map[int64]identity.Role
	assignments map[int64][]int64
	coverage    map[int64][]int64
	nextUserID  int64
	nextRoleID  int64
}

func newFakeIdentityStore() *fakeIdentityStore {
	return &fakeIdentityStore{
		users:       make(map[int64]identity.User),
		roles:       make(map[int64]identity.Role),
		assignments: make(map[int64][]int64),
		coverage:    make(map[int64][]int64),
		nextUserID:  1,
		nextRoleID:  1,
	}
}

func (f *fakeIdentityStore) CreateUser(_ context.Context, u *identity.User) error {
	for _, existing := range f.users {
		if existing.Username == u.Username {
			return identity.ErrConflict
		}
	}
	u.ID = f.nextUserID
	f.nextUserID++
	f.users[u.ID] = *u
	return nil
}

func (f *fakeIdentityStore) FindUser(_ context.Context, id int64) (identity.User, error) {
	u, ok := f.users[id]
	if !ok {
		return identity.User{}, identity.ErrNotFound
	}
	return u, nil
}

func (f *fakeIdentityStore) FindUserByUsername(_ context.Context, username string) (identity.User, error) {
	for _, u := range f.users {
		if u.Username == username {
			return u, nil
		}
	}
	return identity.User{}, identity.ErrNotFound
}

func (f *fakeIdentityStore) DeactivateUser(_ context.Context, id int64) error {
	u, ok := f.users[id]
	if !ok {
		return identity.ErrNotFound
	}
	u.IsActive = false
	f.users[id] = u
	return nil
}

func (f *fakeIdentityStore) CreateRole(_ context.Context, role *identity.Role) error {
	role.ID = f.nextRoleID
	f.nextRoleID++
	f.roles[role.ID] = *role
	return nil
}

func (f *fakeIdentityStore) FindRole(_ context.Context, id int64) (identity.Role, error) {
	role, ok := f.roles[id]
	if !ok {
		return identity.Role{}, identity.ErrNotFound
	}
	return role, nil
}

func (f *fakeIdentityStore) RolesForUser(_ context.Context, userID int64) ([]identity.Role, error) {
	var roles []identity.Role
	for _, roleID := range f.assignments[userID] {
		roles = append(roles, f.roles[roleID])
	}
	return roles, nil
}

func (f *fakeIdentityStore) AssignRole(_ context.Context, userID, roleID int64) error {
	f.assignments[userID] = append(f.assignments[userID], roleID)
	return nil
}

func (f *fakeIdentityStore) AddCoverage(_ context.Context, roleID, customerID int64) error {
	for _, id := range f.coverage[roleID] {
		if id == customerID {
			return identity.ErrConflict
		}
	}
	f.coverage[roleID] = append(f.coverage[roleID], customerID)
	return nil
}

func (f *fakeIdentityStore) RemoveCoverage(_ context.Context, roleID, customerID int64) error {
	ids := f.coverage[roleID]
	for i, id := range ids {
		if id == customerID {
			f.coverage[roleID] = append(ids[:i], ids[i+1:]...)
			return nil
		}
	}
	return identity.ErrNotFound
}

func (f *fakeIdentityStore) CoverageForRole(_ context.Context, roleID int64) ([]int64, error) {
	return f.coverage[roleID], nil
}

func (f *fakeIdentityStore) RoleIDsForUser(_ context.Context, userID int64) ([]int64, error) {
	return f.assignments[userID], nil
}

type fakeCaseStore struct {
	nextID    int64
	nextRelID int64
	cases     map[int64]cases.Case
	relations map[int64]cases.Relationship
}

func newFakeCaseStore() *fakeCaseStore {
	return &fakeCaseStore{
		nextID:    1,
		nextRelID: 1,
		cases:     make(map[int64]cases.Case),
		relations: make(map[int64]cases.Relationship),
	}
}

func (f *fakeCaseStore) Create(_ context.Context, c *cases.Case) error {
	c.ID = f.nextID
	f.nextID++
	f.cases[c.ID] = *c
	return nil
}

func (f *fakeCaseStore) Find(_ context.Context, id int64) (cases.Case, error) {
	c, ok := f.cases[id]
	if !ok {
		return cases.Case{}, cases.ErrNotFound
	}
	return c, nil
}

func (f *fakeCaseStore) List(_ context.Context, customerIDs []int64, unrestricted bool, q cases.ListQuery) ([]cases.Case, error) {
	var out []cases.Case
	for _, c := range f.cases {
		if !unrestricted {
			allowed := false
			for _, id := range customerIDs {
				if id == c.CustomerID {
					allowed = true
					break
				}
			}
			if !allowed {
				continue
			}
		}
		if q.CustomerID != nil && c.CustomerID != *q.CustomerID {
			continue
		}
		if q.Status != nil && c.Status != *q.Status {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeCaseStore) Save(_ context.Context, c *cases.Case) error {
	if _, ok := f.cases[c.ID]; !ok {
		return cases.ErrNotFound
	}
	f.cases[c.ID] = *c
	return nil
}

func (f *fakeCaseStore) CreateRelationshipPair(_ context.Context, forward, reverse *cases.Relationship) error {
	for _, r := range f.relations {
		if r.SourceCaseID == forward.SourceCaseID && r.RelatedCaseID == forward.RelatedCaseID && r.Type == forward.Type {
			return cases.ErrConflict
		}
	}
	forward.ID = f.nextRelID
	f.nextRelID++
	reverse.ID = f.nextRelID
	f.nextRelID++
	f.relations[forward.ID] = *forward
	f.relations[reverse.ID] = *reverse
	return nil
}

func (f *fakeCaseStore) DeleteRelationshipPair(_ context.Context, a, b int64, relType string) (int64, error) {
	var deleted int64
	for id, r := range f.relations {
		match := r.Type == relType &&
			((r.SourceCaseID == a && r.RelatedCaseID == b) || (r.SourceCaseID == b && r.RelatedCaseID == a))
		if match {
			delete(f.relations, id)
			deleted++
		}
	}
	return deleted, nil
}

func (f *fakeCaseStore) FindRelationship(_ context.Context, id int64) (cases.Relationship, error) {
	r, ok := f.relations[id]
	if !ok {
		return cases.Relationship{}, cases.ErrNotFound
	}
	return r, nil
}

func (f *fakeCaseStore) RelationshipsForCase(_ context.Context, caseID int64) ([]cases.Relationship, error) {
	var out []cases.Relationship
	for _, r := range f.relations {
		if r.SourceCaseID == caseID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeCaseStore) CountOpenRelated(_ context.Context, caseID int64) (int, error) {
	linked := make(map[int64]struct{})
	for _, r := range f.relations {
		if r.SourceCaseID == caseID {
			linked[r.RelatedCaseID] = struct{}{}
		}
		if r.RelatedCaseID == caseID {
			linked[r.SourceCaseID] = struct{}{}
		}
	}
	count := 0
	for id := range linked {
		c, ok := f.cases[id]
		if !ok {
			continue
		}
		if c.Status != cases.StatusClosed && c.Status != cases.StatusResolved {
			count++
		}
	}
	return count, nil
}

type fakeCustomerStore struct {
	customers map[int64]customers.Customer
}

func (f *fakeCustomerStore) Find(_ context.Context, id int64) (customers.Customer, error) {
	c, ok := f.customers[id]
	if !ok {
		return customers.Customer{}, customers.ErrNotFound
	}
	return c, nil
}

func (f *fakeCustomerStore) List(_ context.Context, ids []int64, unrestricted bool) ([]customers.Customer, error) {
	out := []customers.Customer{}
	for _, c := range f.customers {
		if unrestricted {
			out = append(out, c)
			continue
		}
		for _, id := range ids {
			if id == c.ID {
				out = append(out, c)
				break
			}
		}
	}
	return out, nil
}

type fakeSLAStore struct {
	thresholds []sla.Threshold
}

func (f *fakeSLAStore) ActiveThresholds(_ context.Context) ([]sla.Threshold, error) {
	return f.thresholds, nil
}

func (f *fakeSLAStore) UpsertThresholds(_ context.Context, thresholds []sla.Threshold) error {
	f.thresholds = thresholds
	return nil
}

type fakeAuditStore struct {
	entries []audit.Entry
}

func (f *fakeAuditStore) Append(_ context.Context, e *audit.Entry) error {
	f.entries = append(f.entries, *e)
	return nil
}

func (f *fakeAuditStore) List(_ context.Context, q audit.Query) ([]audit.Entry, error) {
	out := []audit.Entry{}
	for _, e := range f.entries {
		if q.Username != "" && e.Username != q.Username {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (f *fakeAuditStore) DeleteExpired(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

// --- harness ---

type testEnv struct {
	api      *API
	identity *fakeIdentityStore
	cases    *fakeCaseStore
	audits   *fakeAuditStore

	agentToken string
	adminToken string
}

// newTestEnv seeds two customers, an agent whose role covers customer 1
// only, and an admin whose role has no coverage rows (unrestricted) plus
// Admin:FullControl.
func newTestEnv(t *testing.T, devActor *identity.Actor) *testEnv {
	t.Helper()
	t.Setenv("CASEDESK_AUTH_SECRET", "test-secret")
	identity.ResetSecretForTests()
	t.Cleanup(identity.ResetSecretForTests)

	idStore := newFakeIdentityStore()
	caseStore := newFakeCaseStore()
	auditStore := &fakeAuditStore{}
	custStore := &fakeCustomerStore{customers: map[int64]customers.Customer{
		1: {ID: 1, Name: "Acme", IsActive: true},
		2: {ID: 2, Name: "Globex", IsActive: true},
	}}
	slaStore := &fakeSLAStore{thresholds: []sla.Threshold{
		{ID: 1, Priority: cases.PriorityHigh, ResponseTimeHours: 4, ResolutionTimeHours: 24, IsActive: true},
	}}

	idSvc := identity.NewService(idStore)
	ctx := context.Background()

	agent, err := idSvc.CreateUser(ctx, "agent", "Agent", "pw-agent-1")
	if err != nil {
		t.Fatalf("create agent: %v", err)
	}
	admin, err := idSvc.CreateUser(ctx, "boss", "Boss", "pw-boss-1")
	if err != nil {
		t.Fatalf("create admin: %v", err)
	}

	agentRole, err := idSvc.CreateRole(ctx, "support", "Cases:FullControl")
	if err != nil {
		t.Fatalf("create role: %v", err)
	}
	adminRole, err := idSvc.CreateRole(ctx, "administrators", "Admin:FullControl,Cases:FullControl")
	if err != nil {
		t.Fatalf("create role: %v", err)
	}
	if err := idSvc.AssignRole(ctx, agent.ID, agentRole.ID); err != nil {
		t.Fatalf("assign role: %v", err)
	}
	if err := idSvc.AssignRole(ctx, admin.ID, adminRole.ID); err != nil {
		t.Fatalf("assign role: %v", err)
	}
	if err := idSvc.AddCoverage(ctx, agentRole.ID, 1); err != nil {
		t.Fatalf("add coverage: %v", err)
	}

	agentToken, err := identity.GenerateToken(agent.ID, agent.Username, time.Hour)
	if err != nil {
		t.Fatalf("agent token: %v", err)
	}
	adminToken, err := identity.GenerateToken(admin.ID, admin.Username, time.Hour)
	if err != nil {
		t.Fatalf("admin token: %v", err)
	}

	api := New(Config{
		Version:   "test",
		Identity:  idSvc,
		Resolver:  coverage.NewResolver(idStore),
		Cases:     cases.NewService(caseStore),
		Customers: customers.NewService(custStore),
		SLA:       sla.NewService(slaStore),
		Audit:     audit.NewRecorder(auditStore),
		DevActor:  devActor,
	})
	return &testEnv{
		api:        api,
		identity:   idStore,
		cases:      caseStore,
		audits:     auditStore,
		agentToken: agentToken,
		adminToken: adminToken,
	}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	e.api.Handler().ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) seedCase(t *testing.T, customerID int64) cases.Case {
	t.Helper()
	c := cases.Case{
		CustomerID: customerID,
		Title:      "seeded",
		Status:     cases.StatusOpen,
		Priority:   cases.PriorityHigh,
		CreatedBy:  "seed",
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
	if err := e.cases.Create(context.Background(), &c); err != nil {
		t.Fatalf("seed case: %v", err)
	}
	return c
}

// --- tests ---

func TestRequestsWithoutTokenAreRejected(t *testing.T) {
	env := newTestEnv(t, nil)
	rr := env.do(t, http.MethodGet, "/api/cases", "", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestDevActorFallback(t *testing.T) {
	env := newTestEnv(t, &identity.Actor{Username: "dev"})
	env.seedCase(t, 2)

	rr := env.do(t, http.MethodGet, "/api/cases", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for dev actor, got %d: %s", rr.Code, rr.Body.String())
	}
	var views []caseView
	if err := json.Unmarshal(rr.Body.Bytes(), &views); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(views) != 1 {
		t.Fatalf("dev actor is unrestricted, expected 1 case, got %d", len(views))
	}
}

func TestListCasesAppliesCoverage(t *testing.T) {
	env := newTestEnv(t, nil)
	visible := env.seedCase(t, 1)
	env.seedCase(t, 2)

	rr := env.do(t, http.MethodGet, "/api/cases", env.agentToken, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var views []caseView
	if err := json.Unmarshal(rr.Body.Bytes(), &views); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(views) != 1 || views[0].ID != visible.ID {
		t.Fatalf("expected only the covered case, got %+v", views)
	}
	if views[0].SLA.ResponseDeadline == nil {
		t.Fatal("cases must carry computed SLA state")
	}

	// one aggregate audit row for the whole listing
	listRows := 0
	for _, e := range env.audits.entries {
		if e.Action == "List" && e.EntityType == "Case" {
			listRows++
		}
	}
	if listRows != 1 {
		t.Fatalf("expected a single aggregate audit row, got %d", listRows)
	}
}

func TestGetCaseOutsideCoverageAnswersNotFound(t *testing.T) {
	env := newTestEnv(t, nil)
	hidden := env.seedCase(t, 2)

	rr := env.do(t, http.MethodGet, "/api/cases/"+jsonNumber(hidden.ID), env.agentToken, nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for excluded case, got %d", rr.Code)
	}
}

func TestCloseCaseSurfacesWarning(t *testing.T) {
	env := newTestEnv(t, nil)
	a := env.seedCase(t, 1)
	b := env.seedCase(t, 1)

	rr := env.do(t, http.MethodPost, "/api/caserelationships", env.agentToken, createRelationshipRequest{
		SourceCaseID:  a.ID,
		RelatedCaseID: b.ID,
		Type:          "Related",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("link: expected 201, got %d: %s", rr.Code, rr.Body.String())
	}

	status := cases.StatusClosed
	rr = env.do(t, http.MethodPut, "/api/cases/"+jsonNumber(a.ID), env.agentToken, updateCaseRequest{Status: &status})
	if rr.Code != http.StatusOK {
		t.Fatalf("close: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var payload struct {
		Case    cases.Case         `json:"case"`
		Warning *cases.CloseWarning `json:"warning"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Case.Status != cases.StatusClosed {
		t.Fatalf("close must succeed, got status %s", payload.Case.Status)
	}
	if payload.Warning == nil || payload.Warning.OpenRelatedCount != 1 {
		t.Fatalf("expected warning with count 1, got %+v", payload.Warning)
	}
}

func TestUpdateCaseAnswersNoContent(t *testing.T) {
	env := newTestEnv(t, nil)
	c := env.seedCase(t, 1)

	title := "renamed"
	rr := env.do(t, http.MethodPut, "/api/cases/"+jsonNumber(c.ID), env.agentToken, updateCaseRequest{Title: &title})
	if rr.Code != http.StatusNoContent {
		t.Fatalf("plain update: expected 204, got %d: %s", rr.Code, rr.Body.String())
	}
	if rr.Body.Len() != 0 {
		t.Fatalf("expected empty body, got %q", rr.Body.String())
	}
}

func TestDeleteRelationshipByIDRemovesBothRows(t *testing.T) {
	env := newTestEnv(t, nil)
	a := env.seedCase(t, 1)
	b := env.seedCase(t, 1)

	rr := env.do(t, http.MethodPost, "/api/caserelationships", env.agentToken, createRelationshipRequest{
		SourceCaseID:  a.ID,
		RelatedCaseID: b.ID,
		Type:          "Related",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("link: expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var created struct {
		Reverse cases.Relationship `json:"reverse"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	// Deleting by the reverse row's id removes the whole pair.
	rr = env.do(t, http.MethodDelete, "/api/caserelationships/"+jsonNumber(created.Reverse.ID), env.agentToken, nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d: %s", rr.Code, rr.Body.String())
	}
	if len(env.cases.relations) != 0 {
		t.Fatalf("expected zero relationship rows, got %d", len(env.cases.relations))
	}

	rr = env.do(t, http.MethodDelete, "/api/caserelationships/"+jsonNumber(created.Reverse.ID), env.agentToken, nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for an absent row, got %d", rr.Code)
	}
}

func TestAdminEndpointsRequireFullControl(t *testing.T) {
	env := newTestEnv(t, nil)

	body := createUserRequest{Username: "newbie", DisplayName: "New", Password: "pw-123456"}
	rr := env.do(t, http.MethodPost, "/api/admin/users", env.agentToken, body)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("agent must be forbidden, got %d", rr.Code)
	}

	rr = env.do(t, http.MethodPost, "/api/admin/users", env.adminToken, body)
	if rr.Code != http.StatusCreated {
		t.Fatalf("admin create user: expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestDuplicateCoverageAnswersConflict(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.do(t, http.MethodPost, "/api/admin/roles/1/coverage/2", env.adminToken, nil)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	rr = env.do(t, http.MethodPost, "/api/admin/roles/1/coverage/2", env.adminToken, nil)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 on duplicate coverage, got %d", rr.Code)
	}
}

func TestAuditListingPinsNonAdminsToSelf(t *testing.T) {
	env := newTestEnv(t, nil)

	// generate trail rows for both users
	env.seedCase(t, 1)
	if rr := env.do(t, http.MethodGet, "/api/cases", env.agentToken, nil); rr.Code != http.StatusOK {
		t.Fatalf("agent list: %d", rr.Code)
	}
	if rr := env.do(t, http.MethodGet, "/api/cases", env.adminToken, nil); rr.Code != http.StatusOK {
		t.Fatalf("admin list: %d", rr.Code)
	}

	rr := env.do(t, http.MethodGet, "/api/audits?viewAll=true", env.agentToken, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var entries []audit.Entry
	if err := json.Unmarshal(rr.Body.Bytes(), &entries); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("expected the agent's own entries")
	}
	for _, e := range entries {
		if e.Username != "agent" {
			t.Fatalf("non-admin must only see own entries, saw %q", e.Username)
		}
	}

	// The admin with viewAll=true sees both users' trails.
	rr = env.do(t, http.MethodGet, "/api/audits?viewAll=true", env.adminToken, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	entries = entries[:0]
	if err := json.Unmarshal(rr.Body.Bytes(), &entries); err != nil {
		t.Fatalf("decode: %v", err)
	}
	seen := map[string]bool{}
	for _, e := range entries {
		seen[e.Username] = true
	}
	if !seen["agent"] || !seen["boss"] {
		t.Fatalf("admin with viewAll must see everyone, saw %v", seen)
	}
}

func TestAuthTokenIssuance(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.do(t, http.MethodPost, "/api/auth/token", "", tokenRequest{Username: "agent", Password: "pw-agent-1"})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp tokenResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Token == "" || resp.Username != "agent" {
		t.Fatalf("unexpected token response: %+v", resp)
	}

	rr = env.do(t, http.MethodPost, "/api/auth/token", "", tokenRequest{Username: "agent", Password: "wrong"})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad password, got %d", rr.Code)
	}
}

func jsonNumber(id int64) string {
	return strconv.FormatInt(id, 10)
}
