package request

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillswap-labs/skillswap/internal/user"
)

type fakeStore struct {
	requests map[string]*ServiceRequest
}

func newFakeStore() *fakeStore {
	return &fakeStore{requests: make(map[string]*ServiceRequest)}
}

func (s *fakeStore) Create(_ context.Context, r *ServiceRequest) error {
	cp := *r
	s.requests[r.ID] = &cp
	return nil
}

func (s *fakeStore) Get(_ context.Context, id string) (*ServiceRequest, error) {
	r, ok := s.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *fakeStore) Update(_ context.Context, r *ServiceRequest) error {
	if _, ok := s.requests[r.ID]; !ok {
		return ErrNotFound
	}
	cp := *r
	s.requests[r.ID] = &cp
	return nil
}

func (s *fakeStore) ListForUser(_ context.Context, userID string, status Status) ([]ServiceRequest, error) {
	var out []ServiceRequest
	for _, r := range s.requests {
		if !r.IsParty(userID) {
			continue
		}
		if status != "" && r.Status != status {
			continue
		}
		out = append(out, *r)
	}
	return out, nil
}

func (s *fakeStore) FindBetween(_ context.Context, userA, userB string) (*ServiceRequest, error) {
	var latest *ServiceRequest
	for _, r := range s.requests {
		if !r.IsParty(userA) || !r.IsParty(userB) {
			continue
		}
		if r.Status == StatusRejected || r.Status == StatusCancelled {
			continue
		}
		if latest == nil || r.CreatedAt.After(latest.CreatedAt) {
			cp := *r
			latest = &cp
		}
	}
	return latest, nil
}

type fakeDirectory struct {
	contacts map[string]*user.Contact
}

func (d *fakeDirectory) Lookup(_ context.Context, id string) (*user.Contact, error) {
	c, ok := d.contacts[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	return c, nil
}

type fakeNotifier struct {
	created []string
	updated []string
}

func (n *fakeNotifier) RequestCreated(_ context.Context, r *ServiceRequest) {
	n.created = append(n.created, r.ID)
}

func (n *fakeNotifier) RequestUpdated(_ context.Context, r *ServiceRequest, _ string) {
	n.updated = append(n.updated, r.ID)
}

var (
	requesterID = uuid.New().String()
	providerID  = uuid.New().String()
	strangerID  = uuid.New().String()
)

func setup() (*Handler, *fakeStore, *fakeNotifier) {
	store := newFakeStore()
	notifier := &fakeNotifier{}
	dir := &fakeDirectory{contacts: map[string]*user.Contact{
		requesterID: {ID: requesterID, Name: "Alice", Email: "alice@example.com"},
		providerID:  {ID: providerID, Name: "Bob", Email: "bob@example.com"},
	}}
	return NewHandler(store, dir, notifier), store, notifier
}

func newJSONContext(method, path, body, userID string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("user_id", userID)
	return c, rec
}

func seedRequest(store *fakeStore, status Status) *ServiceRequest {
	r := &ServiceRequest{
		ID:          uuid.New().String(),
		RequesterID: requesterID,
		ProviderID:  providerID,
		Status:      status,
		Terms:       "weekly guitar lessons for Spanish practice",
	}
	store.requests[r.ID] = r
	return r
}

func decodeRequest(t *testing.T, rec *httptest.ResponseRecorder) *ServiceRequest {
	t.Helper()
	var body struct {
		Request *ServiceRequest `json:"request"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotNil(t, body.Request)
	return body.Request
}

func TestCreateRequest(t *testing.T) {
	h, _, notifier := setup()

	c, rec := newJSONContext(http.MethodPost, "/api/requests",
		`{"provider_id":"`+providerID+`","terms":"two sessions a week"}`, requesterID)
	require.NoError(t, h.Create(c))

	assert.Equal(t, http.StatusCreated, rec.Code)
	r := decodeRequest(t, rec)
	assert.Equal(t, StatusPending, r.Status)
	assert.Equal(t, requesterID, r.RequesterID)
	assert.Equal(t, providerID, r.ProviderID)
	assert.Equal(t, "two sessions a week", r.Terms)
	assert.Len(t, notifier.created, 1)
}

func TestCreateRequestSelfTarget(t *testing.T) {
	h, _, _ := setup()

	c, rec := newJSONContext(http.MethodPost, "/api/requests",
		`{"provider_id":"`+requesterID+`"}`, requesterID)
	require.NoError(t, h.Create(c))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateRequestUnknownProvider(t *testing.T) {
	h, _, _ := setup()

	c, rec := newJSONContext(http.MethodPost, "/api/requests",
		`{"provider_id":"`+strangerID+`"}`, requesterID)
	require.NoError(t, h.Create(c))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateRequestInvalidProviderID(t *testing.T) {
	h, _, _ := setup()

	c, rec := newJSONContext(http.MethodPost, "/api/requests",
		`{"provider_id":"not-a-uuid"}`, requesterID)
	require.NoError(t, h.Create(c))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateStatusHappyPath(t *testing.T) {
	h, store, notifier := setup()
	r := seedRequest(store, StatusPending)

	c, rec := newJSONContext(http.MethodPatch, "/", `{"status":"accepted"}`, providerID)
	c.SetParamNames("id")
	c.SetParamValues(r.ID)
	require.NoError(t, h.UpdateStatus(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, StatusAccepted, store.requests[r.ID].Status)
	assert.Len(t, notifier.updated, 1)
}

func TestUpdateStatusIllegalTransition(t *testing.T) {
	h, store, _ := setup()
	r := seedRequest(store, StatusPending)

	c, rec := newJSONContext(http.MethodPatch, "/", `{"status":"completed"}`, providerID)
	c.SetParamNames("id")
	c.SetParamValues(r.ID)
	require.NoError(t, h.UpdateStatus(c))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, StatusPending, store.requests[r.ID].Status)
}

func TestUpdateStatusSameStatus(t *testing.T) {
	h, store, _ := setup()
	r := seedRequest(store, StatusNegotiating)

	c, rec := newJSONContext(http.MethodPatch, "/", `{"status":"negotiating"}`, requesterID)
	c.SetParamNames("id")
	c.SetParamValues(r.ID)
	require.NoError(t, h.UpdateStatus(c))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestUpdateStatusMirrorMarkerRejected(t *testing.T) {
	h, store, _ := setup()
	r := seedRequest(store, StatusAccepted)

	c, rec := newJSONContext(http.MethodPatch, "/", `{"status":"in_progress"}`, requesterID)
	c.SetParamNames("id")
	c.SetParamValues(r.ID)
	require.NoError(t, h.UpdateStatus(c))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateStatusNonParty(t *testing.T) {
	h, store, _ := setup()
	r := seedRequest(store, StatusPending)

	c, rec := newJSONContext(http.MethodPatch, "/", `{"status":"accepted"}`, strangerID)
	c.SetParamNames("id")
	c.SetParamValues(r.ID)
	require.NoError(t, h.UpdateStatus(c))

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestUpdateStatusInProgressCancel(t *testing.T) {
	h, store, _ := setup()
	r := seedRequest(store, StatusInProgress)

	c, rec := newJSONContext(http.MethodPatch, "/", `{"status":"cancelled"}`, requesterID)
	c.SetParamNames("id")
	c.SetParamValues(r.ID)
	require.NoError(t, h.UpdateStatus(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, StatusCancelled, store.requests[r.ID].Status)
}

func TestUpdateTermsForcesNegotiating(t *testing.T) {
	h, store, _ := setup()
	r := seedRequest(store, StatusPending)

	c, rec := newJSONContext(http.MethodPatch, "/", `{"terms":"three sessions a week"}`, providerID)
	c.SetParamNames("id")
	c.SetParamValues(r.ID)
	require.NoError(t, h.UpdateTerms(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	got := store.requests[r.ID]
	assert.Equal(t, StatusNegotiating, got.Status)
	assert.Equal(t, "three sessions a week", got.Terms)
}

func TestUpdateTermsWrongStatus(t *testing.T) {
	h, store, _ := setup()
	r := seedRequest(store, StatusAccepted)

	c, rec := newJSONContext(http.MethodPatch, "/", `{"terms":"new terms"}`, providerID)
	c.SetParamNames("id")
	c.SetParamValues(r.ID)
	require.NoError(t, h.UpdateTerms(c))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, StatusAccepted, store.requests[r.ID].Status)
}

func TestMarkCompletionBothSides(t *testing.T) {
	h, store, _ := setup()
	r := seedRequest(store, StatusAccepted)

	// Requester marks first; request stays accepted
	c, rec := newJSONContext(http.MethodPatch, "/", "", requesterID)
	c.SetParamNames("id")
	c.SetParamValues(r.ID)
	require.NoError(t, h.MarkCompletion(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	got := store.requests[r.ID]
	assert.True(t, got.RequesterCompletionMarked)
	assert.False(t, got.ProviderCompletionMarked)
	assert.Equal(t, StatusAccepted, got.Status)

	// Same actor again: idempotent, still accepted
	c, rec = newJSONContext(http.MethodPatch, "/", "", requesterID)
	c.SetParamNames("id")
	c.SetParamValues(r.ID)
	require.NoError(t, h.MarkCompletion(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, StatusAccepted, store.requests[r.ID].Status)

	// Provider marks; both flags set completes the request
	c, rec = newJSONContext(http.MethodPatch, "/", "", providerID)
	c.SetParamNames("id")
	c.SetParamValues(r.ID)
	require.NoError(t, h.MarkCompletion(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	got = store.requests[r.ID]
	assert.True(t, got.ProviderCompletionMarked)
	assert.Equal(t, StatusCompleted, got.Status)
}

func TestMarkCompletionRequiresAccepted(t *testing.T) {
	h, store, _ := setup()
	r := seedRequest(store, StatusPending)

	c, rec := newJSONContext(http.MethodPatch, "/", "", requesterID)
	c.SetParamNames("id")
	c.SetParamValues(r.ID)
	require.NoError(t, h.MarkCompletion(c))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestListFiltersByStatus(t *testing.T) {
	h, store, _ := setup()
	seedRequest(store, StatusPending)
	seedRequest(store, StatusAccepted)

	c, rec := newJSONContext(http.MethodGet, "/api/requests?status=pending", "", requesterID)
	require.NoError(t, h.List(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Count    int              `json:"count"`
		Requests []ServiceRequest `json:"requests"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
	require.Len(t, body.Requests, 1)
	assert.Equal(t, StatusPending, body.Requests[0].Status)
}

func TestListRejectsInvalidStatus(t *testing.T) {
	h, _, _ := setup()

	c, rec := newJSONContext(http.MethodGet, "/api/requests?status=bogus", "", requesterID)
	require.NoError(t, h.List(c))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFindBetween(t *testing.T) {
	h, store, _ := setup()
	r := seedRequest(store, StatusNegotiating)

	c, rec := newJSONContext(http.MethodGet, "/", "", requesterID)
	c.SetParamNames("userId")
	c.SetParamValues(providerID)
	require.NoError(t, h.FindBetween(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	got := decodeRequest(t, rec)
	assert.Equal(t, r.ID, got.ID)
}

func TestFindBetweenSkipsDeadRequests(t *testing.T) {
	h, store, _ := setup()
	seedRequest(store, StatusCancelled)

	c, rec := newJSONContext(http.MethodGet, "/", "", requesterID)
	c.SetParamNames("userId")
	c.SetParamValues(providerID)
	require.NoError(t, h.FindBetween(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Request *ServiceRequest `json:"request"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Nil(t, body.Request)
}
