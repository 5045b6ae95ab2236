package pollclient

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"voting-platform/internal/domain"
	"voting-platform/pkg/errors"
)

func TestClient_DecodesErrorEnvelope(t *testing.T) {
	srv := newServer(t)
	c := NewClient(srv.URL+"/", nil)

	_, err := c.Login(context.Background(), "not-an-email")
	require.Error(t, err)

	appErr, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrorTypeValidation, appErr.Type)
	assert.Equal(t, http.StatusBadRequest, appErr.StatusCode)

	_, err = c.GetPoll(context.Background(), "missing")
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
}

func TestClient_NonEnvelopeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, nil).ListPolls(context.Background(), domain.PollStatusActive)
	appErr, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrorTypeExternal, appErr.Type)
	assert.Equal(t, http.StatusBadGateway, appErr.StatusCode)
}

func TestClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(url, nil).ListPolls(context.Background(), "")
	assert.True(t, errors.IsType(err, errors.ErrorTypeExternal))
}

func TestClient_StatusFilter(t *testing.T) {
	srv := newServer(t)
	c := NewClient(srv.URL, nil)

	resp, err := c.ListPolls(context.Background(), domain.PollStatusCompleted)
	require.NoError(t, err)
	require.Len(t, resp.Polls, 1)
	assert.Equal(t, "Quarterly team review", resp.Polls[0].Title)
}

func TestClient_UserAdministration(t *testing.T) {
	srv := newServer(t)
	ctx := context.Background()

	voter := NewClient(srv.URL, nil)
	voterLogin, err := voter.Login(ctx, "voter@example.com")
	require.NoError(t, err)

	owner := NewClient(srv.URL, nil)
	_, err = owner.Login(ctx, ownerEmail)
	require.NoError(t, err)

	me, err := owner.Me(ctx)
	require.NoError(t, err)
	assert.True(t, me.IsOwner)

	users, err := owner.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 2)

	updated, err := owner.UpdateRole(ctx, voterLogin.User.ID, domain.RoleModerator)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleModerator, updated.Role)

	banned, err := owner.SetBanned(ctx, voterLogin.User.ID, true, "spam")
	require.NoError(t, err)
	assert.True(t, banned.Banned)

	_, err = voter.Login(ctx, "voter@example.com")
	appErr, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrorTypeAuthorization, appErr.Type)
	assert.Equal(t, "spam", appErr.Details["banReason"])
}

func TestClient_ExportXLSX(t *testing.T) {
	srv := newServer(t)
	ctx := context.Background()

	owner := NewClient(srv.URL, nil)
	_, err := owner.Login(ctx, ownerEmail)
	require.NoError(t, err)

	polls, err := owner.ListPolls(ctx, domain.PollStatusActive)
	require.NoError(t, err)
	require.Len(t, polls.Polls, 1)

	var buf bytes.Buffer
	require.NoError(t, owner.ExportXLSX(ctx, polls.Polls[0].ID, &buf))

	book, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer book.Close()
	rows, err := book.GetRows("Polls")
	require.NoError(t, err)
	assert.Len(t, rows, 5)

	voter := NewClient(srv.URL, nil)
	_, err = voter.Login(ctx, "voter@example.com")
	require.NoError(t, err)
	err = voter.ExportXLSX(ctx, "", &bytes.Buffer{})
	assert.True(t, errors.IsType(err, errors.ErrorTypeAuthorization))
}
