package vaba

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient(t *testing.T) {
	logger := zerolog.Nop()

	tests := []struct {
		name     string
		username string
		password string
		wantErr  bool
		errMsg   string
	}{
		{
			name:     "valid credentials",
			username: "test_user",
			password: "test_password",
			wantErr:  false,
		},
		{
			name:     "missing username",
			username: "",
			password: "test_password",
			wantErr:  true,
			errMsg:   "username is required",
		},
		{
			name:     "missing password",
			username: "test_user",
			password: "",
			wantErr:  true,
			errMsg:   "password is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(tt.username, tt.password, logger)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, DefaultBaseURL, client.baseURL)
			assert.Equal(t, DefaultArticleID, client.articleID)
		})
	}
}

func TestClientOptions(t *testing.T) {
	logger := zerolog.Nop()

	t.Run("with timeout", func(t *testing.T) {
		client, err := NewClient("u", "p", logger, WithTimeout(5*time.Second))
		require.NoError(t, err)
		assert.Equal(t, 5*time.Second, client.httpClient.Timeout)
	})

	t.Run("with custom http client", func(t *testing.T) {
		custom := &http.Client{Timeout: 10 * time.Second}
		client, err := NewClient("u", "p", logger, WithHTTPClient(custom))
		require.NoError(t, err)
		assert.Equal(t, custom, client.httpClient)
	})

	t.Run("with booking parameters", func(t *testing.T) {
		client, err := NewClient("u", "p", logger, WithArticleID("1234"), WithPartySize(2))
		require.NoError(t, err)
		assert.Equal(t, "1234", client.articleID)
		assert.Equal(t, 2, client.partySize)
	})
}

// newTestClient creates a client pointed at the given mock server.
func newTestClient(t *testing.T, server *httptest.Server) *Client {
	t.Helper()

	client, err := NewClient("test_user", "test_password", zerolog.Nop(), WithBaseURL(server.URL))
	require.NoError(t, err)
	return client
}

func TestAvailableSlots(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)

		query := r.URL.Query()
		assert.Equal(t, "getPossibleUhrzeiten", query.Get("action"))
		assert.Equal(t, "ajaxResponder.php", query.Get("file"))
		assert.Equal(t, "en", query.Get("language"))
		assert.Equal(t, "sparkleTicketingOnline", query.Get("modul"))
		assert.Empty(t, query.Get("key"))

		assert.Equal(t, "2025-01-02", r.PostFormValue("datum"))
		assert.Equal(t, "2948", r.PostFormValue("Artikel_ID"))
		assert.Equal(t, "1", r.PostFormValue("anzahlPersonen"))

		w.Write([]byte(`{"data":{"uhrzeiten":{"08:00":0,"09:00":1,"17:00":10}}}`))
	}))
	defer server.Close()

	client := newTestClient(t, server)

	day := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	slots, err := client.AvailableSlots(context.Background(), day)
	require.NoError(t, err)

	assert.Equal(t, []Slot{
		{Timestamp: time.Date(2025, 1, 2, 9, 0, 0, 0, time.UTC), Count: 1},
		{Timestamp: time.Date(2025, 1, 2, 17, 0, 0, 0, time.UTC), Count: 10},
	}, slots)
}

func TestAvailableSlotsServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down for maintenance", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := newTestClient(t, server)

	_, err := client.AvailableSlots(context.Background(), time.Now())

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
	assert.True(t, apiErr.IsServerError())
}

// portalMock simulates the portal's dispatch on the file query parameter.
type portalMock struct {
	logins       atomic.Int32
	lists        atomic.Int32
	moves        atomic.Int32
	lastKey      atomic.Value // string, key confirmed at login
	listResponse func(n int32) string
	moveResponse func(n int32) (int, string)
}

func (p *portalMock) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("file") {
		case "ajaxResponder.php?action=login":
			p.logins.Add(1)
			key := r.URL.Query().Get("key")
			assert.Len(t, key, 26)
			assert.Equal(t, "test_user", r.PostFormValue("username"))
			assert.Equal(t, "test_password", r.PostFormValue("userpass"))
			p.lastKey.Store(key)
			w.Write([]byte(`{"success":true}`))

		case "userTermine.php":
			n := p.lists.Add(1)
			assert.Equal(t, p.lastKey.Load(), r.URL.Query().Get("key"),
				"request must carry the key confirmed at login")
			w.Write([]byte(p.listResponse(n)))

		case "ajaxResponder.php?action=moveTicket":
			n := p.moves.Add(1)
			assert.Equal(t, p.lastKey.Load(), r.URL.Query().Get("key"))
			status, body := p.moveResponse(n)
			w.WriteHeader(status)
			w.Write([]byte(body))

		default:
			t.Errorf("unexpected request: %s", r.URL.String())
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func TestActiveReservations(t *testing.T) {
	portal := &portalMock{
		listResponse: func(int32) string { return reservationHTML },
	}
	server := httptest.NewServer(portal.handler(t))
	defer server.Close()

	client := newTestClient(t, server)

	reservations, err := client.ActiveReservations(context.Background())
	require.NoError(t, err)

	require.Len(t, reservations, 1)
	assert.Equal(t, 100500, reservations[0].ID)
	assert.Equal(t, time.Date(2025, 2, 3, 9, 0, 0, 0, time.UTC), reservations[0].Timestamp)

	assert.Equal(t, int32(1), portal.logins.Load())
	assert.Equal(t, int32(1), portal.lists.Load())
}

func TestActiveReservationsRetriesOnceOnEmptyBody(t *testing.T) {
	portal := &portalMock{
		listResponse: func(int32) string { return "" },
	}
	server := httptest.NewServer(portal.handler(t))
	defer server.Close()

	client := newTestClient(t, server)

	_, err := client.ActiveReservations(context.Background())
	assert.ErrorIs(t, err, ErrNotAuthorized)

	assert.Equal(t, int32(2), portal.logins.Load(), "a rejected token triggers exactly one re-login")
	assert.Equal(t, int32(2), portal.lists.Load())
}

func TestActiveReservationsRecoversAfterRetry(t *testing.T) {
	portal := &portalMock{
		listResponse: func(n int32) string {
			if n == 1 {
				return ""
			}
			return reservationHTML
		},
	}
	server := httptest.NewServer(portal.handler(t))
	defer server.Close()

	client := newTestClient(t, server)

	reservations, err := client.ActiveReservations(context.Background())
	require.NoError(t, err)
	require.Len(t, reservations, 1)

	assert.Equal(t, int32(2), portal.logins.Load())
	assert.Equal(t, int32(2), portal.lists.Load())
}

func TestReschedule(t *testing.T) {
	portal := &portalMock{
		moveResponse: func(int32) (int, string) { return http.StatusOK, `{"success":true,"data":""}` },
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("file") == "ajaxResponder.php?action=moveTicket" {
			assert.Equal(t, "100500", r.PostFormValue("Termine_ID"))
			assert.Equal(t, "2025-03-04", r.PostFormValue("Datum"))
			assert.Equal(t, "12:40", r.PostFormValue("Uhrzeit"))
			assert.Equal(t, "sparkleTicketingOnline", r.PostFormValue("modul"))
		}
		portal.handler(t)(w, r)
	}))
	defer server.Close()

	client := newTestClient(t, server)

	err := client.Reschedule(context.Background(), 100500, time.Date(2025, 3, 4, 12, 40, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.Equal(t, int32(1), portal.logins.Load())
	assert.Equal(t, int32(1), portal.moves.Load())
}

func TestRescheduleRetriesOnceOn500(t *testing.T) {
	portal := &portalMock{
		moveResponse: func(int32) (int, string) { return http.StatusInternalServerError, "" },
	}
	server := httptest.NewServer(portal.handler(t))
	defer server.Close()

	client := newTestClient(t, server)

	err := client.Reschedule(context.Background(), 100500, time.Date(2025, 3, 4, 12, 40, 0, 0, time.UTC))
	assert.ErrorIs(t, err, ErrNotAuthorized)

	assert.Equal(t, int32(2), portal.logins.Load())
	assert.Equal(t, int32(2), portal.moves.Load())
}

func TestRescheduleRecoversAfter500(t *testing.T) {
	portal := &portalMock{
		moveResponse: func(n int32) (int, string) {
			if n == 1 {
				return http.StatusInternalServerError, ""
			}
			return http.StatusOK, `{"success":true,"data":""}`
		},
	}
	server := httptest.NewServer(portal.handler(t))
	defer server.Close()

	client := newTestClient(t, server)

	err := client.Reschedule(context.Background(), 100500, time.Date(2025, 3, 4, 12, 40, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.Equal(t, int32(2), portal.logins.Load())
	assert.Equal(t, int32(2), portal.moves.Load())
}

func TestRescheduleBusinessErrorsNotRetried(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		expected error
	}{
		{
			name:     "not found",
			body:     `{"success":false,"message":"Keine Rechte zum verschieben."}`,
			expected: ErrReservationNotFound,
		},
		{
			name:     "slot taken",
			body:     `{"success":true,"data":"Ausgewählter Termin nicht mehr frei verfügbar."}`,
			expected: ErrTimeSlotUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			portal := &portalMock{
				moveResponse: func(int32) (int, string) { return http.StatusOK, tt.body },
			}
			server := httptest.NewServer(portal.handler(t))
			defer server.Close()

			client := newTestClient(t, server)

			err := client.Reschedule(context.Background(), 100500, time.Date(2025, 3, 4, 12, 40, 0, 0, time.UTC))
			assert.ErrorIs(t, err, tt.expected)

			assert.Equal(t, int32(1), portal.logins.Load(), "business failures must not trigger a re-login")
			assert.Equal(t, int32(1), portal.moves.Load())
		})
	}
}

func TestLoginWrongCredentials(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":false,"message":"Username and/or password are incorrect."}`))
	}))
	defer server.Close()

	client := newTestClient(t, server)

	err := client.Login(context.Background())
	assert.ErrorIs(t, err, ErrWrongCredentials)

	// Terminal: the facade must not retry a credentials failure.
	_, err = client.ActiveReservations(context.Background())
	assert.ErrorIs(t, err, ErrWrongCredentials)
}

func TestTokenReusedAcrossOperations(t *testing.T) {
	portal := &portalMock{
		listResponse: func(int32) string { return reservationHTML },
		moveResponse: func(int32) (int, string) { return http.StatusOK, `{"success":true,"data":""}` },
	}
	server := httptest.NewServer(portal.handler(t))
	defer server.Close()

	client := newTestClient(t, server)

	_, err := client.ActiveReservations(context.Background())
	require.NoError(t, err)

	err = client.Reschedule(context.Background(), 100500, time.Date(2025, 3, 4, 12, 40, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.Equal(t, int32(1), portal.logins.Load(), "the second operation reuses the cached token")
}
