package parsing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jafarov01/property-management-bot/internal/failure"
)

func TestParseBookingEmail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/parse", r.URL.Path)
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "booking_email", req["kind"])
		assert.Equal(t, "raw email", req["raw"])

		json.NewEncoder(w).Encode(EmailResult{
			Category:     "NEW_BOOKING",
			GuestName:    "Anna Kovacs",
			PropertyCode: "A12",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second)
	result, err := client.ParseBookingEmail(context.Background(), "raw email")
	require.NoError(t, err)
	assert.Equal(t, "NEW_BOOKING", result.Category)
	assert.Equal(t, "Anna Kovacs", result.GuestName)
}

func TestParseCheckinListSendsDate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "checkin_list", req["kind"])
		assert.Equal(t, "2026-08-30", req["date"])

		json.NewEncoder(w).Encode([]CheckinEntry{{PropertyCode: "A12", GuestName: "Guest"}})
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second)
	entries, err := client.ParseCheckinList(context.Background(), "list", time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "A12", entries[0].PropertyCode)
}

func TestParseCleaningList(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]string{"A12", "B7"})
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second)
	codes, err := client.ParseCleaningList(context.Background(), "list")
	require.NoError(t, err)
	assert.Equal(t, []string{"A12", "B7"}, codes)
}

func TestNonOKStatusIsExternalServiceFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second)
	_, err := client.ParseBookingEmail(context.Background(), "garbled")
	assert.True(t, failure.IsKind(err, failure.ExternalService))
}

func TestUnreachableServiceIsExternalServiceFailure(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", time.Second)
	_, err := client.ParseCleaningList(context.Background(), "list")
	assert.True(t, failure.IsKind(err, failure.ExternalService))
}
