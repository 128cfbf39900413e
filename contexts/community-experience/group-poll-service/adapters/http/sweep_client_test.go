package httpadapter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	domainerrors "pollbot/contexts/community-experience/group-poll-service/domain/errors"

	"github.com/stretchr/testify/require"
)

func TestRemoteSweepTriggerMapsStatusCodes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("secret") {
		case "good":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"conversations":3,"reminded":2,"skipped":1,"failed":0,"notified":7}`))
		case "disabled":
			w.WriteHeader(http.StatusNotFound)
		case "boom":
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte("internal"))
		default:
			w.WriteHeader(http.StatusForbidden)
		}
	}))
	defer server.Close()

	trigger := RemoteSweepTrigger{TargetURL: server.URL + "/tasks/remind-sweep", Secret: "good", HTTPClient: server.Client()}
	resp, err := trigger.Trigger(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, resp.Conversations)
	require.Equal(t, 7, resp.Notified)

	trigger.Secret = "disabled"
	_, err = trigger.Trigger(context.Background())
	require.ErrorIs(t, err, domainerrors.ErrSweepDisabled)

	trigger.Secret = "nope"
	_, err = trigger.Trigger(context.Background())
	require.ErrorIs(t, err, domainerrors.ErrSweepForbidden)

	trigger.Secret = "boom"
	_, err = trigger.Trigger(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "500")
}

func TestRemoteSweepTriggerRejectsBadTarget(t *testing.T) {
	_, err := RemoteSweepTrigger{TargetURL: "not a url"}.Trigger(context.Background())
	require.ErrorIs(t, err, domainerrors.ErrInvalidInput)
}
