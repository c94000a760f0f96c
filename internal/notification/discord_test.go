package notification

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forest-guardian/burnsev/internal/pipeline"
)

type webhook struct {
	mu       sync.Mutex
	messages map[string][]DiscordMessage
	status   int
}

func newWebhook(status int) (*webhook, *httptest.Server) {
	w := &webhook{messages: map[string][]DiscordMessage{}, status: status}
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		var msg DiscordMessage
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			rw.WriteHeader(http.StatusBadRequest)
			return
		}
		w.mu.Lock()
		w.messages[r.URL.Path] = append(w.messages[r.URL.Path], msg)
		w.mu.Unlock()
		rw.WriteHeader(w.status)
	}))
	return w, srv
}

func discordFor(srv *httptest.Server) *Discord {
	return &Discord{
		ErrorURL:   srv.URL + "/error",
		SuccessURL: srv.URL + "/success",
		WarnURL:    srv.URL + "/warn",
		Client:     srv.Client(),
	}
}

func summary(states ...pipeline.State) pipeline.Summary {
	s := pipeline.Summary{RunID: "run-1"}
	for i, state := range states {
		r := pipeline.PeriodResult{Period: string(rune('a' + i)), State: state, Rasters: 7, Duration: time.Second}
		if state == pipeline.Failed {
			r.FailedIn = pipeline.Fetching
			r.Err = errors.New("no imagery")
			r.Rasters = 0
		}
		s.Periods = append(s.Periods, r)
	}
	return s
}

func TestNotifyRunPicksWebhookByOutcome(t *testing.T) {
	hook, srv := newWebhook(http.StatusNoContent)
	defer srv.Close()
	d := discordFor(srv)

	require.NoError(t, d.NotifyRun(context.Background(), summary(pipeline.Tagged, pipeline.Tagged), 14))
	require.NoError(t, d.NotifyRun(context.Background(), summary(pipeline.Tagged, pipeline.Failed), 7))
	require.NoError(t, d.NotifyRun(context.Background(), summary(pipeline.Failed), 0))

	hook.mu.Lock()
	defer hook.mu.Unlock()
	require.Len(t, hook.messages["/success"], 1)
	require.Len(t, hook.messages["/warn"], 1)
	require.Len(t, hook.messages["/error"], 1)
	assert.Equal(t, colorGreen, hook.messages["/success"][0].Embeds[0].Color)
	assert.Contains(t, hook.messages["/warn"][0].Embeds[0].Description, "b failed in FETCHING: no imagery")
}

func TestSendReportsBadStatus(t *testing.T) {
	_, srv := newWebhook(http.StatusBadRequest)
	defer srv.Close()

	err := discordFor(srv).SendSuccess(context.Background(), "hello")
	assert.ErrorContains(t, err, "status code: 400")
}

func TestDisabledLevelIsSkipped(t *testing.T) {
	d := &Discord{}
	assert.False(t, d.Enabled())
	assert.NoError(t, d.SendError(context.Background(), "ignored"))
}

func TestDescribeRun(t *testing.T) {
	msg := DescribeRun(summary(pipeline.Tagged, pipeline.Failed), 7)
	assert.Contains(t, msg, "Run run-1\n1/2 periods tagged, 7 exports")
	assert.Contains(t, msg, "- a tagged 7 rasters in 1s")
}
