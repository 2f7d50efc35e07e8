package calendar_tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/mcptest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	calendarapi "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/teemow/gapi/internal/server"
	"github.com/teemow/gapi/internal/tools/common"
)

type fakeProvider struct{}

func (fakeProvider) TokenSourceForAccount(context.Context, string) (oauth2.TokenSource, error) {
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "tok"}), nil
}

func (fakeProvider) HasTokenForAccount(string) bool { return true }

func newTestServer(t *testing.T, backend http.Handler, opts ...server.Option) *mcptest.Server {
	t.Helper()
	if backend == nil {
		backend = http.NotFoundHandler()
	}
	google := httptest.NewServer(backend)
	t.Cleanup(google.Close)

	opts = append([]server.Option{server.WithClientOptions(option.WithEndpoint(google.URL + "/"))}, opts...)
	sc, err := server.NewServerContext(context.Background(), fakeProvider{}, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sc.Shutdown() })

	srv, err := mcptest.NewServer(t, common.ServerTools(sc, Tools(sc))...)
	require.NoError(t, err)
	t.Cleanup(srv.Close)
	return srv
}

func callTool(t *testing.T, srv *mcptest.Server, name string, args map[string]any) (string, bool) {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	result, err := srv.Client().CallTool(context.Background(), req)
	require.NoError(t, err)
	require.NotEmpty(t, result.Content)
	text, ok := mcp.AsTextContent(result.Content[0])
	require.True(t, ok)
	return text.Text, result.IsError
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func toolNames(t *testing.T, srv *mcptest.Server) []string {
	t.Helper()
	result, err := srv.Client().ListTools(context.Background(), mcp.ListToolsRequest{})
	require.NoError(t, err)
	names := make([]string, 0, len(result.Tools))
	for _, tool := range result.Tools {
		names = append(names, tool.Name)
	}
	sort.Strings(names)
	return names
}

func TestToolRegistration(t *testing.T) {
	all := newTestServer(t, nil)
	assert.Equal(t, []string{
		"create_event", "delete_event", "freebusy", "get_events", "list_calendars", "modify_event",
	}, toolNames(t, all))

	readOnly := newTestServer(t, nil, server.WithReadOnly(true))
	assert.Equal(t, []string{"freebusy", "get_events", "list_calendars"}, toolNames(t, readOnly))
}

func TestToolAnnotations(t *testing.T) {
	sc, err := server.NewServerContext(context.Background(), fakeProvider{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sc.Shutdown() })

	for _, tool := range Tools(sc) {
		ann := tool.Tool.Annotations
		require.NotNil(t, ann.ReadOnlyHint, tool.Tool.Name)
		require.NotNil(t, ann.DestructiveHint, tool.Tool.Name)
		assert.Equal(t, !tool.Write, *ann.ReadOnlyHint, tool.Tool.Name)
		assert.Equal(t, tool.Tool.Name == "delete_event", *ann.DestructiveHint, tool.Tool.Name)
		assert.True(t, *ann.OpenWorldHint, tool.Tool.Name)
		assert.Contains(t, tool.Tool.InputSchema.Properties, "account", tool.Tool.Name)
	}
}

func TestListCalendars(t *testing.T) {
	srv := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/me/calendarList", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		writeJSON(w, map[string]any{"items": []map[string]any{
			{"id": "me@example.com", "summary": "Me", "primary": true},
			{"id": "team@example.com", "summary": "Team"},
		}})
	}))

	text, isErr := callTool(t, srv, "list_calendars", nil)
	assert.False(t, isErr)
	assert.Equal(t, "- Me (primary)\n  ID: me@example.com\n- Team\n  ID: team@example.com", text)
}

func TestListCalendarsEmpty(t *testing.T) {
	srv := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{})
	}))

	text, isErr := callTool(t, srv, "list_calendars", nil)
	assert.False(t, isErr)
	assert.Equal(t, "No calendars found.", text)
}

func TestGetEvents(t *testing.T) {
	tests := []struct {
		name      string
		args      map[string]any
		wantPath  string
		wantQuery map[string]string
	}{
		{
			name:     "date bounds and defaults",
			args:     map[string]any{"time_min": "2026-02-28", "time_max": "2026-03-01"},
			wantPath: "/calendars/primary/events",
			wantQuery: map[string]string{
				"timeMin":      "2026-02-28T00:00:00Z",
				"timeMax":      "2026-03-01T00:00:00Z",
				"maxResults":   "25",
				"singleEvents": "true",
				"orderBy":      "startTime",
				"q":            "",
			},
		},
		{
			name: "explicit calendar and query",
			args: map[string]any{
				"time_min":    "2026-02-28T00:00:00Z",
				"time_max":    "2026-02-28T23:59:59Z",
				"calendar_id": "team",
				"query":       "standup",
				"max_results": 5,
			},
			wantPath: "/calendars/team/events",
			wantQuery: map[string]string{
				"timeMin":    "2026-02-28T00:00:00Z",
				"timeMax":    "2026-02-28T23:59:59Z",
				"maxResults": "5",
				"q":          "standup",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, tt.wantPath, r.URL.Path)
				q := r.URL.Query()
				for k, v := range tt.wantQuery {
					assert.Equal(t, v, q.Get(k), k)
				}
				writeJSON(w, map[string]any{"items": []map[string]any{{
					"id":       "ev1",
					"summary":  "Standup",
					"start":    map[string]any{"dateTime": "2026-02-28T09:00:00Z"},
					"end":      map[string]any{"dateTime": "2026-02-28T09:15:00Z"},
					"htmlLink": "https://calendar.google.com/event?eid=ev1",
				}}})
			}))

			text, isErr := callTool(t, srv, "get_events", tt.args)
			assert.False(t, isErr)
			assert.Equal(t, "- Standup\n"+
				"  Start: 2026-02-28T09:00:00Z\n"+
				"  End: 2026-02-28T09:15:00Z\n"+
				"  ID: ev1\n"+
				"  Link: https://calendar.google.com/event?eid=ev1", text)
		})
	}
}

func TestGetEventsValidation(t *testing.T) {
	srv := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request %s", r.URL.Path)
	}))

	text, isErr := callTool(t, srv, "get_events", map[string]any{"time_min": "2026-02-28"})
	assert.True(t, isErr)
	assert.Equal(t, `invalid arguments: missing required argument "time_max"`, text)

	text, isErr = callTool(t, srv, "get_events", map[string]any{
		"time_min": "2026-02-28", "time_max": "2026-03-01", "max_results": 5000,
	})
	assert.True(t, isErr)
	assert.Equal(t, "invalid arguments: max_results must be at most 2500", text)
}

func TestGetEventsAPIError(t *testing.T) {
	srv := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":404,"message":"Not Found"}}`))
	}))

	text, isErr := callTool(t, srv, "get_events", map[string]any{
		"time_min": "2026-02-28", "time_max": "2026-03-01", "calendar_id": "missing",
	})
	assert.True(t, isErr)
	assert.Equal(t, "Google API error 404: Not Found", text)
}

func TestCreateEvent(t *testing.T) {
	var got calendarapi.Event
	var conferenceVersion string
	srv := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/calendars/primary/events", r.URL.Path)
		conferenceVersion = r.URL.Query().Get("conferenceDataVersion")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		resp := got
		resp.Id = "new1"
		resp.HtmlLink = "https://calendar.google.com/event?eid=new1"
		writeJSON(w, resp)
	}))

	text, isErr := callTool(t, srv, "create_event", map[string]any{
		"summary":   "Planning",
		"start":     "2026-02-28T10:00:00+01:00",
		"end":       "2026-02-28T11:00:00+01:00",
		"timezone":  "Europe/Amsterdam",
		"attendees": []any{"a@example.com", "b@example.com"},
		"add_meet":  true,
	})
	assert.False(t, isErr)
	assert.Equal(t, "Event created: Planning\nLink: https://calendar.google.com/event?eid=new1\nID: new1", text)

	want := &calendarapi.EventDateTime{DateTime: "2026-02-28T10:00:00+01:00", TimeZone: "Europe/Amsterdam"}
	if diff := cmp.Diff(want, got.Start); diff != "" {
		t.Errorf("start mismatch (-want +got):\n%s", diff)
	}
	require.Len(t, got.Attendees, 2)
	assert.Equal(t, "b@example.com", got.Attendees[1].Email)
	require.NotNil(t, got.ConferenceData)
	assert.Regexp(t, `^meet-\d{14}$`, got.ConferenceData.CreateRequest.RequestId)
	assert.Equal(t, "1", conferenceVersion)
}

func TestCreateEventAllDay(t *testing.T) {
	var got calendarapi.Event
	srv := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/calendars/family/events", r.URL.Path)
		assert.Empty(t, r.URL.Query().Get("conferenceDataVersion"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, map[string]any{"id": "new2", "summary": got.Summary})
	}))

	text, isErr := callTool(t, srv, "create_event", map[string]any{
		"summary":     "Holiday",
		"start":       "2026-03-01",
		"end":         "2026-03-02",
		"calendar_id": "family",
	})
	assert.False(t, isErr)
	assert.Equal(t, "Event created: Holiday\nLink: \nID: new2", text)

	if diff := cmp.Diff(&calendarapi.EventDateTime{Date: "2026-03-01"}, got.Start); diff != "" {
		t.Errorf("start mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(&calendarapi.EventDateTime{Date: "2026-03-02"}, got.End); diff != "" {
		t.Errorf("end mismatch (-want +got):\n%s", diff)
	}
	assert.Nil(t, got.ConferenceData)
}

func TestCreateEventPassesAttendeesThrough(t *testing.T) {
	var got calendarapi.Event
	srv := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":400,"message":"Invalid attendee email."}}`))
	}))

	text, isErr := callTool(t, srv, "create_event", map[string]any{
		"summary":   "Planning",
		"start":     "2026-02-28T10:00:00Z",
		"end":       "2026-02-28T11:00:00Z",
		"attendees": []any{"not-an-email"},
	})
	assert.True(t, isErr)
	assert.Equal(t, "Google API error 400: Invalid attendee email.", text)
	require.Len(t, got.Attendees, 1)
	assert.Equal(t, "not-an-email", got.Attendees[0].Email)
}

func TestModifyEvent(t *testing.T) {
	var sent map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("/calendars/primary/events/ev1", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, map[string]any{
				"id":          "ev1",
				"summary":     "Old",
				"description": "keep me",
				"start":       map[string]any{"dateTime": "2026-02-28T09:00:00Z"},
				"end":         map[string]any{"dateTime": "2026-02-28T10:00:00Z"},
				"attendees":   []map[string]any{{"email": "a@example.com"}},
			})
		case http.MethodPut:
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&sent))
			sent["htmlLink"] = "https://calendar.google.com/event?eid=ev1"
			writeJSON(w, sent)
		default:
			t.Errorf("unexpected method %s", r.Method)
		}
	})
	srv := newTestServer(t, mux)

	text, isErr := callTool(t, srv, "modify_event", map[string]any{
		"event_id": "ev1",
		"summary":  "New",
		"end":      "2026-02-28T11:00:00Z",
	})
	assert.False(t, isErr)
	assert.Equal(t, "Event updated: New\nLink: https://calendar.google.com/event?eid=ev1", text)

	require.NotNil(t, sent)
	assert.Equal(t, "keep me", sent["description"])
	assert.Equal(t, map[string]any{"dateTime": "2026-02-28T09:00:00Z"}, sent["start"])
	assert.Equal(t, map[string]any{"dateTime": "2026-02-28T11:00:00Z"}, sent["end"])
	assert.Len(t, sent["attendees"], 1)
}

func TestDeleteEvent(t *testing.T) {
	var deleted bool
	srv := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/calendars/work/events/ev9", r.URL.Path)
		deleted = true
		w.WriteHeader(http.StatusNoContent)
	}))

	text, isErr := callTool(t, srv, "delete_event", map[string]any{"event_id": "ev9", "calendar_id": "work"})
	assert.False(t, isErr)
	assert.Equal(t, "Event ev9 deleted.", text)
	assert.True(t, deleted)
}

func TestFreeBusy(t *testing.T) {
	var got calendarapi.FreeBusyRequest
	srv := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/freeBusy", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, map[string]any{"calendars": map[string]any{
			"a@example.com": map[string]any{"busy": []map[string]any{
				{"start": "2026-02-28T09:00:00Z", "end": "2026-02-28T10:00:00Z"},
			}},
			"b@example.com": map[string]any{"busy": []any{}},
		}})
	}))

	text, isErr := callTool(t, srv, "freebusy", map[string]any{
		"time_min":     "2026-02-28",
		"time_max":     "2026-03-01",
		"calendar_ids": []any{"b@example.com", "a@example.com"},
	})
	assert.False(t, isErr)
	assert.Equal(t, "b@example.com: Free\n"+
		"a@example.com:\n"+
		"  Busy: 2026-02-28T09:00:00Z → 2026-02-28T10:00:00Z", text)
	assert.Equal(t, "2026-02-28T00:00:00Z", got.TimeMin)
	require.Len(t, got.Items, 2)
	assert.Equal(t, "b@example.com", got.Items[0].Id)
}

func TestFreeBusyDefaultsToPrimary(t *testing.T) {
	var got calendarapi.FreeBusyRequest
	srv := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, map[string]any{"calendars": map[string]any{"primary": map[string]any{}}})
	}))

	text, isErr := callTool(t, srv, "freebusy", map[string]any{
		"time_min": "2026-02-28T00:00:00Z",
		"time_max": "2026-03-01T00:00:00Z",
	})
	assert.False(t, isErr)
	assert.Equal(t, "primary: Free", text)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "primary", got.Items[0].Id)
}
