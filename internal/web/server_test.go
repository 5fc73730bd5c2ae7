package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guidoenr/beatviz/internal/animation"
	"github.com/guidoenr/beatviz/internal/beat"
	"github.com/guidoenr/beatviz/internal/logger"
	"github.com/guidoenr/beatviz/internal/session"
	"github.com/guidoenr/beatviz/internal/testutil"
)

type fakeController struct {
	mu         sync.Mutex
	current    beat.Thresholds
	thresholds []beat.Thresholds
	resets     int
	err        error
}

func newFakeController() *fakeController {
	return &fakeController{current: beat.DefaultThresholds()}
}

func (f *fakeController) UpdateThresholds(_ context.Context, u beat.ThresholdsUpdate) (beat.Thresholds, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return beat.Thresholds{}, f.err
	}
	f.current = u.Merge(f.current)
	f.thresholds = append(f.thresholds, f.current)
	return f.current, nil
}

func (f *fakeController) Reset(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.resets++
	return nil
}

func testSnapshot(id string) session.Snapshot {
	return session.Snapshot{
		ID:         id,
		StartedAt:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Frames:     42,
		Beats:      3,
		Beat:       beat.Frame{BPM: 120, IsBeat: true, BeatStrength: 0.8},
		Thresholds: beat.DefaultThresholds(),
		Animations: animation.Stats{Total: 1, Active: 1, IDs: []string{"stage"}},
		States: map[string]animation.State{
			"stage": {Active: true, Property: animation.PropertyScale, Value: 1.2},
		},
		Distribution: map[string]float64{"Bass": 60, "Mids": 40},
	}
}

func newTestServer(ctrl Controller) *Server {
	return NewServer(ctrl, Config{StreamHz: 100, Logger: logger.NewTestLogger()})
}

func TestStatusRequiresPublishedSnapshot(t *testing.T) {
	s := newTestServer(newFakeController())
	h := s.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	s.Publish(testSnapshot("abc"))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got session.Snapshot
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, "abc", got.ID)
	assert.Equal(t, 42, got.Frames)
	assert.Equal(t, 120, got.Beat.BPM)
	assert.Equal(t, 60.0, got.Distribution["Bass"])
}

func TestBandsListsCatalog(t *testing.T) {
	s := newTestServer(newFakeController())
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/bands", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got BandsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	require.Len(t, got.Bands, 8)
	assert.Equal(t, BandResponse{Name: "Sub-Bass", MinHz: 20, MaxHz: 60, Hue: 0, Color: "#ff0000"}, got.Bands[0])
	assert.Equal(t, "Ultra-High", got.Bands[7].Name)
	require.Len(t, got.Stops, 8)
	assert.Equal(t, 0.0, got.Stops[0].Position)
	assert.True(t, strings.HasPrefix(got.Gradient, "#ff0000 0%"), got.Gradient)
}

func TestThresholdsMergesPartialUpdate(t *testing.T) {
	ctrl := newFakeController()
	h := newTestServer(ctrl).Handler()

	post := func(body string) beat.Thresholds {
		t.Helper()
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/thresholds", strings.NewReader(body)))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var got beat.Thresholds
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
		return got
	}

	assert.Equal(t, beat.Thresholds{Beat: 0.5, Kick: 0.7, Bass: 0.55}, post(`{"kick":0.7}`))
	// No snapshot has been published; the second update still sees the first.
	assert.Equal(t, beat.Thresholds{Beat: 0.5, Kick: 0.7, Bass: 0}, post(`{"bass":0}`))
	require.Len(t, ctrl.thresholds, 2)
}

func TestThresholdsRejectsBadRequests(t *testing.T) {
	ctrl := newFakeController()
	h := newTestServer(ctrl).Handler()

	cases := []struct {
		name   string
		method string
		body   string
		want   int
	}{
		{name: "empty", method: http.MethodPost, body: `{}`, want: http.StatusBadRequest},
		{name: "unknown field", method: http.MethodPost, body: `{"snare":0.4}`, want: http.StatusBadRequest},
		{name: "malformed", method: http.MethodPost, body: `{"beat":`, want: http.StatusBadRequest},
		{name: "get", method: http.MethodGet, body: ``, want: http.StatusMethodNotAllowed},
		{name: "put", method: http.MethodPut, body: `{"beat":0.4}`, want: http.StatusMethodNotAllowed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(tc.method, "/api/thresholds", strings.NewReader(tc.body)))
			assert.Equal(t, tc.want, rec.Code)
		})
	}
	assert.Empty(t, ctrl.thresholds)
}

func TestResetForwardsToController(t *testing.T) {
	ctrl := newFakeController()
	h := newTestServer(ctrl).Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/reset", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, ctrl.resets)

	ctrl.mu.Lock()
	ctrl.err = errors.New("loop stopped")
	ctrl.mu.Unlock()
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/reset", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "loop stopped")
}

func TestIndexIsServed(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestServer(newFakeController()).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<title>beatviz</title>")

	rec = httptest.NewRecorder()
	newTestServer(newFakeController()).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWebSocketStreamsSnapshots(t *testing.T) {
	defer testutil.VerifyNoLeaks(t, testutil.IgnoreHTTPTestGoroutines()...)

	s := newTestServer(newFakeController())
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	broadcastDone := make(chan struct{})
	go func() {
		defer close(broadcastDone)
		s.Broadcast(ctx)
	}()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return s.Clients() == 1 }, 2*time.Second, 5*time.Millisecond)

	s.Publish(testSnapshot("first"))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg StreamMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "first", msg.Session)
	assert.True(t, msg.Beat.IsBeat)
	assert.Equal(t, 1, msg.Animations.Active)
	assert.Equal(t, 1.2, msg.States["stage"].Value)
	assert.Equal(t, 40.0, msg.Distribution["Mids"])

	cancel()
	<-broadcastDone

	_, _, err = conn.ReadMessage()
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, websocket.CloseGoingAway, closeErr.Code)

	s.wg.Wait()
	assert.Zero(t, s.Clients())
}

func TestServeShutsDownOnCancel(t *testing.T) {
	defer testutil.VerifyNoLeaks(t, testutil.IgnoreHTTPTestGoroutines()...)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := newTestServer(newFakeController())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	resp, err := client.Get("http://" + ln.Addr().String() + "/api/bands")
	require.NoError(t, err)
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
