package daemon_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"boardcast/internal/api"
	"boardcast/internal/daemon"
	"boardcast/internal/gateway"
	"boardcast/internal/hub"
	"boardcast/internal/logging"
	"boardcast/internal/notify"
	"boardcast/internal/pipeline"
	"boardcast/internal/queue"
	"boardcast/internal/services/speech"
	"boardcast/internal/services/vision"
	"boardcast/internal/testsupport"
)

const modelResponse = "[SUMMARY]\n- plan: four steps\n\n[SCRIPT]\nThis board lays out the response plan step by step.\n---"

type testDaemon struct {
	daemon *daemon.Daemon
	store  *queue.Store
	base   string
	upload string
}

func startDaemon(t *testing.T) *testDaemon {
	t.Helper()

	visionServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]any{"content": modelResponse}}},
		})
	}))
	t.Cleanup(visionServer.Close)
	speechServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"audioContent": base64.StdEncoding.EncodeToString([]byte("mp3 payload")),
		})
	}))
	t.Cleanup(speechServer.Close)

	cfg := testsupport.NewConfig(t)
	cfg.Vision.BaseURL = visionServer.URL
	cfg.Speech.BaseURL = speechServer.URL
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	store := testsupport.MustOpenStore(t, cfg)

	snapshot := func(ctx context.Context, channelID string) ([]api.JobView, error) {
		jobs, err := store.ListChannel(ctx, channelID)
		if err != nil {
			return nil, err
		}
		return api.FromJobs(jobs), nil
	}
	h := hub.New(snapshot, logging.NewNop())
	gw := gateway.New(h, logging.NewNop())
	publisher := notify.Func(func(_ context.Context, channelID string, job api.JobView) error {
		h.Publish(channelID, job)
		return nil
	})

	visionClient := vision.NewClient(vision.Config{
		APIKey:  cfg.Vision.APIKey,
		BaseURL: cfg.Vision.BaseURL,
		Model:   cfg.Vision.Model,
	})
	speechClient := speech.NewClient(speech.Config{
		APIKey:  cfg.Speech.APIKey,
		BaseURL: cfg.Speech.BaseURL,
		Voice:   cfg.Speech.Voice,
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	runner := pipeline.New(ctx, store, visionClient, speechClient, publisher, cfg, logging.NewNop())

	d, err := daemon.New(cfg, store, runner, h, gw, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(ctx); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}
	t.Cleanup(d.Stop)

	return &testDaemon{
		daemon: d,
		store:  store,
		base:   "http://" + d.Addr(),
		upload: cfg.Paths.UploadDir,
	}
}

func (td *testDaemon) writeUpload(t *testing.T, name string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(td.upload, name), []byte("image"), 0o644); err != nil {
		t.Fatalf("write upload: %v", err)
	}
}

func (td *testDaemon) submit(t *testing.T, channelID, inputRef string) string {
	t.Helper()
	body, _ := json.Marshal(api.SubmitRequest{ChannelID: channelID, InputRef: inputRef})
	resp, err := http.Post(td.base+"/api/jobs", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		payload, _ := io.ReadAll(resp.Body)
		t.Fatalf("submit returned %d: %s", resp.StatusCode, payload)
	}
	var accepted api.SubmitResponse
	if err := json.NewDecoder(resp.Body).Decode(&accepted); err != nil {
		t.Fatalf("decode submit response: %v", err)
	}
	return accepted.JobID
}

func (td *testDaemon) getJob(t *testing.T, id string) (api.JobView, int) {
	t.Helper()
	resp, err := http.Get(td.base + "/api/jobs/" + id)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	defer resp.Body.Close()
	var job api.JobView
	if resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
			t.Fatalf("decode job: %v", err)
		}
	}
	return job, resp.StatusCode
}

func (td *testDaemon) waitTerminal(t *testing.T, id string) api.JobView {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		job, code := td.getJob(t, id)
		if code != http.StatusOK {
			t.Fatalf("get job returned %d", code)
		}
		if job.Status == "done" || job.Status == "error" {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("job never reached a terminal state")
	return api.JobView{}
}

func TestSubmitRunsJobToCompletion(t *testing.T) {
	td := startDaemon(t)
	td.writeUpload(t, "board.jpg")

	id := td.submit(t, "ch-a", "board.jpg")
	job := td.waitTerminal(t, id)
	if job.Status != "done" || job.Progress != 100 {
		t.Fatalf("expected done/100, got %s/%d", job.Status, job.Progress)
	}
	if job.ChannelID != "ch-a" {
		t.Fatalf("unexpected channel %q", job.ChannelID)
	}
	if job.Voice == "" {
		t.Fatal("expected default voice on job view")
	}
}

func TestResultAndAudioEndpoints(t *testing.T) {
	td := startDaemon(t)
	td.writeUpload(t, "board.jpg")
	id := td.submit(t, "ch-a", "board.jpg")
	td.waitTerminal(t, id)

	resp, err := http.Get(td.base + "/api/jobs/" + id + "/result")
	if err != nil {
		t.Fatalf("get result: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("result returned %d", resp.StatusCode)
	}
	var result api.ResultView
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.Narration != modelResponse {
		t.Fatalf("unexpected narration %q", result.Narration)
	}
	if result.AudioURL != "/audio/"+id+".mp3" {
		t.Fatalf("unexpected audio url %q", result.AudioURL)
	}
	if result.DurationSec <= 0 {
		t.Fatalf("expected positive duration, got %d", result.DurationSec)
	}

	audioResp, err := http.Get(td.base + result.AudioURL)
	if err != nil {
		t.Fatalf("get audio: %v", err)
	}
	defer audioResp.Body.Close()
	if audioResp.StatusCode != http.StatusOK {
		t.Fatalf("audio returned %d", audioResp.StatusCode)
	}
	audio, _ := io.ReadAll(audioResp.Body)
	if string(audio) != "mp3 payload" {
		t.Fatalf("unexpected audio body %q", audio)
	}

	req, _ := http.NewRequest(http.MethodGet, td.base+result.AudioURL, nil)
	req.Header.Set("Range", "bytes=0-2")
	rangeResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("range get audio: %v", err)
	}
	defer rangeResp.Body.Close()
	if rangeResp.StatusCode != http.StatusPartialContent {
		t.Fatalf("expected 206 for range request, got %d", rangeResp.StatusCode)
	}

	if _, err := http.Get(td.base + "/audio/"); err != nil {
		t.Fatalf("audio root: %v", err)
	}
	travResp, err := http.Get(td.base + "/audio/..%2Fboardcast.db")
	if err != nil {
		t.Fatalf("traversal get: %v", err)
	}
	travResp.Body.Close()
	if travResp.StatusCode == http.StatusOK {
		t.Fatal("audio handler should not serve paths outside the audio dir")
	}
}

func TestListJobsFiltersByChannel(t *testing.T) {
	td := startDaemon(t)
	td.writeUpload(t, "board.jpg")
	idA := td.submit(t, "ch-a", "board.jpg")
	idB := td.submit(t, "ch-b", "board.jpg")
	td.waitTerminal(t, idA)
	td.waitTerminal(t, idB)

	resp, err := http.Get(td.base + "/api/jobs?channel_id=ch-a")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	defer resp.Body.Close()
	var list api.JobListResponse
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list.Jobs) != 1 || list.Jobs[0].JobID != idA {
		t.Fatalf("expected only ch-a job, got %+v", list.Jobs)
	}

	all, err := http.Get(td.base + "/api/jobs")
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	defer all.Body.Close()
	var allList api.JobListResponse
	if err := json.NewDecoder(all.Body).Decode(&allList); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(allList.Jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(allList.Jobs))
	}
}

func TestRenameRetryAndDelete(t *testing.T) {
	td := startDaemon(t)
	td.writeUpload(t, "board.jpg")
	id := td.submit(t, "ch-a", "board.jpg")
	td.waitTerminal(t, id)

	patch, _ := http.NewRequest(http.MethodPatch, td.base+"/api/jobs/"+id, strings.NewReader(`{"title":"Renamed"}`))
	resp, err := http.DefaultClient.Do(patch)
	if err != nil {
		t.Fatalf("rename: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("rename returned %d", resp.StatusCode)
	}
	var renamed api.JobView
	if err := json.NewDecoder(resp.Body).Decode(&renamed); err != nil {
		t.Fatalf("decode renamed: %v", err)
	}
	if renamed.Title != "Renamed" {
		t.Fatalf("unexpected title %q", renamed.Title)
	}

	// Retry is only valid from the error state.
	retryResp, err := http.Post(td.base+"/api/jobs/"+id+"/retry", "application/json", nil)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	retryResp.Body.Close()
	if retryResp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for retry of done job, got %d", retryResp.StatusCode)
	}

	del, _ := http.NewRequest(http.MethodDelete, td.base+"/api/jobs/"+id, nil)
	delResp, err := http.DefaultClient.Do(del)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	delResp.Body.Close()
	if delResp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete returned %d", delResp.StatusCode)
	}

	if _, code := td.getJob(t, id); code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", code)
	}

	delAgain, _ := http.NewRequest(http.MethodDelete, td.base+"/api/jobs/"+id, nil)
	againResp, err := http.DefaultClient.Do(delAgain)
	if err != nil {
		t.Fatalf("second delete: %v", err)
	}
	againResp.Body.Close()
	if againResp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for second delete, got %d", againResp.StatusCode)
	}
}

func TestSubmitValidation(t *testing.T) {
	td := startDaemon(t)

	cases := []struct {
		name string
		body string
	}{
		{"missing channel", `{"input_ref":"x.jpg"}`},
		{"missing input", `{"channel_id":"ch-a"}`},
		{"invalid json", `{`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := http.Post(td.base+"/api/jobs", "application/json", strings.NewReader(tc.body))
			if err != nil {
				t.Fatalf("submit: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", resp.StatusCode)
			}
		})
	}
}

func TestStatusEndpoint(t *testing.T) {
	td := startDaemon(t)

	resp, err := http.Get(td.base + "/api/status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status returned %d", resp.StatusCode)
	}
	var status api.StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if !status.Running {
		t.Fatal("expected running daemon")
	}
	if status.PID != os.Getpid() {
		t.Fatalf("unexpected pid %d", status.PID)
	}
	if status.DBPath == "" {
		t.Fatal("expected db path in status")
	}
}

func TestSecondInstanceRejectedByLock(t *testing.T) {
	td := startDaemon(t)

	status := td.daemon.Status(context.Background())
	if !status.Running {
		t.Fatal("first instance should be running")
	}
	if err := td.daemon.Start(context.Background()); err == nil {
		t.Fatal("expected second Start to fail")
	}
}

func TestMethodNotAllowed(t *testing.T) {
	td := startDaemon(t)

	for _, tc := range []struct {
		method string
		path   string
	}{
		{http.MethodPut, "/api/jobs"},
		{http.MethodPost, "/api/status"},
		{http.MethodPut, "/api/jobs/some-id"},
	} {
		req, _ := http.NewRequest(tc.method, td.base+tc.path, nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("%s %s: %v", tc.method, tc.path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusMethodNotAllowed {
			t.Fatalf("%s %s: expected 405, got %d", tc.method, tc.path, resp.StatusCode)
		}
	}
}

func TestUnknownJobRoutes(t *testing.T) {
	td := startDaemon(t)

	for _, path := range []string{
		"/api/jobs/missing",
		"/api/jobs/missing/result",
	} {
		resp, err := http.Get(td.base + path)
		if err != nil {
			t.Fatalf("get %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("%s: expected 404, got %d", path, resp.StatusCode)
		}
	}

	resp, err := http.Post(td.base+"/api/jobs/missing/retry", "application/json", nil)
	if err != nil {
		t.Fatalf("retry missing: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("retry missing: expected 404, got %d", resp.StatusCode)
	}
}
