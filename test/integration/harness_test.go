//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jsamuelsen/callrelay/internal/adapters/clients"
	"github.com/jsamuelsen/callrelay/internal/adapters/clients/engine"
	"github.com/jsamuelsen/callrelay/internal/adapters/directory"
	relayhttp "github.com/jsamuelsen/callrelay/internal/adapters/http"
	"github.com/jsamuelsen/callrelay/internal/adapters/http/handlers"
	"github.com/jsamuelsen/callrelay/internal/adapters/mail"
	"github.com/jsamuelsen/callrelay/internal/adapters/staging"
	"github.com/jsamuelsen/callrelay/internal/app"
	"github.com/jsamuelsen/callrelay/internal/app/callstate"
	"github.com/jsamuelsen/callrelay/internal/app/relay"
	"github.com/jsamuelsen/callrelay/internal/platform/config"
	"github.com/jsamuelsen/callrelay/internal/ports"
)

const account = "default"

func init() {
	gin.SetMode(gin.TestMode)
}

// engineMessage is a message the relay sent to the engine.
type engineMessage struct {
	Name     string            `json:"name"`
	Params   map[string]string `json:"params"`
	UserData string            `json:"userData"`
}

// fakeEngine stands in for the engine message bus. Route requests are
// answered from routes; execute requests always succeed.
type fakeEngine struct {
	mu       sync.Mutex
	routes   map[string]string
	received []engineMessage
}

func (f *fakeEngine) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var msg engineMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	f.received = append(f.received, msg)
	target, routed := f.routes[msg.Params["called"]]
	f.mu.Unlock()

	reply := map[string]any{"handled": true, "params": msg.Params}
	if msg.Name == "call.route" {
		reply["handled"] = routed
		reply["retValue"] = target
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(reply)
}

func (f *fakeEngine) route(number, target string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.routes[number] = target
}

func (f *fakeEngine) messages(name string) []engineMessage {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []engineMessage
	for _, m := range f.received {
		if m.Name == name {
			out = append(out, m)
		}
	}

	return out
}

// harness is a relay wired like cmd/callrelay, with the engine faked and
// the mail programs replaced by shell scripts.
type harness struct {
	root    string
	mailDir string

	engine   *fakeEngine
	engineSv *httptest.Server
	server   *httptest.Server
	dir      *directory.Directory
	spool    *staging.Dir
	relay    *relay.Relay
}

func newHarness() (*harness, error) {
	root, err := os.MkdirTemp("", "callrelay-it-*")
	if err != nil {
		return nil, err
	}

	h := &harness{root: root, mailDir: filepath.Join(root, "outbox")}
	if err := h.build(); err != nil {
		h.Close()
		return nil, err
	}

	return h, nil
}

func (h *harness) build() error {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	if err := os.MkdirAll(h.mailDir, 0o750); err != nil {
		return err
	}

	sendmail, err := h.script("sendmail", fmt.Sprintf(`cat > "$(mktemp %q)"`, filepath.Join(h.mailDir, "mail-XXXXXX")))
	if err != nil {
		return err
	}

	converter, err := h.script("tiff2pdf", `printf '%%PDF-1.4\n'; cat "$1"`)
	if err != nil {
		return err
	}

	h.dir, err = directory.Open(map[string]config.DatabaseConfig{
		account: {Driver: "sqlite3", DSN: "file:" + filepath.Join(h.root, "directory.db")},
	}, logger)
	if err != nil {
		return err
	}

	if err := h.dir.EnsureSchema(ctx); err != nil {
		return err
	}

	h.spool, err = staging.New(filepath.Join(h.root, "spool"))
	if err != nil {
		return err
	}

	h.engine = &fakeEngine{routes: make(map[string]string)}
	h.engineSv = httptest.NewServer(h.engine)

	client, err := clients.New(&clients.Config{
		BaseURL:     h.engineSv.URL,
		ServiceName: "engine",
		Timeout:     2 * time.Second,
		Retry: config.RetryConfig{
			MaxAttempts:     1,
			InitialInterval: 10 * time.Millisecond,
			MaxInterval:     100 * time.Millisecond,
			Multiplier:      2,
		},
		Circuit: config.CircuitBreakerConfig{MaxFailures: 5, Timeout: time.Second, HalfOpenLimit: 1},
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	eng := engine.New(client, "engine")
	reg := prometheus.NewRegistry()

	h.relay = relay.New(relay.Config{Logger: logger, Metrics: relay.NewMetrics(reg)})
	handles := relay.NewHandles()

	faxStore := callstate.NewStore()
	fwdStore := callstate.NewStore()

	h.relay.Load(app.NewFaxRouting(app.FaxRoutingDeps{
		Store:     faxStore,
		Directory: h.dir,
		Delivery: app.NewFaxMailer(app.FaxMailerDeps{
			Converter: mail.NewConverter(converter, 5*time.Second),
			Mailer:    mail.NewSendmail(sendmail, 5*time.Second),
			Staging:   h.spool,
			Executor:  app.NewExecutor(logger),
		}),
		Staging: h.spool,
		Logger:  logger,
	}, app.FaxConfig{
		Account:         account,
		EmailFrom:       "fax@example.com",
		RoutePriority:   10,
		HangupPriority:  10,
		DeliveryTimeout: 10 * time.Second,
	}))

	h.relay.Load(app.NewForwarding(app.ForwardingDeps{
		Store:     fwdStore,
		Directory: h.dir,
		Engine:    eng,
		Logger:    logger,
	}, app.ForwardConfig{
		Account:            account,
		ExecutePriority:    10,
		DisconnectPriority: 1,
		AnswerPriority:     10,
	}))

	stores := map[string]*callstate.Store{
		app.FaxModuleName:     faxStore,
		app.ForwardModuleName: fwdStore,
	}
	svc := app.NewService(h.relay, handles, stores, &app.ServiceConfig{Logger: logger})

	health := ports.NewHealthRegistry()
	for _, c := range append(h.dir.Checkers(), eng) {
		if err := health.Register(c); err != nil {
			return err
		}
	}

	serverCfg := &config.ServerConfig{
		Host:           "127.0.0.1",
		ReadTimeout:    5 * time.Second,
		WriteTimeout:   10 * time.Second,
		IdleTimeout:    30 * time.Second,
		MaxRequestSize: 1 << 20,
		RequestTimeout: 5 * time.Second,
	}
	srv := relayhttp.New(serverCfg, logger)

	relayhttp.SetupRouter(srv.Engine(), relayhttp.RouterConfig{
		AppConfig:     &config.AppConfig{Name: "callrelay-it", Version: "test", Environment: "test"},
		ServerConfig:  serverCfg,
		HealthHandler: handlers.NewHealthHandler(health, handlers.NewBuildInfo("test", "none", "now"), reg),
		RelayHandler:  handlers.NewRelayHandler(svc),
		CallsHandler:  handlers.NewCallsHandler(svc),
	})

	h.server = httptest.NewServer(srv.Engine())

	return nil
}

// script writes an executable shell script under the harness root.
func (h *harness) script(name, body string) (string, error) {
	path := filepath.Join(h.root, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		return "", err
	}

	return path, nil
}

// Close stops the servers and removes every file the harness created.
func (h *harness) Close() {
	if h.server != nil {
		h.server.Close()
	}

	if h.engineSv != nil {
		h.engineSv.Close()
	}

	if h.relay != nil {
		_ = h.relay.UnloadAll(context.Background())
	}

	if h.dir != nil {
		_ = h.dir.Close()
	}

	_ = os.RemoveAll(h.root)
}

// relayReply is the decoded answer to a relayed message.
type relayReply struct {
	Status   int
	Handled  bool              `json:"handled"`
	RetValue string            `json:"retValue"`
	Params   map[string]string `json:"params"`
}

// send posts one engine message to the relay ingress.
func (h *harness) send(ctx context.Context, hook string, params map[string]string, resourceID string) (*relayReply, error) {
	body, err := json.Marshal(map[string]any{"params": params, "resourceId": resourceID})
	if err != nil {
		return nil, err
	}

	resp, err := h.do(ctx, http.MethodPost, "/api/v1/relay/"+hook, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	reply := &relayReply{Status: resp.StatusCode}
	if resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(reply); err != nil {
			return nil, fmt.Errorf("decoding relay reply: %w", err)
		}
	}

	return reply, nil
}

// getJSON fetches path and decodes the body into out.
func (h *harness) getJSON(ctx context.Context, path string, out any) (int, error) {
	resp, err := h.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out == nil {
		return resp.StatusCode, nil
	}

	return resp.StatusCode, json.NewDecoder(resp.Body).Decode(out)
}

func (h *harness) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, h.server.URL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")

	return h.server.Client().Do(req)
}

// limits returns the live limiter counts of one module.
func (h *harness) limits(ctx context.Context, module string) (map[string]int, error) {
	var all map[string]map[string]int
	if _, err := h.getJSON(ctx, "/api/v1/limits", &all); err != nil {
		return nil, err
	}

	return all[module], nil
}

// registered returns the ids of the calls one module holds.
func (h *harness) registered(ctx context.Context, module string) ([]string, error) {
	var page struct {
		Items []struct {
			ID string `json:"id"`
		} `json:"items"`
	}

	if _, err := h.getJSON(ctx, "/api/v1/calls/"+module+"?limit=100", &page); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(page.Items))
	for _, it := range page.Items {
		ids = append(ids, it.ID)
	}

	return ids, nil
}

// outbox returns the raw mails the fake sendmail accepted, oldest name first.
func (h *harness) outbox() ([]string, error) {
	entries, err := os.ReadDir(h.mailDir)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	mails := make([]string, 0, len(names))
	for _, name := range names {
		b, err := os.ReadFile(filepath.Join(h.mailDir, name))
		if err != nil {
			return nil, err
		}
		mails = append(mails, string(b))
	}

	return mails, nil
}

// capturePath extracts the staging path from a fax receive target.
func capturePath(target string) (string, bool) {
	return strings.CutPrefix(target, app.FaxReceiveTarget)
}
