// Package e2e runs the Gherkin scenarios in features/ against an in-process
// landledger server backed by in-memory stores.
package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"

	"landledger/internal/app"
	"landledger/internal/platform/config"
)

const AdminEmail = "registrar@example.com"

const codeSubject = "Your verification code"

var codePattern = regexp.MustCompile(`\b(\d{6})\b`)

// Mailbox captures outgoing mail so scenarios can read OTP codes.
type Mailbox struct {
	mu       sync.Mutex
	messages map[string][]string
}

func NewMailbox() *Mailbox {
	return &Mailbox{messages: make(map[string][]string)}
}

func (m *Mailbox) Send(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[to] = append(m.messages[to], subject+"\n"+body)
	return nil
}

// LatestCode returns the newest six digit code mailed to address.
func (m *Mailbox) LatestCode(address string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := m.messages[address]
	for i := len(msgs) - 1; i >= 0; i-- {
		if !strings.HasPrefix(msgs[i], codeSubject) {
			continue
		}
		if match := codePattern.FindStringSubmatch(msgs[i]); match != nil {
			return match[1], nil
		}
	}
	return "", fmt.Errorf("no code mailed to %s", address)
}

type TestContext struct {
	server  *httptest.Server
	app     *app.App
	cancel  context.CancelFunc
	mailbox *Mailbox

	lastStatus int
	lastBody   []byte
	lastHeader http.Header

	tokens  map[string]string
	userIDs map[string]string
	named   map[string]string
}

func NewTestContext() *TestContext {
	return &TestContext{
		tokens:  make(map[string]string),
		userIDs: make(map[string]string),
		named:   make(map[string]string),
	}
}

// Start boots a fresh server on in-memory stores. Call Close when the
// scenario ends.
func (tc *TestContext) Start() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	cfg.Postgres.URL = ""
	cfg.Redis.URL = ""
	cfg.Kafka.Brokers = nil
	cfg.Storage.Bucket = ""
	cfg.Email.From = ""
	cfg.OTel.Endpoint = ""
	cfg.Auth.AdminEmails = []string{AdminEmail}
	cfg.Limits.OTPRequests = 20

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	mailbox := NewMailbox()
	ctx, cancel := context.WithCancel(context.Background())
	a, err := app.New(ctx, cfg, log, app.WithMailer(mailbox))
	if err != nil {
		cancel()
		return err
	}
	if err := a.EnsureAdmins(ctx, cfg.Auth.AdminEmails); err != nil {
		cancel()
		a.Close()
		return err
	}
	go func() { _ = a.RunWorkers(ctx) }()

	tc.server = httptest.NewServer(a.Router)
	tc.app = a
	tc.cancel = cancel
	tc.mailbox = mailbox
	clear(tc.tokens)
	clear(tc.userIDs)
	clear(tc.named)
	return nil
}

func (tc *TestContext) Close() {
	if tc.server == nil {
		return
	}
	tc.server.Close()
	tc.cancel()
	tc.app.Close()
}

func (tc *TestContext) AdminEmail() string {
	return AdminEmail
}

func (tc *TestContext) Mailbox() *Mailbox {
	return tc.mailbox
}

// Request sends body as JSON. A known actor email adds its bearer token.
func (tc *TestContext) Request(method, path, actor string, body any) error {
	return tc.RequestWithHeaders(method, path, actor, body, nil)
}

func (tc *TestContext) RequestWithHeaders(method, path, actor string, body any, headers map[string]string) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, tc.server.URL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token, ok := tc.tokens[actor]; ok {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := tc.server.Client().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	tc.lastStatus = resp.StatusCode
	tc.lastHeader = resp.Header
	tc.lastBody, err = io.ReadAll(resp.Body)
	return err
}

func (tc *TestContext) StatusCode() int {
	return tc.lastStatus
}

func (tc *TestContext) ResponseBody() []byte {
	return tc.lastBody
}

func (tc *TestContext) ResponseHeader(name string) string {
	return tc.lastHeader.Get(name)
}

// ResponseField reads a dotted path such as "market_info.asking_price" from
// the last JSON response.
func (tc *TestContext) ResponseField(field string) (any, error) {
	var doc any
	if err := json.Unmarshal(tc.lastBody, &doc); err != nil {
		return nil, fmt.Errorf("response is not JSON: %w", err)
	}
	for _, part := range strings.Split(field, ".") {
		obj, ok := doc.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("field %s: %s is not an object", field, part)
		}
		if doc, ok = obj[part]; !ok {
			return nil, fmt.Errorf("field %s not in response: %s", field, tc.lastBody)
		}
	}
	return doc, nil
}

func (tc *TestContext) ResponseString(field string) (string, error) {
	v, err := tc.ResponseField(field)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("field %s is %T, not a string", field, v)
	}
	return s, nil
}

func (tc *TestContext) SetSession(email, token, userID string) {
	tc.tokens[email] = token
	tc.userIDs[email] = userID
}

func (tc *TestContext) UserID(email string) (string, error) {
	userID, ok := tc.userIDs[email]
	if !ok {
		return "", fmt.Errorf("%s has not logged in", email)
	}
	return userID, nil
}

// Remember stores an id under a scenario name such as "L" or "R".
func (tc *TestContext) Remember(name, value string) {
	tc.named[name] = value
}

func (tc *TestContext) Recall(name string) (string, error) {
	v, ok := tc.named[name]
	if !ok {
		return "", fmt.Errorf("nothing remembered as %q", name)
	}
	return v, nil
}

func (tc *TestContext) LatestCode(email string) (string, error) {
	return tc.mailbox.LatestCode(email)
}
