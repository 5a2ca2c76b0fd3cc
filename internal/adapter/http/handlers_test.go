package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	athttp "github.com/atelierhq/atelier/internal/adapter/http"
	"github.com/atelierhq/atelier/internal/adapter/ws"
	"github.com/atelierhq/atelier/internal/config"
	"github.com/atelierhq/atelier/internal/domain"
	"github.com/atelierhq/atelier/internal/domain/agent"
	"github.com/atelierhq/atelier/internal/domain/block"
	"github.com/atelierhq/atelier/internal/domain/chat"
	"github.com/atelierhq/atelier/internal/domain/document"
	"github.com/atelierhq/atelier/internal/domain/suggestion"
	"github.com/atelierhq/atelier/internal/domain/tool"
	"github.com/atelierhq/atelier/internal/domain/user"
	"github.com/atelierhq/atelier/internal/port/modelrunner"
	"github.com/atelierhq/atelier/internal/service"
	"github.com/atelierhq/atelier/internal/stream"
	"github.com/atelierhq/atelier/internal/tools"
)

// localUser matches the identity the disabled-auth middleware injects.
const localUser = "00000000-0000-0000-0000-000000000001"

// mockStore implements database.Store for handler tests.
type mockStore struct {
	mu          sync.Mutex
	nextID      int
	chats       map[string]*chat.Chat
	messages    []chat.Message
	documents   []document.Document
	suggestions []suggestion.Suggestion
	blocks      map[string]*block.Block
	tools       map[string]*tool.Record
	agents      map[string]*agent.Agent
	clock       time.Time
}

func newMockStore() *mockStore {
	return &mockStore{
		chats:  map[string]*chat.Chat{},
		blocks: map[string]*block.Block{},
		tools:  map[string]*tool.Record{},
		agents: map[string]*agent.Agent{},
		clock:  time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (m *mockStore) id() string {
	m.nextID++
	return fmt.Sprintf("id-%d", m.nextID)
}

func (m *mockStore) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

func (m *mockStore) CreateChat(_ context.Context, c *chat.Chat) (*chat.Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	cp.ID = m.id()
	cp.CreatedAt = m.tick()
	m.chats[cp.ID] = &cp
	return &cp, nil
}

func (m *mockStore) GetChat(_ context.Context, id string) (*chat.Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.chats[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *mockStore) ListChatsByOwner(_ context.Context, ownerID string) ([]chat.Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []chat.Chat
	for _, c := range m.chats {
		if c.OwnerID == ownerID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *mockStore) DeleteChat(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.chats[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.chats, id)
	return nil
}

func (m *mockStore) CreateMessage(_ context.Context, msg *chat.Message) (*chat.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *msg
	cp.ID = m.id()
	cp.CreatedAt = m.tick()
	m.messages = append(m.messages, cp)
	return &cp, nil
}

func (m *mockStore) ListMessages(_ context.Context, chatID string) ([]chat.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []chat.Message
	for _, msg := range m.messages {
		if msg.ChatID == chatID {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (m *mockStore) InsertDocumentVersion(_ context.Context, d *document.Document) (*document.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *d
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = m.tick()
	}
	m.documents = append(m.documents, cp)
	return &cp, nil
}

func (m *mockStore) ListDocumentVersions(_ context.Context, id, ownerID string) ([]document.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []document.Document
	for _, d := range m.documents {
		if d.ID == id && d.OwnerID == ownerID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *mockStore) TruncateDocumentVersions(_ context.Context, id string, after time.Time, ownerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var kept []document.Document
	for _, d := range m.documents {
		if d.ID == id && d.OwnerID == ownerID && d.CreatedAt.After(after) {
			continue
		}
		kept = append(kept, d)
	}
	m.documents = kept
	return nil
}

func (m *mockStore) CreateSuggestions(_ context.Context, batch []suggestion.Suggestion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.suggestions = append(m.suggestions, batch...)
	return nil
}

func (m *mockStore) ListSuggestionsByDocument(_ context.Context, documentID, ownerID string) ([]suggestion.Suggestion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []suggestion.Suggestion
	for _, sg := range m.suggestions {
		if sg.DocumentID == documentID && sg.OwnerID == ownerID {
			out = append(out, sg)
		}
	}
	return out, nil
}

func mockBlockKey(name string, visibility block.Visibility, ownerID string) string {
	return name + "|" + string(visibility) + "|" + ownerID
}

func (m *mockStore) GetBlock(_ context.Context, name string, visibility block.Visibility, ownerID string) (*block.Block, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.blocks[mockBlockKey(name, visibility, ownerID)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *mockStore) CreateBlock(_ context.Context, b *block.Block) (*block.Block, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *b
	cp.ID = m.id()
	m.blocks[mockBlockKey(cp.Name, cp.Visibility, cp.OwnerID)] = &cp
	return &cp, nil
}

func (m *mockStore) UpdateBlockContent(_ context.Context, name string, visibility block.Visibility, ownerID, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.blocks[mockBlockKey(name, visibility, ownerID)]
	if !ok {
		return domain.ErrNotFound
	}
	b.Content = content
	return nil
}

func (m *mockStore) ListBlocksByOwner(_ context.Context, ownerID string) ([]block.Block, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []block.Block
	for _, b := range m.blocks {
		if b.OwnerID == ownerID || b.Visibility == block.VisibilityPublic {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (m *mockStore) CreateTool(_ context.Context, t *tool.Record) (*tool.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	cp.ID = m.id()
	m.tools[cp.ID] = &cp
	return &cp, nil
}

func (m *mockStore) GetToolsByIDs(_ context.Context, ids []string) ([]tool.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []tool.Record
	for _, id := range ids {
		if t, ok := m.tools[id]; ok {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (m *mockStore) ListTools(_ context.Context, ownerID string) ([]tool.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []tool.Record
	for _, t := range m.tools {
		if t.Visibility == tool.VisibilityPublic || t.OwnerID == ownerID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (m *mockStore) CreateAgent(_ context.Context, a *agent.Agent) (*agent.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	cp.ID = m.id()
	m.agents[cp.ID] = &cp
	return &cp, nil
}

func (m *mockStore) GetAgent(_ context.Context, id string) (*agent.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.agents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *mockStore) ListAgents(_ context.Context, ownerID string) ([]agent.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []agent.Agent
	for _, a := range m.agents {
		if a.Visibility == agent.VisibilityPublic || a.OwnerID == ownerID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *mockStore) DeleteAgent(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.agents[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.agents, id)
	return nil
}

func (m *mockStore) CreateUser(_ context.Context, u *user.User) (*user.User, error) {
	cp := *u
	return &cp, nil
}

func (m *mockStore) GetUser(_ context.Context, id string) (*user.User, error) {
	return nil, domain.ErrNotFound
}

func (m *mockStore) CreateAPIKey(_ context.Context, k *user.APIKey) (*user.APIKey, error) {
	cp := *k
	return &cp, nil
}

func (m *mockStore) GetAPIKeyByPrefix(_ context.Context, prefix string) (*user.APIKey, error) {
	return nil, domain.ErrNotFound
}

func (m *mockStore) TouchAPIKey(_ context.Context, id string) error { return nil }

// mockRunner replays one scripted event sequence per Stream call.
type mockRunner struct {
	mu      sync.Mutex
	scripts [][]modelrunner.Event
}

func (r *mockRunner) Stream(ctx context.Context, _ *modelrunner.Request) (<-chan modelrunner.Event, error) {
	r.mu.Lock()
	if len(r.scripts) == 0 {
		r.mu.Unlock()
		return nil, fmt.Errorf("no scripted response left")
	}
	script := r.scripts[0]
	r.scripts = r.scripts[1:]
	r.mu.Unlock()

	events := make(chan modelrunner.Event)
	go func() {
		defer close(events)
		for _, ev := range script {
			select {
			case <-ctx.Done():
				return
			case events <- ev:
			}
		}
	}()
	return events, nil
}

func newTestServer(t *testing.T, db *mockStore, runner *mockRunner) *httptest.Server {
	t.Helper()
	if runner == nil {
		runner = &mockRunner{}
	}
	blocks := service.NewBlockService(db, nil, 0)
	agents := service.NewAgentService(db)
	docs := service.NewDocumentService(db, runner, nil, 512)
	sugg := service.NewSuggestionService(db, runner, nil, "", 512)
	registry := tools.NewRegistry(tools.Deps{Store: db, Documents: docs, Suggester: sugg})
	toolSvc := service.NewToolService(db, registry)
	chats := service.NewChatService(db, runner, blocks, agents, registry, nil, nil, nil,
		service.ChatConfig{DefaultModel: "test-model", MaxTokens: 512, MaxSteps: 4})

	h := athttp.NewHandlers(chats, docs, sugg, agents, toolSvc, blocks, nil)
	cfg := config.Defaults()
	router := athttp.NewRouter(h, ws.NewHub(), nil, nil, cfg)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, newMockStore(), nil)
	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestChatLifecycle(t *testing.T) {
	srv := newTestServer(t, newMockStore(), nil)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/chats", map[string]string{"title": "notes"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	created := decodeBody[chat.Chat](t, resp)
	if created.OwnerID != localUser {
		t.Errorf("owner = %q", created.OwnerID)
	}

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/chats/"+created.ID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("get status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/chats/nope", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing chat status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, http.MethodDelete, srv.URL+"/api/v1/chats/"+created.ID, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("delete status = %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestCreateChatMissingTitle(t *testing.T) {
	srv := newTestServer(t, newMockStore(), nil)
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/chats", map[string]string{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestStreamTurn(t *testing.T) {
	runner := &mockRunner{scripts: [][]modelrunner.Event{{
		{Type: modelrunner.EventTextDelta, Text: "Hello"},
		{Type: modelrunner.EventTextDelta, Text: " there"},
		{Type: modelrunner.EventFinish},
	}}}
	srv := newTestServer(t, newMockStore(), runner)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/chats", map[string]string{"title": "t"})
	created := decodeBody[chat.Chat](t, resp)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/v1/chats/"+created.ID+"/turn",
		chat.TurnRequest{Message: chat.IncomingPart{Content: "hi"}})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("turn status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}

	tr, err := stream.Decode(resp.Body)
	if err != nil {
		t.Fatalf("decode stream: %v", err)
	}
	if !tr.Finished || tr.Text() != "Hello there" {
		t.Errorf("transcript finished=%v text=%q", tr.Finished, tr.Text())
	}
}

func TestStreamTurnUnknownChat(t *testing.T) {
	srv := newTestServer(t, newMockStore(), nil)
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/chats/nope/turn",
		chat.TurnRequest{Message: chat.IncomingPart{Content: "hi"}})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestDocumentEndpoints(t *testing.T) {
	srv := newTestServer(t, newMockStore(), nil)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/documents/doc-1",
		document.CreateRequest{Title: "Notes", Kind: document.KindText, Content: "v1"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("save status = %d", resp.StatusCode)
	}
	first := decodeBody[document.Document](t, resp)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/v1/documents/doc-1",
		document.CreateRequest{Title: "Notes", Kind: document.KindText, Content: "v2"})
	resp.Body.Close()

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/documents/doc-1", nil)
	versions := decodeBody[[]document.Document](t, resp)
	if len(versions) != 2 {
		t.Fatalf("versions = %d", len(versions))
	}

	resp = doJSON(t, http.MethodDelete, srv.URL+"/api/v1/documents/doc-1", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("truncate without timestamp status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	ts := first.CreatedAt.Format(time.RFC3339Nano)
	resp = doJSON(t, http.MethodDelete, srv.URL+"/api/v1/documents/doc-1?timestamp="+ts, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("truncate status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/documents/doc-1", nil)
	versions = decodeBody[[]document.Document](t, resp)
	if len(versions) != 1 || versions[0].Content != "v1" {
		t.Errorf("kept versions = %+v", versions)
	}
}

func TestToolEndpoints(t *testing.T) {
	srv := newTestServer(t, newMockStore(), nil)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/tools", tool.CreateRequest{
		Name: "summarize", FlowID: "flow-1", Visibility: tool.VisibilityPrivate,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	rec := decodeBody[tool.Record](t, resp)
	if rec.Source != tool.SourceExternal {
		t.Errorf("source = %q", rec.Source)
	}

	// Internal names are reserved.
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/v1/tools", tool.CreateRequest{
		Name: "getWeather", FlowID: "flow-2", Visibility: tool.VisibilityPrivate,
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("reserved name status = %d", resp.StatusCode)
	}
	body := decodeBody[map[string]string](t, resp)
	if !strings.Contains(body["error"], "reserved") {
		t.Errorf("error = %q", body["error"])
	}

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/tools", nil)
	records := decodeBody[[]tool.Record](t, resp)
	if len(records) != 1 {
		t.Errorf("listed %d tools", len(records))
	}
}

func TestAgentEndpoints(t *testing.T) {
	db := newMockStore()
	srv := newTestServer(t, db, nil)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/agents", agent.CreateRequest{
		Name: "helper", SystemPrompt: "You help.", Visibility: agent.VisibilityPrivate,
		ToolIDs: []string{"nope"},
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("unknown tool status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/v1/agents", agent.CreateRequest{
		Name: "helper", SystemPrompt: "You help.", Visibility: agent.VisibilityPrivate,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	created := decodeBody[agent.Agent](t, resp)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/agents/"+created.ID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("get status = %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestBlockEndpoints(t *testing.T) {
	db := newMockStore()
	srv := newTestServer(t, db, nil)

	// The block must exist before an update lands on it.
	if _, err := db.CreateBlock(context.Background(), &block.Block{
		Name: "mood", Visibility: block.VisibilityPrivate, OwnerID: localUser,
	}); err != nil {
		t.Fatal(err)
	}

	resp := doJSON(t, http.MethodPut, srv.URL+"/api/v1/blocks/mood", map[string]string{"content": "cheerful"})
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("update status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/blocks", nil)
	blocks := decodeBody[[]block.Block](t, resp)
	if len(blocks) != 1 || blocks[0].Content != "cheerful" {
		t.Errorf("blocks = %+v", blocks)
	}

	resp = doJSON(t, http.MethodPut, srv.URL+"/api/v1/blocks/nope", map[string]string{"content": "x"})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing block status = %d", resp.StatusCode)
	}
	resp.Body.Close()
}
