package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/atelierhq/atelier/internal/domain"
	"github.com/atelierhq/atelier/internal/domain/agent"
	"github.com/atelierhq/atelier/internal/domain/block"
	"github.com/atelierhq/atelier/internal/domain/chat"
	"github.com/atelierhq/atelier/internal/domain/document"
	"github.com/atelierhq/atelier/internal/domain/suggestion"
	"github.com/atelierhq/atelier/internal/domain/tool"
	"github.com/atelierhq/atelier/internal/domain/user"
	"github.com/atelierhq/atelier/internal/port/modelrunner"
)

// fakeStore is an in-memory database.Store for service tests.
type fakeStore struct {
	mu          sync.Mutex
	chats       map[string]*chat.Chat
	messages    []chat.Message
	documents   []document.Document
	suggestions []suggestion.Suggestion
	blocks      map[string]*block.Block
	tools       map[string]*tool.Record
	agents      map[string]*agent.Agent
	users       map[string]*user.User
	apiKeys     map[string]*user.APIKey
	clock       time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		chats:   map[string]*chat.Chat{},
		blocks:  map[string]*block.Block{},
		tools:   map[string]*tool.Record{},
		agents:  map[string]*agent.Agent{},
		users:   map[string]*user.User{},
		apiKeys: map[string]*user.APIKey{},
		clock:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

// tick returns a strictly increasing timestamp.
func (f *fakeStore) tick() time.Time {
	f.clock = f.clock.Add(time.Second)
	return f.clock
}

func (f *fakeStore) CreateChat(_ context.Context, c *chat.Chat) (*chat.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *c
	cp.ID = uuid.NewString()
	cp.CreatedAt = f.tick()
	cp.UpdatedAt = cp.CreatedAt
	f.chats[cp.ID] = &cp
	return &cp, nil
}

func (f *fakeStore) GetChat(_ context.Context, id string) (*chat.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.chats[id]
	if !ok {
		return nil, fmt.Errorf("get chat %s: %w", id, domain.ErrNotFound)
	}
	cp := *c
	return &cp, nil
}

func (f *fakeStore) ListChatsByOwner(_ context.Context, ownerID string) ([]chat.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []chat.Chat
	for _, c := range f.chats {
		if c.OwnerID == ownerID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeStore) DeleteChat(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.chats[id]; !ok {
		return domain.ErrNotFound
	}
	delete(f.chats, id)
	return nil
}

func (f *fakeStore) CreateMessage(_ context.Context, m *chat.Message) (*chat.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *m
	cp.ID = uuid.NewString()
	cp.CreatedAt = f.tick()
	f.messages = append(f.messages, cp)
	return &cp, nil
}

func (f *fakeStore) ListMessages(_ context.Context, chatID string) ([]chat.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []chat.Message
	for _, m := range f.messages {
		if m.ChatID == chatID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeStore) InsertDocumentVersion(_ context.Context, d *document.Document) (*document.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *d
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = f.tick()
	}
	f.documents = append(f.documents, cp)
	return &cp, nil
}

func (f *fakeStore) ListDocumentVersions(_ context.Context, id, ownerID string) ([]document.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []document.Document
	for _, d := range f.documents {
		if d.ID == id && d.OwnerID == ownerID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeStore) TruncateDocumentVersions(_ context.Context, id string, after time.Time, ownerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var keptDocs []document.Document
	removed := map[time.Time]bool{}
	for _, d := range f.documents {
		if d.ID == id && d.OwnerID == ownerID && d.CreatedAt.After(after) {
			removed[d.CreatedAt] = true
			continue
		}
		keptDocs = append(keptDocs, d)
	}
	f.documents = keptDocs

	var keptSugg []suggestion.Suggestion
	for _, sg := range f.suggestions {
		if sg.DocumentID == id && removed[sg.DocumentCreatedAt] {
			continue
		}
		keptSugg = append(keptSugg, sg)
	}
	f.suggestions = keptSugg
	return nil
}

func (f *fakeStore) CreateSuggestions(_ context.Context, batch []suggestion.Suggestion) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.suggestions = append(f.suggestions, batch...)
	return nil
}

func (f *fakeStore) ListSuggestionsByDocument(_ context.Context, documentID, ownerID string) ([]suggestion.Suggestion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []suggestion.Suggestion
	for _, sg := range f.suggestions {
		if sg.DocumentID == documentID && sg.OwnerID == ownerID {
			out = append(out, sg)
		}
	}
	return out, nil
}

func blockKey(name string, visibility block.Visibility, ownerID string) string {
	return name + "|" + string(visibility) + "|" + ownerID
}

func (f *fakeStore) GetBlock(_ context.Context, name string, visibility block.Visibility, ownerID string) (*block.Block, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.blocks[blockKey(name, visibility, ownerID)]
	if !ok {
		return nil, fmt.Errorf("get block %s: %w", name, domain.ErrNotFound)
	}
	cp := *b
	return &cp, nil
}

func (f *fakeStore) CreateBlock(_ context.Context, b *block.Block) (*block.Block, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *b
	cp.ID = uuid.NewString()
	cp.CreatedAt = f.tick()
	cp.UpdatedAt = cp.CreatedAt
	f.blocks[blockKey(cp.Name, cp.Visibility, cp.OwnerID)] = &cp
	return &cp, nil
}

func (f *fakeStore) UpdateBlockContent(_ context.Context, name string, visibility block.Visibility, ownerID, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.blocks[blockKey(name, visibility, ownerID)]
	if !ok {
		return domain.ErrNotFound
	}
	b.Content = content
	b.UpdatedAt = f.tick()
	return nil
}

func (f *fakeStore) ListBlocksByOwner(_ context.Context, ownerID string) ([]block.Block, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []block.Block
	for _, b := range f.blocks {
		if b.OwnerID == ownerID || b.Visibility == block.VisibilityPublic {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateTool(_ context.Context, t *tool.Record) (*tool.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *t
	cp.ID = uuid.NewString()
	cp.CreatedAt = f.tick()
	f.tools[cp.ID] = &cp
	return &cp, nil
}

func (f *fakeStore) GetToolsByIDs(_ context.Context, ids []string) ([]tool.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []tool.Record
	for _, id := range ids {
		if t, ok := f.tools[id]; ok {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeStore) ListTools(_ context.Context, ownerID string) ([]tool.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []tool.Record
	for _, t := range f.tools {
		if t.Visibility == tool.VisibilityPublic || t.OwnerID == ownerID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateAgent(_ context.Context, a *agent.Agent) (*agent.Agent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *a
	cp.ID = uuid.NewString()
	cp.CreatedAt = f.tick()
	cp.UpdatedAt = cp.CreatedAt
	f.agents[cp.ID] = &cp
	return &cp, nil
}

func (f *fakeStore) GetAgent(_ context.Context, id string) (*agent.Agent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.agents[id]
	if !ok {
		return nil, fmt.Errorf("get agent %s: %w", id, domain.ErrNotFound)
	}
	cp := *a
	return &cp, nil
}

func (f *fakeStore) ListAgents(_ context.Context, ownerID string) ([]agent.Agent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []agent.Agent
	for _, a := range f.agents {
		if a.Visibility == agent.VisibilityPublic || a.OwnerID == ownerID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeStore) DeleteAgent(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.agents[id]; !ok {
		return domain.ErrNotFound
	}
	delete(f.agents, id)
	return nil
}

func (f *fakeStore) CreateUser(_ context.Context, u *user.User) (*user.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *u
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	cp.CreatedAt = f.tick()
	f.users[cp.ID] = &cp
	return &cp, nil
}

func (f *fakeStore) GetUser(_ context.Context, id string) (*user.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeStore) CreateAPIKey(_ context.Context, k *user.APIKey) (*user.APIKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *k
	cp.ID = uuid.NewString()
	cp.CreatedAt = f.tick()
	f.apiKeys[cp.Prefix] = &cp
	return &cp, nil
}

func (f *fakeStore) GetAPIKeyByPrefix(_ context.Context, prefix string) (*user.APIKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k, ok := f.apiKeys[prefix]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *k
	return &cp, nil
}

func (f *fakeStore) TouchAPIKey(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range f.apiKeys {
		if k.ID == id {
			k.LastUsedAt = f.tick()
			return nil
		}
	}
	return domain.ErrNotFound
}

// fakeRunner replays scripted event sequences, one per Stream call.
type fakeRunner struct {
	mu       sync.Mutex
	scripts  [][]modelrunner.Event
	requests []*modelrunner.Request
}

func (r *fakeRunner) Stream(ctx context.Context, req *modelrunner.Request) (<-chan modelrunner.Event, error) {
	r.mu.Lock()
	r.requests = append(r.requests, req)
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
