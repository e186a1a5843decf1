package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sort"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"memory-agent/internal/domain"
	"memory-agent/internal/service"
)

// memState es el almacenamiento compartido de los repos en memoria.
// Modela las mismas cascadas que las FKs del esquema real.
type memState struct {
	users        map[string]domain.User
	usersByEmail map[string]string
	chats        map[string]domain.Chat
	messages     []domain.Message
}

func newMemState() *memState {
	return &memState{
		users:        make(map[string]domain.User),
		usersByEmail: make(map[string]string),
		chats:        make(map[string]domain.Chat),
	}
}

type memUserRepo struct{ s *memState }

func (r *memUserRepo) Create(_ context.Context, user domain.User) error {
	if _, ok := r.s.usersByEmail[user.Email]; ok {
		return &pgconn.PgError{Code: "23505"}
	}
	r.s.users[user.ID] = user
	r.s.usersByEmail[user.Email] = user.ID
	return nil
}

func (r *memUserRepo) GetByID(_ context.Context, id string) (domain.User, error) {
	user, ok := r.s.users[id]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return user, nil
}

func (r *memUserRepo) GetByEmail(_ context.Context, email string) (domain.User, error) {
	id, ok := r.s.usersByEmail[email]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return r.s.users[id], nil
}

func (r *memUserRepo) Delete(_ context.Context, id string) error {
	user, ok := r.s.users[id]
	if !ok {
		return pgx.ErrNoRows
	}
	delete(r.s.users, id)
	delete(r.s.usersByEmail, user.Email)
	for chatID, chat := range r.s.chats {
		if chat.UserID == id {
			delete(r.s.chats, chatID)
		}
	}
	kept := r.s.messages[:0]
	for _, msg := range r.s.messages {
		if msg.UserID != id {
			kept = append(kept, msg)
		}
	}
	r.s.messages = kept
	return nil
}

type memChatRepo struct{ s *memState }

func (r *memChatRepo) Create(_ context.Context, chat domain.Chat) error {
	r.s.chats[chat.ID] = chat
	return nil
}

func (r *memChatRepo) GetByID(_ context.Context, id string) (domain.Chat, error) {
	chat, ok := r.s.chats[id]
	if !ok {
		return domain.Chat{}, pgx.ErrNoRows
	}
	return chat, nil
}

func (r *memChatRepo) ListByOwner(_ context.Context, ownerID string) ([]domain.Chat, error) {
	var out []domain.Chat
	for _, chat := range r.s.chats {
		if chat.UserID == ownerID {
			out = append(out, chat)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *memChatRepo) RenameOwned(_ context.Context, id, ownerID, title string) (domain.Chat, error) {
	chat, ok := r.s.chats[id]
	if !ok || chat.UserID != ownerID {
		return domain.Chat{}, pgx.ErrNoRows
	}
	chat.Title = title
	r.s.chats[id] = chat
	return chat, nil
}

func (r *memChatRepo) DeleteOwned(_ context.Context, id, ownerID string) (bool, error) {
	chat, ok := r.s.chats[id]
	if !ok || chat.UserID != ownerID {
		return false, nil
	}
	delete(r.s.chats, id)
	kept := r.s.messages[:0]
	for _, msg := range r.s.messages {
		if msg.ChatID != id {
			kept = append(kept, msg)
		}
	}
	r.s.messages = kept
	return true, nil
}

type memMessageRepo struct{ s *memState }

func (r *memMessageRepo) CreateExchange(_ context.Context, userMsg, assistantMsg domain.Message) error {
	if _, ok := r.s.chats[userMsg.ChatID]; !ok {
		return pgx.ErrNoRows
	}
	r.s.messages = append(r.s.messages, userMsg, assistantMsg)
	return nil
}

func (r *memMessageRepo) ListByChatID(_ context.Context, chatID string) ([]domain.Message, error) {
	var out []domain.Message
	for _, msg := range r.s.messages {
		if msg.ChatID == chatID {
			out = append(out, msg)
		}
	}
	return out, nil
}

func newTestServer(t *testing.T) (*gin.Engine, *memState) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	state := newMemState()
	tokens, err := service.NewTokenService("secret", "HS256", time.Hour)
	if err != nil {
		t.Fatalf("new token service: %v", err)
	}
	authSvc := service.NewAuthService(zap.NewNop(), &memUserRepo{state}, tokens)
	chatSvc := service.NewChatService(&memChatRepo{state})
	messageSvc := service.NewMessageService(&memMessageRepo{state}, chatSvc)

	authH := NewAuthHandler(zap.NewNop(), authSvc)
	chatH := NewChatHandler(zap.NewNop(), chatSvc, messageSvc)
	return NewRouter(zap.NewNop(), "http://localhost:5173", tokens, authH, chatH), state
}

func performRequest(r http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	var payload []byte
	if body != nil {
		payload, _ = json.Marshal(body)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func registerUser(t *testing.T, r http.Handler, email, password string) string {
	t.Helper()
	rec := performRequest(r, http.MethodPost, "/auth/register", "", map[string]string{
		"email":    email,
		"password": password,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("register %s: status %d body %s", email, rec.Code, rec.Body.String())
	}
	var resp struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode register response: %v", err)
	}
	return resp.AccessToken
}

var defaultTitleRe = regexp.MustCompile(`^Chat \d{4}-\d{2}-\d{2} \d{2}:\d{2}$`)

func TestChatFlow_RegisterCreateSendList(t *testing.T) {
	r, _ := newTestServer(t)
	token := registerUser(t, r, "alice@example.com", "pw1")

	rec := performRequest(r, http.MethodPost, "/chats", token, map[string]any{})
	if rec.Code != http.StatusOK {
		t.Fatalf("create chat: status %d body %s", rec.Code, rec.Body.String())
	}
	var chat domain.Chat
	if err := json.Unmarshal(rec.Body.Bytes(), &chat); err != nil {
		t.Fatalf("decode chat: %v", err)
	}
	if !defaultTitleRe.MatchString(chat.Title) {
		t.Fatalf("unexpected default title %q", chat.Title)
	}

	rec = performRequest(r, http.MethodPost, "/chats/"+chat.ID+"/messages", token, map[string]string{
		"content": "hello",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("send message: status %d body %s", rec.Code, rec.Body.String())
	}
	var reply domain.Message
	if err := json.Unmarshal(rec.Body.Bytes(), &reply); err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	if reply.Role != domain.RoleAssistant || reply.Content != "Message received" {
		t.Fatalf("unexpected reply %+v", reply)
	}

	rec = performRequest(r, http.MethodGet, "/chats/"+chat.ID+"/messages", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list messages: status %d", rec.Code)
	}
	var messages []domain.Message
	if err := json.Unmarshal(rec.Body.Bytes(), &messages); err != nil {
		t.Fatalf("decode messages: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(messages))
	}
	if messages[0].Role != domain.RoleUser || messages[0].Content != "hello" {
		t.Fatalf("unexpected first message %+v", messages[0])
	}
	if messages[1].Role != domain.RoleAssistant || messages[1].Content != "Message received" {
		t.Fatalf("unexpected second message %+v", messages[1])
	}
}

func TestChatAccess_OtherUserForbidden(t *testing.T) {
	r, _ := newTestServer(t)
	aliceToken := registerUser(t, r, "alice@example.com", "pw1")
	bobToken := registerUser(t, r, "bob@example.com", "pw2")

	rec := performRequest(r, http.MethodPost, "/chats", aliceToken, map[string]string{"title": "privado"})
	var chat domain.Chat
	if err := json.Unmarshal(rec.Body.Bytes(), &chat); err != nil {
		t.Fatalf("decode chat: %v", err)
	}

	rec = performRequest(r, http.MethodGet, "/chats/"+chat.ID+"/messages", bobToken, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d body %s", rec.Code, rec.Body.String())
	}

	rec = performRequest(r, http.MethodPatch, "/chats/"+chat.ID, bobToken, map[string]string{"title": "mio"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("rename by non-owner: expected 403, got %d", rec.Code)
	}

	rec = performRequest(r, http.MethodDelete, "/chats/"+chat.ID, bobToken, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("delete by non-owner: expected 403, got %d", rec.Code)
	}
}

func TestChatRename(t *testing.T) {
	r, _ := newTestServer(t)
	token := registerUser(t, r, "alice@example.com", "pw1")

	rec := performRequest(r, http.MethodPost, "/chats", token, map[string]string{"title": "original"})
	var chat domain.Chat
	if err := json.Unmarshal(rec.Body.Bytes(), &chat); err != nil {
		t.Fatalf("decode chat: %v", err)
	}

	rec = performRequest(r, http.MethodPatch, "/chats/"+chat.ID, token, map[string]string{"title": "renombrado"})
	if rec.Code != http.StatusOK {
		t.Fatalf("rename: status %d body %s", rec.Code, rec.Body.String())
	}
	var renamed domain.Chat
	if err := json.Unmarshal(rec.Body.Bytes(), &renamed); err != nil {
		t.Fatalf("decode renamed: %v", err)
	}
	if renamed.Title != "renombrado" {
		t.Fatalf("unexpected title %q", renamed.Title)
	}

	// Cadena vacía es un título válido: se guarda tal cual.
	rec = performRequest(r, http.MethodPatch, "/chats/"+chat.ID, token, map[string]string{"title": ""})
	if rec.Code != http.StatusOK {
		t.Fatalf("rename empty: status %d body %s", rec.Code, rec.Body.String())
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &renamed); err != nil {
		t.Fatalf("decode renamed: %v", err)
	}
	if renamed.Title != "" {
		t.Fatalf("expected empty title, got %q", renamed.Title)
	}

	// Sin título el request es inválido.
	rec = performRequest(r, http.MethodPatch, "/chats/"+chat.ID, token, map[string]any{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("rename without title: expected 400, got %d", rec.Code)
	}
}

func TestChatRename_UnknownChat(t *testing.T) {
	r, _ := newTestServer(t)
	token := registerUser(t, r, "alice@example.com", "pw1")

	rec := performRequest(r, http.MethodPatch, "/chats/4c9e1f5e-9f0a-4f3b-8d48-0f1f6f3c2ab1", token, map[string]string{"title": "x"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestChatDelete_CascadesMessages(t *testing.T) {
	r, state := newTestServer(t)
	token := registerUser(t, r, "alice@example.com", "pw1")

	rec := performRequest(r, http.MethodPost, "/chats", token, map[string]any{})
	var chat domain.Chat
	if err := json.Unmarshal(rec.Body.Bytes(), &chat); err != nil {
		t.Fatalf("decode chat: %v", err)
	}
	performRequest(r, http.MethodPost, "/chats/"+chat.ID+"/messages", token, map[string]string{"content": "hola"})
	if len(state.messages) != 2 {
		t.Fatalf("expected 2 messages before delete, got %d", len(state.messages))
	}

	rec = performRequest(r, http.MethodDelete, "/chats/"+chat.ID, token, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", rec.Code)
	}
	if len(state.messages) != 0 {
		t.Fatalf("expected messages cascaded, got %d", len(state.messages))
	}

	rec = performRequest(r, http.MethodGet, "/chats/"+chat.ID+"/messages", token, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("list after delete: expected 404, got %d", rec.Code)
	}
}

func TestChatList_NewestFirst(t *testing.T) {
	r, _ := newTestServer(t)
	token := registerUser(t, r, "alice@example.com", "pw1")

	performRequest(r, http.MethodPost, "/chats", token, map[string]string{"title": "primero"})
	performRequest(r, http.MethodPost, "/chats", token, map[string]string{"title": "segundo"})

	rec := performRequest(r, http.MethodGet, "/chats", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list chats: status %d", rec.Code)
	}
	var chats []domain.Chat
	if err := json.Unmarshal(rec.Body.Bytes(), &chats); err != nil {
		t.Fatalf("decode chats: %v", err)
	}
	if len(chats) != 2 {
		t.Fatalf("expected 2 chats, got %d", len(chats))
	}
	if chats[0].Title != "segundo" {
		t.Fatalf("expected newest first, got %q", chats[0].Title)
	}
}

func TestChatEndpoints_RequireToken(t *testing.T) {
	r, _ := newTestServer(t)

	rec := performRequest(r, http.MethodPost, "/chats", "", map[string]any{})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
	rec = performRequest(r, http.MethodGet, "/chats", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
}
