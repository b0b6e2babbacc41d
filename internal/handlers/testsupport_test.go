package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/TaichKarna/levlelup/internal/mail"
	"github.com/TaichKarna/levlelup/internal/mq"
	"github.com/TaichKarna/levlelup/internal/oauth"
	"github.com/TaichKarna/levlelup/internal/services"
	"github.com/TaichKarna/levlelup/internal/storage"
	"github.com/TaichKarna/levlelup/internal/store"
	"github.com/TaichKarna/levlelup/internal/token"
	"github.com/TaichKarna/levlelup/types"
	"github.com/go-chi/chi/v5"
)

// memUserRepo is an in-memory services.UserRepository for handler
// tests.
type memUserRepo struct {
	nextID int
	users  map[int]types.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{nextID: 1, users: map[int]types.User{}}
}

func (r *memUserRepo) GetByID(_ context.Context, id int) (types.User, error) {
	user, ok := r.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (r *memUserRepo) GetByEmail(_ context.Context, email string) (types.User, error) {
	for _, user := range r.users {
		if user.Email == email {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *memUserRepo) GetByUsername(_ context.Context, username string) (types.User, error) {
	for _, user := range r.users {
		if user.Username == username {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *memUserRepo) GetByProviderIdentity(_ context.Context, provider, providerID string) (types.User, error) {
	for _, user := range r.users {
		if user.Provider == provider && user.ProviderID == providerID {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *memUserRepo) ListByUniversity(_ context.Context, universityID int) ([]types.User, error) {
	var out []types.User
	for _, user := range r.users {
		if user.UniversityID == universityID {
			out = append(out, user)
		}
	}
	return out, nil
}

func (r *memUserRepo) Create(_ context.Context, user types.User) (types.User, error) {
	for _, existing := range r.users {
		if existing.Email == user.Email || existing.Username == user.Username {
			return types.User{}, store.ErrDuplicate
		}
	}
	user.ID = r.nextID
	r.nextID++
	r.users[user.ID] = user
	return user, nil
}

func (r *memUserRepo) Update(_ context.Context, user types.User) (types.User, error) {
	if _, ok := r.users[user.ID]; !ok {
		return types.User{}, store.ErrNotFound
	}
	for id, existing := range r.users {
		if id != user.ID && (existing.Email == user.Email || existing.Username == user.Username) {
			return types.User{}, store.ErrDuplicate
		}
	}
	r.users[user.ID] = user
	return user, nil
}

func (r *memUserRepo) Delete(_ context.Context, id int) error {
	if _, ok := r.users[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.users, id)
	return nil
}

func (r *memUserRepo) ConsumeVerificationToken(_ context.Context, tok string) (types.User, error) {
	for id, user := range r.users {
		if user.VerificationToken == tok {
			user.VerificationToken = ""
			user.IsVerified = true
			r.users[id] = user
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *memUserRepo) SetResetToken(_ context.Context, email, tok string, expires time.Time) error {
	for id, user := range r.users {
		if user.Email == email {
			user.ResetPasswordToken = tok
			user.ResetPasswordExpires = expires
			r.users[id] = user
			return nil
		}
	}
	return store.ErrNotFound
}

func (r *memUserRepo) ConsumeResetToken(_ context.Context, tok, passwordHash string, now time.Time) (types.User, error) {
	for id, user := range r.users {
		if user.ResetPasswordToken == tok && user.ResetPasswordExpires.After(now) {
			user.PasswordHash = passwordHash
			user.ResetPasswordToken = ""
			r.users[id] = user
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

// memUniversityRepo is an in-memory services.UniversityRepository.
type memUniversityRepo struct {
	nextID     int
	nextDocID  int
	nextChalID int
	unis       map[int]types.University
	docs       map[int]types.Document
	challenges map[int]types.Challenge
}

func newMemUniversityRepo() *memUniversityRepo {
	return &memUniversityRepo{
		nextID:     1,
		nextDocID:  1,
		nextChalID: 1,
		unis:       map[int]types.University{},
		docs:       map[int]types.Document{},
		challenges: map[int]types.Challenge{},
	}
}

func (r *memUniversityRepo) GetByID(_ context.Context, id int) (types.University, error) {
	uni, ok := r.unis[id]
	if !ok {
		return types.University{}, store.ErrNotFound
	}
	return uni, nil
}

func (r *memUniversityRepo) GetByName(_ context.Context, name string) (types.University, error) {
	for _, uni := range r.unis {
		if strings.EqualFold(uni.Name, name) {
			return uni, nil
		}
	}
	return types.University{}, store.ErrNotFound
}

func (r *memUniversityRepo) Create(_ context.Context, uni types.University) (types.University, error) {
	for _, existing := range r.unis {
		if strings.EqualFold(existing.Name, uni.Name) {
			return types.University{}, store.ErrDuplicate
		}
	}
	uni.ID = r.nextID
	r.nextID++
	r.unis[uni.ID] = uni
	return uni, nil
}

func (r *memUniversityRepo) SetVerified(_ context.Context, name string) error {
	for id, uni := range r.unis {
		if strings.EqualFold(uni.Name, name) {
			uni.IsVerified = true
			r.unis[id] = uni
			return nil
		}
	}
	return store.ErrNotFound
}

func (r *memUniversityRepo) SetRatingRequested(_ context.Context, id int) error {
	uni, ok := r.unis[id]
	if !ok {
		return store.ErrNotFound
	}
	if uni.RatingRequested {
		return store.ErrDuplicate
	}
	uni.RatingRequested = true
	r.unis[id] = uni
	return nil
}

func (r *memUniversityRepo) SetReport(_ context.Context, id int, report types.Report) error {
	uni, ok := r.unis[id]
	if !ok {
		return store.ErrNotFound
	}
	uni.Report = &report
	r.unis[id] = uni
	return nil
}

func (r *memUniversityRepo) AddDocument(_ context.Context, doc types.Document) (types.Document, error) {
	doc.ID = r.nextDocID
	r.nextDocID++
	r.docs[doc.ID] = doc
	return doc, nil
}

func (r *memUniversityRepo) ListDocuments(_ context.Context, universityID int, kind string) ([]types.Document, error) {
	var out []types.Document
	for _, doc := range r.docs {
		if doc.UniversityID == universityID && doc.Kind == kind {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (r *memUniversityRepo) GetDocument(_ context.Context, universityID, docID int) (types.Document, error) {
	doc, ok := r.docs[docID]
	if !ok || doc.UniversityID != universityID {
		return types.Document{}, store.ErrNotFound
	}
	return doc, nil
}

func (r *memUniversityRepo) DeleteDocument(_ context.Context, universityID, docID int) error {
	doc, ok := r.docs[docID]
	if !ok || doc.UniversityID != universityID {
		return store.ErrNotFound
	}
	delete(r.docs, docID)
	return nil
}

func (r *memUniversityRepo) AddChallenge(_ context.Context, challenge types.Challenge) (types.Challenge, error) {
	challenge.ID = r.nextChalID
	challenge.Status = types.ChallengeStatusPending
	r.nextChalID++
	r.challenges[challenge.ID] = challenge
	return challenge, nil
}

func (r *memUniversityRepo) ListChallenges(_ context.Context, universityID int) ([]types.Challenge, error) {
	var out []types.Challenge
	for _, c := range r.challenges {
		if c.UniversityID == universityID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *memUniversityRepo) ListChallenged(_ context.Context) ([]types.University, error) {
	seen := map[int]bool{}
	var out []types.University
	for _, c := range r.challenges {
		if !seen[c.UniversityID] {
			seen[c.UniversityID] = true
			out = append(out, r.unis[c.UniversityID])
		}
	}
	return out, nil
}

func (r *memUniversityRepo) RespondToChallenge(_ context.Context, challengeID int, response, status string) error {
	c, ok := r.challenges[challengeID]
	if !ok {
		return store.ErrNotFound
	}
	now := time.Now()
	c.Response = response
	c.Status = status
	c.RespondedAt = &now
	r.challenges[challengeID] = c
	return nil
}

// memObjects is an in-memory storage.ObjectStorage.
type memObjects struct {
	objects map[string][]byte
}

func newMemObjects() *memObjects {
	return &memObjects{objects: map[string][]byte{}}
}

func (m *memObjects) EnsureBucket(context.Context) error { return nil }

func (m *memObjects) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.objects[key] = data
	return nil
}

func (m *memObjects) Get(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := m.objects[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memObjects) Delete(_ context.Context, key string) error {
	delete(m.objects, key)
	return nil
}

func (m *memObjects) Bucket() string { return "test-bucket" }

// memBroker is an in-memory mq.Backend that records published
// messages.
type memBroker struct {
	published []mq.Message
}

func (b *memBroker) Publish(_ context.Context, _ string, data []byte, attrs map[string]string) (string, error) {
	msg := mq.Message{ID: fmt.Sprintf("msg-%d", len(b.published)+1), Data: data, Attributes: attrs}
	b.published = append(b.published, msg)
	return msg.ID, nil
}

func (b *memBroker) Subscribe(context.Context, string, mq.Handler) error { return nil }
func (b *memBroker) Close() error                                        { return nil }

// stubProvider is a canned oauth.Provider.
type stubProvider struct {
	name    string
	profile oauth.Profile
	err     error
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) LoginURL(state string) string {
	return "https://provider.test/authorize?state=" + state
}

func (p *stubProvider) Exchange(_ context.Context, code string) (oauth.Profile, error) {
	if p.err != nil {
		return oauth.Profile{}, p.err
	}
	if code == "" {
		return oauth.Profile{}, oauth.ErrAuthFailed
	}
	return p.profile, nil
}

// testEnv wires the full route tree against in-memory dependencies.
type testEnv struct {
	router   chi.Router
	users    *memUserRepo
	unis     *memUniversityRepo
	objects  *memObjects
	broker   *memBroker
	issuer   *token.Issuer
	userSvc  *services.UserService
	uniSvc   *services.UniversityService
	provider *stubProvider
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	users := newMemUserRepo()
	unis := newMemUniversityRepo()
	objects := newMemObjects()
	broker := &memBroker{}

	issuer := token.NewIssuer(token.Config{
		AccessSecret:  "test-access-secret",
		RefreshSecret: "test-refresh-secret",
	})
	userSvc := services.NewUserService(users, unis)
	uniSvc := services.NewUniversityService(unis, storage.NewStorage(objects), "https://cdn.example")
	mailer := mail.NewMailer(mq.New(broker))
	provider := &stubProvider{name: "google", profile: oauth.Profile{
		ID:          "goog-123",
		Email:       "oauth@example.com",
		DisplayName: "OAuth User",
	}}

	authHandler := NewAuthHandler(AuthHandlerConfig{
		Users:     userSvc,
		Issuer:    issuer,
		Mailer:    mailer,
		Providers: []oauth.Provider{provider},
		ClientURL: "https://app.example",
	})
	userHandler := NewUserHandler(userSvc, uniSvc)
	uniHandler := NewUniversityHandler(uniSvc, userSvc)
	adminHandler := NewAdminHandler(uniSvc)

	r := chi.NewRouter()
	r.Route("/api/auth", func(r chi.Router) { AuthRouter(r, authHandler) })
	r.Route("/api/user", func(r chi.Router) { UserRouter(r, userHandler, authHandler.RequireAuth) })
	r.Route("/api/university", func(r chi.Router) { UniversityRouter(r, uniHandler, authHandler.RequireAuth) })
	r.Route("/api/admin", func(r chi.Router) { AdminRouter(r, adminHandler, authHandler.RequireAuth) })

	return &testEnv{
		router:   r,
		users:    users,
		unis:     unis,
		objects:  objects,
		broker:   broker,
		issuer:   issuer,
		userSvc:  userSvc,
		uniSvc:   uniSvc,
		provider: provider,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, opts ...func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, opt := range opts {
		opt(req)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func withBearer(accessToken string) func(*http.Request) {
	return func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+accessToken)
	}
}

// seedAccount creates a verified user under a verified university and
// returns the user and a valid access token.
func (e *testEnv) seedAccount(t *testing.T, username, email, role string) (types.User, string) {
	t.Helper()
	ctx := context.Background()

	uni, err := e.unis.GetByName(ctx, "Seed University")
	if err != nil {
		uni, err = e.unis.Create(ctx, types.University{
			Name:            "Seed University",
			InstitutionType: "Private",
			IsVerified:      true,
		})
		if err != nil {
			t.Fatalf("seed university: %v", err)
		}
	}

	user, err := e.userSvc.AddUniversityUser(ctx, uni.ID, username, email, "hunter22")
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	if role != types.RoleUser {
		user.Role = role
		if user, err = e.users.Update(ctx, user); err != nil {
			t.Fatalf("set role: %v", err)
		}
	}

	accessToken, err := e.issuer.IssueAccess(token.Claims{UserID: user.ID, Email: user.Email, Role: user.Role})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return user, accessToken
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v\nbody: %s", err, rec.Body.String())
	}
	return out
}
