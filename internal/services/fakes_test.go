package services

import (
	"bytes"
	"context"
	"io"
	"strings"
	"time"

	"github.com/TaichKarna/levlelup/internal/store"
	"github.com/TaichKarna/levlelup/types"
)

// fakeUserRepo is an in-memory UserRepository mirroring the database
// semantics the service layer depends on: unique usernames and emails,
// and token consumption that works exactly once.
type fakeUserRepo struct {
	nextID int
	users  map[int]types.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{nextID: 1, users: map[int]types.User{}}
}

func (r *fakeUserRepo) GetByID(_ context.Context, id int) (types.User, error) {
	user, ok := r.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (types.User, error) {
	for _, user := range r.users {
		if user.Email == email {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *fakeUserRepo) GetByUsername(_ context.Context, username string) (types.User, error) {
	for _, user := range r.users {
		if user.Username == username {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *fakeUserRepo) GetByProviderIdentity(_ context.Context, provider, providerID string) (types.User, error) {
	for _, user := range r.users {
		if user.Provider == provider && user.ProviderID == providerID {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *fakeUserRepo) ListByUniversity(_ context.Context, universityID int) ([]types.User, error) {
	var out []types.User
	for _, user := range r.users {
		if user.UniversityID == universityID {
			out = append(out, user)
		}
	}
	return out, nil
}

func (r *fakeUserRepo) Create(_ context.Context, user types.User) (types.User, error) {
	for _, existing := range r.users {
		if existing.Email == user.Email || existing.Username == user.Username {
			return types.User{}, store.ErrDuplicate
		}
	}
	user.ID = r.nextID
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	r.nextID++
	r.users[user.ID] = user
	return user, nil
}

func (r *fakeUserRepo) Update(_ context.Context, user types.User) (types.User, error) {
	if _, ok := r.users[user.ID]; !ok {
		return types.User{}, store.ErrNotFound
	}
	for id, existing := range r.users {
		if id == user.ID {
			continue
		}
		if existing.Email == user.Email || existing.Username == user.Username {
			return types.User{}, store.ErrDuplicate
		}
	}
	user.UpdatedAt = time.Now()
	r.users[user.ID] = user
	return user, nil
}

func (r *fakeUserRepo) Delete(_ context.Context, id int) error {
	if _, ok := r.users[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.users, id)
	return nil
}

func (r *fakeUserRepo) ConsumeVerificationToken(_ context.Context, token string) (types.User, error) {
	for id, user := range r.users {
		if user.VerificationToken == token {
			user.VerificationToken = ""
			user.IsVerified = true
			r.users[id] = user
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *fakeUserRepo) SetResetToken(_ context.Context, email, token string, expires time.Time) error {
	for id, user := range r.users {
		if user.Email == email {
			user.ResetPasswordToken = token
			user.ResetPasswordExpires = expires
			r.users[id] = user
			return nil
		}
	}
	return store.ErrNotFound
}

func (r *fakeUserRepo) ConsumeResetToken(_ context.Context, token, passwordHash string, now time.Time) (types.User, error) {
	for id, user := range r.users {
		if user.ResetPasswordToken == token && user.ResetPasswordExpires.After(now) {
			user.PasswordHash = passwordHash
			user.ResetPasswordToken = ""
			user.ResetPasswordExpires = time.Time{}
			r.users[id] = user
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

// fakeUniversityRepo is an in-memory UniversityRepository.
type fakeUniversityRepo struct {
	nextID     int
	nextDocID  int
	nextChalID int

	unis       map[int]types.University
	docs       map[int]types.Document
	challenges map[int]types.Challenge
}

func newFakeUniversityRepo() *fakeUniversityRepo {
	return &fakeUniversityRepo{
		nextID:     1,
		nextDocID:  1,
		nextChalID: 1,
		unis:       map[int]types.University{},
		docs:       map[int]types.Document{},
		challenges: map[int]types.Challenge{},
	}
}

func (r *fakeUniversityRepo) GetByID(_ context.Context, id int) (types.University, error) {
	uni, ok := r.unis[id]
	if !ok {
		return types.University{}, store.ErrNotFound
	}
	return uni, nil
}

func (r *fakeUniversityRepo) GetByName(_ context.Context, name string) (types.University, error) {
	for _, uni := range r.unis {
		if strings.EqualFold(uni.Name, name) {
			return uni, nil
		}
	}
	return types.University{}, store.ErrNotFound
}

func (r *fakeUniversityRepo) Create(_ context.Context, uni types.University) (types.University, error) {
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

func (r *fakeUniversityRepo) SetVerified(_ context.Context, name string) error {
	for id, uni := range r.unis {
		if strings.EqualFold(uni.Name, name) {
			uni.IsVerified = true
			r.unis[id] = uni
			return nil
		}
	}
	return store.ErrNotFound
}

func (r *fakeUniversityRepo) SetRatingRequested(_ context.Context, id int) error {
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

func (r *fakeUniversityRepo) SetReport(_ context.Context, id int, report types.Report) error {
	uni, ok := r.unis[id]
	if !ok {
		return store.ErrNotFound
	}
	uni.Report = &report
	r.unis[id] = uni
	return nil
}

func (r *fakeUniversityRepo) AddDocument(_ context.Context, doc types.Document) (types.Document, error) {
	doc.ID = r.nextDocID
	doc.UploadedAt = time.Now()
	r.nextDocID++
	r.docs[doc.ID] = doc
	return doc, nil
}

func (r *fakeUniversityRepo) ListDocuments(_ context.Context, universityID int, kind string) ([]types.Document, error) {
	var out []types.Document
	for _, doc := range r.docs {
		if doc.UniversityID == universityID && doc.Kind == kind {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (r *fakeUniversityRepo) GetDocument(_ context.Context, universityID, docID int) (types.Document, error) {
	doc, ok := r.docs[docID]
	if !ok || doc.UniversityID != universityID {
		return types.Document{}, store.ErrNotFound
	}
	return doc, nil
}

func (r *fakeUniversityRepo) DeleteDocument(_ context.Context, universityID, docID int) error {
	doc, ok := r.docs[docID]
	if !ok || doc.UniversityID != universityID {
		return store.ErrNotFound
	}
	delete(r.docs, docID)
	return nil
}

func (r *fakeUniversityRepo) AddChallenge(_ context.Context, challenge types.Challenge) (types.Challenge, error) {
	challenge.ID = r.nextChalID
	challenge.Status = types.ChallengeStatusPending
	challenge.ChallengedAt = time.Now()
	r.nextChalID++
	r.challenges[challenge.ID] = challenge
	return challenge, nil
}

func (r *fakeUniversityRepo) ListChallenges(_ context.Context, universityID int) ([]types.Challenge, error) {
	var out []types.Challenge
	for _, c := range r.challenges {
		if c.UniversityID == universityID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *fakeUniversityRepo) ListChallenged(_ context.Context) ([]types.University, error) {
	seen := map[int]bool{}
	var out []types.University
	for _, c := range r.challenges {
		if seen[c.UniversityID] {
			continue
		}
		seen[c.UniversityID] = true
		out = append(out, r.unis[c.UniversityID])
	}
	return out, nil
}

func (r *fakeUniversityRepo) RespondToChallenge(_ context.Context, challengeID int, response, status string) error {
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

// fakeObjectStorage keeps objects in a map.
type fakeObjectStorage struct {
	objects map[string][]byte
}

func newFakeObjectStorage() *fakeObjectStorage {
	return &fakeObjectStorage{objects: map[string][]byte{}}
}

func (f *fakeObjectStorage) EnsureBucket(context.Context) error { return nil }

func (f *fakeObjectStorage) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.objects[key] = data
	return nil
}

func (f *fakeObjectStorage) Get(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := f.objects[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeObjectStorage) Delete(_ context.Context, key string) error {
	delete(f.objects, key)
	return nil
}

func (f *fakeObjectStorage) Bucket() string { return "test-bucket" }
