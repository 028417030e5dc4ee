package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/pipeline-service/internal/auth"
	"github.com/iliyamo/pipeline-service/internal/model"
	"github.com/iliyamo/pipeline-service/internal/queue"
	"github.com/iliyamo/pipeline-service/internal/repository"
)

// memUsers is an in-memory UserStore.  raceOnCreate simulates a concurrent
// signup winning between the lookup and the insert.
type memUsers struct {
	byName       map[string]*model.User
	nextID       uint64
	raceOnCreate bool
	err          error
}

func newMemUsers() *memUsers { return &memUsers{byName: map[string]*model.User{}} }

func (m *memUsers) Create(_ context.Context, u *model.User) error {
	if m.raceOnCreate {
		return repository.ErrDuplicate
	}
	for _, e := range m.byName {
		if e.Username == u.Username || e.Email == u.Email {
			return repository.ErrDuplicate
		}
	}
	m.nextID++
	u.ID = m.nextID
	cp := *u
	m.byName[u.Username] = &cp
	return nil
}

func (m *memUsers) GetByUsername(_ context.Context, username string) (*model.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	if u, ok := m.byName[username]; ok {
		return u, nil
	}
	return nil, repository.ErrNotFound
}

func (m *memUsers) GetByUsernameOrEmail(_ context.Context, username, email string) (*model.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, u := range m.byName {
		if u.Username == username || u.Email == email {
			return u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func newAuthService(t *testing.T) (*AuthService, *auth.TokenService) {
	t.Helper()
	tokens := auth.NewTokenService("secret")
	s, err := NewAuthService(auth.NewHasher(bcrypt.MinCost), tokens)
	require.NoError(t, err)
	return s, tokens
}

func TestAuthService_SignupLoginProfile(t *testing.T) {
	s, tokens := newAuthService(t)
	users := newMemUsers()
	ctx := context.Background()

	u, err := s.Signup(ctx, users, SignupInput{Username: " alice ", Password: "pw1", Email: "A@X.com"})
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)
	assert.Equal(t, "a@x.com", u.Email)
	assert.NotEqual(t, "pw1", u.PasswordHash)
	assert.False(t, u.CreatedAt.IsZero())

	tok, err := s.Login(ctx, users, LoginInput{Username: "alice", Password: "pw1"})
	require.NoError(t, err)
	sub, err := tokens.Validate(tok.Raw)
	require.NoError(t, err)
	assert.Equal(t, "alice", sub)

	p, err := s.Profile(ctx, users, "alice")
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", p.Email)

	_, err = s.Profile(ctx, users, "ghost")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestAuthService_LoginTrimsUsernameLikeSignup(t *testing.T) {
	s, tokens := newAuthService(t)
	users := newMemUsers()
	ctx := context.Background()

	_, err := s.Signup(ctx, users, SignupInput{Username: " alice", Password: "pw1", Email: "a@x.com"})
	require.NoError(t, err)

	for _, name := range []string{" alice", "alice ", "alice"} {
		tok, err := s.Login(ctx, users, LoginInput{Username: name, Password: "pw1"})
		require.NoError(t, err, "username %q", name)
		sub, err := tokens.Validate(tok.Raw)
		require.NoError(t, err)
		assert.Equal(t, "alice", sub)
	}
}

func TestAuthService_SignupDuplicate(t *testing.T) {
	s, _ := newAuthService(t)
	users := newMemUsers()
	ctx := context.Background()

	_, err := s.Signup(ctx, users, SignupInput{Username: "alice", Password: "pw1", Email: "a@x.com"})
	require.NoError(t, err)

	_, err = s.Signup(ctx, users, SignupInput{Username: "alice", Password: "pw2", Email: "other@x.com"})
	assert.ErrorIs(t, err, ErrDuplicateCredential)

	_, err = s.Signup(ctx, users, SignupInput{Username: "alice2", Password: "pw2", Email: "A@x.com"})
	assert.ErrorIs(t, err, ErrDuplicateCredential, "email comparison is case-insensitive")

	users.raceOnCreate = true
	_, err = s.Signup(ctx, users, SignupInput{Username: "carol", Password: "pw", Email: "c@x.com"})
	assert.ErrorIs(t, err, ErrDuplicateCredential)
}

func TestAuthService_SignupValidation(t *testing.T) {
	s, _ := newAuthService(t)
	tests := map[string]SignupInput{
		"no username": {Password: "pw", Email: "a@x.com"},
		"no password": {Username: "a", Email: "a@x.com"},
		"no email":    {Username: "a", Password: "pw"},
		"bad email":   {Username: "a", Password: "pw", Email: "not-an-email"},
		"named email": {Username: "a", Password: "pw", Email: "Alice <a@x.com>"},
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := s.Signup(context.Background(), newMemUsers(), in)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestAuthService_LoginFailuresLookAlike(t *testing.T) {
	s, _ := newAuthService(t)
	users := newMemUsers()
	ctx := context.Background()
	_, err := s.Signup(ctx, users, SignupInput{Username: "alice", Password: "pw1", Email: "a@x.com"})
	require.NoError(t, err)

	_, wrongPw := s.Login(ctx, users, LoginInput{Username: "alice", Password: "wrong"})
	_, unknown := s.Login(ctx, users, LoginInput{Username: "ghost", Password: "pw1"})
	_, empty := s.Login(ctx, users, LoginInput{})

	assert.ErrorIs(t, wrongPw, ErrInvalidCredentials)
	assert.ErrorIs(t, unknown, ErrInvalidCredentials)
	assert.ErrorIs(t, empty, ErrInvalidCredentials)
	assert.Equal(t, wrongPw.Error(), unknown.Error())
}

func TestAuthService_StoreFailure(t *testing.T) {
	s, _ := newAuthService(t)
	users := newMemUsers()
	users.err = errors.New("db down")

	_, err := s.Login(context.Background(), users, LoginInput{Username: "a", Password: "b"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)

	_, err = s.Signup(context.Background(), users, SignupInput{Username: "a", Password: "b", Email: "a@x.com"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrDuplicateCredential)
}

// memPipelines is an in-memory PipelineStore enforcing the owner predicate.
type memPipelines struct {
	rows   map[uint64]*model.Pipeline
	owners map[uint64]string
	nextID uint64
}

func newMemPipelines(owners map[uint64]string) *memPipelines {
	return &memPipelines{rows: map[uint64]*model.Pipeline{}, owners: owners}
}

func (m *memPipelines) Create(_ context.Context, p *model.Pipeline) error {
	if _, ok := m.owners[p.OwnerID]; !ok {
		return repository.ErrOwnerMissing
	}
	m.nextID++
	p.ID = m.nextID
	cp := *p
	m.rows[p.ID] = &cp
	return nil
}

func (m *memPipelines) GetByID(_ context.Context, id uint64) (*model.Pipeline, error) {
	p, ok := m.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	cp.OwnerUsername = m.owners[p.OwnerID]
	return &cp, nil
}

func (m *memPipelines) ListByOwner(_ context.Context, ownerID uint64) ([]*model.Pipeline, error) {
	out := []*model.Pipeline{}
	for id := uint64(1); id <= m.nextID; id++ {
		if p, ok := m.rows[id]; ok && p.OwnerID == ownerID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memPipelines) UpdateByIDAndOwner(_ context.Context, id, ownerID uint64, name, status string) error {
	p, ok := m.rows[id]
	if !ok || p.OwnerID != ownerID {
		return repository.ErrNotFound
	}
	p.Name, p.Status = name, status
	return nil
}

func (m *memPipelines) DeleteByIDAndOwner(_ context.Context, id, ownerID uint64) error {
	p, ok := m.rows[id]
	if !ok || p.OwnerID != ownerID {
		return repository.ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

type recordingPublisher struct {
	mu        sync.Mutex
	events    []queue.PipelineEvent
	deadlines []time.Duration
	err       error
}

func (r *recordingPublisher) Publish(ctx context.Context, ev queue.PipelineEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	if dl, ok := ctx.Deadline(); ok {
		r.deadlines = append(r.deadlines, time.Until(dl))
	}
	return r.err
}

func (r *recordingPublisher) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

var (
	alice = &model.User{ID: 1, Username: "alice"}
	bob   = &model.User{ID: 2, Username: "bob"}
)

func newPipelineFixture() (*PipelineService, *memPipelines, *recordingPublisher) {
	pub := &recordingPublisher{}
	svc := NewPipelineService(pub, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return svc, newMemPipelines(map[uint64]string{1: "alice", 2: "bob"}), pub
}

func TestPipelineService_OwnerFlow(t *testing.T) {
	svc, store, pub := newPipelineFixture()
	ctx := context.Background()

	p, err := svc.Create(ctx, store, alice, PipelineInput{Name: "p1", Status: "new"})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), p.OwnerID)

	list, err := svc.List(ctx, store, alice)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "p1", list[0].Name)

	got, err := svc.Get(ctx, store, alice, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.OwnerUsername)

	updated, err := svc.Update(ctx, store, alice, p.ID, PipelineInput{Name: "p1", Status: "running"})
	require.NoError(t, err)
	assert.Equal(t, "running", updated.Status)

	require.NoError(t, svc.Delete(ctx, store, alice, p.ID))
	_, err = svc.Get(ctx, store, alice, p.ID)
	assert.ErrorIs(t, err, ErrNotFoundOrUnauthorized)

	assert.Equal(t, []string{queue.PipelineCreated, queue.PipelineUpdated, queue.PipelineDeleted}, pub.types())
}

func TestPipelineService_CrossUserInvisible(t *testing.T) {
	svc, store, _ := newPipelineFixture()
	ctx := context.Background()

	p, err := svc.Create(ctx, store, alice, PipelineInput{Name: "p1", Status: "new"})
	require.NoError(t, err)

	list, err := svc.List(ctx, store, bob)
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = svc.Get(ctx, store, bob, p.ID)
	assert.ErrorIs(t, err, ErrNotFoundOrUnauthorized)
	_, err = svc.Update(ctx, store, bob, p.ID, PipelineInput{Name: "x", Status: "y"})
	assert.ErrorIs(t, err, ErrNotFoundOrUnauthorized)
	assert.ErrorIs(t, svc.Delete(ctx, store, bob, p.ID), ErrNotFoundOrUnauthorized)

	got, err := svc.Get(ctx, store, alice, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "p1", got.Name)
	assert.Equal(t, "new", got.Status)

	_, err = svc.Get(ctx, store, alice, 999)
	assert.ErrorIs(t, err, ErrNotFoundOrUnauthorized)
}

func TestPipelineService_CreateForVanishedOwner(t *testing.T) {
	svc, store, pub := newPipelineFixture()
	ghost := &model.User{ID: 42, Username: "ghost"}
	_, err := svc.Create(context.Background(), store, ghost, PipelineInput{Name: "p", Status: "s"})
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.Empty(t, pub.types())
}

func TestPipelineService_PublishIsBounded(t *testing.T) {
	svc, store, pub := newPipelineFixture()
	ctx, cancel := context.WithCancel(context.Background())
	p, err := svc.Create(ctx, store, alice, PipelineInput{Name: "p", Status: "s"})
	require.NoError(t, err)
	cancel()
	// A cancelled request context still lets the event go out, within its own deadline.
	require.NoError(t, svc.Delete(ctx, store, alice, p.ID))

	require.Len(t, pub.deadlines, 2)
	for _, d := range pub.deadlines {
		assert.Greater(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, publishTimeout)
	}
}

func TestPipelineService_PublishFailureIgnored(t *testing.T) {
	svc, store, pub := newPipelineFixture()
	pub.err = errors.New("broker down")
	_, err := svc.Create(context.Background(), store, alice, PipelineInput{Name: "p", Status: "s"})
	assert.NoError(t, err)
}

func TestPipelineService_InvalidInput(t *testing.T) {
	svc, store, _ := newPipelineFixture()
	_, err := svc.Create(context.Background(), store, alice, PipelineInput{Status: "s"})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.Update(context.Background(), store, alice, 1, PipelineInput{Name: "n"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestAuthorizeOwner(t *testing.T) {
	assert.NoError(t, AuthorizeOwner(alice, &model.Pipeline{OwnerUsername: "alice"}))
	assert.ErrorIs(t, AuthorizeOwner(alice, &model.Pipeline{OwnerUsername: "bob"}), ErrNotFoundOrUnauthorized)
	assert.ErrorIs(t, AuthorizeOwner(alice, nil), ErrNotFoundOrUnauthorized)
	assert.ErrorIs(t, AuthorizeOwner(nil, &model.Pipeline{}), ErrNotFoundOrUnauthorized)
}
