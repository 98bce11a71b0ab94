package auth

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/baechuer/real-time-ressys/services/identity-service/internal/domain"
)

// ---------- identity store ----------

type linkKey struct{ provider, subject string }

type memState struct {
	accounts map[string]domain.Account
	links    map[linkKey]string
	tokens   map[string]domain.DeletionToken
}

func (s memState) clone() memState {
	return memState{
		accounts: maps.Clone(s.accounts),
		links:    maps.Clone(s.links),
		tokens:   maps.Clone(s.tokens),
	}
}

// fakeStore serializes transactions and restores a snapshot on rollback.
type fakeStore struct {
	mu    sync.Mutex
	state memState
	seq   int
	clock time.Time

	// hooks for failure injection
	failCreateAccount error
	failInsertLink    error
	// beforeInsertLink runs inside the transaction right before InsertLink.
	beforeInsertLink func(s *memState)

	commits   int
	rollbacks int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		state: memState{
			accounts: map[string]domain.Account{},
			links:    map[linkKey]string{},
			tokens:   map[string]domain.DeletionToken{},
		},
		clock: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

type fakeQueries struct {
	s  *fakeStore
	st *memState
}

func (f *fakeStore) InTx(ctx context.Context, fn func(q Queries) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	work := f.state.clone()
	if err := fn(fakeQueries{s: f, st: &work}); err != nil {
		f.rollbacks++
		return err
	}
	f.state = work
	f.commits++
	return nil
}

func (f *fakeStore) direct() fakeQueries {
	return fakeQueries{s: f, st: &f.state}
}

func (f *fakeStore) FindAccountByLink(ctx context.Context, provider, subject string) (domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.direct().FindAccountByLink(ctx, provider, subject)
}

func (f *fakeStore) FindAccountByEmail(ctx context.Context, email string) (domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.direct().FindAccountByEmail(ctx, email)
}

func (f *fakeStore) GetAccountByID(ctx context.Context, id string) (domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.direct().GetAccountByID(ctx, id)
}

func (f *fakeStore) CreateAccount(ctx context.Context, email, name string) (domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.direct().CreateAccount(ctx, email, name)
}

func (f *fakeStore) DeleteAccount(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.direct().DeleteAccount(ctx, id)
}

func (f *fakeStore) InsertLink(ctx context.Context, provider, subject, accountID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.direct().InsertLink(ctx, provider, subject, accountID)
}

func (f *fakeStore) InsertDeletionToken(ctx context.Context, t domain.DeletionToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.direct().InsertDeletionToken(ctx, t)
}

func (f *fakeStore) LockDeletionToken(ctx context.Context, hash string) (domain.DeletionToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.direct().LockDeletionToken(ctx, hash)
}

func (f *fakeStore) DeleteDeletionTokensForAccount(ctx context.Context, accountID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.direct().DeleteDeletionTokensForAccount(ctx, accountID)
}

func (f *fakeStore) PurgeExpiredDeletionTokens(ctx context.Context, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.direct().PurgeExpiredDeletionTokens(ctx, now)
}

func (q fakeQueries) FindAccountByLink(_ context.Context, provider, subject string) (domain.Account, error) {
	id, ok := q.st.links[linkKey{provider, subject}]
	if !ok {
		return domain.Account{}, domain.ErrAccountNotFound()
	}
	acc, ok := q.st.accounts[id]
	if !ok {
		return domain.Account{}, domain.ErrAccountNotFound()
	}
	return acc, nil
}

func (q fakeQueries) FindAccountByEmail(_ context.Context, email string) (domain.Account, error) {
	var matches []domain.Account
	for _, a := range q.st.accounts {
		if a.Email != "" && a.Email == email {
			matches = append(matches, a)
		}
	}
	if len(matches) == 0 {
		return domain.Account{}, domain.ErrAccountNotFound()
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].CreatedAt.Before(matches[j].CreatedAt) })
	return matches[0], nil
}

func (q fakeQueries) GetAccountByID(_ context.Context, id string) (domain.Account, error) {
	acc, ok := q.st.accounts[id]
	if !ok {
		return domain.Account{}, domain.ErrAccountNotFound()
	}
	return acc, nil
}

func (q fakeQueries) CreateAccount(_ context.Context, email, name string) (domain.Account, error) {
	if q.s.failCreateAccount != nil {
		return domain.Account{}, q.s.failCreateAccount
	}
	q.s.seq++
	acc := domain.Account{
		ID:        fmt.Sprintf("acc-%d", q.s.seq),
		Email:     email,
		Name:      name,
		CreatedAt: q.s.clock.Add(time.Duration(q.s.seq) * time.Second),
	}
	q.st.accounts[acc.ID] = acc
	return acc, nil
}

func (q fakeQueries) DeleteAccount(_ context.Context, id string) error {
	if _, ok := q.st.accounts[id]; !ok {
		return domain.ErrAccountNotFound()
	}
	delete(q.st.accounts, id)
	for k, v := range q.st.links {
		if v == id {
			delete(q.st.links, k)
		}
	}
	for k, v := range q.st.tokens {
		if v.AccountID == id {
			delete(q.st.tokens, k)
		}
	}
	return nil
}

func (q fakeQueries) InsertLink(_ context.Context, provider, subject, accountID string) (bool, error) {
	if q.s.beforeInsertLink != nil {
		hook := q.s.beforeInsertLink
		q.s.beforeInsertLink = nil
		hook(q.st)
	}
	if q.s.failInsertLink != nil {
		return false, q.s.failInsertLink
	}
	k := linkKey{provider, subject}
	if _, exists := q.st.links[k]; exists {
		return false, nil
	}
	q.st.links[k] = accountID
	return true, nil
}

func (q fakeQueries) InsertDeletionToken(_ context.Context, t domain.DeletionToken) error {
	q.st.tokens[t.Hash] = t
	return nil
}

func (q fakeQueries) LockDeletionToken(_ context.Context, hash string) (domain.DeletionToken, error) {
	t, ok := q.st.tokens[hash]
	if !ok {
		return domain.DeletionToken{}, domain.ErrDeletionTokenNotFound()
	}
	return t, nil
}

func (q fakeQueries) DeleteDeletionTokensForAccount(_ context.Context, accountID string) error {
	for k, v := range q.st.tokens {
		if v.AccountID == accountID {
			delete(q.st.tokens, k)
		}
	}
	return nil
}

func (q fakeQueries) PurgeExpiredDeletionTokens(_ context.Context, now time.Time) error {
	for k, v := range q.st.tokens {
		if v.Expired(now) {
			delete(q.st.tokens, k)
		}
	}
	return nil
}

func (f *fakeStore) linkCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.state.links)
}

func (f *fakeStore) accountCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.state.accounts)
}

func (f *fakeStore) tokensFor(accountID string) []domain.DeletionToken {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.DeletionToken
	for _, t := range f.state.tokens {
		if t.AccountID == accountID {
			out = append(out, t)
		}
	}
	return out
}

// ---------- sessions / state ----------

type fakeSessions struct {
	mu   sync.Mutex
	m    map[string]string
	seq  int
	err  error
	ttls []time.Duration
}

func newFakeSessions() *fakeSessions { return &fakeSessions{m: map[string]string{}} }

func (s *fakeSessions) Create(_ context.Context, accountID string, ttl time.Duration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.seq++
	id := fmt.Sprintf("sid-%d", s.seq)
	s.m[id] = accountID
	s.ttls = append(s.ttls, ttl)
	return id, nil
}

func (s *fakeSessions) Get(_ context.Context, id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	v, ok := s.m[id]
	if !ok {
		return "", domain.ErrSessionNotFound()
	}
	return v, nil
}

func (s *fakeSessions) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, id)
	return nil
}

type fakeStates struct {
	mu  sync.Mutex
	m   map[string]OAuthState
	seq int
}

func newFakeStates() *fakeStates { return &fakeStates{m: map[string]OAuthState{}} }

func (s *fakeStates) Create(_ context.Context, st OAuthState) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	tok := fmt.Sprintf("state-%d", s.seq)
	s.m[tok] = st
	return tok, nil
}

func (s *fakeStates) Consume(_ context.Context, tok string) (OAuthState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.m[tok]
	if !ok {
		return OAuthState{}, domain.ErrOAuthStateInvalid()
	}
	delete(s.m, tok)
	return st, nil
}

// ---------- providers ----------

type fakeProvider struct {
	name       string
	assertion  domain.ProviderAssertion
	err        error
	gotCode    string
	gotVerif   string
	gotRedirct string
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) AuthCodeURL(state, verifier, redirectURL string) string {
	return "https://idp.test/authorize?state=" + state + "&redirect_uri=" + redirectURL
}

func (p *fakeProvider) Exchange(_ context.Context, code, verifier, redirectURL string) (domain.ProviderAssertion, error) {
	p.gotCode, p.gotVerif, p.gotRedirct = code, verifier, redirectURL
	if p.err != nil {
		return domain.ProviderAssertion{}, p.err
	}
	return p.assertion, nil
}

type fakeRegistry map[string]OAuthProvider

func (r fakeRegistry) Get(name string) (OAuthProvider, error) {
	p, ok := r[name]
	if !ok {
		return nil, domain.ErrUnsupportedProvider(name)
	}
	return p, nil
}

// ---------- bearer / notifier / resolver ----------

type fakeBearer struct{ signed []domain.Identity }

func (b *fakeBearer) Sign(id domain.Identity) (string, error) {
	b.signed = append(b.signed, id)
	return "tok-" + id.ID, nil
}

func (b *fakeBearer) Verify(token string) (domain.BearerClaims, error) {
	return domain.BearerClaims{}, errors.New("not used")
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []DeletionEmail
	err  error
}

func (n *fakeNotifier) SendDeletionLink(_ context.Context, msg DeletionEmail) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return n.err
}

type resolverFunc func(ctx context.Context, a domain.ProviderAssertion) (domain.Account, error)

func (f resolverFunc) Resolve(ctx context.Context, a domain.ProviderAssertion) (domain.Account, error) {
	return f(ctx, a)
}

// ---------- auditor ----------

type recordingAuditor struct {
	noopAuditor
	mu      sync.Mutex
	actions []string
}

func (a *recordingAuditor) record(s string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.actions = append(a.actions, s)
}

func (a *recordingAuditor) AccountCreated(_ context.Context, id, _ string) {
	a.record("account_created:" + id)
}

func (a *recordingAuditor) ProviderLinked(_ context.Context, id, _ string) {
	a.record("provider_linked:" + id)
}

func (a *recordingAuditor) Login(_ context.Context, id, _, mode string) {
	a.record("login:" + mode + ":" + id)
}

func (a *recordingAuditor) Logout(_ context.Context, id string) { a.record("logout:" + id) }

func (a *recordingAuditor) AccountDeleted(_ context.Context, id string) {
	a.record("account_deleted:" + id)
}
