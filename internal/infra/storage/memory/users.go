package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	domainauth "gearyard/internal/domain/auth"
	domainuser "gearyard/internal/domain/user"
)

// UserRepository keeps marketplace accounts in memory, with a lowercased
// email index enforcing the one-account-per-email rule. Used by tests and
// the no-Mongo dev mode.
type UserRepository struct {
	mu         sync.RWMutex
	accounts   map[domainuser.ID]*domainuser.User
	emailIndex map[string]domainuser.ID
}

func NewUserRepository() *UserRepository {
	return &UserRepository{
		accounts:   make(map[domainuser.ID]*domainuser.User),
		emailIndex: make(map[string]domainuser.ID),
	}
}

func (r *UserRepository) ByID(ctx context.Context, id domainuser.ID) (*domainuser.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	account, ok := r.accounts[id]
	if !ok {
		return nil, domainuser.ErrNotFound
	}
	return cloneUser(account), nil
}

func (r *UserRepository) ByEmail(ctx context.Context, email string) (*domainuser.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.emailIndex[emailKey(email)]
	if !ok {
		return nil, domainuser.ErrNotFound
	}
	account, ok := r.accounts[id]
	if !ok {
		return nil, domainuser.ErrNotFound
	}
	return cloneUser(account), nil
}

func (r *UserRepository) Save(ctx context.Context, user *domainuser.User) error {
	if user == nil || strings.TrimSpace(string(user.ID)) == "" {
		return domainuser.ErrIDRequired
	}
	key := emailKey(user.Email)
	if key == "" {
		return domainuser.ErrEmailRequired
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if ownerID, taken := r.emailIndex[key]; taken && ownerID != user.ID {
		return domainuser.ErrEmailAlreadyUsed
	}
	r.emailIndex[key] = user.ID
	r.accounts[user.ID] = cloneUser(user)
	return nil
}

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func cloneUser(u *domainuser.User) *domainuser.User {
	if u == nil {
		return nil
	}
	clone := *u
	clone.Roles = append([]domainuser.Role(nil), u.Roles...)
	return &clone
}

// SessionStore keeps bearer sessions in memory. Expired sessions are dropped
// lazily on Get, matching the TTL behavior of the Mongo-backed store.
type SessionStore struct {
	mu        sync.RWMutex
	sessions  map[domainauth.Token]*domainauth.Session
	byAccount map[domainuser.ID]map[domainauth.Token]struct{}
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions:  make(map[domainauth.Token]*domainauth.Session),
		byAccount: make(map[domainuser.ID]map[domainauth.Token]struct{}),
	}
}

func (s *SessionStore) Save(ctx context.Context, session *domainauth.Session) error {
	if session == nil {
		return domainauth.ErrTokenRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.Token] = cloneSession(session)
	if _, ok := s.byAccount[session.UserID]; !ok {
		s.byAccount[session.UserID] = make(map[domainauth.Token]struct{})
	}
	s.byAccount[session.UserID][session.Token] = struct{}{}
	return nil
}

func (s *SessionStore) Get(ctx context.Context, token domainauth.Token) (*domainauth.Session, error) {
	s.mu.RLock()
	session, ok := s.sessions[token]
	s.mu.RUnlock()
	if !ok {
		return nil, domainauth.ErrSessionNotFound
	}
	if session.Expired(time.Now().UTC()) {
		_ = s.Delete(ctx, token)
		return nil, domainauth.ErrSessionNotFound
	}
	return cloneSession(session), nil
}

func (s *SessionStore) Delete(ctx context.Context, token domainauth.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[token]
	if !ok {
		return nil
	}
	delete(s.sessions, token)
	if tokens, ok := s.byAccount[session.UserID]; ok {
		delete(tokens, token)
		if len(tokens) == 0 {
			delete(s.byAccount, session.UserID)
		}
	}
	return nil
}

// DeleteByUser revokes every session of one account. Used when an account is
// blocked mid-session.
func (s *SessionStore) DeleteByUser(ctx context.Context, userID domainuser.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tokens, ok := s.byAccount[userID]
	if !ok {
		return nil
	}
	for token := range tokens {
		delete(s.sessions, token)
	}
	delete(s.byAccount, userID)
	return nil
}

func cloneSession(sess *domainauth.Session) *domainauth.Session {
	if sess == nil {
		return nil
	}
	clone := *sess
	clone.Roles = append([]domainuser.Role(nil), sess.Roles...)
	return &clone
}
