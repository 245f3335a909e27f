package service

import (
	"context"
	"fmt"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/intellipatent/intellipatent/internal/model"
	"github.com/intellipatent/intellipatent/internal/pkg/jwt"
	"github.com/intellipatent/intellipatent/internal/session"
)

// SessionService issues and clears conversation sessions. A session is
// an in-memory conversation state plus a signed token that names it.
type SessionService struct {
	store  *session.Store
	secret []byte
}

func NewSessionService(store *session.Store, secret string) *SessionService {
	return &SessionService{store: store, secret: []byte(secret)}
}

type SessionToken struct {
	SessionID string `json:"session_id"`
	Token     string `json:"token"`
}

func (s *SessionService) Create(ctx context.Context) (*SessionToken, error) {
	st := s.store.Create()
	token, err := jwt.GenerateToken(st.ID, s.secret, s.store.TTL())
	if err != nil {
		return nil, fmt.Errorf("sign session token: %w", err)
	}
	logutil.GetLogger(ctx).Info("session created", zap.String("session_id", st.ID))
	return &SessionToken{SessionID: st.ID, Token: token}, nil
}

// Get returns the conversation state for an already-authenticated
// session id.
func (s *SessionService) Get(id string) *model.ConversationState {
	return s.store.Get(id)
}

// Resolve validates a token and returns the conversation state it names.
func (s *SessionService) Resolve(token string) (*model.ConversationState, error) {
	claims, err := jwt.ParseToken(token, s.secret)
	if err != nil {
		return nil, err
	}
	return s.store.Get(claims.SessionID), nil
}

func (s *SessionService) Clear(ctx context.Context, id string) {
	if s.store.Delete(id) {
		logutil.GetLogger(ctx).Info("session cleared", zap.String("session_id", id))
	}
}
