package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/intellipatent/intellipatent/internal/session"
)

func TestSessionServiceCreateAndResolve(t *testing.T) {
	store := session.NewStore(16, time.Minute)
	svc := NewSessionService(store, "test-secret")

	tok, err := svc.Create(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, tok.SessionID)
	require.NotEmpty(t, tok.Token)

	state, err := svc.Resolve(tok.Token)
	require.NoError(t, err)
	require.Equal(t, tok.SessionID, state.ID)
}

func TestSessionServiceResolveRejectsForgedToken(t *testing.T) {
	store := session.NewStore(16, time.Minute)
	svc := NewSessionService(store, "test-secret")
	other := NewSessionService(store, "other-secret")

	tok, err := other.Create(context.Background())
	require.NoError(t, err)

	_, err = svc.Resolve(tok.Token)
	require.Error(t, err)
}

func TestSessionServiceClear(t *testing.T) {
	store := session.NewStore(16, time.Minute)
	svc := NewSessionService(store, "test-secret")

	tok, err := svc.Create(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, store.Len())

	svc.Clear(context.Background(), tok.SessionID)
	require.Equal(t, 0, store.Len())
}
