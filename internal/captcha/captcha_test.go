package captcha

import (
	"context"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openmunicipal/civicportal/internal/errs"
)

// answerFor extracts the expected sum out of the store for a generated challenge.
func answerFor(t *testing.T, store *MemoryStore, id string) string {
	t.Helper()
	store.mu.Lock()
	defer store.mu.Unlock()
	e, ok := store.answers[id]
	require.True(t, ok, "answer must be stored")
	return e.answer
}

func TestGenerateAndVerify(t *testing.T) {
	store := NewMemoryStore()
	svc := New(store, time.Minute)
	ctx := context.Background()

	ch, err := svc.Generate(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, ch.ID)
	require.True(t, strings.HasPrefix(ch.SVG, "<svg"))
	require.Contains(t, ch.SVG, "= ?")

	answer := answerFor(t, store, ch.ID)
	// answer is numeric and in range of the generator
	n, err := strconv.Atoi(answer)
	require.NoError(t, err)
	require.True(t, n >= 11 && n <= 49)
	// the answer must not leak into the challenge markup
	require.NotContains(t, ch.SVG, answer)

	require.NoError(t, svc.Verify(ctx, ch.ID, " "+answer+" "))

	// one-shot: a second verify with the same id fails
	require.ErrorIs(t, svc.Verify(ctx, ch.ID, answer), errs.ErrCaptchaMismatch)
}

func TestVerifyWrongAnswer(t *testing.T) {
	store := NewMemoryStore()
	svc := New(store, time.Minute)
	ctx := context.Background()

	ch, err := svc.Generate(ctx)
	require.NoError(t, err)
	require.ErrorIs(t, svc.Verify(ctx, ch.ID, "-1"), errs.ErrCaptchaMismatch)
	// wrong answer still consumed the challenge
	store.mu.Lock()
	_, ok := store.answers[ch.ID]
	store.mu.Unlock()
	require.False(t, ok)
}

func TestVerifyExpired(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now()
	store.Now = func() time.Time { return now }
	svc := New(store, time.Minute)
	ctx := context.Background()

	ch, err := svc.Generate(ctx)
	require.NoError(t, err)
	answer := answerFor(t, store, ch.ID)

	now = now.Add(2 * time.Minute)
	require.ErrorIs(t, svc.Verify(ctx, ch.ID, answer), errs.ErrCaptchaMismatch)
}
