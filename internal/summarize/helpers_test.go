package summarize_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/mbeaufort/mnemo/pkg/memory"
)

// mockGenerator implements summarize.Generator for tests.
type mockGenerator struct {
	mu     sync.Mutex
	result string
	err    error
	local  bool
	calls  int
}

func (g *mockGenerator) Generate(_ context.Context, _, _ string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	return g.result, g.err
}

func (g *mockGenerator) Local() bool { return g.local }

func (g *mockGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

// seedConversation appends n turns one second apart and returns them.
func seedConversation(t *testing.T, store *memory.InMemoryStore, conversationID string, n int, contents func(i int) string) []memory.Turn {
	t.Helper()

	if contents == nil {
		contents = func(i int) string { return fmt.Sprintf("turn %d", i) }
	}

	// Offset by the existing count so repeated seeding stays ordered.
	existing, err := store.GetTurnCount(context.Background(), conversationID)
	if err != nil {
		t.Fatalf("GetTurnCount: %v", err)
	}
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC).Add(time.Duration(existing) * time.Second)
	turns := make([]memory.Turn, n)
	for i := 0; i < n; i++ {
		role := memory.RoleUser
		if i%2 == 1 {
			role = memory.RoleAssistant
		}
		turn, err := store.AppendTurn(context.Background(), memory.Turn{
			ConversationID: conversationID,
			Role:           role,
			Content:        contents(i),
			CreatedAt:      base.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("AppendTurn: %v", err)
		}
		turns[i] = turn
	}
	return turns
}
