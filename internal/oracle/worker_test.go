package oracle

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mindfold/backend/internal/config"
	"github.com/mindfold/backend/internal/fhe"
	"github.com/mindfold/backend/internal/ledger"
)

func newTestSetup(t *testing.T) (*ledger.Ledger, *fhe.Coprocessor, *Worker) {
	t.Helper()
	cp := fhe.NewCoprocessor("test-seal-secret", "test-input-secret")
	cfg := &config.Config{
		InvitationTimeoutSecs: 600,
		MatchTimeoutSecs:      180,
		OracleSigningKey:      "test-oracle-key",
	}
	ldg := ledger.New(nil, nil, cp, cfg)
	return ldg, cp, NewWorker(ldg, cp, "test-oracle-key")
}

func playToResolution(t *testing.T, ldg *ledger.Ledger, cp *fhe.Coprocessor, moveA, moveB uint8) uint64 {
	t.Helper()
	handleA, proofA := cp.CreateEncryptedInput(ldg.Address(), "alice", moveA)
	gameID, err := ldg.CreateGame("alice", "bob", handleA, proofA)
	require.NoError(t, err)
	handleB, proofB := cp.CreateEncryptedInput(ldg.Address(), "bob", moveB)
	require.NoError(t, ldg.SubmitMove("bob", gameID, handleB, proofB))
	require.NoError(t, ldg.ResolveGame("alice", gameID))
	return gameID
}

func TestFulfillPending(t *testing.T) {
	ldg, cp, worker := newTestSetup(t)

	gameID := playToResolution(t, ldg, cp, ledger.MoveAttackNorth, ledger.MoveDefendNorth)
	_, err := ldg.RequestGameDecryption("alice", gameID)
	require.NoError(t, err)

	worker.FulfillPending()

	game, err := ldg.GetGame(gameID)
	require.NoError(t, err)
	require.True(t, game.Decrypted)
	require.Equal(t, ledger.MoveAttackNorth, game.DecryptedMoveA)
	require.Equal(t, ledger.MoveDefendNorth, game.DecryptedMoveB)
	require.Equal(t, ledger.OutcomePlayerAWin, game.DecryptedOutcome)

	require.Empty(t, ldg.PendingRequests())
}

func TestFulfillPendingHandlesMultipleRequests(t *testing.T) {
	ldg, cp, worker := newTestSetup(t)

	first := playToResolution(t, ldg, cp, ledger.MoveAttackNorth, ledger.MoveAttackSouth)
	second := playToResolution(t, ldg, cp, ledger.MoveDefendNorth, ledger.MoveAttackNorth)

	_, err := ldg.RequestGameDecryption("alice", first)
	require.NoError(t, err)
	_, err = ldg.RequestGameDecryption("bob", second)
	require.NoError(t, err)

	worker.FulfillPending()

	game, err := ldg.GetGame(first)
	require.NoError(t, err)
	require.True(t, game.Decrypted)
	require.Equal(t, ledger.OutcomeTie, game.DecryptedOutcome)

	game, err = ldg.GetGame(second)
	require.NoError(t, err)
	require.True(t, game.Decrypted)
	require.Equal(t, ledger.OutcomePlayerBWin, game.DecryptedOutcome)
}

func TestFulfillPendingIsIdempotent(t *testing.T) {
	ldg, cp, worker := newTestSetup(t)

	gameID := playToResolution(t, ldg, cp, ledger.MoveAttackSouth, ledger.MoveDefendSouth)
	_, err := ldg.RequestGameDecryption("alice", gameID)
	require.NoError(t, err)

	worker.FulfillPending()
	worker.FulfillPending()

	game, err := ldg.GetGame(gameID)
	require.NoError(t, err)
	require.True(t, game.Decrypted)
}

func TestFulfillPendingNoRequests(t *testing.T) {
	_, _, worker := newTestSetup(t)
	worker.FulfillPending()
}

func TestStartProcessesRequests(t *testing.T) {
	ldg, cp, worker := newTestSetup(t)

	gameID := playToResolution(t, ldg, cp, ledger.MoveAttackNorth, ledger.MoveDefendNorth)
	_, err := ldg.RequestGameDecryption("alice", gameID)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		worker.Start(ctx, 5*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool {
		game, err := ldg.GetGame(gameID)
		return err == nil && game.Decrypted
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after context cancellation")
	}
}
