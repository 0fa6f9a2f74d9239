package oracle

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/mindfold/backend/internal/fhe"
	"github.com/mindfold/backend/internal/ledger"
)

// Worker is the decryption oracle: it polls the ledger for outstanding
// decryption requests, opens the ciphertexts service-side and calls back with
// cleartexts plus a proof. It is the only component allowed to decrypt without
// a per-handle ACL entry.
type Worker struct {
	ldg        *ledger.Ledger
	cp         *fhe.Coprocessor
	signingKey string
}

// NewWorker creates a decryption oracle bound to a ledger and its coprocessor
func NewWorker(ldg *ledger.Ledger, cp *fhe.Coprocessor, signingKey string) *Worker {
	return &Worker{ldg: ldg, cp: cp, signingKey: signingKey}
}

// Start runs the polling loop until the context is cancelled
func (w *Worker) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Printf("[ORACLE] Decryption worker started (poll every %s)", interval)

	// Run once immediately on startup
	w.FulfillPending()

	for {
		select {
		case <-ctx.Done():
			log.Printf("[ORACLE] Decryption worker stopped")
			return
		case <-ticker.C:
			w.FulfillPending()
		}
	}
}

// FulfillPending processes every outstanding decryption request once
func (w *Worker) FulfillPending() {
	requests := w.ldg.PendingRequests()
	if len(requests) == 0 {
		return
	}

	log.Printf("[ORACLE] Fulfilling %d pending request(s)", len(requests))

	for _, req := range requests {
		cleartexts, err := w.decrypt(req.Handles)
		if err != nil {
			log.Printf("[ORACLE] Failed to decrypt request %s: %v", req.ID, err)
			continue
		}

		proof := fhe.SignDecryptionResult(w.signingKey, req.ID, cleartexts)

		err = w.ldg.OnDecryptionComplete(req.ID, cleartexts, proof)
		switch {
		case err == nil:
			log.Printf("[ORACLE] Request %s fulfilled (game %d)", req.ID, req.GameID)
		case errors.Is(err, ledger.ErrAlreadySaved):
			// Another worker instance beat us to it
		default:
			log.Printf("[ORACLE] Callback for request %s rejected: %v", req.ID, err)
		}
	}
}

// decrypt opens the requested handles. Zero handles (a forfeited game's
// missing move) decrypt to zero.
func (w *Worker) decrypt(handles []fhe.Handle) ([]uint8, error) {
	out := make([]uint8, len(handles))
	for i, h := range handles {
		if h == fhe.ZeroHandle {
			out[i] = 0
			continue
		}
		values, err := w.cp.OracleDecrypt([]fhe.Handle{h})
		if err != nil {
			return nil, err
		}
		out[i] = values[0]
	}
	return out, nil
}
