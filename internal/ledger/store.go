package ledger

import (
	"encoding/json"
	"log"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/mindfold/backend/internal/fhe"
)

// store is the Postgres write-through behind the in-memory ledger. All writes
// are best-effort: the in-memory record is authoritative within a process and
// the DB exists to survive restarts. A nil db disables persistence (tests).
type store struct {
	db *sqlx.DB
}

type gameRow struct {
	ID               int64     `db:"id"`
	PlayerA          string    `db:"player_a"`
	PlayerB          string    `db:"player_b"`
	CreatedAt        time.Time `db:"created_at"`
	Deadline         time.Time `db:"deadline"`
	Status           int16     `db:"status"`
	MoveA            string    `db:"move_a"`
	MoveB            string    `db:"move_b"`
	MoveASubmitted   bool      `db:"move_a_submitted"`
	MoveBSubmitted   bool      `db:"move_b_submitted"`
	OutcomeReady     bool      `db:"outcome_ready"`
	Outcome          string    `db:"outcome"`
	AWins            string    `db:"a_wins"`
	BWins            string    `db:"b_wins"`
	IsTie            string    `db:"is_tie"`
	Decrypted        bool      `db:"decrypted"`
	DecryptedMoveA   int16     `db:"decrypted_move_a"`
	DecryptedMoveB   int16     `db:"decrypted_move_b"`
	DecryptedOutcome int16     `db:"decrypted_outcome"`
}

type requestRow struct {
	ID        string    `db:"id"`
	GameID    int64     `db:"game_id"`
	Handles   string    `db:"handles"`
	Status    string    `db:"status"`
	CreatedAt time.Time `db:"created_at"`
}

func (s *store) saveGame(g *Game) {
	if s.db == nil {
		return
	}
	_, err := s.db.Exec(`INSERT INTO games
		(id, player_a, player_b, created_at, deadline, status,
		 move_a, move_b, move_a_submitted, move_b_submitted,
		 outcome_ready, outcome, a_wins, b_wins, is_tie,
		 decrypted, decrypted_move_a, decrypted_move_b, decrypted_outcome)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
		ON CONFLICT (id) DO UPDATE SET
		 deadline=EXCLUDED.deadline, status=EXCLUDED.status,
		 move_b=EXCLUDED.move_b, move_b_submitted=EXCLUDED.move_b_submitted,
		 outcome_ready=EXCLUDED.outcome_ready, outcome=EXCLUDED.outcome,
		 a_wins=EXCLUDED.a_wins, b_wins=EXCLUDED.b_wins, is_tie=EXCLUDED.is_tie,
		 decrypted=EXCLUDED.decrypted, decrypted_move_a=EXCLUDED.decrypted_move_a,
		 decrypted_move_b=EXCLUDED.decrypted_move_b, decrypted_outcome=EXCLUDED.decrypted_outcome`,
		int64(g.ID), g.PlayerA, g.PlayerB, g.CreatedAt, g.Deadline, int16(g.Status),
		string(g.MoveA), string(g.MoveB), g.MoveASubmitted, g.MoveBSubmitted,
		g.OutcomeReady, string(g.Outcome), string(g.AWins), string(g.BWins), string(g.IsTie),
		g.Decrypted, int16(g.DecryptedMoveA), int16(g.DecryptedMoveB), int16(g.DecryptedOutcome))
	if err != nil {
		log.Printf("[DB] Failed to save game %d: %v", g.ID, err)
	}
}

func (s *store) appendPlayerGame(player string, gameID uint64) {
	if s.db == nil {
		return
	}
	if _, err := s.db.Exec(`INSERT INTO player_games (player, game_id) VALUES ($1,$2)`, player, int64(gameID)); err != nil {
		log.Printf("[DB] Failed to append game %d for player %s: %v", gameID, player, err)
	}
}

func (s *store) insertDecryptionRequest(req *DecryptionRequest) {
	if s.db == nil {
		return
	}
	handles, _ := json.Marshal(req.Handles)
	_, err := s.db.Exec(`INSERT INTO decryption_requests (id, game_id, handles, status, created_at)
		VALUES ($1,$2,$3,'PENDING',$4)`,
		req.ID, int64(req.GameID), string(handles), req.CreatedAt)
	if err != nil {
		log.Printf("[DB] Failed to insert decryption request %s: %v", req.ID, err)
	}
}

func (s *store) markRequestFulfilled(id string) {
	if s.db == nil {
		return
	}
	if _, err := s.db.Exec(`UPDATE decryption_requests SET status='FULFILLED', fulfilled_at=NOW() WHERE id=$1`, id); err != nil {
		log.Printf("[DB] Failed to mark decryption request %s fulfilled: %v", id, err)
	}
}

// Rehydrate loads games, the per-player index and outstanding decryption
// requests from Postgres into memory after a restart.
func (l *Ledger) Rehydrate() error {
	if l.st.db == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	var games []gameRow
	if err := l.st.db.Select(&games, `SELECT * FROM games ORDER BY id ASC`); err != nil {
		return err
	}
	for _, row := range games {
		game := &Game{
			ID:               uint64(row.ID),
			PlayerA:          row.PlayerA,
			PlayerB:          row.PlayerB,
			CreatedAt:        row.CreatedAt,
			Deadline:         row.Deadline,
			Status:           Status(row.Status),
			MoveA:            fhe.Handle(row.MoveA),
			MoveB:            fhe.Handle(row.MoveB),
			MoveASubmitted:   row.MoveASubmitted,
			MoveBSubmitted:   row.MoveBSubmitted,
			OutcomeReady:     row.OutcomeReady,
			Outcome:          fhe.Handle(row.Outcome),
			AWins:            fhe.Handle(row.AWins),
			BWins:            fhe.Handle(row.BWins),
			IsTie:            fhe.Handle(row.IsTie),
			Decrypted:        row.Decrypted,
			DecryptedMoveA:   uint8(row.DecryptedMoveA),
			DecryptedMoveB:   uint8(row.DecryptedMoveB),
			DecryptedOutcome: uint8(row.DecryptedOutcome),
		}
		l.games[game.ID] = game
		if game.ID >= l.nextGameID {
			l.nextGameID = game.ID + 1
		}
	}

	var index []struct {
		Player string `db:"player"`
		GameID int64  `db:"game_id"`
	}
	if err := l.st.db.Select(&index, `SELECT player, game_id FROM player_games ORDER BY id ASC`); err != nil {
		return err
	}
	for _, entry := range index {
		l.playerGames[entry.Player] = append(l.playerGames[entry.Player], uint64(entry.GameID))
	}

	var requests []requestRow
	if err := l.st.db.Select(&requests, `SELECT id, game_id, handles, status, created_at FROM decryption_requests ORDER BY created_at ASC`); err != nil {
		return err
	}
	for _, row := range requests {
		var handles []fhe.Handle
		if err := json.Unmarshal([]byte(row.Handles), &handles); err != nil {
			log.Printf("[LEDGER] Skipping request %s with bad handle list: %v", row.ID, err)
			continue
		}
		l.requests[row.ID] = &DecryptionRequest{
			ID:        row.ID,
			GameID:    uint64(row.GameID),
			Handles:   handles,
			Fulfilled: row.Status == "FULFILLED",
			CreatedAt: row.CreatedAt,
		}
	}

	log.Printf("[LEDGER] Rehydrated %d game(s), %d request(s), next id %d",
		len(l.games), len(l.requests), l.nextGameID)

	return nil
}
