package ledger

import (
	"github.com/mindfold/backend/internal/fhe"
)

// encryptedOutcome bundles the four write-once result ciphertexts
type encryptedOutcome struct {
	outcome fhe.Handle
	aWins   fhe.Handle
	bWins   fhe.Handle
	isTie   fhe.Handle
}

// computeOutcome derives the encrypted outcome from two encrypted moves.
//
// A move below 2 is an attack, otherwise a defence. An attack beats a defence
// regardless of direction: the defender either guessed the attacked direction
// and still loses the exchange, or defended the wrong one. Two attacks cancel
// out and two defences never connect, so both are ties.
//
// Every branch is evaluated over ciphertext handles and combined with
// oblivious selects; at no point does cleartext influence control flow.
func computeOutcome(cp *fhe.Coprocessor, moveA, moveB fhe.Handle) (encryptedOutcome, error) {
	var out encryptedOutcome

	aAttacks, err := cp.Lt(moveA, 2)
	if err != nil {
		return out, err
	}
	bAttacks, err := cp.Lt(moveB, 2)
	if err != nil {
		return out, err
	}
	aDefends, err := cp.Not(aAttacks)
	if err != nil {
		return out, err
	}
	bDefends, err := cp.Not(bAttacks)
	if err != nil {
		return out, err
	}

	out.aWins, err = cp.And(aAttacks, bDefends)
	if err != nil {
		return out, err
	}
	out.bWins, err = cp.And(bAttacks, aDefends)
	if err != nil {
		return out, err
	}

	notAWins, err := cp.Not(out.aWins)
	if err != nil {
		return out, err
	}
	notBWins, err := cp.Not(out.bWins)
	if err != nil {
		return out, err
	}
	out.isTie, err = cp.And(notAWins, notBWins)
	if err != nil {
		return out, err
	}

	// outcome = aWins ? 1 : (bWins ? 2 : 0)
	bBranch, err := cp.Select(out.bWins, cp.TrivialEncrypt8(OutcomePlayerBWin), cp.TrivialEncrypt8(OutcomeTie))
	if err != nil {
		return out, err
	}
	out.outcome, err = cp.Select(out.aWins, cp.TrivialEncrypt8(OutcomePlayerAWin), bBranch)
	if err != nil {
		return out, err
	}

	return out, nil
}

// forfeitOutcome synthesizes "the submitting player wins" without the missing
// move. Forfeit games carry no secret, so trivial encryptions are enough.
func forfeitOutcome(cp *fhe.Coprocessor) encryptedOutcome {
	return encryptedOutcome{
		outcome: cp.TrivialEncrypt8(OutcomePlayerAWin),
		aWins:   cp.TrivialEncryptBool(true),
		bWins:   cp.TrivialEncryptBool(false),
		isTie:   cp.TrivialEncryptBool(false),
	}
}
