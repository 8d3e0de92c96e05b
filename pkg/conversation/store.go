package conversation

import "sync"

// Store is the ordered, mutable turn log for one meeting session. It is
// created once per session with the system prompt at index 0, appended to by
// the scheduler (user turns) and the tool-call driver (assistant and
// tool-result turns), and discarded at session end.
//
// Appends never validate; callers run Validate/Repair when preparing a model
// request. All operations are safe for concurrent use.
type Store struct {
	mu    sync.Mutex
	turns []Turn
}

// NewStore creates a store seeded with the system instruction.
func NewStore(systemPrompt string) *Store {
	return &Store{turns: []Turn{System(systemPrompt)}}
}

// Append adds a turn to the tail without validation.
func (s *Store) Append(t Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, t)
}

// Turns returns a copy of the current log.
func (s *Store) Turns() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Len returns the number of turns including the system turn.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.turns)
}

// LastUser returns the most recent user turn, if any.
func (s *Store) LastUser() (Turn, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.turns) - 1; i >= 0; i-- {
		if s.turns[i].Role == RoleUser {
			return s.turns[i], true
		}
	}
	return Turn{}, false
}

// Validate reports whether the log is structurally valid: every tool-result
// turn must pair with exactly one tool request issued by an assistant turn
// between it and the nearest preceding user turn (exclusive) or the start of
// the log.
func (s *Store) Validate() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(orphanIndexes(s.turns)) == 0
}

// Repair removes every orphaned tool-result turn, preserving the relative
// order of everything else, and returns how many were removed. Repairing an
// already-valid log is a no-op, so Repair is idempotent.
func (s *Store) Repair() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	orphans := orphanIndexes(s.turns)
	if len(orphans) == 0 {
		return 0
	}

	drop := make(map[int]bool, len(orphans))
	for _, i := range orphans {
		drop[i] = true
	}

	kept := s.turns[:0]
	for i, t := range s.turns {
		if !drop[i] {
			kept = append(kept, t)
		}
	}
	s.turns = kept
	return len(orphans)
}

// Truncate bounds the log to the system turn plus the most recent keepLast
// turns. The cut point never lands inside a tool request/result sequence: if
// the naive cut would strand a tool result from its requesting assistant
// turn, the cut shifts earlier until it starts on a user turn or an
// assistant turn. The system turn is never removed.
func (s *Store) Truncate(keepLast int) {
	if keepLast < 0 {
		keepLast = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.turns) <= 1+keepLast {
		return
	}

	cut := len(s.turns) - keepLast
	for cut > 1 && !cutBoundaryOK(s.turns, cut) {
		cut--
	}

	kept := make([]Turn, 0, 1+len(s.turns)-cut)
	kept = append(kept, s.turns[0])
	kept = append(kept, s.turns[cut:]...)
	s.turns = kept
}

// Reset is the catastrophic fallback for a model endpoint that rejects the
// payload outright: the log is reduced to the system turn plus the most
// recent user turn. Validate/Repair is the primary correctness mechanism;
// this is the last resort.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	reduced := []Turn{s.turns[0]}
	for i := len(s.turns) - 1; i >= 1; i-- {
		if s.turns[i].Role == RoleUser {
			reduced = append(reduced, s.turns[i])
			break
		}
	}
	s.turns = reduced
}

// cutBoundaryOK reports whether cutting at index cut (keeping the system
// turn plus turns[cut:]) leaves a valid log that starts on a turn boundary.
func cutBoundaryOK(turns []Turn, cut int) bool {
	switch turns[cut].Role {
	case RoleUser, RoleAssistant:
	default:
		return false
	}

	candidate := make([]Turn, 0, 1+len(turns)-cut)
	candidate = append(candidate, turns[0])
	candidate = append(candidate, turns[cut:]...)
	return len(orphanIndexes(candidate)) == 0
}

// orphanIndexes returns the indexes of every orphaned tool-result turn.
// For each tool result, scan backward to the nearest user turn (exclusive)
// or the start of the log; the result is valid only when exactly one
// assistant turn in that window issued a request with the matching ID.
func orphanIndexes(turns []Turn) []int {
	var orphans []int
	for i, t := range turns {
		if t.Role != RoleTool {
			continue
		}
		matches := 0
		for j := i - 1; j >= 0; j-- {
			if turns[j].Role == RoleUser {
				break
			}
			if turns[j].Role != RoleAssistant {
				continue
			}
			for _, req := range turns[j].Requests {
				if req.ID == t.RequestID {
					matches++
				}
			}
		}
		if matches != 1 {
			orphans = append(orphans, i)
		}
	}
	return orphans
}
