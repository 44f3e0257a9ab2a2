package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/promptvault/internal/client/models"
)

// Metadata keys shared by all processes attached to the same local store.
const (
	keyAuthUserID  = "auth.user_id"
	keyAuthToken   = "auth.token"
	keyLastAction  = "sync.last_action"
	keyLastTS      = "sync.last_timestamp"
	keyOfflineWork = "sync.offline_pending"
	keyLeader      = "leader.record"
)

// Session returns the bound identity, zero-valued when detached.
func (s *Store) Session(ctx context.Context) (models.Session, error) {
	userID, err := s.meta.Get(ctx, keyAuthUserID)
	if err != nil {
		return models.Session{}, err
	}
	token, err := s.meta.Get(ctx, keyAuthToken)
	if err != nil {
		return models.Session{}, err
	}
	return models.Session{UserID: string(userID), AccessToken: string(token)}, nil
}

// SetSession binds an identity to the local store. Binding a different
// identity resets the last-sync cursor: the next initial sync must treat the
// store as freshly attached and discard rows belonging to the previous
// identity instead of merging them into the new account.
func (s *Store) SetSession(ctx context.Context, sess models.Session) error {
	prev, err := s.Session(ctx)
	if err != nil {
		return err
	}
	if prev.UserID != sess.UserID {
		if err := s.meta.Delete(ctx, keyLastTS); err != nil {
			return err
		}
	}

	if err := s.meta.Set(ctx, keyAuthUserID, []byte(sess.UserID)); err != nil {
		return err
	}
	return s.meta.Set(ctx, keyAuthToken, []byte(sess.AccessToken))
}

// ClearSession detaches the identity (sign-out).
func (s *Store) ClearSession(ctx context.Context) error {
	if err := s.meta.Delete(ctx, keyAuthUserID); err != nil {
		return err
	}
	return s.meta.Delete(ctx, keyAuthToken)
}

// SyncState reads the sync metadata singleton.
func (s *Store) SyncState(ctx context.Context) (models.SyncState, error) {
	st := models.SyncState{LastAction: models.ActionNever}

	if v, err := s.meta.Get(ctx, keyLastAction); err != nil {
		return st, err
	} else if len(v) > 0 {
		st.LastAction = models.LastAction(v)
	}

	if v, err := s.meta.Get(ctx, keyLastTS); err != nil {
		return st, err
	} else if len(v) > 0 {
		t, err := time.Parse(time.RFC3339Nano, string(v))
		if err != nil {
			return st, fmt.Errorf("corrupt sync timestamp: %w", err)
		}
		st.LastTimestamp = t
	}

	if v, err := s.meta.Get(ctx, keyOfflineWork); err != nil {
		return st, err
	} else if string(v) == "1" {
		st.OfflineWorkPending = true
	}

	return st, nil
}

// SetLastAction records the most recent auth transition.
func (s *Store) SetLastAction(ctx context.Context, a models.LastAction) error {
	return s.meta.Set(ctx, keyLastAction, []byte(a))
}

// SetLastTimestamp records when the last successful sync finished.
func (s *Store) SetLastTimestamp(ctx context.Context, t time.Time) error {
	return s.meta.Set(ctx, keyLastTS, []byte(t.UTC().Format(time.RFC3339Nano)))
}

// SetOfflineWork raises or clears the offline-work flag.
func (s *Store) SetOfflineWork(ctx context.Context, pending bool) error {
	v := "0"
	if pending {
		v = "1"
	}
	return s.meta.Set(ctx, keyOfflineWork, []byte(v))
}

// LeaderRecord reads the shared leader lease, nil when absent.
func (s *Store) LeaderRecord(ctx context.Context) (*models.LeaderRecord, error) {
	v, err := s.meta.Get(ctx, keyLeader)
	if err != nil {
		return nil, err
	}
	if len(v) == 0 {
		return nil, nil
	}
	var rec models.LeaderRecord
	if err := json.Unmarshal(v, &rec); err != nil {
		return nil, fmt.Errorf("corrupt leader record: %w", err)
	}
	return &rec, nil
}

// PutLeaderRecord overwrites the shared leader lease.
func (s *Store) PutLeaderRecord(ctx context.Context, rec models.LeaderRecord) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.meta.Set(ctx, keyLeader, b)
}

// DeleteLeaderRecord removes the shared leader lease.
func (s *Store) DeleteLeaderRecord(ctx context.Context) error {
	return s.meta.Delete(ctx, keyLeader)
}
