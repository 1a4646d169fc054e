// Package meta implements the typed metadata store over an embedded
// ordered key-value database. Keyspaces are separated into buckets rather
// than column families, bolt's native equivalent; pair writes (a record and
// its index entry) always go through a single transaction so a reader can
// never observe a dangling pointer in either direction.
package meta

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/rexmedia/mediavault/internal/apperr"
	"github.com/rexmedia/mediavault/internal/models"
)

var (
	bucketMedia         = []byte("media")
	bucketHashIndex     = []byte("hash_index")
	bucketSession       = []byte("session")
	bucketSessionExpiry = []byte("session_expiry")
	bucketTokenMeta     = []byte("token_meta")
	bucketTokenLock     = []byte("token_lock")
	bucketTokenUpdate   = []byte("token_update")
)

var allBuckets = [][]byte{
	bucketMedia, bucketHashIndex, bucketSession, bucketSessionExpiry,
	bucketTokenMeta, bucketTokenLock, bucketTokenUpdate,
}

// Store is the typed metadata store.
type Store struct {
	db *bolt.DB
}

// Open opens (creating if absent) the bolt database at path and ensures all
// required buckets exist.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindDatabase, "open metadata store")
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, apperr.Wrap(err, apperr.KindDatabase, "initialize metadata buckets")
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database file.
func (s *Store) Close() error {
	return s.db.Close()
}

func sessionExpiryKey(expiresAt time.Time, id string) []byte {
	return []byte(expiresAt.UTC().Format(time.RFC3339Nano) + ":" + id)
}

// ---- media ----

// InsertMedia writes the media record and its hash index entry in one
// atomic batch, satisfying the invariant that every hash_index key points
// to an existing media record.
func (s *Store) InsertMedia(m *models.Media) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return apperr.Wrap(err, apperr.KindInternal, "marshal media record")
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketMedia).Put([]byte(m.ID), raw); err != nil {
			return err
		}
		return tx.Bucket(bucketHashIndex).Put([]byte(m.ContentHash), []byte(m.ID))
	})
	if err != nil {
		return apperr.Wrap(err, apperr.KindDatabase, "insert media")
	}
	return nil
}

// GetMedia fetches a media record by id.
func (s *Store) GetMedia(id string) (*models.Media, error) {
	var m *models.Media
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketMedia).Get([]byte(id))
		if raw == nil {
			return nil
		}
		m = &models.Media{}
		return json.Unmarshal(raw, m)
	})
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindDatabase, "get media")
	}
	if m == nil {
		return nil, apperr.New(apperr.KindNotFound, "media not found")
	}
	return m, nil
}

// FindByHash resolves a content hash to its media record via the hash
// index, a single hop: hash -> id -> record.
func (s *Store) FindByHash(hash string) (*models.Media, error) {
	var id string
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketHashIndex).Get([]byte(hash))
		if raw != nil {
			id = string(raw)
		}
		return nil
	})
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindDatabase, "lookup hash index")
	}
	if id == "" {
		return nil, apperr.New(apperr.KindNotFound, "no media for hash")
	}
	return s.GetMedia(id)
}

// DeleteMedia removes the media record and its hash index entry atomically.
// Callers are responsible for removing the on-disk blobs; that is a
// best-effort filesystem operation outside this transaction.
func (s *Store) DeleteMedia(id string) error {
	m, err := s.GetMedia(id)
	if err != nil {
		return err
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketMedia).Delete([]byte(id)); err != nil {
			return err
		}
		return tx.Bucket(bucketHashIndex).Delete([]byte(m.ContentHash))
	})
	if err != nil {
		return apperr.Wrap(err, apperr.KindDatabase, "delete media")
	}
	return nil
}

// UpdateLastAccessed bumps last_accessed_at. Callers dispatch this
// fire-and-forget from the serving path; a failure here is logged by the
// caller and never surfaced to the client.
func (s *Store) UpdateLastAccessed(id string) error {
	now := time.Now().UTC()
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketMedia)
		raw := b.Get([]byte(id))
		if raw == nil {
			return nil
		}
		var m models.Media
		if err := json.Unmarshal(raw, &m); err != nil {
			return err
		}
		m.LastAccessedAt = &now
		updated, err := json.Marshal(&m)
		if err != nil {
			return err
		}
		return b.Put([]byte(id), updated)
	})
	if err != nil {
		return apperr.Wrap(err, apperr.KindDatabase, "update last accessed")
	}
	return nil
}

// MediaCount does a full iteration; acceptable because only health/stats
// endpoints call it.
func (s *Store) MediaCount() (int, error) {
	count := 0
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketMedia).ForEach(func(_, _ []byte) error {
			count++
			return nil
		})
	})
	if err != nil {
		return 0, apperr.Wrap(err, apperr.KindDatabase, "count media")
	}
	return count, nil
}

// ---- sessions ----

// InsertSession writes the session record and its expiry index entry in one
// atomic batch.
func (s *Store) InsertSession(sess *models.UploadSession) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return apperr.Wrap(err, apperr.KindInternal, "marshal session")
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketSession).Put([]byte(sess.ID), raw); err != nil {
			return err
		}
		return tx.Bucket(bucketSessionExpiry).Put(sessionExpiryKey(sess.ExpiresAt, sess.ID), []byte(sess.ID))
	})
	if err != nil {
		return apperr.Wrap(err, apperr.KindDatabase, "insert session")
	}
	return nil
}

// GetSession fetches a session by id.
func (s *Store) GetSession(id string) (*models.UploadSession, error) {
	var sess *models.UploadSession
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketSession).Get([]byte(id))
		if raw == nil {
			return nil
		}
		sess = &models.UploadSession{}
		return json.Unmarshal(raw, sess)
	})
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindDatabase, "get session")
	}
	if sess == nil {
		return nil, apperr.New(apperr.KindNotFound, "upload session not found")
	}
	return sess, nil
}

// UpdateSession persists sess. If its ExpiresAt changed relative to the
// stored copy, the old expiry index entry is deleted and a new one
// inserted, all within the same transaction.
func (s *Store) UpdateSession(sess *models.UploadSession) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return apperr.Wrap(err, apperr.KindInternal, "marshal session")
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSession)
		old := b.Get([]byte(sess.ID))
		if old != nil {
			var prev models.UploadSession
			if err := json.Unmarshal(old, &prev); err != nil {
				return err
			}
			if !prev.ExpiresAt.Equal(sess.ExpiresAt) {
				if err := tx.Bucket(bucketSessionExpiry).Delete(sessionExpiryKey(prev.ExpiresAt, prev.ID)); err != nil {
					return err
				}
				if err := tx.Bucket(bucketSessionExpiry).Put(sessionExpiryKey(sess.ExpiresAt, sess.ID), []byte(sess.ID)); err != nil {
					return err
				}
			}
		}
		return b.Put([]byte(sess.ID), raw)
	})
	if err != nil {
		return apperr.Wrap(err, apperr.KindDatabase, "update session")
	}
	return nil
}

// DeleteSession removes the session record and its expiry index entry.
func (s *Store) DeleteSession(id string) error {
	sess, err := s.GetSession(id)
	if err != nil {
		return err
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketSession).Delete([]byte(id)); err != nil {
			return err
		}
		return tx.Bucket(bucketSessionExpiry).Delete(sessionExpiryKey(sess.ExpiresAt, sess.ID))
	})
	if err != nil {
		return apperr.Wrap(err, apperr.KindDatabase, "delete session")
	}
	return nil
}

// CleanupExpiredSessions range-scans the expiry index from its start up to
// now. Only entries referencing a session still in_progress are acted on:
// for those, both the sessionExp entry and the session record itself are
// batch-deleted (matching the original's literal delete_cf, not a status
// update). Entries for sessions that are already terminal, or that no
// longer exist, are left untouched — their sessionExp key was not removed
// because neither "session deleted" nor "expires_at changed" happened here,
// and touching it would violate the §3 sessionExp invariant. Returns the
// ids it deleted.
func (s *Store) CleanupExpiredSessions() ([]string, error) {
	cutoff := []byte(time.Now().UTC().Format(time.RFC3339Nano) + ":\xff")
	var expired []string
	err := s.db.Update(func(tx *bolt.Tx) error {
		sessions := tx.Bucket(bucketSession)
		expiry := tx.Bucket(bucketSessionExpiry)
		c := expiry.Cursor()

		var toDelete [][]byte
		for k, v := c.First(); k != nil && string(k) < string(cutoff); k, v = c.Next() {
			id := string(v)
			raw := sessions.Get([]byte(id))
			if raw == nil {
				continue
			}
			var sess models.UploadSession
			if err := json.Unmarshal(raw, &sess); err != nil {
				return err
			}
			if sess.Status != models.SessionInProgress {
				continue
			}
			expired = append(expired, id)
			toDelete = append(toDelete, append([]byte(nil), k...))
		}
		for _, k := range toDelete {
			id := string(expiry.Get(k))
			if err := sessions.Delete([]byte(id)); err != nil {
				return err
			}
			if err := expiry.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindDatabase, "cleanup expired sessions")
	}
	return expired, nil
}

// ---- token metadata / lock / cooldown ----

func tokenKey(chainID int64, address string) []byte {
	return []byte(fmt.Sprintf("%d:%s", chainID, address))
}

// GetTokenMetadata fetches the metadata record for (chainID, address).
func (s *Store) GetTokenMetadata(chainID int64, address string) (*models.TokenMetadata, error) {
	var tm *models.TokenMetadata
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketTokenMeta).Get(tokenKey(chainID, address))
		if raw == nil {
			return nil
		}
		tm = &models.TokenMetadata{}
		return json.Unmarshal(raw, tm)
	})
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindDatabase, "get token metadata")
	}
	if tm == nil {
		return nil, apperr.New(apperr.KindNotFound, "token metadata not found")
	}
	return tm, nil
}

// UpsertTokenMetadata writes tm, overwriting any existing record.
func (s *Store) UpsertTokenMetadata(tm *models.TokenMetadata) error {
	raw, err := json.Marshal(tm)
	if err != nil {
		return apperr.Wrap(err, apperr.KindInternal, "marshal token metadata")
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTokenMeta).Put(tokenKey(tm.ChainID, tm.Address), raw)
	})
	if err != nil {
		return apperr.Wrap(err, apperr.KindDatabase, "upsert token metadata")
	}
	return nil
}

// DeleteTokenMetadata removes the metadata record. It does not touch the
// lock table: lock and metadata lifecycles are independent.
func (s *Store) DeleteTokenMetadata(chainID int64, address string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTokenMeta).Delete(tokenKey(chainID, address))
	})
	if err != nil {
		return apperr.Wrap(err, apperr.KindDatabase, "delete token metadata")
	}
	return nil
}

// GetTokenLock fetches the lock record for (chainID, address), if any.
func (s *Store) GetTokenLock(chainID int64, address string) (*models.TokenLock, error) {
	var lock *models.TokenLock
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketTokenLock).Get(tokenKey(chainID, address))
		if raw == nil {
			return nil
		}
		lock = &models.TokenLock{}
		return json.Unmarshal(raw, lock)
	})
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindDatabase, "get token lock")
	}
	if lock == nil {
		return nil, apperr.New(apperr.KindNotFound, "token lock not found")
	}
	return lock, nil
}

// LockToken inserts or overwrites the lock record for (chainID, address).
func (s *Store) LockToken(lock *models.TokenLock) error {
	raw, err := json.Marshal(lock)
	if err != nil {
		return apperr.Wrap(err, apperr.KindInternal, "marshal token lock")
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTokenLock).Put(tokenKey(lock.ChainID, lock.Address), raw)
	})
	if err != nil {
		return apperr.Wrap(err, apperr.KindDatabase, "lock token")
	}
	return nil
}

// UnlockToken deletes the lock record, reporting whether one existed.
func (s *Store) UnlockToken(chainID int64, address string) (bool, error) {
	existed := false
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTokenLock)
		key := tokenKey(chainID, address)
		if b.Get(key) != nil {
			existed = true
		}
		return b.Delete(key)
	})
	if err != nil {
		return false, apperr.Wrap(err, apperr.KindDatabase, "unlock token")
	}
	return existed, nil
}

// RecordTokenUpdate stamps the cooldown clock for (chainID, address) to now.
func (s *Store) RecordTokenUpdate(chainID int64, address string) error {
	rec := models.TokenUpdateRecord{ChainID: chainID, Address: address, LastUpdateAt: time.Now().UTC()}
	raw, err := json.Marshal(&rec)
	if err != nil {
		return apperr.Wrap(err, apperr.KindInternal, "marshal token update record")
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTokenUpdate).Put(tokenKey(chainID, address), raw)
	})
	if err != nil {
		return apperr.Wrap(err, apperr.KindDatabase, "record token update")
	}
	return nil
}

func (s *Store) lastTokenUpdate(chainID int64, address string) (time.Time, bool, error) {
	var rec *models.TokenUpdateRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketTokenUpdate).Get(tokenKey(chainID, address))
		if raw == nil {
			return nil
		}
		rec = &models.TokenUpdateRecord{}
		return json.Unmarshal(raw, rec)
	})
	if err != nil {
		return time.Time{}, false, apperr.Wrap(err, apperr.KindDatabase, "read token update record")
	}
	if rec == nil {
		return time.Time{}, false, nil
	}
	return rec.LastUpdateAt, true, nil
}

// CanUpdateToken reports whether enough time has passed since the last
// recorded update for (chainID, address) given cooldown.
func (s *Store) CanUpdateToken(chainID int64, address string, cooldown time.Duration) (bool, error) {
	last, ok, err := s.lastTokenUpdate(chainID, address)
	if err != nil {
		return false, err
	}
	if !ok {
		return true, nil
	}
	return time.Since(last) >= cooldown, nil
}

// SecondsUntilUpdate returns how many seconds remain before the next update
// is permitted, 0 if one is already permitted.
func (s *Store) SecondsUntilUpdate(chainID int64, address string, cooldown time.Duration) (int64, error) {
	last, ok, err := s.lastTokenUpdate(chainID, address)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	remaining := cooldown - time.Since(last)
	if remaining <= 0 {
		return 0, nil
	}
	return int64(remaining.Seconds()) + 1, nil
}
