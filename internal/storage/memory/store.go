// Package memory provides an in-memory store with the same semantics as the
// Postgres store: uniqueness of external id, username and email, partial
// updates, and cascade deletion of audio files. It backs unit tests that
// should not need a database container.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/audioreg/audioreg/internal/storage/postgres"
)

// Store is a mutex-guarded in-memory implementation of the persistence
// surface used by the directory and the audio handlers.
type Store struct {
	mu         sync.Mutex
	nextUserID int64
	nextFileID int64
	users      map[int64]postgres.User
	files      map[int64]postgres.AudioFile
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		users: make(map[int64]postgres.User),
		files: make(map[int64]postgres.AudioFile),
	}
}

func (s *Store) violatesUniqueness(candidate postgres.User) bool {
	for id, u := range s.users {
		if id == candidate.ID {
			continue
		}
		if u.Username == candidate.Username {
			return true
		}
		if u.ExternalID != nil && candidate.ExternalID != nil && *u.ExternalID == *candidate.ExternalID {
			return true
		}
		if u.Email != nil && candidate.Email != nil && *u.Email == *candidate.Email {
			return true
		}
	}
	return false
}

func (s *Store) CreateUser(_ context.Context, params postgres.CreateUserParams) (postgres.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextUserID++
	user := postgres.User{
		ID:          s.nextUserID,
		ExternalID:  params.ExternalID,
		Username:    params.Username,
		Email:       params.Email,
		IsSuperuser: params.IsSuperuser,
		CreatedAt:   time.Now().UTC(),
	}
	if s.violatesUniqueness(user) {
		s.nextUserID--
		return postgres.User{}, postgres.ErrDuplicateIdentity
	}
	s.users[user.ID] = user
	return user, nil
}

func (s *Store) GetUser(_ context.Context, id int64) (postgres.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return postgres.User{}, postgres.ErrNotFound
	}
	return user, nil
}

func (s *Store) GetUserByExternalID(_ context.Context, externalID string) (postgres.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.ExternalID != nil && *u.ExternalID == externalID {
			return u, nil
		}
	}
	return postgres.User{}, postgres.ErrNotFound
}

func (s *Store) UpdateUser(_ context.Context, params postgres.UpdateUserParams) (postgres.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[params.ID]
	if !ok {
		return postgres.User{}, postgres.ErrNotFound
	}
	if params.Username != nil {
		user.Username = *params.Username
	}
	if params.Email != nil {
		email := *params.Email
		user.Email = &email
	}
	if s.violatesUniqueness(user) {
		return postgres.User{}, postgres.ErrDuplicateIdentity
	}
	s.users[params.ID] = user
	return user, nil
}

func (s *Store) DeleteUser(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return postgres.ErrNotFound
	}
	delete(s.users, id)
	for fileID, f := range s.files {
		if f.UserID == id {
			delete(s.files, fileID)
		}
	}
	return nil
}

func (s *Store) CreateAudioFile(_ context.Context, params postgres.CreateAudioFileParams) (postgres.AudioFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextFileID++
	file := postgres.AudioFile{
		ID:         s.nextFileID,
		UserID:     params.UserID,
		FileName:   params.FileName,
		FilePath:   params.FilePath,
		UploadedAt: time.Now().UTC(),
	}
	s.files[file.ID] = file
	return file, nil
}

func (s *Store) ListAudioFilesByOwner(_ context.Context, userID int64) ([]postgres.AudioFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	files := []postgres.AudioFile{}
	for id := int64(1); id <= s.nextFileID; id++ {
		if f, ok := s.files[id]; ok && f.UserID == userID {
			files = append(files, f)
		}
	}
	return files, nil
}
