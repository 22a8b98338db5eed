package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// uniqueViolation is the Postgres error code for unique constraint violations.
const uniqueViolation = "23505"

// Store provides Postgres-backed persistence for users and audio files.
type Store struct {
	pool     *pgxpool.Pool
	ownsPool bool
}

// NewStore creates a store using the provided connection string and takes
// ownership of the pool.
func NewStore(ctx context.Context, connString string) (*Store, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	return &Store{pool: pool, ownsPool: true}, nil
}

// NewStoreFromPool wraps an existing pgx pool.
func NewStoreFromPool(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close closes the underlying pool if the store owns it.
func (s *Store) Close() {
	if s.ownsPool && s.pool != nil {
		s.pool.Close()
	}
}

// Pool exposes the underlying pgx pool for readiness probes.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.ExternalID, &u.Username, &u.Email, &u.IsSuperuser, &u.CreatedAt)
	return u, err
}

func scanAudioFile(row pgx.Row) (AudioFile, error) {
	var f AudioFile
	err := row.Scan(&f.ID, &f.UserID, &f.FileName, &f.FilePath, &f.UploadedAt)
	return f, err
}

func mapStoreError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicateIdentity
	}
	return err
}

// CreateUser inserts a new user row. Uniqueness of external id, username and
// email is enforced by the schema; violations surface as ErrDuplicateIdentity.
func (s *Store) CreateUser(ctx context.Context, params CreateUserParams) (User, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO users (external_id, username, email, is_superuser)
		VALUES ($1, $2, $3, $4)
		RETURNING id, external_id, username, email, is_superuser, created_at
	`, params.ExternalID, params.Username, params.Email, params.IsSuperuser)

	user, err := scanUser(row)
	if err != nil {
		return User{}, mapStoreError(err)
	}
	return user, nil
}

// GetUser retrieves a user by internal id.
func (s *Store) GetUser(ctx context.Context, id int64) (User, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, external_id, username, email, is_superuser, created_at
		FROM users WHERE id = $1
	`, id)

	user, err := scanUser(row)
	if err != nil {
		return User{}, mapStoreError(err)
	}
	return user, nil
}

// GetUserByExternalID retrieves a user by the identity provider's stable id.
func (s *Store) GetUserByExternalID(ctx context.Context, externalID string) (User, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, external_id, username, email, is_superuser, created_at
		FROM users WHERE external_id = $1
	`, externalID)

	user, err := scanUser(row)
	if err != nil {
		return User{}, mapStoreError(err)
	}
	return user, nil
}

// UpdateUser applies a partial profile update: nil fields keep their stored
// value (COALESCE), provided fields are overwritten.
func (s *Store) UpdateUser(ctx context.Context, params UpdateUserParams) (User, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE users
		SET username = COALESCE($2, username),
		    email    = COALESCE($3, email)
		WHERE id = $1
		RETURNING id, external_id, username, email, is_superuser, created_at
	`, params.ID, params.Username, params.Email)

	user, err := scanUser(row)
	if err != nil {
		return User{}, mapStoreError(err)
	}
	return user, nil
}

// DeleteUser removes a user row. Owned audio_files rows go with it via the
// ON DELETE CASCADE foreign key.
func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return mapStoreError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateAudioFile inserts an uploaded audio file record.
func (s *Store) CreateAudioFile(ctx context.Context, params CreateAudioFileParams) (AudioFile, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO audio_files (user_id, file_name, file_path)
		VALUES ($1, $2, $3)
		RETURNING id, user_id, file_name, file_path, uploaded_at
	`, params.UserID, params.FileName, params.FilePath)

	file, err := scanAudioFile(row)
	if err != nil {
		return AudioFile{}, mapStoreError(err)
	}
	return file, nil
}

// ListAudioFilesByOwner returns all audio files owned by the given user,
// oldest first.
func (s *Store) ListAudioFilesByOwner(ctx context.Context, userID int64) ([]AudioFile, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, file_name, file_path, uploaded_at
		FROM audio_files WHERE user_id = $1
		ORDER BY id
	`, userID)
	if err != nil {
		return nil, mapStoreError(err)
	}
	defer rows.Close()

	files := []AudioFile{}
	for rows.Next() {
		file, err := scanAudioFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, file)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return files, nil
}
