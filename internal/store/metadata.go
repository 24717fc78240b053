package store

import "database/sql"

// SetMetadata upserts a key-value pair in the bench_metadata table.
func (s *Store) SetMetadata(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO bench_metadata (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = ?`,
		key, value, value,
	)
	return err
}

// GetMetadata returns the value for a metadata key.
// Returns empty string and nil error if the key is missing.
func (s *Store) GetMetadata(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM bench_metadata WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

const submitTokenKey = "submit_token_hash"

// SetSubmitTokenHash stores the bcrypt hash the serve command checks
// write requests against.
func (s *Store) SetSubmitTokenHash(hash string) error {
	return s.SetMetadata(submitTokenKey, hash)
}

// GetSubmitTokenHash returns the stored bcrypt token hash, or "" when
// no token has been seeded yet.
func (s *Store) GetSubmitTokenHash() (string, error) {
	return s.GetMetadata(submitTokenKey)
}

// GetImportedFileHash returns the recorded content hash for a source
// file path, or "" if the file was never imported.
func (s *Store) GetImportedFileHash(path string) (string, error) {
	var hash string
	err := s.db.QueryRow(`SELECT sha256 FROM imported_files WHERE path = ?`, path).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return hash, err
}

// SetImportedFileHash records the content hash for a source file path.
func (s *Store) SetImportedFileHash(path, hash string) error {
	_, err := s.db.Exec(
		`INSERT INTO imported_files (path, sha256) VALUES (?, ?)
		 ON CONFLICT(path) DO UPDATE SET sha256 = ?`,
		path, hash, hash,
	)
	return err
}
