package store

import (
	"context"
	"database/sql"
	"fmt"
)

// GetEmbeddings returns the cached vectors for the given text hashes under
// model. Hashes with no cached vector are absent from the result.
func (s *Store) GetEmbeddings(ctx context.Context, model string, hashes []string) (map[string][]float32, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	out := make(map[string][]float32, len(hashes))
	if len(hashes) == 0 {
		return out, nil
	}

	args := make([]any, 0, len(hashes)+1)
	args = append(args, model, hashes[0])
	for _, h := range hashes[1:] {
		args = append(args, h)
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT text_hash, dim, embedding FROM embedding_cache
		WHERE model = ? AND text_hash IN (?%s)
	`, repeatPlaceholders(len(hashes)-1)), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var hash string
		var dim int
		var blob []byte
		if err := rows.Scan(&hash, &dim, &blob); err != nil {
			return nil, err
		}
		vec := deserializeFloat32(blob)
		if len(vec) != dim {
			continue
		}
		out[hash] = vec
	}
	return out, rows.Err()
}

// PutEmbeddings stores vectors keyed by text hash under model. Blobs pass
// through sqlite-vec's vec_f32 so malformed vectors are rejected.
func (s *Store) PutEmbeddings(ctx context.Context, model string, vectors map[string][]float32) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if len(vectors) == 0 {
		return nil
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO embedding_cache (model, text_hash, dim, embedding)
			VALUES (?, ?, ?, vec_f32(?))
			ON CONFLICT(model, text_hash) DO UPDATE SET
				dim = excluded.dim,
				embedding = excluded.embedding
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for hash, vec := range vectors {
			if len(vec) == 0 {
				continue
			}
			if _, err := stmt.ExecContext(ctx, model, hash, len(vec), serializeFloat32(vec)); err != nil {
				return fmt.Errorf("caching embedding %s: %w", hash, err)
			}
		}
		return nil
	})
}
