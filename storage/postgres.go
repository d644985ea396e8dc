// Package storage implements the presence registry, the room-membership
// registry and the score-record store on PostgreSQL. Every operation is a
// single-key statement; the join path intentionally issues two independent
// writes with no transaction, so a failure between them can leave the two
// registries out of step (see DESIGN.md).
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tsuji-tomonori/RakugakiBattleOnLine/domain"
)

type PostgresRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresRepo(ctx context.Context, connString string) (*PostgresRepo, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, err
	}
	return &PostgresRepo{pool: pool}, nil
}

func (r *PostgresRepo) Close() {
	r.pool.Close()
}

// PutLogin writes the login marker for a freshly opened connection.
func (r *PostgresRepo) PutLogin(ctx context.Context, connectionID string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO presence(connection_id) VALUES($1)
		 ON CONFLICT (connection_id) DO NOTHING`,
		connectionID)
	return infraErr(err)
}

// PutPresence records the room and display name for a joined connection.
func (r *PostgresRepo) PutPresence(ctx context.Context, connectionID, roomID, userName string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO presence(connection_id, room_id, user_name) VALUES($1, $2, $3)
		 ON CONFLICT (connection_id) DO UPDATE SET room_id = $2, user_name = $3`,
		connectionID, roomID, userName)
	return infraErr(err)
}

// GetPresence returns the presence record, or domain.ErrNotFound.
func (r *PostgresRepo) GetPresence(ctx context.Context, connectionID string) (domain.Presence, error) {
	p := domain.Presence{ConnectionID: connectionID}

	row := r.pool.QueryRow(ctx,
		`SELECT COALESCE(room_id, ''), COALESCE(user_name, '')
		 FROM presence WHERE connection_id = $1`,
		connectionID)

	err := row.Scan(&p.RoomID, &p.UserName)
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return domain.Presence{}, domain.ErrNotFound
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return domain.Presence{}, err
		default:
			return domain.Presence{}, fmt.Errorf("%w: %w", domain.ErrTransient, err)
		}
	}
	return p, nil
}

// DeletePresence removes the record. Deleting an absent key is a no-op.
func (r *PostgresRepo) DeletePresence(ctx context.Context, connectionID string) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM presence WHERE connection_id = $1`, connectionID)
	return infraErr(err)
}

// AddMember adds the connection to the room index.
func (r *PostgresRepo) AddMember(ctx context.Context, roomID, connectionID string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO room_members(room_id, connection_id) VALUES($1, $2)
		 ON CONFLICT (room_id, connection_id) DO NOTHING`,
		roomID, connectionID)
	return infraErr(err)
}

// RemoveMember removes the connection from the room index. Removing an
// absent key is a no-op.
func (r *PostgresRepo) RemoveMember(ctx context.Context, roomID, connectionID string) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM room_members WHERE room_id = $1 AND connection_id = $2`,
		roomID, connectionID)
	return infraErr(err)
}

// ListMembers returns the connection ids currently in the room, in join
// order. Broadcast recipients and their delivery order come from here.
func (r *PostgresRepo) ListMembers(ctx context.Context, roomID string) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT connection_id FROM room_members WHERE room_id = $1 ORDER BY joined_at, connection_id`,
		roomID)
	if err != nil {
		return nil, infraErr(err)
	}
	defer rows.Close()

	var members []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, infraErr(err)
		}
		members = append(members, id)
	}
	if err := rows.Err(); err != nil {
		return nil, infraErr(err)
	}
	return members, nil
}

// PutScore writes the score record for a finalized stroke. The upsert keeps
// queue redelivery from failing on the duplicate key.
func (r *PostgresRepo) PutScore(ctx context.Context, rec domain.ScoreRecord) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO scores(connection_id, stroke_id, artifact_key, score) VALUES($1, $2, $3, $4)
		 ON CONFLICT (connection_id, stroke_id) DO UPDATE SET artifact_key = $3, score = $4`,
		rec.ConnectionID, rec.StrokeID, rec.ArtifactKey, rec.Score)
	return infraErr(err)
}

// GetScore returns the score record for a stroke, or domain.ErrNotFound.
func (r *PostgresRepo) GetScore(ctx context.Context, connectionID, strokeID string) (domain.ScoreRecord, error) {
	rec := domain.ScoreRecord{ConnectionID: connectionID, StrokeID: strokeID}

	row := r.pool.QueryRow(ctx,
		`SELECT artifact_key, score FROM scores WHERE connection_id = $1 AND stroke_id = $2`,
		connectionID, strokeID)

	err := row.Scan(&rec.ArtifactKey, &rec.Score)
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return domain.ScoreRecord{}, domain.ErrNotFound
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return domain.ScoreRecord{}, err
		default:
			return domain.ScoreRecord{}, fmt.Errorf("%w: %w", domain.ErrTransient, err)
		}
	}
	return rec, nil
}

func infraErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrTransient, err)
}
