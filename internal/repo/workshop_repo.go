package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/didi/gendry/builder"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/xxxsen/papersearch/internal/model"
	"github.com/xxxsen/papersearch/internal/pkg/dbutil"
	appErr "github.com/xxxsen/papersearch/internal/pkg/errors"
)

type WorkshopRepo struct {
	db *sqlx.DB
}

func NewWorkshopRepo(db *sql.DB) *WorkshopRepo {
	return &WorkshopRepo{db: sqlx.NewDb(db, "postgres")}
}

// the workshop title lives in the topic column.
type workshopRow struct {
	ID                int64            `db:"workshop_id"`
	Title             string           `db:"topic"`
	Category          string           `db:"category"`
	Abstract          string           `db:"abstract"`
	URL               string           `db:"url"`
	Topics            pq.StringArray   `db:"topics"`
	AbstractEmbedding *pgvector.Vector `db:"abstract_embedding"`
	ContentHash       string           `db:"content_hash"`
	Mtime             int64            `db:"mtime"`
}

func (r workshopRow) toModel() *model.Workshop {
	return &model.Workshop{
		ID:                r.ID,
		Title:             r.Title,
		Category:          r.Category,
		Abstract:          r.Abstract,
		URL:               r.URL,
		Topics:            []string(r.Topics),
		AbstractEmbedding: dbutil.VectorSlice(r.AbstractEmbedding),
		ContentHash:       r.ContentHash,
		Mtime:             r.Mtime,
	}
}

type workshopHitRow struct {
	workshopRow
	Distance float64 `db:"distance"`
}

func (r *WorkshopRepo) SearchNearest(ctx context.Context, vec []float32, limit int) ([]model.Candidate, error) {
	const query = `
		SELECT workshop_id, topic, category, abstract, url, topics, content_hash, mtime,
			(abstract_embedding <=> $1) AS distance
		FROM workshops
		WHERE abstract_embedding IS NOT NULL
		ORDER BY distance
		LIMIT $2
	`
	var rows []workshopHitRow
	if err := r.db.SelectContext(ctx, &rows, query, pgvector.NewVector(vec), limit); err != nil {
		return nil, err
	}
	out := make([]model.Candidate, 0, len(rows))
	for _, row := range rows {
		out = append(out, model.Candidate{Item: row.toModel(), Distance: row.Distance})
	}
	return out, nil
}

const upsertWorkshopQuery = `
	INSERT INTO workshops (topic, category, abstract, url, topics, content_hash, mtime)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (topic) DO UPDATE SET
		category = EXCLUDED.category,
		abstract = EXCLUDED.abstract,
		url = EXCLUDED.url,
		topics = EXCLUDED.topics,
		abstract_embedding = CASE WHEN workshops.content_hash = EXCLUDED.content_hash THEN workshops.abstract_embedding ELSE NULL END,
		content_hash = EXCLUDED.content_hash,
		mtime = EXCLUDED.mtime
`

func (r *WorkshopRepo) UpsertBatch(ctx context.Context, workshops []model.Workshop) error {
	if len(workshops) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()
	stmt, err := tx.PreparexContext(ctx, upsertWorkshopQuery)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, w := range workshops {
		topics := w.Topics
		if topics == nil {
			topics = []string{}
		}
		if _, err := stmt.ExecContext(ctx, w.Title, w.Category, w.Abstract, w.URL, pq.Array(topics), w.ContentHash, w.Mtime); err != nil {
			return fmt.Errorf("upsert workshop %q: %w", w.Title, err)
		}
	}
	return tx.Commit()
}

func (r *WorkshopRepo) GetByTitle(ctx context.Context, title string) (*model.Workshop, error) {
	sqlStr, args, err := builder.BuildSelect("workshops", map[string]interface{}{"topic": title}, []string{
		"workshop_id", "topic", "category", "abstract", "url", "topics", "abstract_embedding", "content_hash", "mtime",
	})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	var row workshopRow
	if err := r.db.GetContext(ctx, &row, sqlStr, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	return row.toModel(), nil
}

func (r *WorkshopRepo) ListMissingEmbeddings(ctx context.Context, afterID int64, limit int) ([]model.Workshop, error) {
	const query = `
		SELECT workshop_id, topic, category, abstract, url, topics, abstract_embedding, content_hash, mtime
		FROM workshops
		WHERE abstract_embedding IS NULL AND workshop_id > $1
		ORDER BY workshop_id
		LIMIT $2
	`
	var rows []workshopRow
	if err := r.db.SelectContext(ctx, &rows, query, afterID, limit); err != nil {
		return nil, err
	}
	out := make([]model.Workshop, 0, len(rows))
	for _, row := range rows {
		out = append(out, *row.toModel())
	}
	return out, nil
}

func (r *WorkshopRepo) SaveEmbedding(ctx context.Context, id int64, contentHash string, emb []float32) (bool, error) {
	const query = `UPDATE workshops SET abstract_embedding = $2 WHERE workshop_id = $1 AND content_hash = $3`
	res, err := r.db.ExecContext(ctx, query, id, pgvector.NewVector(emb), contentHash)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *WorkshopRepo) Count(ctx context.Context, cond string) (int64, error) {
	return countRows(ctx, r.db, "workshops", cond)
}
