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

// Abstracts carry most of the semantics; titles are short and embed noisily.
const (
	PaperTitleWeight    = 0.1
	PaperAbstractWeight = 0.9
)

type PaperRepo struct {
	db *sqlx.DB
}

func NewPaperRepo(db *sql.DB) *PaperRepo {
	return &PaperRepo{db: sqlx.NewDb(db, "postgres")}
}

type paperRow struct {
	ID                int64            `db:"paper_id"`
	Title             string           `db:"title"`
	Abstract          string           `db:"abstract"`
	Authors           pq.StringArray   `db:"authors"`
	URL               string           `db:"url"`
	PDFURL            string           `db:"pdf_url"`
	TitleEmbedding    *pgvector.Vector `db:"title_embedding"`
	AbstractEmbedding *pgvector.Vector `db:"abstract_embedding"`
	ContentHash       string           `db:"content_hash"`
	Mtime             int64            `db:"mtime"`
}

func (r paperRow) toModel() *model.Paper {
	return &model.Paper{
		ID:                r.ID,
		Title:             r.Title,
		Abstract:          r.Abstract,
		Authors:           []string(r.Authors),
		URL:               r.URL,
		PDFURL:            r.PDFURL,
		TitleEmbedding:    dbutil.VectorSlice(r.TitleEmbedding),
		AbstractEmbedding: dbutil.VectorSlice(r.AbstractEmbedding),
		ContentHash:       r.ContentHash,
		Mtime:             r.Mtime,
	}
}

type paperHitRow struct {
	paperRow
	Distance float64 `db:"distance"`
}

var searchPapersQuery = fmt.Sprintf(`
	SELECT paper_id, title, abstract, authors, url, pdf_url, content_hash, mtime,
		(%g * (title_embedding <=> $1) + %g * (abstract_embedding <=> $1)) AS distance
	FROM papers
	WHERE title_embedding IS NOT NULL AND abstract_embedding IS NOT NULL
	ORDER BY distance
	LIMIT $2
`, PaperTitleWeight, PaperAbstractWeight)

// SearchNearest returns up to limit papers ordered by the weighted cosine
// distance of both embeddings to vec. Rows missing either embedding are
// never returned.
func (r *PaperRepo) SearchNearest(ctx context.Context, vec []float32, limit int) ([]model.Candidate, error) {
	var rows []paperHitRow
	if err := r.db.SelectContext(ctx, &rows, searchPapersQuery, pgvector.NewVector(vec), limit); err != nil {
		return nil, err
	}
	out := make([]model.Candidate, 0, len(rows))
	for _, row := range rows {
		out = append(out, model.Candidate{Item: row.toModel(), Distance: row.Distance})
	}
	return out, nil
}

const upsertPaperQuery = `
	INSERT INTO papers (title, abstract, authors, url, pdf_url, content_hash, mtime)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (title) DO UPDATE SET
		abstract = EXCLUDED.abstract,
		authors = EXCLUDED.authors,
		url = EXCLUDED.url,
		pdf_url = EXCLUDED.pdf_url,
		title_embedding = CASE WHEN papers.content_hash = EXCLUDED.content_hash THEN papers.title_embedding ELSE NULL END,
		abstract_embedding = CASE WHEN papers.content_hash = EXCLUDED.content_hash THEN papers.abstract_embedding ELSE NULL END,
		content_hash = EXCLUDED.content_hash,
		mtime = EXCLUDED.mtime
`

// UpsertBatch inserts or refreshes papers keyed by title. Embeddings survive
// only when the content hash is unchanged.
func (r *PaperRepo) UpsertBatch(ctx context.Context, papers []model.Paper) error {
	if len(papers) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()
	stmt, err := tx.PreparexContext(ctx, upsertPaperQuery)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, p := range papers {
		authors := p.Authors
		if authors == nil {
			authors = []string{}
		}
		if _, err := stmt.ExecContext(ctx, p.Title, p.Abstract, pq.Array(authors), p.URL, p.PDFURL, p.ContentHash, p.Mtime); err != nil {
			return fmt.Errorf("upsert paper %q: %w", p.Title, err)
		}
	}
	return tx.Commit()
}

func (r *PaperRepo) GetByTitle(ctx context.Context, title string) (*model.Paper, error) {
	sqlStr, args, err := builder.BuildSelect("papers", map[string]interface{}{"title": title}, []string{
		"paper_id", "title", "abstract", "authors", "url", "pdf_url", "title_embedding", "abstract_embedding", "content_hash", "mtime",
	})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	var row paperRow
	if err := r.db.GetContext(ctx, &row, sqlStr, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	return row.toModel(), nil
}

// ListMissingEmbeddings pages through papers lacking an embedding in id
// order, starting after afterID.
func (r *PaperRepo) ListMissingEmbeddings(ctx context.Context, afterID int64, limit int) ([]model.Paper, error) {
	const query = `
		SELECT paper_id, title, abstract, authors, url, pdf_url, title_embedding, abstract_embedding, content_hash, mtime
		FROM papers
		WHERE (title_embedding IS NULL OR abstract_embedding IS NULL) AND paper_id > $1
		ORDER BY paper_id
		LIMIT $2
	`
	var rows []paperRow
	if err := r.db.SelectContext(ctx, &rows, query, afterID, limit); err != nil {
		return nil, err
	}
	out := make([]model.Paper, 0, len(rows))
	for _, row := range rows {
		out = append(out, *row.toModel())
	}
	return out, nil
}

// SaveEmbeddings writes both embeddings in one statement. A nil embedding
// keeps the stored value. The write is skipped when the row content changed
// since contentHash was read.
func (r *PaperRepo) SaveEmbeddings(ctx context.Context, id int64, contentHash string, titleEmb, abstractEmb []float32) (bool, error) {
	const query = `
		UPDATE papers SET
			title_embedding = COALESCE($2, title_embedding),
			abstract_embedding = COALESCE($3, abstract_embedding)
		WHERE paper_id = $1 AND content_hash = $4
	`
	res, err := r.db.ExecContext(ctx, query, id, dbutil.NullVector(titleEmb), dbutil.NullVector(abstractEmb), contentHash)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *PaperRepo) Count(ctx context.Context, cond string) (int64, error) {
	return countRows(ctx, r.db, "papers", cond)
}

func countRows(ctx context.Context, db *sqlx.DB, table, cond string) (int64, error) {
	where := map[string]interface{}{}
	if cond != "" {
		where["_custom_cond"] = builder.Custom(cond)
	}
	sqlStr, args, err := builder.BuildSelect(table, where, []string{"COUNT(*)"})
	if err != nil {
		return 0, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	var n int64
	if err := db.GetContext(ctx, &n, sqlStr, args...); err != nil {
		return 0, err
	}
	return n, nil
}
