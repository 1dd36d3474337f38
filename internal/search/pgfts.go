package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS searches documents with PostgreSQL full-text search. It is the
// fallback when Meilisearch is down and knows nothing about sections.
type PgFTS struct {
	db *sql.DB
}

func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true: if Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search ranks documents by ts_rank over the generated fts column and
// builds snippets from the markdown with ts_headline.
func (p *PgFTS) Search(ctx context.Context, q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" || q.FilterType == ResultSection {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := max(q.Offset, 0)

	where := "d.fts @@ plainto_tsquery('english', $1)"
	args := []any{q.Text}
	if q.DocumentID != "" {
		where += " AND d.id = $2"
		args = append(args, q.DocumentID)
	}

	var total int
	if err := p.db.QueryRowContext(ctx, "SELECT count(*) FROM documents d WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT d.id, d.title,
			ts_headline('english', d.markdown, plainto_tsquery('english', $1), 'MaxFragments=1,MaxWords=30,StartSel=<mark>,StopSel=</mark>')
		FROM documents d
		WHERE %s
		ORDER BY ts_rank(d.fts, plainto_tsquery('english', $1)) DESC
		LIMIT %d OFFSET %d`, where, limit, offset), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		r := Result{Type: ResultDocument}
		if err := rows.Scan(&r.ID, &r.Title, &r.Snippet); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		r.DocumentID = r.ID
		results = append(results, r)
	}
	return results, total, rows.Err()
}

// LoadAllRecords returns every document for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]DocumentRecord, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id, title, markdown FROM documents`)
	if err != nil {
		return nil, fmt.Errorf("load documents: %w", err)
	}
	defer rows.Close()

	documents := make([]DocumentRecord, 0)
	for rows.Next() {
		var d DocumentRecord
		if err := rows.Scan(&d.ID, &d.Title, &d.Body); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		documents = append(documents, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return documents, nil
}
