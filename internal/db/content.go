package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ContentWriter resolves, creates and links content items inside a single
// transaction. See ContentRepository.WithTx.
type ContentWriter interface {
	FindByExternalID(ctx context.Context, externalID string) (*ContentItem, error)
	FindByExternalURL(ctx context.Context, url string) (*ContentItem, error)
	Create(ctx context.Context, item *ContentItem) error
	// Link records the analysis/content pair. Returns false if the link
	// already existed.
	Link(ctx context.Context, link AnalysisContent) (bool, error)
}

// ContentRepository handles content item database operations.
type ContentRepository struct {
	pool *pgxpool.Pool
}

// WithTx runs fn in its own transaction. The transaction commits if fn
// returns nil and rolls back otherwise.
func (r *ContentRepository) WithTx(ctx context.Context, fn func(ContentWriter) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&contentTx{q: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// ForAnalysis retrieves the content items linked to an analysis in the order
// they were recommended.
func (r *ContentRepository) ForAnalysis(ctx context.Context, analysisID int64) ([]ContentItem, error) {
	query := `
		SELECT ` + contentColumns + `
		FROM content_items c
		JOIN analysis_content ac ON ac.content_id = c.id
		WHERE ac.analysis_id = $1
		ORDER BY ac.position, c.id
	`
	rows, err := r.pool.Query(ctx, query, analysisID)
	if err != nil {
		return nil, fmt.Errorf("querying analysis content: %w", err)
	}
	defer rows.Close()

	var items []ContentItem
	for rows.Next() {
		item, err := scanContent(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning content item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

const contentColumns = `
	c.id, c.external_id, c.external_url, c.uri, c.title, c.artist, c.album,
	c.preview_url, c.duration_ms, c.popularity, c.album_data, c.artists,
	c.raw_payload, c.created_at
`

// contentTx implements ContentWriter on a transaction.
type contentTx struct {
	q querier
}

// FindByExternalID retrieves a content item by its external (Spotify) ID.
func (t *contentTx) FindByExternalID(ctx context.Context, externalID string) (*ContentItem, error) {
	query := `SELECT ` + contentColumns + ` FROM content_items c WHERE c.external_id = $1 LIMIT 1`
	return t.findOne(ctx, query, externalID)
}

// FindByExternalURL retrieves a content item by its external URL.
func (t *contentTx) FindByExternalURL(ctx context.Context, url string) (*ContentItem, error) {
	query := `SELECT ` + contentColumns + ` FROM content_items c WHERE c.external_url = $1 ORDER BY c.id LIMIT 1`
	return t.findOne(ctx, query, url)
}

func (t *contentTx) findOne(ctx context.Context, query string, arg any) (*ContentItem, error) {
	item, err := scanContent(t.q.QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying content item: %w", err)
	}
	return item, nil
}

// Create inserts a new content item and sets its ID.
func (t *contentTx) Create(ctx context.Context, item *ContentItem) error {
	query := `
		INSERT INTO content_items (
			external_id, external_url, uri, title, artist, album, preview_url,
			duration_ms, popularity, album_data, artists, raw_payload, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW())
		RETURNING id, created_at
	`
	err := t.q.QueryRow(ctx, query,
		item.ExternalID,
		item.ExternalURL,
		item.URI,
		item.Title,
		item.Artist,
		item.Album,
		item.PreviewURL,
		item.DurationMs,
		item.Popularity,
		nullableJSON(item.AlbumData),
		nullableJSON(item.Artists),
		nullableJSON(item.RawPayload),
	).Scan(&item.ID, &item.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting content item: %w", err)
	}
	return nil
}

// Link records an analysis/content pair unless it already exists.
func (t *contentTx) Link(ctx context.Context, link AnalysisContent) (bool, error) {
	query := `
		INSERT INTO analysis_content (analysis_id, content_id, position)
		VALUES ($1, $2, $3)
		ON CONFLICT (analysis_id, content_id) DO NOTHING
	`
	result, err := t.q.Exec(ctx, query, link.AnalysisID, link.ContentID, link.Position)
	if err != nil {
		return false, fmt.Errorf("linking content to analysis: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

func scanContent(row pgx.Row) (*ContentItem, error) {
	var (
		item                      ContentItem
		albumData, artists, rawJS []byte
	)
	err := row.Scan(
		&item.ID,
		&item.ExternalID,
		&item.ExternalURL,
		&item.URI,
		&item.Title,
		&item.Artist,
		&item.Album,
		&item.PreviewURL,
		&item.DurationMs,
		&item.Popularity,
		&albumData,
		&artists,
		&rawJS,
		&item.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	item.AlbumData = albumData
	item.Artists = artists
	item.RawPayload = rawJS
	return &item, nil
}

// nullableJSON maps an empty payload to SQL NULL.
func nullableJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}
