package retrieval

import (
	"container/heap"
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// Similarity metrics supported by the SQLite backend.
const (
	MetricCosine     = "cosine"
	MetricDotProduct = "dotproduct"
)

// Compile-time checks.
var (
	_ IndexProvider = (*SQLiteIndexes)(nil)
	_ VectorIndex   = (*sqliteIndex)(nil)
)

// SQLiteIndexes stores named vector indexes in SQLite and answers queries by
// brute-force similarity search. The vector_indexes and vectors tables must
// already exist (created via migrations).
type SQLiteIndexes struct {
	db *sql.DB
}

// NewSQLiteIndexes wraps an existing *sql.DB for vector operations.
func NewSQLiteIndexes(db *sql.DB) *SQLiteIndexes {
	return &SQLiteIndexes{db: db}
}

func (s *SQLiteIndexes) ListIndexes(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM vector_indexes ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing indexes: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning index name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s *SQLiteIndexes) CreateIndex(ctx context.Context, spec IndexSpec) error {
	if spec.Dimension <= 0 {
		return fmt.Errorf("invalid dimension %d", spec.Dimension)
	}
	metric := spec.Metric
	if metric == "" {
		metric = MetricCosine
	}
	if metric != MetricCosine && metric != MetricDotProduct {
		return fmt.Errorf("unsupported metric %q", metric)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO vector_indexes (name, dimension, metric, created_at) VALUES (?, ?, ?, ?)`,
		spec.Name, spec.Dimension, metric, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("creating index %s: %w", spec.Name, err)
	}
	return nil
}

func (s *SQLiteIndexes) DeleteIndex(ctx context.Context, name string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning delete transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM vectors WHERE index_name = ?`, name); err != nil {
		return fmt.Errorf("deleting vectors of %s: %w", name, err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM vector_indexes WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("deleting index %s: %w", name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrIndexNotFound, name)
	}
	return tx.Commit()
}

func (s *SQLiteIndexes) Open(ctx context.Context, name string) (VectorIndex, error) {
	idx := &sqliteIndex{db: s.db, name: name}
	err := s.db.QueryRowContext(ctx,
		`SELECT dimension, metric FROM vector_indexes WHERE name = ?`, name,
	).Scan(&idx.dimension, &idx.metric)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("opening index %s: %w", name, err)
	}
	return idx, nil
}

type sqliteIndex struct {
	db        *sql.DB
	name      string
	dimension int
	metric    string
}

func (x *sqliteIndex) Name() string { return x.name }

// Upsert inserts or replaces records in one transaction.
func (x *sqliteIndex) Upsert(ctx context.Context, records []Record) error {
	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning upsert transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO vectors (index_name, id, embedding, metadata, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (index_name, id) DO UPDATE SET
			embedding = excluded.embedding,
			metadata = excluded.metadata`)
	if err != nil {
		return fmt.Errorf("preparing upsert statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, r := range records {
		if len(r.Values) != x.dimension {
			return fmt.Errorf("record %s has dimension %d, index %s expects %d", r.ID, len(r.Values), x.name, x.dimension)
		}
		meta, err := json.Marshal(r.Metadata)
		if err != nil {
			return fmt.Errorf("encoding metadata for %s: %w", r.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, x.name, r.ID, encodeFloat32s(r.Values), string(meta), now); err != nil {
			return fmt.Errorf("upserting record %s: %w", r.ID, err)
		}
	}

	return tx.Commit()
}

// idScore holds only the ID and score during the scan phase of Query.
// Metadata is fetched only for top-K winners.
type idScore struct {
	ID    string
	Score float32
}

// Query performs a brute-force similarity scan over the index, returning
// the top-K most similar records.
func (x *sqliteIndex) Query(ctx context.Context, vector []float32, topK int) ([]Match, error) {
	if topK <= 0 {
		return nil, nil
	}

	var queryNorm float32 = 1
	if x.metric == MetricCosine {
		queryNorm = norm(vector)
		if queryNorm == 0 {
			return nil, nil
		}
	}

	// Phase 1: scan only id + embedding to find top-K candidates.
	rows, err := x.db.QueryContext(ctx, `SELECT id, embedding FROM vectors WHERE index_name = ?`, x.name)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	h := &idScoreHeap{}
	heap.Init(h)

	// Reusable buffer for decoding embeddings to avoid per-row allocations.
	var buf []float32

	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}

		buf, err = decodeFloat32sInto(buf, blob)
		if err != nil {
			return nil, fmt.Errorf("decoding embedding for %s: %w", id, err)
		}

		var score float32
		if x.metric == MetricCosine {
			score = cosine(vector, buf, queryNorm)
		} else {
			score = dot(vector, buf)
		}
		if h.Len() < topK {
			heap.Push(h, idScore{ID: id, Score: score})
		} else if score > (*h)[0].Score {
			(*h)[0] = idScore{ID: id, Score: score}
			heap.Fix(h, 0)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}
	rows.Close()

	if h.Len() == 0 {
		return nil, nil
	}

	// Phase 2: fetch metadata only for the top-K IDs.
	matches := make([]Match, h.Len())
	for i := len(matches) - 1; i >= 0; i-- {
		item := heap.Pop(h).(idScore)
		matches[i] = Match{ID: item.ID, Score: item.Score}
	}

	args := make([]any, 0, len(matches)+1)
	args = append(args, x.name)
	for _, m := range matches {
		args = append(args, m.ID)
	}
	metaRows, err := x.db.QueryContext(ctx,
		`SELECT id, metadata FROM vectors WHERE index_name = ? AND id IN (?`+strings.Repeat(",?", len(matches)-1)+`)`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("fetching top-K metadata: %w", err)
	}
	defer metaRows.Close()

	meta := make(map[string]string, len(matches))
	for metaRows.Next() {
		var id, raw string
		if err := metaRows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scanning metadata: %w", err)
		}
		meta[id] = raw
	}
	if err := metaRows.Err(); err != nil {
		return nil, fmt.Errorf("iterating metadata: %w", err)
	}

	for i := range matches {
		matches[i].Metadata = decodeMetadata(meta[matches[i].ID])
	}

	return matches, nil
}

func (x *sqliteIndex) Stats(ctx context.Context) (IndexStats, error) {
	stats := IndexStats{Dimension: x.dimension}
	err := x.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM vectors WHERE index_name = ?`, x.name).Scan(&stats.Count)
	if err != nil {
		return IndexStats{}, fmt.Errorf("counting vectors: %w", err)
	}
	return stats, nil
}

// encodeFloat32s serializes a float32 slice to little-endian bytes.
func encodeFloat32s(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// decodeFloat32sInto decodes little-endian bytes into the provided buffer,
// reusing it to avoid per-row allocations during search scans.
func decodeFloat32sInto(buf []float32, b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("byte slice length %d is not a multiple of 4", len(b))
	}
	n := len(b) / 4
	if cap(buf) < n {
		buf = make([]float32, n)
	} else {
		buf = buf[:n]
	}
	for i := range buf {
		buf[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return buf, nil
}

// norm returns the L2 norm of a vector.
func norm(v []float32) float32 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	return float32(math.Sqrt(sum))
}

// cosine computes dot(a,b) / (aNorm * |b|). aNorm is the precomputed L2
// norm of a.
func cosine(a, b []float32, aNorm float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var d, bNormSq float64
	for i := range a {
		d += float64(a[i]) * float64(b[i])
		bNormSq += float64(b[i]) * float64(b[i])
	}
	bNorm := math.Sqrt(bNormSq)
	if bNorm == 0 {
		return 0
	}
	return float32(d / (float64(aNorm) * bNorm))
}

func dot(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var d float64
	for i := range a {
		d += float64(a[i]) * float64(b[i])
	}
	return float32(d)
}

// idScoreHeap is a min-heap of idScore ordered by Score.
type idScoreHeap []idScore

func (h idScoreHeap) Len() int           { return len(h) }
func (h idScoreHeap) Less(i, j int) bool { return h[i].Score < h[j].Score }
func (h idScoreHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *idScoreHeap) Push(x any)        { *h = append(*h, x.(idScore)) }
func (h *idScoreHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
