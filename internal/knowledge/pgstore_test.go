package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// fakeQuerier records executed SQL and serves canned rows.
type fakeQuerier struct {
	execSQL   []string
	execArgs  [][]any
	querySQL  []string
	queryArgs [][]any
	rows      []searchRowData
	count     int64
	failWith  error
}

type searchRowData struct {
	id          string
	content     string
	contentType string
	source      string
	chunkIndex  int
	payload     []byte
	createdAt   time.Time
	score       float32
}

func (f *fakeQuerier) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if f.failWith != nil {
		return pgconn.CommandTag{}, f.failWith
	}
	f.execSQL = append(f.execSQL, sql)
	f.execArgs = append(f.execArgs, args)
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (f *fakeQuerier) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	f.querySQL = append(f.querySQL, sql)
	f.queryArgs = append(f.queryArgs, args)
	return &fakeRows{data: f.rows}, nil
}

func (f *fakeQuerier) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	f.querySQL = append(f.querySQL, sql)
	f.queryArgs = append(f.queryArgs, args)
	return &fakeRow{count: f.count, err: f.failWith}
}

// fakeRows implements pgx.Rows over canned search rows.
type fakeRows struct {
	data []searchRowData
	idx  int
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Next() bool {
	if r.idx >= len(r.data) {
		return false
	}
	r.idx++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.data[r.idx-1]
	*(dest[0].(*string)) = row.id
	*(dest[1].(*string)) = row.content
	*(dest[2].(*string)) = row.contentType
	*(dest[3].(*string)) = row.source
	*(dest[4].(*int)) = row.chunkIndex
	*(dest[5].(*[]byte)) = row.payload
	*(dest[6].(*time.Time)) = row.createdAt
	*(dest[7].(*float32)) = row.score
	return nil
}

func (r *fakeRows) Values() ([]any, error) { return nil, nil }
func (r *fakeRows) RawValues() [][]byte    { return nil }
func (r *fakeRows) Conn() *pgx.Conn        { return nil }

type fakeRow struct {
	count int64
	err   error
}

func (r *fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(*int64)) = r.count
	return nil
}

func TestPGStoreUpsert(t *testing.T) {
	t.Parallel()

	q := &fakeQuerier{}
	store, err := NewPGStore(q, nil)
	if err != nil {
		t.Fatalf("NewPGStore() error = %v", err)
	}

	p := validArticlePoint()
	if err := store.Upsert(context.Background(), []Point{p}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	if len(q.execSQL) != 1 {
		t.Fatalf("expected 1 exec, got %d", len(q.execSQL))
	}
	if !strings.Contains(q.execSQL[0], "ON CONFLICT (id) DO UPDATE") {
		t.Errorf("upsert SQL missing conflict clause: %s", q.execSQL[0])
	}
	if q.execArgs[0][0] != "doc-1#0" {
		t.Errorf("first arg = %v, want point ID", q.execArgs[0][0])
	}
	if q.execArgs[0][2] != "article" {
		t.Errorf("content_type arg = %v, want article", q.execArgs[0][2])
	}
}

func TestPGStoreUpsertRejectsInvalidPoint(t *testing.T) {
	t.Parallel()

	q := &fakeQuerier{}
	store, _ := NewPGStore(q, nil)

	p := validArticlePoint()
	p.Vector = make([]float32, 10)

	err := store.Upsert(context.Background(), []Point{p})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("Upsert() error = %v, want ErrDimensionMismatch", err)
	}
	if len(q.execSQL) != 0 {
		t.Error("invalid point must not reach the database")
	}
}

func TestPGStoreSearch(t *testing.T) {
	t.Parallel()

	payloadJSON, _ := json.Marshal(Payload{Article: &ArticlePayload{Title: "T"}})
	q := &fakeQuerier{
		rows: []searchRowData{
			{id: "a#0", content: "first", contentType: "article", source: "a", payload: payloadJSON, score: 0.92},
			{id: "b#1", content: "second", contentType: "article", source: "b", chunkIndex: 1, payload: payloadJSON, score: 0.71},
		},
	}
	store, _ := NewPGStore(q, nil)

	matches, err := store.Search(context.Background(), make([]float32, VectorDimension), WithTopK(2))
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
	if matches[0].Point.ID != "a#0" || matches[0].Score != 0.92 {
		t.Errorf("first match = %+v", matches[0])
	}
	if matches[0].Point.Payload.Article == nil || matches[0].Point.Payload.Article.Title != "T" {
		t.Errorf("payload not parsed: %+v", matches[0].Point.Payload)
	}
	if strings.Contains(q.querySQL[0], "WHERE content_type") {
		t.Error("unfiltered search must not filter by content type")
	}
}

func TestPGStoreSearchContentTypeFilter(t *testing.T) {
	t.Parallel()

	q := &fakeQuerier{}
	store, _ := NewPGStore(q, nil)

	_, err := store.Search(context.Background(), make([]float32, VectorDimension),
		WithContentType(ContentTypePost))
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	if !strings.Contains(q.querySQL[0], "WHERE content_type = $2") {
		t.Errorf("filtered search SQL missing content_type clause: %s", q.querySQL[0])
	}
	if q.queryArgs[0][1] != "post" {
		t.Errorf("content_type arg = %v, want post", q.queryArgs[0][1])
	}
}

func TestPGStoreSearchRejectsWrongDimension(t *testing.T) {
	t.Parallel()

	store, _ := NewPGStore(&fakeQuerier{}, nil)

	_, err := store.Search(context.Background(), make([]float32, 100))
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("Search() error = %v, want ErrDimensionMismatch", err)
	}
}

func TestPGStoreSearchEmptyStore(t *testing.T) {
	t.Parallel()

	store, _ := NewPGStore(&fakeQuerier{}, nil)

	matches, err := store.Search(context.Background(), make([]float32, VectorDimension))
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("empty store should return zero matches, got %d", len(matches))
	}
}

func TestPGStoreCount(t *testing.T) {
	t.Parallel()

	q := &fakeQuerier{count: 42}
	store, _ := NewPGStore(q, nil)

	n, err := store.Count(context.Background(), "")
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 42 {
		t.Errorf("Count() = %d, want 42", n)
	}

	_, err = store.Count(context.Background(), ContentTypeArticle)
	if err != nil {
		t.Fatalf("Count(article) error = %v", err)
	}
	if !strings.Contains(q.querySQL[1], "WHERE content_type") {
		t.Errorf("typed count SQL missing filter: %s", q.querySQL[1])
	}
}

func TestPGStoreDelete(t *testing.T) {
	t.Parallel()

	q := &fakeQuerier{}
	store, _ := NewPGStore(q, nil)

	if err := store.Delete(context.Background(), "doc-1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if len(q.execSQL) != 1 || !strings.Contains(q.execSQL[0], "DELETE FROM documents WHERE source") {
		t.Errorf("unexpected delete SQL: %v", q.execSQL)
	}
	if q.execArgs[0][0] != "doc-1" {
		t.Errorf("delete arg = %v, want doc-1", q.execArgs[0][0])
	}
}
