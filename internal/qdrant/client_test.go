package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestListCollections(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("api-key") != "qd-key" {
			t.Errorf("api-key = %q", r.Header.Get("api-key"))
		}
		w.Write([]byte(`{"result":{"collections":[{"name":"pdf-embeddings"},{"name":"other"}]},"status":"ok","time":0.0001}`))
	}))
	defer srv.Close()

	names, err := New(srv.URL, "qd-key").ListCollections(context.Background())
	if err != nil {
		t.Fatalf("ListCollections: %v", err)
	}
	if len(names) != 2 || names[0] != "pdf-embeddings" {
		t.Errorf("names = %v", names)
	}
}

func TestCreateAndGetCollection(t *testing.T) {
	var created struct {
		Vectors VectorParams `json:"vectors"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/pdf-embeddings" {
			http.NotFound(w, r)
			return
		}
		switch r.Method {
		case http.MethodPut:
			json.NewDecoder(r.Body).Decode(&created)
			w.Write([]byte(`{"result":true,"status":"ok"}`))
		case http.MethodGet:
			w.Write([]byte(`{"result":{"status":"green","points_count":7,"config":{"params":{"vectors":{"size":3072,"distance":"Cosine"}}}},"status":"ok"}`))
		}
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	ctx := context.Background()
	if err := c.CreateCollection(ctx, "pdf-embeddings", VectorParams{Size: 3072, Distance: DistanceCosine}); err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}
	if created.Vectors.Size != 3072 || created.Vectors.Distance != "Cosine" {
		t.Errorf("create body = %+v", created)
	}

	info, err := c.GetCollection(ctx, "pdf-embeddings")
	if err != nil {
		t.Fatalf("GetCollection: %v", err)
	}
	if info.PointsCount != 7 || info.Config.Params.Vectors.Size != 3072 {
		t.Errorf("info = %+v", info)
	}
}

func TestUpsertAndSearch(t *testing.T) {
	var upsert struct {
		Points []Point `json:"points"`
	}
	var search searchRequest
	var waitParam string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/collections/docs/points":
			waitParam = r.URL.Query().Get("wait")
			json.NewDecoder(r.Body).Decode(&upsert)
			w.Write([]byte(`{"result":{"operation_id":1,"status":"completed"},"status":"ok"}`))
		case r.Method == http.MethodPost && r.URL.Path == "/collections/docs/points/search":
			json.NewDecoder(r.Body).Decode(&search)
			w.Write([]byte(`{"result":[{"id":"6f1c1e0a-0000-5000-8000-000000000000","version":1,"score":0.87,"payload":{"type":"image","image_path":"images/doc_page1_img1.png"}}],"status":"ok"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	ctx := context.Background()

	err := c.UpsertPoints(ctx, "docs", []Point{{ID: "6f1c1e0a-0000-5000-8000-000000000000", Vector: []float32{1, 0}, Payload: map[string]any{"type": "image"}}})
	if err != nil {
		t.Fatalf("UpsertPoints: %v", err)
	}
	if waitParam != "true" || len(upsert.Points) != 1 {
		t.Errorf("wait=%q, points=%+v", waitParam, upsert.Points)
	}

	results, err := c.Search(ctx, "docs", []float32{1, 0}, 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if search.Limit != 3 || !search.WithPayload {
		t.Errorf("search request = %+v", search)
	}
	if len(results) != 1 || results[0].Payload["image_path"] != "images/doc_page1_img1.png" {
		t.Errorf("results = %+v", results)
	}
}

func TestErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"status":{"error":"Not found: Collection ` + "`docs`" + ` doesn't exist!"},"time":0.0}`))
	}))
	defer srv.Close()

	err := New(srv.URL, "").DeleteCollection(context.Background(), "docs")
	if !IsNotFound(err) {
		t.Fatalf("IsNotFound(%v) = false", err)
	}
	if !strings.Contains(err.Error(), "doesn't exist") {
		t.Errorf("error = %q", err)
	}
}
