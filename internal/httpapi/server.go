package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"katalog/internal/catalog"
	"katalog/internal/db"
	"katalog/internal/models"
	"katalog/internal/service"
)

const maxRequestBody = 1 << 20

// Scraper is the part of service.Scraper the API needs.
type Scraper interface {
	Scrape(ctx context.Context, rawURL string) (service.Result, error)
	Import(ctx context.Context, rawURL string) (service.Result, int64, error)
}

type BookLister interface {
	ListBooks(ctx context.Context, limit int) ([]models.StoredBook, error)
	GetBookByASIN(ctx context.Context, asin string) (models.StoredBook, error)
}

type Server struct {
	scraper  Scraper
	books    BookLister
	auth     *AdminAuth
	coverDir string
}

type Option func(*Server)

// WithBooks enables GET /api/books and GET /api/books/{asin}.
func WithBooks(books BookLister) Option {
	return func(s *Server) { s.books = books }
}

func WithAuth(auth *AdminAuth) Option {
	return func(s *Server) { s.auth = auth }
}

// WithCoverDir serves mirrored covers under /covers/.
func WithCoverDir(dir string) Option {
	return func(s *Server) { s.coverDir = dir }
}

func New(scraper Scraper, opts ...Option) *Server {
	s := &Server{scraper: scraper}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/scrape", s.handleScrape)
	mux.HandleFunc("/api/books", s.handleBooks)
	mux.HandleFunc("/api/books/", s.handleBook)
	if s.coverDir != "" {
		mux.Handle("/covers/", http.StripPrefix("/covers/", http.FileServer(http.Dir(s.coverDir))))
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", reqID)
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Telegram-InitData")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		mux.ServeHTTP(rec, r)
		log.Printf("http %s %s -> %d id=%s ua=%s", r.Method, r.URL.Path, rec.status, reqID, r.UserAgent())
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type scrapeRequest struct {
	URL  string `json:"url"`
	Save bool   `json:"save"`
}

type scrapeResponse struct {
	Success  bool                `json:"success"`
	RawData  models.ExternalBook `json:"rawData"`
	BookData models.InternalBook `json:"bookData"`
	ID       int64               `json:"id,omitempty"`
}

type errorResponse struct {
	Error   string   `json:"error"`
	Missing []string `json:"missing,omitempty"`
}

func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}

	s.withAdmin(w, r, func(ctx context.Context) {
		var body scrapeRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json"})
			return
		}
		body.URL = strings.TrimSpace(body.URL)
		if body.URL == "" {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "url is required"})
			return
		}

		var (
			res service.Result
			id  int64
			err error
		)
		if body.Save {
			res, id, err = s.scraper.Import(ctx, body.URL)
		} else {
			res, err = s.scraper.Scrape(ctx, body.URL)
		}
		if err != nil {
			status, payload := scrapeError(err)
			log.Printf("scrape: %s: %v", body.URL, err)
			writeJSON(w, status, payload)
			return
		}

		writeJSON(w, http.StatusOK, scrapeResponse{
			Success:  true,
			RawData:  res.Raw,
			BookData: res.Book,
			ID:       id,
		})
	})
}

// scrapeError maps pipeline errors onto status codes: bad input is the
// caller's to fix (400), everything else is ours (500).
func scrapeError(err error) (int, errorResponse) {
	var ve *catalog.ValidationError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, errorResponse{Error: ve.Error(), Missing: ve.Missing}
	case errors.Is(err, service.ErrInvalidURL):
		return http.StatusBadRequest, errorResponse{Error: "invalid product url"}
	case errors.Is(err, service.ErrFetchFailed):
		return http.StatusInternalServerError, errorResponse{Error: "fetch failed: " + err.Error()}
	case errors.Is(err, service.ErrNoRepository):
		return http.StatusInternalServerError, errorResponse{Error: "saving is not configured"}
	default:
		return http.StatusInternalServerError, errorResponse{Error: err.Error()}
	}
}

func (s *Server) handleBooks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}
	if s.books == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no catalog storage configured"})
		return
	}

	s.withAdmin(w, r, func(ctx context.Context) {
		limit := 0
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid limit"})
				return
			}
			limit = n
		}

		books, err := s.books.ListBooks(ctx, limit)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, books)
	})
}

// handleBook serves GET /api/books/{asin}.
func (s *Server) handleBook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}
	if s.books == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no catalog storage configured"})
		return
	}
	asin := strings.TrimSpace(strings.TrimPrefix(r.URL.Path, "/api/books/"))
	if asin == "" || strings.Contains(asin, "/") {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
		return
	}

	s.withAdmin(w, r, func(ctx context.Context) {
		book, err := s.books.GetBookByASIN(ctx, asin)
		switch {
		case errors.Is(err, db.ErrNotFound):
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "book " + asin + " not found"})
		case err != nil:
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		default:
			writeJSON(w, http.StatusOK, book)
		}
	})
}

func (s *Server) withAdmin(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context)) {
	if !s.auth.Enabled() {
		fn(r.Context())
		return
	}

	user, err := s.auth.Authorize(extractInitData(r))
	switch {
	case errors.Is(err, ErrNotAdmin):
		log.Printf("auth: user_id=%d is not an admin remote=%s", user.ID, r.RemoteAddr)
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "forbidden"})
		return
	case err != nil:
		log.Printf("auth: rejected remote=%s ua=%s err=%v", r.RemoteAddr, r.UserAgent(), err)
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	}

	log.Printf("auth: ok user_id=%d username=%s", user.ID, user.Username)
	fn(r.Context())
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func extractInitData(r *http.Request) string {
	if v := r.Header.Get("X-Telegram-InitData"); v != "" {
		return v
	}
	if auth := r.Header.Get("Authorization"); auth != "" {
		if strings.HasPrefix(strings.ToLower(auth), "tma ") {
			return strings.TrimSpace(auth[4:])
		}
	}
	return ""
}
