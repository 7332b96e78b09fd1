// Package api serves the class registry and stored documents over HTTP as
// read-only JSON.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/conduit-lang/grt/internal/grt"
	"github.com/conduit-lang/grt/internal/store"
	"github.com/conduit-lang/grt/internal/tree"
)

// Server answers API requests. Every request works on its own freshly loaded
// document, so requests never share mutable state.
type Server struct {
	registry *grt.Registry
	store    *store.Store
	logger   *zap.Logger
}

// New creates an API server
func New(registry *grt.Registry, s *store.Store, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{registry: registry, store: s, logger: logger}
}

// Routes returns the HTTP handler
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/classes", s.listClasses)
	r.Get("/classes/{name}", s.getClass)
	r.Route("/documents", func(r chi.Router) {
		r.Get("/", s.listDocuments)
		r.Get("/{name}", s.getDocument)
		r.Get("/{name}/tree", s.getTree)
	})
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

// Class is the JSON form of a metaclass
type Class struct {
	Name    string   `json:"name"`
	Parent  string   `json:"parent,omitempty"`
	Members []Member `json:"members,omitempty"`
}

// Member is the JSON form of a member descriptor
type Member struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Owned      bool   `json:"owned,omitempty"`
	ReadOnly   bool   `json:"read_only,omitempty"`
	DeclaredIn string `json:"declared_in"`
}

// Document is the JSON form of a stored document summary
type Document struct {
	Name      string    `json:"name"`
	Objects   int       `json:"objects"`
	Size      int       `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Row is one tree row
type Row struct {
	Node       string `json:"node"`
	Name       string `json:"name"`
	Type       string `json:"type"`
	Value      string `json:"value"`
	Expandable bool   `json:"expandable"`
	Children   []Row  `json:"children,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (s *Server) listClasses(w http.ResponseWriter, r *http.Request) {
	names := s.registry.List()
	classes := make([]Class, 0, len(names))
	for _, name := range names {
		mc, err := s.registry.Get(name)
		if err != nil {
			continue
		}
		classes = append(classes, Class{Name: name, Parent: mc.ParentName()})
	}
	renderJSON(w, http.StatusOK, classes)
}

func (s *Server) getClass(w http.ResponseWriter, r *http.Request) {
	mc, err := s.registry.Get(chi.URLParam(r, "name"))
	if err != nil {
		renderError(w, http.StatusNotFound, err)
		return
	}
	c := Class{Name: mc.Name(), Parent: mc.ParentName()}
	for _, m := range mc.Members() {
		c.Members = append(c.Members, Member{
			Name:       m.Name,
			Type:       m.Type.String(),
			Owned:      m.Owned,
			ReadOnly:   m.ReadOnly,
			DeclaredIn: m.DeclaredIn,
		})
	}
	renderJSON(w, http.StatusOK, c)
}

func (s *Server) listDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.store.List(r.Context())
	if err != nil {
		s.serverError(w, err)
		return
	}
	out := make([]Document, len(docs))
	for i, d := range docs {
		out[i] = Document{Name: d.Name, Objects: d.Objects, Size: d.Size, UpdatedAt: d.UpdatedAt}
	}
	renderJSON(w, http.StatusOK, out)
}

func (s *Server) getDocument(w http.ResponseWriter, r *http.Request) {
	data, err := s.store.Data(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		s.storeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// getTree returns the rows below ?node= (default the root), ?depth= levels
// deep (default 1, 0 for everything)
func (s *Server) getTree(w http.ResponseWriter, r *http.Request) {
	node, err := tree.ParseNodeID(r.URL.Query().Get("node"))
	if err != nil {
		renderError(w, http.StatusBadRequest, err)
		return
	}
	depth := 1
	if d := r.URL.Query().Get("depth"); d != "" {
		if depth, err = strconv.Atoi(d); err != nil || depth < 0 {
			renderError(w, http.StatusBadRequest, errors.New("depth must be a non-negative integer"))
			return
		}
	}

	doc := grt.NewContext(s.registry, grt.WithLogger(s.logger))
	root, err := s.store.Load(r.Context(), doc, chi.URLParam(r, "name"))
	if err != nil {
		s.storeError(w, err)
		return
	}
	p := tree.NewProjection(doc, root)

	rows, err := collectRows(p, node, depth, 1)
	if err != nil {
		if errors.Is(err, tree.ErrInvalidNode) {
			renderError(w, http.StatusNotFound, err)
			return
		}
		s.serverError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, rows)
}

func collectRows(p *tree.Projection, node tree.NodeID, depth, level int) ([]Row, error) {
	n, err := p.Count(node)
	if err != nil {
		return nil, err
	}
	rows := make([]Row, 0, n)
	for i := 0; i < n; i++ {
		child := node.Child(i)
		row := Row{Node: child.String(), Expandable: p.IsExpandable(child)}
		if row.Name, err = p.GetField(child, tree.ColumnName); err != nil {
			return nil, err
		}
		if row.Type, err = p.GetField(child, tree.ColumnType); err != nil {
			return nil, err
		}
		if row.Value, err = p.GetField(child, tree.ColumnValue); err != nil {
			return nil, err
		}
		if row.Expandable && (depth == 0 || level < depth) {
			if row.Children, err = collectRows(p, child, depth, level+1); err != nil {
				return nil, err
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (s *Server) storeError(w http.ResponseWriter, err error) {
	if store.IsNotFound(err) {
		renderError(w, http.StatusNotFound, err)
		return
	}
	s.serverError(w, err)
}

func (s *Server) serverError(w http.ResponseWriter, err error) {
	s.logger.Error("request failed", zap.Error(err))
	renderError(w, http.StatusInternalServerError, err)
}

func renderJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func renderError(w http.ResponseWriter, status int, err error) {
	renderJSON(w, status, ErrorResponse{
		Error:   http.StatusText(status),
		Message: err.Error(),
	})
}
