package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/mlenz/nodeforge/pkg/dataflow"
	"github.com/mlenz/nodeforge/pkg/dataflow/validator"
	"github.com/mlenz/nodeforge/pkg/schema"
	"github.com/mlenz/nodeforge/pkg/spec"
	"github.com/mlenz/nodeforge/pkg/store"
)

// newServeCmd creates the serve command: the HTTP API over a configured
// document store.
func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Serve runs the HTTP API:

  POST   /api/resolve          resolve a specification document
  POST   /api/validate         validate a dataflow against a specification
  GET    /api/dataflows        list stored dataflow ids
  GET    /api/dataflows/{id}   fetch a stored dataflow
  PUT    /api/dataflows/{id}   store a dataflow
  DELETE /api/dataflows/{id}   delete a stored dataflow

The document store backend (file, redis, or mongo) comes from the
config file; see --config.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			st, err := buildStore(ctx, cfg.Store)
			if err != nil {
				return err
			}
			defer st.Close()
			return serve(ctx, cfg.Listen, st)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "config file (default ~/.config/nodeforge/config.toml)")
	return cmd
}

// buildStore creates the document store selected by cfg.
func buildStore(ctx context.Context, cfg StoreConfig) (store.Store, error) {
	switch cfg.Backend {
	case "", "file":
		return store.NewFileStore(cfg.Dir)
	case "redis":
		var opts []store.RedisOption
		if cfg.Redis.Prefix != "" {
			opts = append(opts, store.WithPrefix(cfg.Redis.Prefix))
		}
		return store.NewRedisStore(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, opts...), nil
	case "mongo":
		return store.NewMongoStore(ctx, cfg.Mongo.URI, cfg.Mongo.Database, cfg.Mongo.Collection)
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
}

// serve runs the HTTP server until ctx is cancelled, then shuts down
// gracefully.
func serve(ctx context.Context, listen string, st store.Store) error {
	logger := loggerFromContext(ctx)
	installHooks(logger)

	api := &apiServer{store: st, logger: logger}
	srv := &http.Server{
		Addr:              listen,
		Handler:           api.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Listening on %s", listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return ctx.Err()
}

// apiServer holds the HTTP handlers' shared collaborators.
type apiServer struct {
	store  store.Store
	logger *charmlog.Logger
}

func (s *apiServer) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Post("/api/resolve", s.handleResolve)
	r.Post("/api/validate", s.handleValidate)
	r.Route("/api/dataflows", func(r chi.Router) {
		r.Get("/", s.handleList)
		r.Get("/{id}", s.handleGet)
		r.Put("/{id}", s.handlePut)
		r.Delete("/{id}", s.handleDelete)
	})
	return r
}

// resolveResponse is the POST /api/resolve payload: the resolved catalog
// plus every diagnostic collected along the way.
type resolveResponse struct {
	Nodes    map[string]*spec.NodeTypeDefinition `json:"nodes"`
	Errors   []validator.Issue                   `json:"errors"`
	Warnings []validator.Issue                   `json:"warnings"`
}

func (s *apiServer) handleResolve(w http.ResponseWriter, r *http.Request) {
	data, err := readBody(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if diags := schema.CheckSpecification(data); diags.HasErrors() {
		s.writeJSON(w, http.StatusBadRequest, validator.ResultFrom(diags))
		return
	}
	doc, err := spec.Parse(data)
	if err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	// Includes are not resolvable over HTTP; clients inline them first.
	resolved, diags := spec.Resolve(doc, spec.ResolveOptions{})
	resp := resolveResponse{Nodes: resolved.Types}
	result := validator.ResultFrom(diags)
	resp.Errors = result.Errors
	resp.Warnings = result.Warnings

	status := http.StatusOK
	if diags.HasErrors() {
		status = http.StatusUnprocessableEntity
	}
	s.writeJSON(w, status, resp)
}

// validateRequest is the POST /api/validate body.
type validateRequest struct {
	Specification json.RawMessage `json:"specification"`
	Dataflow      json.RawMessage `json:"dataflow"`
}

func (s *apiServer) handleValidate(w http.ResponseWriter, r *http.Request) {
	data, err := readBody(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var req validateRequest
	if err := json.Unmarshal(data, &req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Specification) == 0 || len(req.Dataflow) == 0 {
		http.Error(w, "Both specification and dataflow are required", http.StatusBadRequest)
		return
	}

	if diags := schema.CheckSpecification(req.Specification); diags.HasErrors() {
		s.writeJSON(w, http.StatusBadRequest, validator.ResultFrom(diags))
		return
	}
	specDoc, err := spec.Parse(req.Specification)
	if err != nil {
		http.Error(w, "Invalid specification", http.StatusBadRequest)
		return
	}
	resolved, diags := spec.Resolve(specDoc, spec.ResolveOptions{})
	if diags.HasErrors() {
		s.writeJSON(w, http.StatusUnprocessableEntity, validator.ResultFrom(diags))
		return
	}

	s.writeJSON(w, http.StatusOK, validator.Validate(r.Context(), req.Dataflow, resolved))
}

func (s *apiServer) handleList(w http.ResponseWriter, r *http.Request) {
	ids, err := s.store.List(r.Context())
	if err != nil {
		s.logger.Errorf("list dataflows: %v", err)
		http.Error(w, "Store error", http.StatusInternalServerError)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	s.writeJSON(w, http.StatusOK, ids)
}

func (s *apiServer) handleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	doc, err := s.store.Get(r.Context(), id)
	if err != nil {
		if store.IsNotFound(err) {
			http.Error(w, "Not found", http.StatusNotFound)
			return
		}
		s.logger.Errorf("get dataflow %s: %v", id, err)
		http.Error(w, "Store error", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, doc)
}

func (s *apiServer) handlePut(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	data, err := readBody(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if diags := schema.CheckDataflow(data); diags.HasErrors() {
		s.writeJSON(w, http.StatusBadRequest, validator.ResultFrom(diags))
		return
	}
	doc, err := dataflow.UnmarshalDataflow(data)
	if err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := s.store.Put(r.Context(), id, &doc); err != nil {
		s.logger.Errorf("put dataflow %s: %v", id, err)
		http.Error(w, "Store error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *apiServer) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.store.Delete(r.Context(), id); err != nil {
		s.logger.Errorf("delete dataflow %s: %v", id, err)
		http.Error(w, "Store error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Errorf("encode response: %v", err)
	}
}

const maxBodySize = 16 << 20 // 16 MiB

func readBody(r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read request body: %w", err)
	}
	return data, nil
}
