// Package graphqlapi serves the dataset through a GraphQL endpoint.
package graphqlapi

import (
	"encoding/json"
	"mime"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"apiscope/internal/dataset"
	"apiscope/internal/middleware"
)

const playgroundHTML = `<!DOCTYPE html>
<html>
<head><title>GraphQL Playground</title></head>
<body>
  <h2>GraphQL Query Tester</h2>
  <form method="POST" action="/graphql">
    <textarea name="query" rows="10" cols="80">` + DefaultQuery + `</textarea><br><br>
    <button type="submit">Run Query</button>
  </form>
</body>
</html>
`

type Server struct {
	exec    *Executor
	log     logrus.FieldLogger
	metrics *middleware.Metrics
}

func NewServer(data *dataset.Provider, log logrus.FieldLogger) *Server {
	return &Server{
		exec:    NewExecutor(data),
		log:     log,
		metrics: middleware.NewMetrics("graphql"),
	}
}

func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.Logging(s.log), s.metrics.Middleware())
	r.HandleFunc("/graphql", s.playground).Methods(http.MethodGet)
	r.HandleFunc("/graphql", s.query).Methods(http.MethodPost)
	r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	return r
}

func (s *Server) playground(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(playgroundHTML))
}

func (s *Server) query(w http.ResponseWriter, r *http.Request) {
	var req Request

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "malformed JSON body", http.StatusBadRequest)
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "malformed form body", http.StatusBadRequest)
			return
		}
		req.Query = r.PostForm.Get("query")
		req.OperationName = r.PostForm.Get("operationName")
	}

	resp := s.exec.Execute(r.Context(), req)
	if len(resp.Errors) > 0 {
		s.log.WithField("errors", resp.Errors.Error()).Debug("query returned errors")
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.log.WithError(err).Warn("write response")
	}
}
