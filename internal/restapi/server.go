// Package restapi serves the dataset as a resource-oriented HTTP API.
package restapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"apiscope/internal/dataset"
	"apiscope/internal/middleware"
)

type Server struct {
	data    *dataset.Provider
	log     logrus.FieldLogger
	metrics *middleware.Metrics
}

func NewServer(data *dataset.Provider, log logrus.FieldLogger) *Server {
	return &Server{
		data:    data,
		log:     log,
		metrics: middleware.NewMetrics("rest"),
	}
}

// Router returns the routes: GET /users, GET /user/{id} and GET /metrics.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.Logging(s.log), s.metrics.Middleware())
	r.HandleFunc("/users", s.listUsers).Methods(http.MethodGet)
	r.HandleFunc("/user/{id:-?[0-9]+}", s.getUser).Methods(http.MethodGet)
	r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	return r
}

func (s *Server) listUsers(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, s.data.All())
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	user, ok := s.data.Lookup(id)
	if !ok {
		s.writeJSON(w, struct{}{})
		return
	}
	s.writeJSON(w, user)
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.WithError(err).Warn("write response")
	}
}
