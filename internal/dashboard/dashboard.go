// Package dashboard serves the static report viewer and the raw result log.
package dashboard

import (
	"embed"
	"io/fs"
	"net/http"
	"os"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"apiscope/internal/middleware"
)

//go:embed static
var staticFiles embed.FS

type Server struct {
	reportPath string
	log        logrus.FieldLogger
	metrics    *middleware.Metrics
	static     fs.FS
}

func NewServer(reportPath string, log logrus.FieldLogger) *Server {
	sub, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(err)
	}
	return &Server{
		reportPath: reportPath,
		log:        log,
		metrics:    middleware.NewMetrics("dashboard"),
		static:     sub,
	}
}

// Router is read-only: GET /, GET /report.json and GET /metrics.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.Logging(s.log), s.metrics.Middleware())
	r.HandleFunc("/", s.index).Methods(http.MethodGet)
	r.HandleFunc("/report.json", s.report).Methods(http.MethodGet)
	r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	return r
}

func (s *Server) index(w http.ResponseWriter, r *http.Request) {
	http.ServeFileFS(w, r, s.static, "index.html")
}

// report sends the log bytes as they are on disk.
func (s *Server) report(w http.ResponseWriter, r *http.Request) {
	data, err := os.ReadFile(s.reportPath)
	if os.IsNotExist(err) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		s.log.WithError(err).WithField("path", s.reportPath).Warn("read report")
		http.Error(w, "report unreadable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	if _, err := w.Write(data); err != nil {
		s.log.WithError(err).Debug("write report")
	}
}
