package server

import (
	"expvar"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/podmerge/podmerge/pkg/model"
)

type Server struct {
	http.Server

	tls      bool
	certFile string
	keyFile  string
}

type Config struct {
	// Port is a server port to listen to
	Port int `toml:"port" env:"PODMERGE_SERVER_PORT, overwrite"`
	// Bind a specific IP addresses for server
	// "*": bind all IP addresses which is default option
	// localhost or 127.0.0.1  bind a single IPv4 address
	BindAddress string `toml:"bind_address" env:"PODMERGE_SERVER_BIND_ADDRESS, overwrite"`
	// Flag indicating if the server will use TLS
	TLS bool `toml:"tls" env:"PODMERGE_SERVER_TLS, overwrite"`
	// Path to a certificate file for TLS connections
	CertificatePath string `toml:"certificate_path" env:"PODMERGE_SERVER_CERTIFICATE_PATH, overwrite"`
	// Path to a private key file for TLS connections
	KeyFilePath string `toml:"key_file_path" env:"PODMERGE_SERVER_KEY_FILE_PATH, overwrite"`
	// Specify path for reverse proxy and only [A-Za-z0-9]
	Path string `toml:"path" env:"PODMERGE_SERVER_PATH, overwrite"`
	// DebugEndpoints enables /debug/vars
	DebugEndpoints bool `toml:"debug_endpoints" env:"PODMERGE_SERVER_DEBUG_ENDPOINTS, overwrite"`
}

func New(cfg Config, feeds http.Handler) *Server {
	port := cfg.Port
	if port == 0 {
		port = model.DefaultPort
	}

	bindAddress := cfg.BindAddress
	if bindAddress == "*" {
		bindAddress = ""
	}

	srv := Server{
		tls:      cfg.TLS,
		certFile: cfg.CertificatePath,
		keyFile:  cfg.KeyFilePath,
	}

	srv.Addr = fmt.Sprintf("%s:%d", bindAddress, port)
	srv.ReadHeaderTimeout = 10 * time.Second
	log.Debugf("using address: %s", srv.Addr)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.GetHead)

	r.Handle("/metrics", promhttp.Handler())

	if cfg.DebugEndpoints {
		log.Debug("debug endpoints enabled at /debug/vars")
		r.Handle("/debug/vars", expvar.Handler())
	}

	mount := "/" + strings.Trim(cfg.Path, "/")
	log.Debugf("handle path: %s", mount)
	r.Mount(mount, feeds)

	srv.Handler = r
	return &srv
}

// Run listens until the server is shut down.
func (s *Server) Run() error {
	var err error
	if s.tls {
		err = s.ListenAndServeTLS(s.certFile, s.keyFile)
	} else {
		err = s.ListenAndServe()
	}

	if err == http.ErrServerClosed {
		return nil
	}
	return err
}
