package flags

import (
	"crypto/tls"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/ruteri/storage-adapters/common"
	"github.com/ruteri/storage-adapters/config"
	"github.com/ruteri/storage-adapters/httpserver"
	"github.com/ruteri/storage-adapters/interfaces"
	"github.com/ruteri/storage-adapters/storage"
	"github.com/urfave/cli/v2"
)

// SetupLogger builds the root logger from the log flags. Logs go to the
// app's ErrWriter, stderr by default, so stdout stays free for command output.
func SetupLogger(cCtx *cli.Context) (log *slog.Logger) {
	logJSON := cCtx.Bool(LogJsonFlag.Name)
	logDebug := cCtx.Bool(LogDebugFlag.Name)
	logUID := cCtx.Bool(LogUidFlag.Name)
	logService := cCtx.String(LogServiceFlag.Name)

	logger := common.SetupLogger(&common.LoggingOpts{
		Debug:   logDebug,
		JSON:    logJSON,
		Service: logService,
		Version: common.Version,
		Output:  cCtx.App.ErrWriter,
	})

	if logUID {
		id := uuid.Must(uuid.NewRandom())
		logger = logger.With("uid", id.String())
	}
	return logger
}

func ConfigureServer(cCtx *cli.Context, logger *slog.Logger, listenAddr string) *httpserver.HTTPServerConfig {
	metricsAddr := cCtx.String(MetricsAddrFlag.Name)
	enablePprof := cCtx.Bool(PprofFlag.Name)
	drainDuration := time.Duration(cCtx.Int64(DrainSecondsFlag.Name)) * time.Second

	return &httpserver.HTTPServerConfig{
		ListenAddr:               listenAddr,
		MetricsAddr:              metricsAddr,
		Log:                      logger,
		EnablePprof:              enablePprof,
		DrainDuration:            drainDuration,
		GracefulShutdownDuration: 30 * time.Second,
		ReadTimeout:              60 * time.Second,
		WriteTimeout:             30 * time.Second,
	}
}

// StorageFactory builds the backend factory, adding Vault client
// certificate auth when both TLS flags are set.
func StorageFactory(cCtx *cli.Context, logger *slog.Logger) interfaces.StorageBackendFactory {
	var factory interfaces.StorageBackendFactory = storage.NewStorageBackendFactory(logger)

	certFile := cCtx.String(VaultCertFlag.Name)
	keyFile := cCtx.String(VaultKeyFlag.Name)
	if certFile != "" && keyFile != "" {
		factory = factory.WithTLSAuth(func() (tls.Certificate, error) {
			return tls.LoadX509KeyPair(certFile, keyFile)
		})
	}
	return factory
}

// LoadStores merges the --config file and the repeated --store flags.
func LoadStores(cCtx *cli.Context) (*config.Config, error) {
	cfg := &config.Config{}
	if path := cCtx.String(ConfigFlag.Name); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	for _, value := range cCtx.StringSlice(StoreFlag.Name) {
		store, err := config.ParseStoreFlag(value)
		if err != nil {
			return nil, err
		}
		cfg.Stores = append(cfg.Stores, store)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var ConfigFlag = &cli.StringFlag{
	Name:    "config",
	Usage:   "YAML file with store definitions",
	EnvVars: []string{"STORAGE_CONFIG"},
}

var StoreFlag = &cli.StringSliceFlag{
	Name:  "store",
	Usage: "store definition as name=uri, may be repeated",
}

var VaultCertFlag = &cli.StringFlag{
	Name:  "vault-tls-cert",
	Usage: "client certificate (PEM) for Vault TLS auth",
}

var VaultKeyFlag = &cli.StringFlag{
	Name:  "vault-tls-key",
	Usage: "client key (PEM) for Vault TLS auth",
}

var LogJsonFlag = &cli.BoolFlag{
	Name:  "log-json",
	Value: false,
	Usage: "log in JSON format",
}
var LogDebugFlag = &cli.BoolFlag{
	Name:  "log-debug",
	Value: false,
	Usage: "log debug messages",
}
var LogUidFlag = &cli.BoolFlag{
	Name:  "log-uid",
	Value: false,
	Usage: "generate a uuid and add to all log messages",
}
var LogServiceFlag = &cli.StringFlag{
	Name:  "log-service",
	Value: common.PackageName,
	Usage: "add 'service' tag to logs",
}

var PprofFlag = &cli.BoolFlag{
	Name:  "pprof",
	Value: false,
	Usage: "enable pprof debug endpoint",
}
var DrainSecondsFlag = &cli.Int64Flag{
	Name:  "drain-seconds",
	Value: 45,
	Usage: "seconds to wait in drain HTTP request",
}
var MetricsAddrFlag = &cli.StringFlag{
	Name:  "metrics-addr",
	Value: "127.0.0.1:8090",
	Usage: "address to listen on for Prometheus metrics",
}

var LogFlags = []cli.Flag{
	LogJsonFlag,
	LogDebugFlag,
	LogUidFlag,
	LogServiceFlag,
}

var CommonFlags = append([]cli.Flag{
	PprofFlag,
	DrainSecondsFlag,
	MetricsAddrFlag,
}, LogFlags...)
