package subcmd

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/pkg/profile"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	cmd_commons "github.com/cyverse/objcache/cmd/commons"
	"github.com/cyverse/objcache/commons"
	"github.com/cyverse/objcache/service"
	log "github.com/sirupsen/logrus"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the cache service in foreground",
	Long:  "Run the cache service in foreground. It sweeps expired entries periodically and exports prometheus metrics until interrupted.",
	Args:  cobra.NoArgs,
	RunE:  processServeCommand,
}

func AddServeCommand(rootCmd *cobra.Command) {
	rootCmd.AddCommand(serveCmd)
}

func processServeCommand(command *cobra.Command, args []string) error {
	config, logWriter, cont, err := cmd_commons.ProcessCommonFlags(command)
	if logWriter != nil {
		defer logWriter.Close()
	}

	if err != nil || !cont {
		return err
	}

	return run(config)
}

// run runs the cache service until interrupted
func run(config *commons.Config) error {
	logger := log.WithFields(log.Fields{
		"package":  "subcmd",
		"function": "run",
	})

	versionInfo := commons.GetVersion()
	logger.Infof("objcache version - %s, commit - %s", versionInfo.ServiceVersion, versionInfo.GitCommit)

	// profile
	if config.Profile && config.ProfileServicePort > 0 {
		go func() {
			profileServiceAddr := fmt.Sprintf(":%d", config.ProfileServicePort)

			logger.Infof("Starting profile service at %s", profileServiceAddr)
			http.ListenAndServe(profileServiceAddr, nil)
		}()

		prof := profile.Start(profile.MemProfile)
		defer prof.Stop()
	}

	storage, err := cmd_commons.OpenStorage(config)
	if err != nil {
		logger.WithError(err).Error("failed to open the cache storage")
		return err
	}

	svc, err := service.NewCacheService(config, storage)
	if err != nil {
		logger.WithError(err).Error("failed to create the service")
		storage.Release()
		return err
	}

	var prometheusExporterServer *http.Server
	if config.PrometheusExporterPort > 0 {
		prometheusExporterAddr := fmt.Sprintf(":%d", config.PrometheusExporterPort)

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		prometheusExporterServer = &http.Server{Addr: prometheusExporterAddr, Handler: mux}

		go func() {
			logger.Infof("Starting prometheus exporter at %s", prometheusExporterAddr)
			err := prometheusExporterServer.ListenAndServe()
			if err != nil && err != http.ErrServerClosed {
				logger.WithError(err).Error("prometheus exporter stopped")
			}
		}()
	}

	err = svc.Start()
	if err != nil {
		logger.WithError(err).Error("failed to start the service")
		svc.Destroy()
		return err
	}

	// export the state loaded from disk right away
	service.CollectPrometheusMetrics(storage)

	defer func() {
		if prometheusExporterServer != nil {
			prometheusExporterServer.Shutdown(context.TODO())
		}

		svc.Destroy()
	}()

	// wait
	waitForCtrlC()

	logger.Info("Stopping the service")
	return nil
}

func waitForCtrlC() {
	var endWaiter sync.WaitGroup

	endWaiter.Add(1)
	signalChannel := make(chan os.Signal, 1)

	signal.Notify(signalChannel, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-signalChannel
		endWaiter.Done()
	}()

	endWaiter.Wait()
}
