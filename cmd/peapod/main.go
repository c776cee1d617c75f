// Command peapod relays IEEE 802.1X EAPOL frames between a set of
// configured network interfaces, applying per-interface VLAN edits,
// filters, and script hooks along the way.
package main

import (
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"

	"github.com/go-logr/zapr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/netrelay/peapod/internal/config"
	"github.com/netrelay/peapod/internal/dot1q"
	"github.com/netrelay/peapod/internal/iface"
	"github.com/netrelay/peapod/internal/metrics"
	"github.com/netrelay/peapod/internal/proxy"
)

func main() {
	var (
		configPath  = flag.String("config", "/etc/peapod/peapod.yaml", "path to the interface configuration file")
		oneshot     = flag.Bool("oneshot", false, "exit on the first error instead of restarting")
		metricsAddr = flag.String("metrics-addr", ":9090", "address the Prometheus /metrics endpoint listens on")
		debug       = flag.Bool("debug", false, "enable debug-level logging")
	)
	flag.Parse()

	zapLog, err := buildZapLogger(*debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "peapod: building logger: %v\n", err)
		os.Exit(1)
	}
	defer zapLog.Sync()
	log := zapr.NewLogger(zapLog)

	ifaces, err := config.Load(*configPath)
	if err != nil {
		log.Error(err, "loading configuration")
		os.Exit(1)
	}

	maxMTU, err := highestMTU(ifaces)
	if err != nil {
		log.Error(err, "reading interface MTUs")
		os.Exit(1)
	}
	buf := dot1q.NewBuffer(maxMTU)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	go serveMetrics(*metricsAddr, reg, log)

	loop := proxy.NewLoop(ifaces, buf, *oneshot, log, m)
	if err := loop.Run(); err != nil {
		log.Error(err, "proxy loop exited")
		os.Exit(1)
	}
}

func buildZapLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// highestMTU reads the kernel MTU of every configured interface up
// front, before the proxy loop's own bring-up pass, so the single
// process-lifetime frame buffer can be sized once and never reallocated.
func highestMTU(ifaces []*iface.Record) (int, error) {
	max := 0
	for _, ifi := range ifaces {
		netif, err := net.InterfaceByName(ifi.Name())
		if err != nil {
			return 0, fmt.Errorf("interface %s: %w", ifi.Name(), err)
		}
		if netif.MTU > max {
			max = netif.MTU
		}
	}
	if max == 0 {
		return 0, fmt.Errorf("no usable interfaces configured")
	}
	return max, nil
}

func serveMetrics(addr string, reg *prometheus.Registry, log interface {
	Error(err error, msg string, kv ...interface{})
}) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error(err, "metrics server exited")
	}
}
