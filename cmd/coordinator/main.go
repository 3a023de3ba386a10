// Command coordinator runs the Agent Coordination Core as a standalone
// HTTP service: API Boundary Adapter in front, Router and Orchestrator in
// the middle, sqlite-backed trace store and in-memory graph/retrieval
// agents behind.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/uaelegal/agent-coordinator/internal/api"
	"github.com/uaelegal/agent-coordinator/internal/config"
	"github.com/uaelegal/agent-coordinator/internal/conversation"
	"github.com/uaelegal/agent-coordinator/internal/graphdb"
	"github.com/uaelegal/agent-coordinator/internal/orchestrator"
	"github.com/uaelegal/agent-coordinator/internal/ratelimit"
	"github.com/uaelegal/agent-coordinator/internal/retrieval"
	"github.com/uaelegal/agent-coordinator/internal/router"
	"github.com/uaelegal/agent-coordinator/internal/telemetry"
	"github.com/uaelegal/agent-coordinator/internal/trace"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to coordinator config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		exitf("config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		// a missing required setting is fatal before the Router is usable.
		exitf("config: %v", err)
	}

	log := telemetry.New(cfg.LogLevel)
	log.WithField("addr", cfg.HTTPAddr).Info("starting agent coordination core")

	store, err := trace.Open(cfg.TraceDBPath)
	if err != nil {
		exitf("trace store: %v", err)
	}
	defer store.Close()

	r := router.New(store, log.WithField("component", "router"))
	convo := conversation.New()
	graph := graphdb.NewMemoryClient()

	registerRetrievalAgents(r, graph)
	orchestrator.New(r, convo, graph, nil, log.WithField("component", "orchestrator"), "orchestrator")

	limiter := ratelimit.New(cfg.RateLimitRPS, cfg.RateLimitBurst)
	adapter := api.New(r, convo, store, limiter, log.WithField("component", "api"))

	stop := startConversationSweeper(convo, log)
	defer close(stop)

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: adapter.Routes(),
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("http server stopped unexpectedly")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")
	srv.Close()
}

func registerRetrievalAgents(r *router.Router, graph *graphdb.MemoryClient) {
	local := retrieval.NewAgent("local_agent", retrieval.LocalStrategy{DB: graph})
	global := retrieval.NewAgent("global_agent", retrieval.GlobalStrategy{DB: graph})
	drift := retrieval.NewAgent("drift_agent", retrieval.DriftStrategy{DB: graph})

	r.Register("local_agent", local.Handle)
	r.Register("global_agent", global.Handle)
	r.Register("drift_agent", drift.Handle)
}

// startConversationSweeper runs conversation.Manager.Sweep periodically
// so expired conversations don't accumulate in memory.
func startConversationSweeper(convo *conversation.Manager, log *logrus.Logger) chan struct{} {
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				removed := convo.Sweep()
				if len(removed) > 0 {
					log.WithField("count", len(removed)).Debug("swept expired conversations")
				}
			case <-stop:
				return
			}
		}
	}()
	return stop
}

func exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
