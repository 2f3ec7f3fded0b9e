package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/lcabon/resq/config"
	"github.com/lcabon/resq/core/directory"
	"github.com/lcabon/resq/core/dispatch"
	"github.com/lcabon/resq/core/events"
	"github.com/lcabon/resq/core/evidence"
	"github.com/lcabon/resq/core/factory"
	coremetrics "github.com/lcabon/resq/core/metrics"
	"github.com/lcabon/resq/core/mission"
	"github.com/lcabon/resq/core/planner"
	corerouting "github.com/lcabon/resq/core/routing"
	"github.com/lcabon/resq/core/workflow"
	"github.com/lcabon/resq/infra/checkpoint"
	"github.com/lcabon/resq/infra/logger"
	"github.com/lcabon/resq/infra/metrics"
	"github.com/lcabon/resq/infra/mqtt"
	infrarouting "github.com/lcabon/resq/infra/routing"
	"github.com/lcabon/resq/internal/eventbus"
)

// Service wires the mission pipelines to their infrastructure and
// consumes the mission request feed.
type Service struct {
	Missions *mission.Service

	cfg       *config.Config
	store     workflow.Store
	dir       *directory.CachedDirectory
	commander *mqtt.PahoClient
	disc      *mqtt.PahoResourceDiscovery
	listener  *mqtt.MissionListener
	bus       eventbus.EventBus
	promSrv   *http.Server
	log       logger.Logger
}

// New creates a Service from the configuration.
func New(cfg *config.Config, collab Collaborators) (*Service, error) {
	collab.setDefaults()
	log := logger.New("service")

	store, err := checkpoint.NewStore(cfg.Checkpoint)
	if err != nil {
		return nil, fmt.Errorf("checkpoint store: %w", err)
	}

	sink, err := coremetrics.NewSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}

	commander, err := mqtt.NewPahoClient(cfg.MQTT)
	if err != nil {
		return nil, fmt.Errorf("mqtt client: %w", err)
	}

	disc, err := mqtt.NewPahoResourceDiscovery(cfg.MQTT)
	if err != nil {
		return nil, fmt.Errorf("resource discovery: %w", err)
	}
	dir := directory.NewCachedDirectory(disc,
		time.Duration(cfg.Directory.RefreshSeconds)*time.Second, logger.New("directory"))

	matcher, err := dispatch.NewMatcherFromConfig(cfg.Dispatch)
	if err != nil {
		return nil, fmt.Errorf("matcher: %w", err)
	}

	travel, err := infrarouting.NewHTTPPlanner(cfg.Routing, logger.New("routing"))
	if err != nil {
		return nil, fmt.Errorf("routing planner: %w", err)
	}
	refiner := corerouting.NewRefiner(travel, cfg.Refiner, logger.New("refiner"))

	taskPlanner, err := planner.NewPlanner(planner.DefaultLibrary())
	if err != nil {
		return nil, fmt.Errorf("task planner: %w", err)
	}

	fuser := evidence.NewFuser(collab.Standards, collab.Cases, collab.Extractor,
		cfg.Evidence, logger.New("evidence"))

	bus := eventbus.New()
	exec := workflow.NewExecutor(store, logger.New("executor"),
		workflow.WithMetrics(sink), workflow.WithEventBus(bus))

	deps := mission.Deps{
		Directory:  dir,
		Planner:    taskPlanner,
		Matcher:    matcher,
		Refiner:    refiner,
		Fuser:      fuser,
		Tasks:      collab.Tasks,
		Synth:      collab.Synth,
		Commander:  commander,
		AckTimeout: time.Duration(cfg.Mission.AckTimeoutSeconds) * time.Second,
		Log:        logger.New("mission"),
	}

	return &Service{
		Missions:  mission.NewService(exec, store, deps),
		cfg:       cfg,
		store:     store,
		dir:       dir,
		commander: commander,
		disc:      disc,
		bus:       bus,
		log:       log,
	}, nil
}

// Run starts the background components and blocks until the context is
// cancelled.
func (s *Service) Run(ctx context.Context) error {
	if err := s.dir.Start(ctx); err != nil {
		s.log.Warnf("resource discovery not ready: %v", err)
	}

	listener, err := mqtt.NewMissionListener(s.cfg.MQTT, s.handleRequest)
	if err != nil {
		return fmt.Errorf("mission listener: %w", err)
	}
	s.listener = listener

	if hasPrometheusSink(s.cfg.Metrics.Sinks) {
		s.promSrv = metrics.StartPromServer(s.cfg.Metrics.PrometheusPort)
		s.log.Infof("prometheus metrics on :%s/metrics", s.cfg.Metrics.PrometheusPort)
	}

	go s.consumeEvents()

	s.log.Infof("service ready, listening on %s", s.cfg.MQTT.MissionTopic)
	<-ctx.Done()
	return nil
}

func (s *Service) handleRequest(ctx context.Context, req mission.Request) {
	res, err := s.Missions.Start(ctx, req)
	if err != nil {
		s.log.Errorf("mission request rejected: %v", err)
		return
	}
	s.log.Infof("mission %s finished: %s", res.RunID, res.Status)
}

// consumeEvents logs pipeline progress published on the bus.
func (s *Service) consumeEvents() {
	sub := s.bus.Subscribe()
	for ev := range sub {
		switch e := ev.(type) {
		case events.RunStartedEvent:
			s.log.Debugf("run %s started (mission %s, resumed %v)", e.RunID, e.Mission, e.Resumed)
		case events.StepEvent:
			if e.Failed {
				s.log.Warnf("run %s: step %s failed after %s", e.RunID, e.Step, e.Latency)
			}
		case events.RunFinishedEvent:
			s.log.Infof("run %s finished %s in %s", e.RunID, e.Status, e.Duration)
		}
	}
}

func hasPrometheusSink(sinks []factory.ModuleConfig) bool {
	for _, s := range sinks {
		if s.Type == "prometheus" {
			return true
		}
	}
	return false
}

// Close releases every connection held by the service.
func (s *Service) Close() error {
	if s.listener != nil {
		s.listener.Disconnect()
	}
	s.dir.Close()
	s.disc.Disconnect()
	s.commander.Disconnect()
	s.bus.Close()
	if s.promSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.promSrv.Shutdown(ctx)
	}
	return s.store.Close()
}
