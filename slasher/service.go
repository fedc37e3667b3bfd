package slasher

import (
	"context"
	"sync"
	"time"

	slotutil "github.com/dualcheck/surveil/internal/epochticker"
)

// ServiceConfig bundles everything the ingestion service needs to drive
// batches: the chunking configuration, the store behind it, and the
// genesis parameters the epoch ticker aligns itself to.
type ServiceConfig struct {
	Params          *Parameters
	Database        Database
	GenesisTime     time.Time
	SecondsPerEpoch uint64
}

// Service queues incoming attestations under a mutex and drains the queue
// on every epoch-ticker boundary, handing the batch to the Engine.
type Service struct {
	ctx    context.Context
	cancel context.CancelFunc
	cfg    *ServiceConfig
	engine *Engine
	ticker *slotutil.EpochTicker

	queueLock sync.Mutex
	queue     []*CompactAttestation

	statusLock sync.RWMutex
	statusErr  error
}

// New constructs a Service around cfg; call Start to begin processing.
func New(ctx context.Context, cfg *ServiceConfig) *Service {
	ctx, cancel := context.WithCancel(ctx)
	return &Service{
		ctx:    ctx,
		cancel: cancel,
		cfg:    cfg,
		engine: NewEngine(cfg.Params, cfg.Database),
		queue:  make([]*CompactAttestation, 0),
	}
}

// Start begins the epoch-ticker-driven processing loop.
func (s *Service) Start() {
	s.ticker = slotutil.NewEpochTicker(s.cfg.GenesisTime, s.cfg.SecondsPerEpoch)
	go s.processQueuedAttestations(s.ctx)
}

// Stop halts the processing loop and releases the epoch ticker.
func (s *Service) Stop() error {
	s.cancel()
	if s.ticker != nil {
		s.ticker.Done()
	}
	log.Info("stopping attestation ingestion service")
	return nil
}

// Status reports the last error observed while processing a batch, if any.
func (s *Service) Status() error {
	s.statusLock.RLock()
	defer s.statusLock.RUnlock()
	return s.statusErr
}

// ReceiveAttestations appends attestations to the pending queue under lock;
// they are picked up on the next epoch tick.
func (s *Service) ReceiveAttestations(atts ...*CompactAttestation) {
	s.queueLock.Lock()
	defer s.queueLock.Unlock()
	s.queue = append(s.queue, atts...)
}

// processQueuedAttestations drains the queue every time the epoch ticker
// fires and hands the batch to the engine, logging and counting whatever
// slashings it returns.
func (s *Service) processQueuedAttestations(ctx context.Context) {
	for {
		select {
		case currentEpoch := <-s.ticker.C():
			s.queueLock.Lock()
			atts := s.queue
			s.queue = make([]*CompactAttestation, 0)
			s.queueLock.Unlock()

			if len(atts) == 0 {
				continue
			}
			log.WithField("epoch", currentEpoch).WithField("numAttestations", len(atts)).
				Info("processing queued attestations for slashing detection")

			start := time.Now()
			slashings, err := s.engine.ProcessBatch(ctx, atts, currentEpoch)
			batchDurationSeconds.Observe(time.Since(start).Seconds())
			s.setStatus(err)
			if err != nil {
				log.WithError(err).Error("could not process attestation batch, discarding")
				continue
			}
			batchesProcessedTotal.Inc()
			for _, sl := range slashings {
				log.WithField("validatorIndex", sl.ValidatorIndex).
					WithField("kind", sl.Kind.String()).
					WithField("existingTarget", sl.Existing.Target).
					WithField("newTarget", sl.New.Target).
					Warn("slashable offense detected")
			}
		case <-ctx.Done():
			return
		}
	}
}

func (s *Service) setStatus(err error) {
	s.statusLock.Lock()
	defer s.statusLock.Unlock()
	s.statusErr = err
}
