package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/KevinKickass/OpenGCodeCore/internal/events"
	"github.com/KevinKickass/OpenGCodeCore/internal/instruction"
	"github.com/KevinKickass/OpenGCodeCore/internal/metrics"
	"go.uber.org/zap"
)

// reportLine asks the device for a temperature report.
const reportLine = "M105"

// Querier is the raw pass-through the poller reads from. The machine
// controller implements it.
type Querier interface {
	Query(ctx context.Context, line string) (string, error)
}

// Poller samples temperatures on a fixed interval and publishes them. It
// never changes the tracked machine state.
type Poller struct {
	source   Querier
	interval time.Duration
	logger   *zap.Logger
	metrics  *metrics.Metrics
	streamer *events.Streamer

	stopChan chan struct{}
	wg       sync.WaitGroup
	running  bool
	mu       sync.Mutex

	latest  instruction.Temperatures
	sampled time.Time
	failed  int
}

func NewPoller(source Querier, interval time.Duration, logger *zap.Logger, m *metrics.Metrics, streamer *events.Streamer) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Poller{
		source:   source,
		interval: interval,
		logger:   logger,
		metrics:  m,
		streamer: streamer,
	}
}

// Start startet das zyklische Polling
func (p *Poller) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return nil
	}

	p.running = true
	p.stopChan = make(chan struct{})
	p.wg.Add(1)

	go p.pollLoop(p.stopChan)

	p.logger.Info("Temperature monitor started",
		zap.Duration("interval", p.interval))

	return nil
}

// Stop stoppt das Polling
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	stop := p.stopChan
	p.mu.Unlock()

	close(stop)
	p.wg.Wait()

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()

	p.logger.Info("Temperature monitor stopped")
}

func (p *Poller) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Latest returns the last successful sample and when it was taken.
func (p *Poller) Latest() (instruction.Temperatures, time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.latest, p.sampled
}

func (p *Poller) pollLoop(stop <-chan struct{}) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			p.Poll()
		}
	}
}

// Poll takes one sample. It reports whether the device returned readings.
func (p *Poller) Poll() bool {
	ctx, cancel := context.WithTimeout(context.Background(), p.interval/2)
	defer cancel()

	resp, err := p.source.Query(ctx, reportLine)
	if err != nil {
		p.mu.Lock()
		p.failed++
		failed := p.failed
		p.mu.Unlock()

		// Nur den ersten Fehler einer Serie laut loggen
		if failed == 1 {
			p.logger.Warn("Temperature poll failed", zap.Error(err))
		} else {
			p.logger.Debug("Temperature poll failed", zap.Int("consecutive", failed), zap.Error(err))
		}
		return false
	}

	temps, ok := instruction.ExtractTemperatures(resp)
	if !ok {
		p.logger.Debug("No temperatures in response", zap.String("response", resp))
		return false
	}

	now := time.Now()
	p.mu.Lock()
	p.latest = temps
	p.sampled = now
	p.failed = 0
	p.mu.Unlock()

	readings := temps.AsMap()
	for _, heater := range temps.Heaters() {
		r := readings[heater]
		p.metrics.SetTemperature(heater, r["current"], r["target"])
	}
	p.streamer.Publish(events.TemperatureSample, map[string]any{
		"heaters":    readings,
		"sampled_at": now,
	})
	return true
}
