package services

import (
	"time"

	"github.com/custodia-labs/ragdesk/internal/core/domain"
	"github.com/custodia-labs/ragdesk/internal/core/ports/driven"
)

// noopMetrics is used when no metrics sink is configured.
type noopMetrics struct{}

func (noopMetrics) ObserveRequest(string, string, int, time.Duration)    {}
func (noopMetrics) ObservePollTick(domain.PollMode, bool)                {}
func (noopMetrics) SetActivePolls(int)                                   {}
func (noopMetrics) ObserveTerminal(domain.DocumentStatus, time.Duration) {}

var _ driven.Metrics = noopMetrics{}

func metricsOrNoop(m driven.Metrics) driven.Metrics {
	if m == nil {
		return noopMetrics{}
	}
	return m
}
