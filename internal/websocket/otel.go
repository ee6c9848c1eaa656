package websocket

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/luciancaetano/arenanet/internal/websocket"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}
