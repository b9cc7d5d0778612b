package otel

import (
	"go.opentelemetry.io/otel"

	"github.com/tavolo/ordering/internal/common"
)

var Tracer = otel.Tracer(common.AppMenuView)
