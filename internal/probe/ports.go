package probe

import (
	"context"

	"OutLight/internal/domain"
)

// Probe выполняет одну проверку цели
type Probe interface {
	Execute(ctx context.Context, target domain.EndpointTarget) domain.CheckResult
}
