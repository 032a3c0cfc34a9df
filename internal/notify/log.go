package notify

import (
	"context"

	"go.uber.org/zap"

	"binscope/internal/model"
)

// LogNotifier writes notifications to the structured log.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) ActionTaken(_ context.Context, positionID string, action model.Action, txRef string) error {
	n.logger.Info("automation action executed",
		zap.String("position", positionID),
		zap.String("action", string(action)),
		zap.String("tx_ref", txRef),
	)
	return nil
}

func (n *LogNotifier) PositionDegraded(_ context.Context, positionID string, failures int) error {
	n.logger.Warn("position monitoring degraded",
		zap.String("position", positionID),
		zap.Int("consecutive_failures", failures),
	)
	return nil
}

func (n *LogNotifier) RotationOpportunities(_ context.Context, walletAddress string, opportunities []model.PoolOpportunity) error {
	if len(opportunities) == 0 {
		return nil
	}
	best := opportunities[0]
	n.logger.Info("rotation opportunities found",
		zap.String("wallet", walletAddress),
		zap.Int("count", len(opportunities)),
		zap.String("best_pool", best.PoolID),
		zap.Float64("best_earn_rate", best.EarnRate),
	)
	return nil
}
