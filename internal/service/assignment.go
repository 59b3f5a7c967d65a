package service

import (
	"context"
	"time"

	"furniture-store/internal/models"
	"furniture-store/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// maxLoadQueries bounds concurrent pending-load counts per assignment
const maxLoadQueries = 8

// assignmentRepository is what the assigner reads and writes
type assignmentRepository interface {
	ListActiveOperators(ctx context.Context) ([]models.User, error)
	CountOrdersByOperator(ctx context.Context, operatorID int64, statuses []string) (int, error)
	UpdateOrder(ctx context.Context, orderID int64, changes models.OrderChanges) error
}

// Assigner picks the least-loaded active operator for new orders.
//
// Selection reads pending loads and then writes the order without any
// lock, so two simultaneous checkouts can land on the same operator.
// The resulting skew is temporary and accepted.
type Assigner struct {
	repo      assignmentRepository
	publisher EventPublisher
	logger    *zap.Logger
}

// NewAssigner creates a new operator assigner
func NewAssigner(repo assignmentRepository, publisher EventPublisher) *Assigner {
	return &Assigner{
		repo:      repo,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// OperatorLoad is an operator paired with its pending load
type OperatorLoad struct {
	OperatorID int64
	Load       int
}

// PendingLoads counts PENDING and ACCEPTED orders for every active
// operator. The result keeps the operators' ascending id order.
func (a *Assigner) PendingLoads(ctx context.Context) ([]OperatorLoad, error) {
	operators, err := a.repo.ListActiveOperators(ctx)
	if err != nil {
		return nil, storeErr(err, "list active operators")
	}

	loads := make([]OperatorLoad, len(operators))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxLoadQueries)

	for i, op := range operators {
		i, op := i, op
		loads[i].OperatorID = op.ID
		g.Go(func() error {
			n, err := a.repo.CountOrdersByOperator(gctx, op.ID, models.PendingLoadStatuses)
			if err != nil {
				return storeErr(err, "count pending orders")
			}
			loads[i].Load = n
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return loads, nil
}

// SelectOperator returns the entry with the minimum load. Ties go to the
// first one in slice order. ok is false for an empty slice.
func SelectOperator(loads []OperatorLoad) (OperatorLoad, bool) {
	if len(loads) == 0 {
		return OperatorLoad{}, false
	}
	best := loads[0]
	for _, l := range loads[1:] {
		if l.Load < best.Load {
			best = l
		}
	}
	return best, true
}

// Assign sets the least-loaded active operator on the order and returns
// its id. Returns nil without error when no operator is active; the
// order then stays in the backlog until an admin assigns it.
func (a *Assigner) Assign(ctx context.Context, orderID int64) (*int64, error) {
	ctx, span := util.StartSpan(ctx, "Assigner.Assign")
	defer span.End()

	start := time.Now()
	defer func() {
		util.AssignmentLatency.Observe(time.Since(start).Seconds())
	}()

	loads, err := a.PendingLoads(ctx)
	if err != nil {
		return nil, err
	}

	picked, ok := SelectOperator(loads)
	if !ok {
		a.logger.Warn("No active operator, order left unassigned", zap.Int64("order_id", orderID))
		return nil, nil
	}

	operatorID := picked.OperatorID
	if err := a.repo.UpdateOrder(ctx, orderID, models.OrderChanges{OperatorID: &operatorID}); err != nil {
		return nil, storeErr(err, "assign operator")
	}

	util.AssignedPendingLoad.Observe(float64(picked.Load))
	a.logger.Info("Order assigned",
		zap.Int64("order_id", orderID),
		zap.Int64("operator_id", operatorID),
		zap.Int("pending_load", picked.Load))

	event := &models.OrderAssignedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderAssigned,
			OrderID:   orderID,
			Timestamp: time.Now(),
		},
		OperatorID:  operatorID,
		PendingLoad: picked.Load,
	}
	if err := a.publisher.PublishOrderAssigned(ctx, event); err != nil {
		a.logger.Error("Failed to publish OrderAssigned event", zap.Error(err))
	}

	return &operatorID, nil
}
