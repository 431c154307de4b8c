package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"github.com/phenrril/ordercore/internal/domain"
)

// MaterialPlanner translates order lines into raw material demand through
// the manufacturing specifications and books it against inventory.
type MaterialPlanner struct {
	Store  domain.Store
	Events domain.EventPublisher
	Now    Clock
}

func (uc *MaterialPlanner) CalculateRequirements(ctx context.Context, orderID uuid.UUID) ([]domain.MaterialRequirement, error) {
	o, err := uc.Store.Orders().FindByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("order %s: %w", orderID, err)
	}
	return calculateRequirements(ctx, uc.Store, o)
}

func (uc *MaterialPlanner) CheckFeasibility(ctx context.Context, orderID uuid.UUID) (bool, []domain.MaterialShortage, error) {
	reqs, err := uc.CalculateRequirements(ctx, orderID)
	if err != nil {
		return false, nil, err
	}
	shortages := shortagesOf(reqs)
	return len(shortages) == 0, shortages, nil
}

// ConsumeMaterials deducts the order's aggregated requirement from every
// material in one transaction. Nothing is deducted when any material is
// short, and an order is consumed at most once.
func (uc *MaterialPlanner) ConsumeMaterials(ctx context.Context, orderID uuid.UUID) (reqs []domain.MaterialRequirement, err error) {
	ctx, span := startSpan(ctx, "MaterialPlanner.ConsumeMaterials", attribute.String("order_id", orderID.String()))
	defer func() { endSpan(span, err) }()

	var consumedAt time.Time
	err = uc.Store.WithinTx(ctx, func(tx domain.Store) error {
		o, err := tx.Orders().FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return fmt.Errorf("order %s: %w", orderID, err)
		}
		if o.MaterialsConsumedAt != nil {
			return domain.ErrAlreadyConsumed
		}
		if o.Status != domain.OrderConfirmed && o.Status != domain.OrderProcessing {
			return fmt.Errorf("materials cannot be consumed for %s order: %w", o.Status, domain.ErrInvalidTransition)
		}
		reqs, err = calculateRequirements(ctx, tx, o)
		if err != nil {
			return err
		}

		ids := make([]uuid.UUID, 0, len(reqs))
		for _, r := range reqs {
			ids = append(ids, r.MaterialID)
		}
		locked, err := tx.Materials().LockByIDs(ctx, ids)
		if err != nil {
			return err
		}
		byID := make(map[uuid.UUID]*domain.RawMaterial, len(locked))
		for i := range locked {
			byID[locked[i].ID] = &locked[i]
		}
		for i := range reqs {
			reqs[i].Available = byID[reqs[i].MaterialID].CurrentQuantity
		}
		if shortages := shortagesOf(reqs); len(shortages) > 0 {
			return &domain.InsufficientMaterialsError{Shortages: shortages}
		}

		now := uc.Now.now()
		for i := range reqs {
			m := byID[reqs[i].MaterialID]
			m.CurrentQuantity = domain.RoundMoney(m.CurrentQuantity.Sub(reqs[i].Required))
			m.UpdatedAt = now
			if err := tx.Materials().Save(ctx, m); err != nil {
				return err
			}
			reqs[i].Available = m.CurrentQuantity
		}
		o.MaterialsConsumedAt = &now
		o.UpdatedAt = now
		consumedAt = now
		return tx.Orders().Save(ctx, o)
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("order_id", orderID.String()).Int("materials", len(reqs)).Msg("materials consumed")
	publish(ctx, uc.Events, domain.Event{Type: domain.EventMaterialsUsed, OrderID: orderID, OccurredAt: consumedAt})
	return reqs, nil
}

// ReorderAlerts lists materials whose quantity is below their reorder level.
// The level is the lowest one any supplier defines for the material, or
// the material's own default when no supplier sets one.
func (uc *MaterialPlanner) ReorderAlerts(ctx context.Context) ([]domain.ReorderAlert, error) {
	materials, err := uc.Store.Materials().List(ctx)
	if err != nil {
		return nil, err
	}
	links, err := uc.Store.Materials().ListMaterialSuppliers(ctx)
	if err != nil {
		return nil, err
	}
	byMaterial := make(map[uuid.UUID][]domain.MaterialSupplier)
	for _, l := range links {
		byMaterial[l.MaterialID] = append(byMaterial[l.MaterialID], l)
	}

	alerts := []domain.ReorderAlert{}
	for _, m := range materials {
		level, ok := reorderLevel(m, byMaterial[m.ID])
		if !ok || !m.CurrentQuantity.LessThan(level) {
			continue
		}
		alert := domain.ReorderAlert{
			MaterialID:      m.ID,
			MaterialName:    m.Name,
			CurrentQuantity: m.CurrentQuantity,
			ReorderLevel:    level,
			Shortage:        domain.RoundMoney(level.Sub(m.CurrentQuantity)),
		}
		for _, l := range byMaterial[m.ID] {
			if l.IsPreferred && l.Supplier != nil {
				alert.PreferredSupplier = l.Supplier
				break
			}
		}
		alerts = append(alerts, alert)
	}
	return alerts, nil
}

func (uc *MaterialPlanner) LowStockCount(ctx context.Context) (int, error) {
	alerts, err := uc.ReorderAlerts(ctx)
	if err != nil {
		return 0, err
	}
	return len(alerts), nil
}

// Replenish books a delivery of qty units of the material.
func (uc *MaterialPlanner) Replenish(ctx context.Context, materialID uuid.UUID, qty decimal.Decimal) (*domain.RawMaterial, error) {
	if !qty.IsPositive() {
		return nil, domain.ErrInvalidQuantity
	}
	var out *domain.RawMaterial
	err := uc.Store.WithinTx(ctx, func(tx domain.Store) error {
		locked, err := tx.Materials().LockByIDs(ctx, []uuid.UUID{materialID})
		if err != nil {
			return err
		}
		m := &locked[0]
		m.CurrentQuantity = domain.RoundMoney(m.CurrentQuantity.Add(qty))
		m.UpdatedAt = uc.Now.now()
		out = m
		return tx.Materials().Save(ctx, m)
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("material_id", materialID.String()).Str("qty", qty.StringFixed(2)).Str("current", out.CurrentQuantity.StringFixed(2)).Msg("material replenished")
	return out, nil
}

func reorderLevel(m domain.RawMaterial, links []domain.MaterialSupplier) (decimal.Decimal, bool) {
	var level *decimal.Decimal
	for _, l := range links {
		if l.ReorderLevel == nil {
			continue
		}
		if level == nil || l.ReorderLevel.LessThan(*level) {
			v := *l.ReorderLevel
			level = &v
		}
	}
	if level == nil {
		level = m.DefaultReorderLevel
	}
	if level == nil {
		return decimal.Zero, false
	}
	return *level, true
}

// calculateRequirements aggregates spec.quantity_required × item quantity
// per material, in the order materials are first met.
func calculateRequirements(ctx context.Context, s domain.Store, o *domain.Order) ([]domain.MaterialRequirement, error) {
	seen := make(map[uuid.UUID]bool)
	var sizeIDs []uuid.UUID
	for _, it := range o.Items {
		if !seen[it.VariantSizeID] {
			seen[it.VariantSizeID] = true
			sizeIDs = append(sizeIDs, it.VariantSizeID)
		}
	}
	specs, err := s.Materials().SpecsFor(ctx, sizeIDs)
	if err != nil {
		return nil, err
	}
	bySize := make(map[uuid.UUID][]domain.ManufacturingSpec)
	for _, sp := range specs {
		bySize[sp.VariantSizeID] = append(bySize[sp.VariantSizeID], sp)
	}

	index := make(map[uuid.UUID]int)
	reqs := []domain.MaterialRequirement{}
	for _, it := range o.Items {
		for _, sp := range bySize[it.VariantSizeID] {
			need := domain.RoundMoney(sp.QuantityRequired.Mul(decimal.NewFromInt(int64(it.Qty))))
			i, ok := index[sp.MaterialID]
			if !ok {
				m, err := s.Materials().FindByID(ctx, sp.MaterialID)
				if err != nil {
					return nil, fmt.Errorf("material %s: %w", sp.MaterialID, err)
				}
				i = len(reqs)
				index[sp.MaterialID] = i
				reqs = append(reqs, domain.MaterialRequirement{
					MaterialID:   m.ID,
					MaterialName: m.Name,
					Required:     decimal.Zero,
					Available:    m.CurrentQuantity,
				})
			}
			reqs[i].Required = reqs[i].Required.Add(need)
			reqs[i].Breakdown = append(reqs[i].Breakdown, domain.RequirementSource{
				OrderItemID:   it.ID,
				VariantSizeID: it.VariantSizeID,
				ItemQty:       it.Qty,
				PerUnit:       sp.QuantityRequired,
				Required:      need,
			})
		}
	}
	return reqs, nil
}

func shortagesOf(reqs []domain.MaterialRequirement) []domain.MaterialShortage {
	var out []domain.MaterialShortage
	for _, r := range reqs {
		if r.Required.GreaterThan(r.Available) {
			out = append(out, domain.MaterialShortage{
				MaterialID:   r.MaterialID,
				MaterialName: r.MaterialName,
				Required:     r.Required,
				Available:    r.Available,
				Shortage:     domain.RoundMoney(r.Required.Sub(r.Available)),
			})
		}
	}
	return out
}
