package services

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"cart-service/internal/models"
	"cart-service/internal/repository"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// BindResolver resolves a bind (feature→value selections) into the aggregated
// Option the mutation engine validates against. Resolution is pure apart from
// catalog reads: no locks are taken, the catalog is treated as slowly-changing
// reference data for the duration of one request.
type BindResolver interface {
	Resolve(ctx context.Context, tenantID string, productID uuid.UUID, bind models.Bind) (*models.Option, error)
}

type bindResolver struct {
	catalog repository.CatalogRepositoryInterface
	logger  *logrus.Entry
}

func NewBindResolver(catalog repository.CatalogRepositoryInterface, logger *logrus.Logger) BindResolver {
	return &bindResolver{
		catalog: catalog,
		logger:  logger.WithField("component", "bind-resolver"),
	}
}

// Resolve normalizes the bind, aggregates price/stock/policy over the selected
// values and applies a group product override when one matches the
// feature-name→value-text projection of the bind.
func (r *bindResolver) Resolve(ctx context.Context, tenantID string, productID uuid.UUID, bind models.Bind) (*models.Option, error) {
	if len(bind) == 0 {
		resolved, err := r.defaultBind(ctx, tenantID, productID)
		if err != nil {
			return nil, err
		}
		bind = resolved
	}

	option := &models.Option{}
	nameText := make(map[string]string, len(bind))

	var stock *int
	for featureKey, selection := range bind {
		featureID, err := uuid.Parse(featureKey)
		if err != nil {
			return nil, &models.InvalidBindError{Value: selection, Reason: fmt.Sprintf("feature key %q is not a valid id", featureKey)}
		}

		feature, err := r.catalog.GetFeature(ctx, tenantID, featureID)
		if err != nil {
			return nil, err
		}
		if feature.ProductID != productID {
			return nil, &models.InvalidBindError{FeatureID: featureID, Value: selection, Reason: "feature does not belong to product"}
		}

		if !feature.Type.Enumerated() {
			if err := validateRawSelection(feature, selection); err != nil {
				return nil, err
			}
			option.Bind = append(option.Bind, models.BindEntry{FeatureID: featureID, Raw: selection})
			nameText[feature.Name] = selection
			continue
		}

		valueID, err := uuid.Parse(selection)
		if err != nil {
			return nil, &models.InvalidBindError{FeatureID: featureID, Value: selection, Reason: "selection is not a value id"}
		}
		value, err := r.catalog.GetValue(ctx, tenantID, valueID)
		if err != nil {
			if models.IsNotFound(err) {
				return nil, &models.InvalidBindError{FeatureID: featureID, Value: selection, Reason: "value does not exist"}
			}
			return nil, err
		}
		if value.FeatureID != featureID {
			return nil, &models.InvalidBindError{FeatureID: featureID, Value: selection, Reason: "value is not owned by feature"}
		}

		option.AdditionalPrice += value.AdditionalPrice
		option.DecreasesStock = option.DecreasesStock || value.DecreasesStock
		option.ContinueSelling = option.ContinueSelling || value.ContinueSelling
		if value.Stock != nil && (stock == nil || *value.Stock < *stock) {
			s := *value.Stock
			stock = &s
		}

		vid := valueID
		option.Bind = append(option.Bind, models.BindEntry{FeatureID: featureID, ValueID: &vid})
		nameText[feature.Name] = value.Text
	}

	sort.Slice(option.Bind, func(i, j int) bool {
		return option.Bind[i].FeatureID.String() < option.Bind[j].FeatureID.String()
	})

	option.Stock = stock
	option.BindKey = option.Bind.CanonicalKey()
	option.NameTextKey = models.CanonicalPairKey(nameText)

	// An exact-combination override replaces derived stock and price; the
	// selling policy flags stay derived from the values.
	group, err := r.catalog.GetGroupProduct(ctx, tenantID, productID, option.NameTextKey)
	if err != nil {
		return nil, err
	}
	if group != nil {
		groupStock := group.Stock
		option.Stock = &groupStock
		option.AdditionalPrice = group.AdditionalPrice
		option.Overridden = true
	}

	return option, nil
}

// defaultBind expands an empty bind to the product's default value when the
// default feature has exactly one. Products with no feature rows yet get one
// created here (the single self-healing entry point).
func (r *bindResolver) defaultBind(ctx context.Context, tenantID string, productID uuid.UUID) (models.Bind, error) {
	feature, err := r.catalog.EnsureDefaultVariant(ctx, tenantID, productID)
	if err != nil {
		return nil, err
	}
	if len(feature.Values) != 1 {
		r.logger.WithFields(logrus.Fields{
			"productId": productID,
			"values":    len(feature.Values),
		}).Debug("default feature is not single-valued, resolving empty bind")
		return models.Bind{}, nil
	}
	return models.Bind{
		feature.ID.String(): feature.Values[0].ID.String(),
	}, nil
}

func validateRawSelection(feature *models.Feature, selection string) error {
	switch feature.Type {
	case models.FeatureTypeInput:
		if feature.MinLen != nil && len(selection) < *feature.MinLen {
			return &models.InvalidBindError{FeatureID: feature.ID, Value: selection, Reason: fmt.Sprintf("input shorter than %d characters", *feature.MinLen)}
		}
		if feature.MaxLen != nil && len(selection) > *feature.MaxLen {
			return &models.InvalidBindError{FeatureID: feature.ID, Value: selection, Reason: fmt.Sprintf("input longer than %d characters", *feature.MaxLen)}
		}
	case models.FeatureTypeRange, models.FeatureTypeLevel:
		n, err := strconv.ParseFloat(selection, 64)
		if err != nil {
			return &models.InvalidBindError{FeatureID: feature.ID, Value: selection, Reason: "selection is not numeric"}
		}
		if feature.MinValue != nil && n < *feature.MinValue {
			return &models.InvalidBindError{FeatureID: feature.ID, Value: selection, Reason: fmt.Sprintf("selection below minimum %g", *feature.MinValue)}
		}
		if feature.MaxValue != nil && n > *feature.MaxValue {
			return &models.InvalidBindError{FeatureID: feature.ID, Value: selection, Reason: fmt.Sprintf("selection above maximum %g", *feature.MaxValue)}
		}
	}
	if feature.Required && selection == "" {
		return &models.InvalidBindError{FeatureID: feature.ID, Value: selection, Reason: "selection is required"}
	}
	return nil
}
