package orders

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// UnitPrice is the captured item price plus every captured option price.
func UnitPrice(item *models.Item) (types.Money, error) {
	price := item.Price()
	for i := range item.Options {
		next, err := price.Add(item.Options[i].Price())
		if err != nil {
			return types.Money{}, err
		}
		price = next
	}
	return price, nil
}

func LineTotal(item *models.Item) (types.Money, error) {
	unit, err := UnitPrice(item)
	if err != nil {
		return types.Money{}, err
	}
	return unit.Mul(int64(item.Quantity)), nil
}

// ItemProblems lists why item can no longer be bought. It never reads prices:
// those stay as captured when the line was added.
func ItemProblems(ctx context.Context, tx *gorm.DB, catalog Catalog, item *models.Item) ([]string, error) {
	product, err := catalog.FindProduct(ctx, tx, item.ObjectID)
	if err != nil {
		return nil, err
	}
	if product == nil || !product.Published {
		return []string{ProblemProductUnavailable}, nil
	}
	if !product.RequiresVariation {
		return nil, nil
	}

	var variations []models.ItemOption
	for _, opt := range item.Options {
		if opt.ObjectType == enums.ObjectTypeVariation {
			variations = append(variations, opt)
		}
	}
	if len(variations) != 1 {
		return []string{ProblemVariationRequired}, nil
	}
	variation, err := catalog.FindVariation(ctx, tx, variations[0].ObjectID)
	if err != nil {
		return nil, err
	}
	if variation == nil || !variation.Published || variation.ProductID != product.ID {
		return []string{ProblemVariationUnavailable}, nil
	}
	return nil, nil
}

// DownloadLimit is how many times a virtual line may be downloaded: the
// per-unit allowance times the quantity, and nothing until the order is paid.
func DownloadLimit(item *models.Item, order *models.Order, perUnitLimit int) int {
	if !item.Virtual || order == nil || !order.IsPaid() || perUnitLimit <= 0 {
		return 0
	}
	return perUnitLimit * item.Quantity
}

// DownloadsRemaining is DownloadLimit less the downloads already served.
func DownloadsRemaining(item *models.Item, order *models.Order, perUnitLimit int) int {
	return max(DownloadLimit(item, order, perUnitLimit)-item.DownloadCount, 0)
}

// lineKey identifies a line for merging: object, version and the sorted set
// of option (object, version) pairs.
type lineKey struct {
	objectID uuid.UUID
	version  int
	options  string
}

type optionRef struct {
	id      uuid.UUID
	version int
}

func keyOf(objectID uuid.UUID, version int, options []optionRef) lineKey {
	sorted := append([]optionRef(nil), options...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].id != sorted[j].id {
			return sorted[i].id.String() < sorted[j].id.String()
		}
		return sorted[i].version < sorted[j].version
	})
	var b strings.Builder
	for _, o := range sorted {
		b.WriteString(o.id.String())
		b.WriteByte('@')
		b.WriteString(strconv.Itoa(o.version))
		b.WriteByte(';')
	}
	return lineKey{objectID: objectID, version: version, options: b.String()}
}

func itemKey(item *models.Item) lineKey {
	refs := make([]optionRef, 0, len(item.Options))
	for _, o := range item.Options {
		refs = append(refs, optionRef{id: o.ObjectID, version: o.ObjectVersion})
	}
	return keyOf(item.ObjectID, item.ObjectVersion, refs)
}

// findIdentical scans the order's lines for one matching key.
func findIdentical(order *models.Order, key lineKey) *models.Item {
	for i := range order.Items {
		if itemKey(&order.Items[i]) == key {
			return &order.Items[i]
		}
	}
	return nil
}

// findForRemoval matches on object id and option ids. A zero version
// matches any version of the object.
func findForRemoval(order *models.Order, input RemoveItemInput) *models.Item {
	want := make(map[uuid.UUID]struct{}, len(input.OptionIDs))
	for _, id := range input.OptionIDs {
		want[id] = struct{}{}
	}
	for i := range order.Items {
		item := &order.Items[i]
		if item.ObjectID != input.ProductID {
			continue
		}
		if input.Version != 0 && item.ObjectVersion != input.Version {
			continue
		}
		if len(item.Options) != len(want) {
			continue
		}
		match := true
		for _, opt := range item.Options {
			if _, ok := want[opt.ObjectID]; !ok {
				match = false
				break
			}
		}
		if match {
			return item
		}
	}
	return nil
}
