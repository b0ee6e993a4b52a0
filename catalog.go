package fliggy

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Product catalog methods use the path-routed convention: no dot in the
// method name, distributorId and timestamp injected by the client.
const (
	MethodQueryProductBaseInfoByPage = "queryProductBaseInfoByPage"
	MethodQueryProductBaseInfoByIDs  = "queryProductBaseInfoByIds"
	MethodQueryProductDetailInfo     = "queryProductDetailInfo"
	MethodQueryProductPriceStock     = "queryProductPriceStock"
)

const (
	defaultSyncPageSize = 20
	defaultSyncMaxPages = 500
)

func (s *Service) QueryProductBaseInfoByPage(ctx context.Context, pageNo, pageSize int) (Outcome, error) {
	return s.Execute(ctx, MethodQueryProductBaseInfoByPage, map[string]any{
		"pageNo":   pageNo,
		"pageSize": pageSize,
	})
}

func (s *Service) QueryProductBaseInfoByIDs(ctx context.Context, productIDs []string) (Outcome, error) {
	return s.Execute(ctx, MethodQueryProductBaseInfoByIDs, map[string]any{
		"productIds": productIDs,
	})
}

func (s *Service) QueryProductDetailInfo(ctx context.Context, productID string) (Outcome, error) {
	return s.Execute(ctx, MethodQueryProductDetailInfo, map[string]any{
		"productId": productID,
	})
}

func (s *Service) QueryProductPriceStock(ctx context.Context, productID string) (Outcome, error) {
	return s.Execute(ctx, MethodQueryProductPriceStock, map[string]any{
		"productId": productID,
	})
}

// SyncAllProducts walks the whole catalog page by page, feeding each product
// to the ProductSynced callback, and returns the number of products visited.
// The walk stops at the first short page; the page cap guards against a
// partner that keeps returning full pages.
func (s *Service) SyncAllProducts(ctx context.Context, pageSize int) (int, error) {
	if s == nil || s.client == nil {
		return 0, fmt.Errorf("fliggy: service is not configured")
	}
	if pageSize <= 0 {
		pageSize = s.syncPageSize
	}

	total := 0
	for pageNo := 1; pageNo <= s.syncMaxPages; pageNo++ {
		outcome, err := s.QueryProductBaseInfoByPage(ctx, pageNo, pageSize)
		if err != nil {
			return total, err
		}
		if !outcome.IsSuccess() {
			return total, outcome.Err()
		}

		items := productListFrom(outcome.Data)
		for _, item := range items {
			if s.callbacks.ProductSynced != nil {
				if err := s.callbacks.ProductSynced(ctx, item); err != nil {
					return total, err
				}
			}
			total++
		}

		if len(items) < pageSize {
			s.logInfo(ctx, "catalog sync finished",
				"pages", pageNo,
				"total", total,
			)
			return total, nil
		}
		if s.syncPageDelay > 0 {
			select {
			case <-ctx.Done():
				return total, ctx.Err()
			case <-time.After(s.syncPageDelay):
			}
		}
	}
	return total, fmt.Errorf("fliggy: catalog sync exceeded %d pages", s.syncMaxPages)
}

// ProcessProductChange applies a verified product push: price and stock
// triggers refetch price/stock only, everything else refetches the full
// detail. Unknown push types get the full refresh too, which is always safe.
func (s *Service) ProcessProductChange(ctx context.Context, payload map[string]any) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("fliggy: service is not configured")
	}
	productID := payloadString(payload, "productId")
	pushType := payloadString(payload, "pushType")
	if productID == "" {
		return fmt.Errorf("fliggy: product push has no productId")
	}

	switch pushType {
	case "VACATION_RESOURCE_PRICE_STOCK_CHANGE",
		"VACATION_RESOURCE_PRICE_CHANGE",
		"VACATION_RESOURCE_STOCK_CHANGE":
		outcome, err := s.QueryProductPriceStock(ctx, productID)
		if err != nil {
			return err
		}
		if !outcome.IsSuccess() {
			return outcome.Err()
		}
		if s.callbacks.PriceStockRefreshed == nil {
			s.logInfo(ctx, "price/stock refresh dropped, no callback wired",
				"product_id", productID,
				"push_type", pushType,
			)
			return nil
		}
		return s.callbacks.PriceStockRefreshed(ctx, productID, outcome.Data)
	default:
		outcome, err := s.QueryProductDetailInfo(ctx, productID)
		if err != nil {
			return err
		}
		if !outcome.IsSuccess() {
			return outcome.Err()
		}
		if s.callbacks.ProductRefreshed == nil {
			s.logInfo(ctx, "product refresh dropped, no callback wired",
				"product_id", productID,
				"push_type", pushType,
			)
			return nil
		}
		return s.callbacks.ProductRefreshed(ctx, productID, outcome.Data)
	}
}

// productListFrom digs the product slice out of a normalized page response.
// The partner wraps the list differently per gateway version, so a few known
// envelope keys are tried before giving up.
func productListFrom(data map[string]any) []map[string]any {
	for _, key := range []string{"products", "productList", "items", "list", "records"} {
		if items, ok := sliceOfMaps(data[key]); ok {
			return items
		}
	}
	if nested, ok := data["data"].(map[string]any); ok {
		return productListFrom(nested)
	}
	if items, ok := sliceOfMaps(data["data"]); ok {
		return items
	}
	return nil
}

func sliceOfMaps(value any) ([]map[string]any, bool) {
	raw, ok := value.([]any)
	if !ok {
		return nil, false
	}
	items := make([]map[string]any, 0, len(raw))
	for _, element := range raw {
		item, ok := element.(map[string]any)
		if !ok {
			return nil, false
		}
		items = append(items, item)
	}
	return items, true
}

func payloadString(payload map[string]any, key string) string {
	if payload == nil {
		return ""
	}
	value, present := payload[key]
	if !present || value == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(value))
}
