package orders

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/safar/go-storefront/internal/models"
)

var ErrInvalidCursor = errors.New("invalid cursor")

type CursorPage struct {
	Items      []models.Order `json:"items"`
	NextCursor string         `json:"next_cursor,omitempty"`
	HasMore    bool           `json:"has_more"`
}

type OrderCursor struct {
	OrderDate time.Time `json:"order_date"`
	ID        string    `json:"id"`
}

func EncodeCursor(cursor OrderCursor) string {
	data, err := json.Marshal(cursor)
	if err != nil {
		return ""
	}
	return base64.URLEncoding.EncodeToString(data)
}

// DecodeCursor returns the zero cursor, meaning "from the newest order",
// for an empty string.
func DecodeCursor(encoded string) (OrderCursor, error) {
	var cursor OrderCursor
	if encoded == "" {
		return cursor, nil
	}

	data, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return cursor, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}

	if err := json.Unmarshal(data, &cursor); err != nil {
		return OrderCursor{}, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	return cursor, nil
}

// after reports whether o sorts strictly after the cursor position.
func (c OrderCursor) after(o models.Order) bool {
	if c.ID == "" {
		return true
	}
	if !o.OrderDate.Equal(c.OrderDate) {
		return o.OrderDate.Before(c.OrderDate)
	}
	return o.ID < c.ID
}

// ListPage returns up to limit orders following cursor in recency order.
func (l *Ledger) ListPage(ctx context.Context, cursor string, limit int) (*CursorPage, error) {
	if limit < 1 {
		limit = 20
	}
	cursorData, err := DecodeCursor(cursor)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}

	history, err := l.List(ctx)
	if err != nil {
		return nil, err
	}

	orders := make([]models.Order, 0, limit+1)
	for _, o := range history {
		if !cursorData.after(o) {
			continue
		}
		orders = append(orders, o)
		if len(orders) > limit {
			break
		}
	}

	hasMore := len(orders) > limit
	if hasMore {
		orders = orders[:limit]
	}

	var nextCursor string
	if hasMore && len(orders) > 0 {
		lastOrder := orders[len(orders)-1]
		nextCursor = EncodeCursor(OrderCursor{
			OrderDate: lastOrder.OrderDate,
			ID:        lastOrder.ID,
		})
	}

	return &CursorPage{
		Items:      orders,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}
