package backend

import (
	"context"
	"net/url"
	"time"

	"github.com/tessro/tunes/internal/core"
)

type orderRow struct {
	Status            string    `json:"status"`
	PaymentProviderID *string   `json:"payment_provider_id"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// OrderStatus reads the status of one order. A missing order returns nil
// with no error.
func (c *Client) OrderStatus(ctx context.Context, orderID string) (*core.OrderSnapshot, error) {
	params := url.Values{}
	params.Set("select", "status,payment_provider_id,updated_at")
	params.Set("id", "eq."+orderID)

	var rows []orderRow
	if err := c.Select(ctx, "orders", params, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	row := rows[0]
	snap := &core.OrderSnapshot{
		ID:        orderID,
		Status:    core.OrderStatus(row.Status),
		UpdatedAt: row.UpdatedAt,
	}
	if row.PaymentProviderID != nil {
		snap.ProviderID = *row.PaymentProviderID
	}
	return snap, nil
}
