package orders

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/EnzoBerlesi/Kachau-Loja-sub000/internal/fault"
)

const pgUniqueViolation = "23505"

// PGStore persists orders in Postgres. Every mutation runs in a single
// transaction with a deferred rollback; only an explicit Commit makes
// anything visible.
type PGStore struct{ DB *pgxpool.Pool }

// CreateOrder inserts the order and all lines and applies the stock
// decrement per line as a conditional update. A decrement whose
// condition fails means a concurrent checkout won the remaining stock;
// the whole transaction rolls back and the losing product is named.
func (s *PGStore) CreateOrder(ctx context.Context, o *Order) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var externalID any
	if o.ExternalID != "" {
		externalID = o.ExternalID
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO orders(id, external_id, customer_id, channel, status, total_cents, discount_cents)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`,
		o.ID, externalID, o.CustomerID, o.Channel, o.Status, o.TotalCents, o.DiscountCents,
	).Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrDuplicateExternalID
		}
		return err
	}

	for i := range o.Lines {
		line := &o.Lines[i]
		line.OrderID = o.ID

		ct, err := tx.Exec(ctx, `
			UPDATE products SET stock = stock - $2, updated_at = now()
			WHERE id = $1 AND stock >= $2`,
			line.ProductID, line.Qty)
		if err != nil {
			return err
		}
		if ct.RowsAffected() != 1 {
			// Either the product vanished or a concurrent checkout took
			// the remaining stock. Distinguish for the caller.
			var available int
			err := tx.QueryRow(ctx, `SELECT stock FROM products WHERE id=$1`,
				line.ProductID).Scan(&available)
			if errors.Is(err, pgx.ErrNoRows) {
				return fault.NotFound("product", line.ProductID)
			}
			if err != nil {
				return err
			}
			return &fault.ConflictError{
				ProductID: line.ProductID,
				Requested: line.Qty,
				Available: available,
			}
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO order_items(id, order_id, product_id, qty, unit_price_cents)
			VALUES ($1, $2, $3, $4, $5)`,
			line.ID, line.OrderID, line.ProductID, line.Qty, line.UnitPriceCents,
		); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (s *PGStore) Order(ctx context.Context, id string) (*Order, error) {
	return s.loadOrder(ctx, `WHERE id=$1`, id)
}

func (s *PGStore) OrderByExternalID(ctx context.Context, externalID string) (*Order, error) {
	return s.loadOrder(ctx, `WHERE external_id=$1`, externalID)
}

func (s *PGStore) loadOrder(ctx context.Context, where string, arg any) (*Order, error) {
	var o Order
	var externalID *string
	err := s.DB.QueryRow(ctx, `
		SELECT id, external_id, customer_id, channel, status, total_cents, discount_cents, stock_restored, created_at, updated_at
		FROM orders `+where, arg,
	).Scan(&o.ID, &externalID, &o.CustomerID, &o.Channel, &o.Status, &o.TotalCents,
		&o.DiscountCents, &o.StockRestored, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		id, _ := arg.(string)
		return nil, fault.NotFound("order", id)
	}
	if err != nil {
		return nil, err
	}
	if externalID != nil {
		o.ExternalID = *externalID
	}

	rows, err := s.DB.Query(ctx, `
		SELECT id, order_id, product_id, qty, unit_price_cents
		FROM order_items WHERE order_id=$1 ORDER BY product_id`, o.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.OrderID, &l.ProductID, &l.Qty, &l.UnitPriceCents); err != nil {
			return nil, err
		}
		o.Lines = append(o.Lines, l)
	}
	return &o, rows.Err()
}

func (s *PGStore) ListOrders(ctx context.Context, f Filter) ([]*Order, error) {
	q := `SELECT id, external_id, customer_id, channel, status, total_cents, discount_cents, stock_restored, created_at, updated_at
	      FROM orders WHERE 1=1`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if f.CustomerID != "" {
		q += ` AND customer_id=` + arg(f.CustomerID)
	}
	if !f.From.IsZero() {
		q += ` AND created_at >= ` + arg(f.From)
	}
	if !f.To.IsZero() {
		q += ` AND created_at < ` + arg(f.To)
	}
	if f.ExcludeCancelled {
		q += ` AND status <> ` + arg(StatusCancelled)
	}
	q += ` ORDER BY created_at, id`

	rows, err := s.DB.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Order
	byID := map[string]*Order{}
	for rows.Next() {
		var o Order
		var externalID *string
		if err := rows.Scan(&o.ID, &externalID, &o.CustomerID, &o.Channel, &o.Status,
			&o.TotalCents, &o.DiscountCents, &o.StockRestored, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		if externalID != nil {
			o.ExternalID = *externalID
		}
		out = append(out, &o)
		byID[o.ID] = out[len(out)-1]
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}

	ids := make([]any, 0, len(out))
	params := ""
	for i, o := range out {
		if i > 0 {
			params += ","
		}
		params += "$" + strconv.Itoa(i+1)
		ids = append(ids, o.ID)
	}
	lrows, err := s.DB.Query(ctx, `
		SELECT id, order_id, product_id, qty, unit_price_cents
		FROM order_items WHERE order_id IN (`+params+`) ORDER BY order_id, product_id`, ids...)
	if err != nil {
		return nil, err
	}
	defer lrows.Close()
	for lrows.Next() {
		var l Line
		if err := lrows.Scan(&l.ID, &l.OrderID, &l.ProductID, &l.Qty, &l.UnitPriceCents); err != nil {
			return nil, err
		}
		if o, ok := byID[l.OrderID]; ok {
			o.Lines = append(o.Lines, l)
		}
	}
	return out, lrows.Err()
}

// UpdateStatus sets the status under a row lock and settles stock in
// the same transaction, keyed off the order's stock_restored flag so
// the accounting survives concurrent and repeated requests.
func (s *PGStore) UpdateStatus(ctx context.Context, id string, next Status) (*Order, error) {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var current Status
	var restored bool
	err = tx.QueryRow(ctx,
		`SELECT status, stock_restored FROM orders WHERE id=$1 FOR UPDATE`, id,
	).Scan(&current, &restored)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fault.NotFound("order", id)
	}
	if err != nil {
		return nil, err
	}

	switch {
	case next == StatusCancelled && !current.Terminal() && !restored:
		if _, err := tx.Exec(ctx, `
			UPDATE products p SET stock = p.stock + oi.qty, updated_at = now()
			FROM order_items oi
			WHERE oi.order_id = $1 AND oi.product_id = p.id`, id); err != nil {
			return nil, err
		}
		restored = true
	case current == StatusCancelled && next != StatusCancelled && restored:
		// Reinstating takes the goods back. Lock the product rows and
		// check cover before decrementing; a shortage rolls the whole
		// transaction back.
		rows, err := tx.Query(ctx, `
			SELECT oi.product_id, oi.qty, p.stock
			FROM order_items oi
			JOIN products p ON p.id = oi.product_id
			WHERE oi.order_id = $1
			ORDER BY oi.product_id
			FOR UPDATE OF p`, id)
		if err != nil {
			return nil, err
		}
		var short *fault.ConflictError
		for rows.Next() {
			var productID string
			var qty, stock int
			if err := rows.Scan(&productID, &qty, &stock); err != nil {
				rows.Close()
				return nil, err
			}
			if stock < qty && short == nil {
				short = &fault.ConflictError{
					ProductID: productID,
					Requested: qty,
					Available: stock,
				}
			}
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, err
		}
		if short != nil {
			return nil, short
		}
		if _, err := tx.Exec(ctx, `
			UPDATE products p SET stock = p.stock - oi.qty, updated_at = now()
			FROM order_items oi
			WHERE oi.order_id = $1 AND oi.product_id = p.id`, id); err != nil {
			return nil, err
		}
		restored = false
	}

	if _, err := tx.Exec(ctx,
		`UPDATE orders SET status=$2, stock_restored=$3, updated_at=now() WHERE id=$1`,
		id, next, restored); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return s.Order(ctx, id)
}

