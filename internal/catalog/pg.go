package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/EnzoBerlesi/Kachau-Loja-sub000/internal/fault"
)

const productCols = `id, sku, name, category_id, price_cents, stock, min_stock, created_at, updated_at`

// PGLedger reads products from Postgres.
type PGLedger struct{ DB *pgxpool.Pool }

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.CategoryID, &p.PriceCents, &p.Stock,
		&p.MinStock, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (l *PGLedger) Product(ctx context.Context, id string) (Product, error) {
	p, err := scanProduct(l.DB.QueryRow(ctx,
		`SELECT `+productCols+` FROM products WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, fault.NotFound("product", id)
	}
	return p, err
}

func (l *PGLedger) Products(ctx context.Context, ids []string) (map[string]Product, error) {
	if len(ids) == 0 {
		return map[string]Product{}, nil
	}
	args := make([]any, 0, len(ids))
	params := ""
	for i, id := range ids {
		if i > 0 {
			params += ","
		}
		params += fmt.Sprintf("$%d", i+1)
		args = append(args, id)
	}
	rows, err := l.DB.Query(ctx,
		`SELECT `+productCols+` FROM products WHERE id IN (`+params+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]Product, len(ids))
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

func (l *PGLedger) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := l.DB.Query(ctx, `SELECT `+productCols+` FROM products ORDER BY sku`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (l *PGLedger) Stock(ctx context.Context, id string) (int, error) {
	var stock int
	err := l.DB.QueryRow(ctx, `SELECT stock FROM products WHERE id=$1`, id).Scan(&stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fault.NotFound("product", id)
	}
	return stock, err
}

func (l *PGLedger) Restock(ctx context.Context, id string, qty int) error {
	if qty <= 0 {
		return fault.Validationf("restock quantity must be positive, got %d", qty)
	}
	ct, err := l.DB.Exec(ctx,
		`UPDATE products SET stock = stock + $2, updated_at = now() WHERE id=$1`, id, qty)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return fault.NotFound("product", id)
	}
	return nil
}
