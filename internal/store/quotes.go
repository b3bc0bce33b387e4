package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/andeantrade/cotiza-api/internal/numeric"
	"github.com/andeantrade/cotiza-api/internal/quote"
)

const quoteColumns = `
	id, reference, company_id, company_name, incoterm, share_token,
	national_freight::text, international_freight::text,
	international_insurance::text, customs_fees::text,
	declared_subtotal::text, declared_discount::text, declared_total::text,
	notes, created_at, updated_at`

// QuoteByID loads one quote with its ordered line items.
func (s *Store) QuoteByID(ctx context.Context, id uuid.UUID) (quote.Quote, error) {
	return s.loadQuote(ctx, `SELECT`+quoteColumns+` FROM quotes WHERE id = $1`, id)
}

// QuoteByShareToken loads a quote through its public share token. Revoked
// tokens have the column nulled and behave as unknown.
func (s *Store) QuoteByShareToken(ctx context.Context, token string) (quote.Quote, error) {
	return s.loadQuote(ctx, `SELECT`+quoteColumns+` FROM quotes WHERE share_token = $1`, token)
}

func (s *Store) loadQuote(ctx context.Context, query string, arg any) (quote.Quote, error) {
	pool, err := s.pool()
	if err != nil {
		return quote.Quote{}, err
	}

	var (
		q        quote.Quote
		numerics [7]*string
		token    *string
		notes    *string
		incoterm *string
	)
	row := pool.QueryRow(ctx, query, arg)
	if err := row.Scan(
		&q.ID, &q.Reference, &q.CompanyID, &q.CompanyName, &incoterm, &token,
		&numerics[0], &numerics[1], &numerics[2], &numerics[3],
		&numerics[4], &numerics[5], &numerics[6],
		&notes, &q.CreatedAt, &q.UpdatedAt,
	); err != nil {
		if noRows(err) {
			return quote.Quote{}, quote.ErrNotFound
		}
		return quote.Quote{}, fmt.Errorf("store: load quote: %w", err)
	}
	if incoterm != nil {
		q.Incoterm = *incoterm
	}
	if token != nil {
		q.ShareToken = *token
	}
	if notes != nil {
		q.Notes = *notes
	}
	for i, dst := range []*decimal.Decimal{
		&q.NationalFreight, &q.InternationalFreight, &q.InternationalInsurance,
		&q.CustomsFees, &q.DeclaredSubtotal, &q.DeclaredDiscount, &q.DeclaredTotal,
	} {
		if *dst, err = scanDecimal(numerics[i]); err != nil {
			return quote.Quote{}, err
		}
	}

	items, err := s.quoteItems(ctx, q.ID)
	if err != nil {
		return quote.Quote{}, err
	}
	q.Items = items
	return q, nil
}

func (s *Store) quoteItems(ctx context.Context, quoteID uuid.UUID) ([]quote.LineItem, error) {
	pool, err := s.pool()
	if err != nil {
		return nil, err
	}
	rows, err := pool.Query(ctx, `
		SELECT id, product_id, description, quantity,
		       unit_price::text, declared_discount_percent::text,
		       declared_line_total::text, product_weight_kg::text,
		       COALESCE(product_dimensions, '')
		FROM quote_items
		WHERE quote_id = $1
		ORDER BY position, created_at`, quoteID)
	if err != nil {
		return nil, fmt.Errorf("store: list quote items: %w", err)
	}
	defer rows.Close()

	var items []quote.LineItem
	for rows.Next() {
		var (
			item     quote.LineItem
			numerics [4]*string
		)
		if err := rows.Scan(
			&item.ID, &item.ProductID, &item.Description, &item.Quantity,
			&numerics[0], &numerics[1], &numerics[2], &numerics[3],
			&item.ProductDimensions,
		); err != nil {
			return nil, fmt.Errorf("store: scan quote item: %w", err)
		}
		if item.UnitPrice, err = scanDecimal(numerics[0]); err != nil {
			return nil, err
		}
		if item.DeclaredDiscountPercent, err = scanDecimal(numerics[1]); err != nil {
			return nil, err
		}
		if item.DeclaredLineTotal, err = scanDecimal(numerics[2]); err != nil {
			return nil, err
		}
		if item.ProductWeightKg, err = scanDecimal(numerics[3]); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// SaveQuoteTotals writes the recomputed totals back onto the quote record.
// Figures are rounded to two decimals at this persistence boundary.
func (s *Store) SaveQuoteTotals(ctx context.Context, id uuid.UUID, totals quote.Totals) error {
	pool, err := s.pool()
	if err != nil {
		return err
	}
	tag, err := pool.Exec(ctx, `
		UPDATE quotes
		SET declared_subtotal = $2::numeric,
		    declared_discount = $3::numeric,
		    declared_total = $4::numeric,
		    updated_at = now()
		WHERE id = $1`,
		id,
		numeric.Round2(totals.Subtotal).String(),
		numeric.Round2(totals.Discount).String(),
		numeric.Round2(totals.TotalSource).String(),
	)
	if err != nil {
		return fmt.Errorf("store: save quote totals: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return quote.ErrNotFound
	}
	return nil
}
