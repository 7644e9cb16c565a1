package catalog

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/invoice-recon/internal/db"
	"github.com/sells-group/invoice-recon/internal/model"
)

// PostgresStore implements Store on a pgx pool, for catalogs shared across a
// team rather than kept in a local file.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS suppliers (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	seq        BIGSERIAL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS products (
	id         TEXT PRIMARY KEY,
	gtin       TEXT UNIQUE,
	name       TEXT NOT NULL,
	brand      TEXT NOT NULL DEFAULT '',
	format     TEXT NOT NULL DEFAULT '',
	packaging  TEXT NOT NULL DEFAULT '',
	category   TEXT NOT NULL DEFAULT '',
	seq        BIGSERIAL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS mappings (
	id               TEXT PRIMARY KEY,
	product_id       TEXT NOT NULL REFERENCES products(id),
	supplier_id      TEXT NOT NULL REFERENCES suppliers(id),
	code             TEXT NOT NULL,
	price            DOUBLE PRECISION,
	price_updated_at TIMESTAMPTZ,
	seq              BIGSERIAL,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (supplier_id, code)
);

CREATE INDEX IF NOT EXISTS idx_products_gtin ON products(gtin);
CREATE INDEX IF NOT EXISTS idx_mappings_product ON mappings(product_id, supplier_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// Transact runs fn in a single transaction; pgx.Tx satisfies db.Pool, so the
// transactional view reuses every query below. Nested calls reuse the outer
// transaction.
func (s *PostgresStore) Transact(ctx context.Context, fn func(Store) error) error {
	if _, nested := s.pool.(pgx.Tx); nested {
		return fn(s)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(&PostgresStore{pool: tx}); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit tx")
}

const pgProductColumns = `id, COALESCE(gtin, ''), name, brand, format, packaging, category, seq, created_at, updated_at`

func (s *PostgresStore) FindProductByGTIN(ctx context.Context, gtin string) (*model.Product, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+pgProductColumns+` FROM products WHERE gtin = $1`, gtin)
	p, err := scanProduct(pgRow{row})
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: product by gtin %s", gtin)
	}
	return p, nil
}

func (s *PostgresStore) FindProductByID(ctx context.Context, id string) (*model.Product, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+pgProductColumns+` FROM products WHERE id = $1`, id)
	p, err := scanProduct(pgRow{row})
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: product by id %s", id)
	}
	return p, nil
}

const pgMappingColumns = `id, product_id, supplier_id, code, price, price_updated_at, seq, created_at, updated_at`

func (s *PostgresStore) FindMapping(ctx context.Context, supplierID, code string) (*model.SupplierMapping, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+pgMappingColumns+` FROM mappings WHERE supplier_id = $1 AND code = $2`,
		supplierID, code)
	m, err := scanMapping(pgRow{row})
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: mapping %s/%s", supplierID, code)
	}
	return m, nil
}

func (s *PostgresStore) MappingForProduct(ctx context.Context, productID, supplierID string) (*model.SupplierMapping, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+pgMappingColumns+` FROM mappings
		 WHERE product_id = $1 AND supplier_id = $2
		 ORDER BY seq LIMIT 1`,
		productID, supplierID)
	m, err := scanMapping(pgRow{row})
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: mapping for product %s at %s", productID, supplierID)
	}
	return m, nil
}

func (s *PostgresStore) ListCandidates(ctx context.Context, supplierID string) ([]model.Candidate, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT p.id, COALESCE(p.gtin, ''), p.name, p.brand, p.format, p.packaging, p.category, p.seq, p.created_at, p.updated_at,
		        m.id, m.product_id, m.supplier_id, m.code, m.price, m.price_updated_at, m.seq, m.created_at, m.updated_at
		 FROM mappings m
		 JOIN products p ON p.id = m.product_id
		 WHERE m.supplier_id = $1
		 ORDER BY m.seq`,
		supplierID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list candidates for %s", supplierID)
	}
	defer rows.Close()

	var out []model.Candidate
	for rows.Next() {
		var c model.Candidate
		err := rows.Scan(
			&c.Product.ID, &c.Product.GTIN, &c.Product.Name, &c.Product.Brand, &c.Product.Format,
			&c.Product.Packaging, &c.Product.Category, &c.Product.Seq, &c.Product.CreatedAt, &c.Product.UpdatedAt,
			&c.Mapping.ID, &c.Mapping.ProductID, &c.Mapping.SupplierID, &c.Mapping.Code,
			&c.Mapping.Price, &c.Mapping.PriceUpdatedAt, &c.Mapping.Seq, &c.Mapping.CreatedAt, &c.Mapping.UpdatedAt,
		)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan candidate")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate candidates")
}

func (s *PostgresStore) UpsertProduct(ctx context.Context, attrs model.ProductAttrs) (*model.Product, error) {
	if attrs.GTIN != "" {
		existing, err := s.FindProductByGTIN(ctx, attrs.GTIN)
		if err == nil {
			_, err := s.pool.Exec(ctx,
				`UPDATE products SET
					name      = COALESCE(NULLIF($1, ''), name),
					brand     = COALESCE(NULLIF($2, ''), brand),
					format    = COALESCE(NULLIF($3, ''), format),
					packaging = COALESCE(NULLIF($4, ''), packaging),
					category  = COALESCE(NULLIF($5, ''), category),
					updated_at = now()
				 WHERE id = $6`,
				attrs.Name, attrs.Brand, attrs.Format, attrs.Packaging, attrs.Category, existing.ID)
			if err != nil {
				return nil, eris.Wrapf(err, "postgres: amend product %s", existing.ID)
			}
			return s.FindProductByID(ctx, existing.ID)
		}
		if !eris.Is(err, ErrNotFound) {
			return nil, err
		}
	}

	if attrs.Name == "" {
		return nil, eris.Wrap(ErrValidation, "product name must not be empty")
	}
	id := uuid.New().String()
	var gtin any
	if attrs.GTIN != "" {
		gtin = attrs.GTIN
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO products (id, gtin, name, brand, format, packaging, category)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, gtin, attrs.Name, attrs.Brand, attrs.Format, attrs.Packaging, attrs.Category)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert product")
	}
	return s.FindProductByID(ctx, id)
}

func (s *PostgresStore) UpsertMapping(ctx context.Context, productID, supplierID, code string, price *float64) (*model.SupplierMapping, error) {
	existing, err := s.FindMapping(ctx, supplierID, code)
	if err != nil && !eris.Is(err, ErrNotFound) {
		return nil, err
	}

	if existing == nil {
		id := uuid.New().String()
		var p any
		var pAt any
		if price != nil {
			p = *price
			pAt = time.Now().UTC()
		}
		_, err := s.pool.Exec(ctx,
			`INSERT INTO mappings (id, product_id, supplier_id, code, price, price_updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			id, productID, supplierID, code, p, pAt)
		if err != nil {
			return nil, eris.Wrapf(err, "postgres: insert mapping %s/%s", supplierID, code)
		}
		return s.FindMapping(ctx, supplierID, code)
	}

	if existing.ProductID != productID {
		if _, err := s.pool.Exec(ctx,
			`UPDATE mappings SET product_id = $1, updated_at = now() WHERE id = $2`,
			productID, existing.ID); err != nil {
			return nil, eris.Wrapf(err, "postgres: reattach mapping %s/%s", supplierID, code)
		}
	}
	if price != nil && (existing.Price == nil || *existing.Price != *price) {
		if _, err := s.pool.Exec(ctx,
			`UPDATE mappings SET price = $1, price_updated_at = now(), updated_at = now() WHERE id = $2`,
			*price, existing.ID); err != nil {
			return nil, eris.Wrapf(err, "postgres: update mapping price %s/%s", supplierID, code)
		}
	}
	return s.FindMapping(ctx, supplierID, code)
}

func (s *PostgresStore) SetMappingPrice(ctx context.Context, supplierID, code string, price float64, updatedAt time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE mappings SET price = $1, price_updated_at = $2, updated_at = now()
		 WHERE supplier_id = $3 AND code = $4`,
		price, updatedAt.UTC(), supplierID, code)
	if err != nil {
		return eris.Wrapf(err, "postgres: set mapping price %s/%s", supplierID, code)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "mapping %s/%s", supplierID, code)
	}
	return nil
}

func (s *PostgresStore) ListProducts(ctx context.Context) ([]model.Product, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+pgProductColumns+` FROM products ORDER BY seq`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list products")
	}
	defer rows.Close()

	var out []model.Product
	for rows.Next() {
		var p model.Product
		err := rows.Scan(&p.ID, &p.GTIN, &p.Name, &p.Brand, &p.Format, &p.Packaging,
			&p.Category, &p.Seq, &p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan product")
		}
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate products")
}

func (s *PostgresStore) ListMappings(ctx context.Context, productID string) ([]model.SupplierMapping, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+pgMappingColumns+` FROM mappings WHERE product_id = $1 ORDER BY seq`, productID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list mappings for %s", productID)
	}
	defer rows.Close()

	var out []model.SupplierMapping
	for rows.Next() {
		var m model.SupplierMapping
		err := rows.Scan(&m.ID, &m.ProductID, &m.SupplierID, &m.Code, &m.Price,
			&m.PriceUpdatedAt, &m.Seq, &m.CreatedAt, &m.UpdatedAt)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan mapping")
		}
		out = append(out, m)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate mappings")
}

func (s *PostgresStore) ListSuppliers(ctx context.Context) ([]model.Supplier, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, created_at FROM suppliers ORDER BY seq`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list suppliers")
	}
	defer rows.Close()

	var out []model.Supplier
	for rows.Next() {
		var sp model.Supplier
		if err := rows.Scan(&sp.ID, &sp.Name, &sp.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan supplier")
		}
		out = append(out, sp)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate suppliers")
}

func (s *PostgresStore) AddSupplier(ctx context.Context, id, name string) (*model.Supplier, error) {
	if id == "" || name == "" {
		return nil, eris.Wrap(ErrValidation, "supplier id and name must not be empty")
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO suppliers (id, name) VALUES ($1, $2)
		 ON CONFLICT (id) DO UPDATE SET name = excluded.name`,
		id, name)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: add supplier %s", id)
	}

	var sp model.Supplier
	row := s.pool.QueryRow(ctx, `SELECT id, name, created_at FROM suppliers WHERE id = $1`, id)
	if err := row.Scan(&sp.ID, &sp.Name, &sp.CreatedAt); err != nil {
		return nil, eris.Wrapf(err, "postgres: read supplier %s", id)
	}
	return &sp, nil
}

// pgRow adapts pgx.Row's no-rows sentinel to the shared scan helpers.
type pgRow struct {
	row pgx.Row
}

func (r pgRow) Scan(dest ...any) error {
	err := r.row.Scan(dest...)
	if errors.Is(err, pgx.ErrNoRows) {
		return sql.ErrNoRows
	}
	return err
}
