package catalog

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/invoice-recon/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. It is the default
// backend for a single-user local catalog.
type SQLiteStore struct {
	db *sql.DB
	q  querier
}

// querier is the subset of database/sql shared by *sql.DB and *sql.Tx, so the
// same methods serve both direct and transactional access.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// NewSQLite opens a SQLite catalog at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	s := &SQLiteStore{db: db}
	s.q = db
	return s, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS suppliers (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS products (
	id         TEXT PRIMARY KEY,
	gtin       TEXT UNIQUE,
	name       TEXT NOT NULL,
	brand      TEXT NOT NULL DEFAULT '',
	format     TEXT NOT NULL DEFAULT '',
	packaging  TEXT NOT NULL DEFAULT '',
	category   TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS mappings (
	id               TEXT PRIMARY KEY,
	product_id       TEXT NOT NULL REFERENCES products(id),
	supplier_id      TEXT NOT NULL REFERENCES suppliers(id),
	code             TEXT NOT NULL,
	price            REAL,
	price_updated_at DATETIME,
	created_at       DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at       DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (supplier_id, code)
);

CREATE INDEX IF NOT EXISTS idx_products_gtin ON products(gtin);
CREATE INDEX IF NOT EXISTS idx_mappings_product ON mappings(product_id, supplier_id);
CREATE INDEX IF NOT EXISTS idx_mappings_supplier ON mappings(supplier_id, code);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.q.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Transact runs fn inside a single transaction. Nested calls reuse the outer
// transaction.
func (s *SQLiteStore) Transact(ctx context.Context, fn func(Store) error) error {
	if _, nested := s.q.(*sql.Tx); nested {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	sub := &SQLiteStore{db: s.db, q: tx}
	if err := fn(sub); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return eris.Wrapf(err, "sqlite: rollback also failed: %v", rbErr)
		}
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit tx")
}

const productColumns = `id, COALESCE(gtin, ''), name, brand, format, packaging, category, rowid, created_at, updated_at`

func (s *SQLiteStore) FindProductByGTIN(ctx context.Context, gtin string) (*model.Product, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE gtin = ?`, gtin)
	p, err := scanProduct(row)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: product by gtin %s", gtin)
	}
	return p, nil
}

func (s *SQLiteStore) FindProductByID(ctx context.Context, id string) (*model.Product, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = ?`, id)
	p, err := scanProduct(row)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: product by id %s", id)
	}
	return p, nil
}

const mappingColumns = `id, product_id, supplier_id, code, price, price_updated_at, rowid, created_at, updated_at`

func (s *SQLiteStore) FindMapping(ctx context.Context, supplierID, code string) (*model.SupplierMapping, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+mappingColumns+` FROM mappings WHERE supplier_id = ? AND code = ?`,
		supplierID, code)
	m, err := scanMapping(row)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: mapping %s/%s", supplierID, code)
	}
	return m, nil
}

func (s *SQLiteStore) MappingForProduct(ctx context.Context, productID, supplierID string) (*model.SupplierMapping, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+mappingColumns+` FROM mappings
		 WHERE product_id = ? AND supplier_id = ?
		 ORDER BY rowid LIMIT 1`,
		productID, supplierID)
	m, err := scanMapping(row)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: mapping for product %s at %s", productID, supplierID)
	}
	return m, nil
}

func (s *SQLiteStore) ListCandidates(ctx context.Context, supplierID string) ([]model.Candidate, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT p.id, COALESCE(p.gtin, ''), p.name, p.brand, p.format, p.packaging, p.category, p.rowid, p.created_at, p.updated_at,
		        m.id, m.product_id, m.supplier_id, m.code, m.price, m.price_updated_at, m.rowid, m.created_at, m.updated_at
		 FROM mappings m
		 JOIN products p ON p.id = m.product_id
		 WHERE m.supplier_id = ?
		 ORDER BY m.rowid`,
		supplierID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list candidates for %s", supplierID)
	}
	defer rows.Close()

	var out []model.Candidate
	for rows.Next() {
		var c model.Candidate
		var gtin string
		var price sql.NullFloat64
		var priceAt sql.NullTime
		err := rows.Scan(
			&c.Product.ID, &gtin, &c.Product.Name, &c.Product.Brand, &c.Product.Format,
			&c.Product.Packaging, &c.Product.Category, &c.Product.Seq, &c.Product.CreatedAt, &c.Product.UpdatedAt,
			&c.Mapping.ID, &c.Mapping.ProductID, &c.Mapping.SupplierID, &c.Mapping.Code,
			&price, &priceAt, &c.Mapping.Seq, &c.Mapping.CreatedAt, &c.Mapping.UpdatedAt,
		)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan candidate")
		}
		c.Product.GTIN = gtin
		if price.Valid {
			v := price.Float64
			c.Mapping.Price = &v
		}
		if priceAt.Valid {
			t := priceAt.Time
			c.Mapping.PriceUpdatedAt = &t
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate candidates")
}

func (s *SQLiteStore) UpsertProduct(ctx context.Context, attrs model.ProductAttrs) (*model.Product, error) {
	if attrs.GTIN != "" {
		existing, err := s.FindProductByGTIN(ctx, attrs.GTIN)
		if err == nil {
			return s.amendProduct(ctx, existing.ID, attrs)
		}
		if !eris.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	return s.createProduct(ctx, attrs)
}

func (s *SQLiteStore) createProduct(ctx context.Context, attrs model.ProductAttrs) (*model.Product, error) {
	if attrs.Name == "" {
		return nil, eris.Wrap(ErrValidation, "product name must not be empty")
	}
	id := uuid.New().String()
	now := time.Now().UTC()

	var gtin any
	if attrs.GTIN != "" {
		gtin = attrs.GTIN
	}
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO products (id, gtin, name, brand, format, packaging, category, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, gtin, attrs.Name, attrs.Brand, attrs.Format, attrs.Packaging, attrs.Category, now, now)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert product")
	}
	return s.FindProductByID(ctx, id)
}

// amendProduct applies last-write-wins per field: non-empty incoming values
// overwrite, empty values leave the stored ones alone.
func (s *SQLiteStore) amendProduct(ctx context.Context, id string, attrs model.ProductAttrs) (*model.Product, error) {
	_, err := s.q.ExecContext(ctx,
		`UPDATE products SET
			name      = COALESCE(NULLIF(?, ''), name),
			brand     = COALESCE(NULLIF(?, ''), brand),
			format    = COALESCE(NULLIF(?, ''), format),
			packaging = COALESCE(NULLIF(?, ''), packaging),
			category  = COALESCE(NULLIF(?, ''), category),
			updated_at = ?
		 WHERE id = ?`,
		attrs.Name, attrs.Brand, attrs.Format, attrs.Packaging, attrs.Category,
		time.Now().UTC(), id)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: amend product %s", id)
	}
	return s.FindProductByID(ctx, id)
}

func (s *SQLiteStore) UpsertMapping(ctx context.Context, productID, supplierID, code string, price *float64) (*model.SupplierMapping, error) {
	existing, err := s.FindMapping(ctx, supplierID, code)
	if err != nil && !eris.Is(err, ErrNotFound) {
		return nil, err
	}
	now := time.Now().UTC()

	if existing == nil {
		id := uuid.New().String()
		var p, pAt any
		if price != nil {
			p = *price
			pAt = now
		}
		_, err := s.q.ExecContext(ctx,
			`INSERT INTO mappings (id, product_id, supplier_id, code, price, price_updated_at, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			id, productID, supplierID, code, p, pAt, now, now)
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: insert mapping %s/%s", supplierID, code)
		}
		return s.FindMapping(ctx, supplierID, code)
	}

	if existing.ProductID != productID {
		_, err := s.q.ExecContext(ctx,
			`UPDATE mappings SET product_id = ?, updated_at = ? WHERE id = ?`,
			productID, now, existing.ID)
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: reattach mapping %s/%s", supplierID, code)
		}
	}

	if price != nil && (existing.Price == nil || *existing.Price != *price) {
		// Price and its version timestamp move together, in one statement.
		_, err := s.q.ExecContext(ctx,
			`UPDATE mappings SET price = ?, price_updated_at = ?, updated_at = ? WHERE id = ?`,
			*price, now, now, existing.ID)
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: update mapping price %s/%s", supplierID, code)
		}
	}

	return s.FindMapping(ctx, supplierID, code)
}

func (s *SQLiteStore) SetMappingPrice(ctx context.Context, supplierID, code string, price float64, updatedAt time.Time) error {
	res, err := s.q.ExecContext(ctx,
		`UPDATE mappings SET price = ?, price_updated_at = ?, updated_at = ? WHERE supplier_id = ? AND code = ?`,
		price, updatedAt.UTC(), time.Now().UTC(), supplierID, code)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set mapping price %s/%s", supplierID, code)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "mapping %s/%s", supplierID, code)
	}
	return nil
}

func (s *SQLiteStore) ListProducts(ctx context.Context) ([]model.Product, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+productColumns+` FROM products ORDER BY rowid`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list products")
	}
	defer rows.Close()

	var out []model.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan product")
		}
		out = append(out, *p)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate products")
}

func (s *SQLiteStore) ListMappings(ctx context.Context, productID string) ([]model.SupplierMapping, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+mappingColumns+` FROM mappings WHERE product_id = ? ORDER BY rowid`, productID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list mappings for %s", productID)
	}
	defer rows.Close()

	var out []model.SupplierMapping
	for rows.Next() {
		m, err := scanMapping(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan mapping")
		}
		out = append(out, *m)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate mappings")
}

func (s *SQLiteStore) ListSuppliers(ctx context.Context) ([]model.Supplier, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, name, created_at FROM suppliers ORDER BY rowid`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list suppliers")
	}
	defer rows.Close()

	var out []model.Supplier
	for rows.Next() {
		var sp model.Supplier
		if err := rows.Scan(&sp.ID, &sp.Name, &sp.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan supplier")
		}
		out = append(out, sp)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate suppliers")
}

func (s *SQLiteStore) AddSupplier(ctx context.Context, id, name string) (*model.Supplier, error) {
	if id == "" || name == "" {
		return nil, eris.Wrap(ErrValidation, "supplier id and name must not be empty")
	}
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO suppliers (id, name, created_at) VALUES (?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET name = excluded.name`,
		id, name, time.Now().UTC())
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: add supplier %s", id)
	}

	var sp model.Supplier
	row := s.q.QueryRowContext(ctx, `SELECT id, name, created_at FROM suppliers WHERE id = ?`, id)
	if err := row.Scan(&sp.ID, &sp.Name, &sp.CreatedAt); err != nil {
		return nil, eris.Wrapf(err, "sqlite: read supplier %s", id)
	}
	return &sp, nil
}

// helpers

type scannable interface {
	Scan(dest ...any) error
}

func scanProduct(row scannable) (*model.Product, error) {
	var p model.Product
	err := row.Scan(&p.ID, &p.GTIN, &p.Name, &p.Brand, &p.Format, &p.Packaging,
		&p.Category, &p.Seq, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func scanMapping(row scannable) (*model.SupplierMapping, error) {
	var m model.SupplierMapping
	var price sql.NullFloat64
	var priceAt sql.NullTime
	err := row.Scan(&m.ID, &m.ProductID, &m.SupplierID, &m.Code, &price, &priceAt,
		&m.Seq, &m.CreatedAt, &m.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if price.Valid {
		v := price.Float64
		m.Price = &v
	}
	if priceAt.Valid {
		t := priceAt.Time
		m.PriceUpdatedAt = &t
	}
	return &m, nil
}
