package sqlite

const schema = `
	-- Customers (directory + balance projection)
	CREATE TABLE IF NOT EXISTS customers (
		id TEXT PRIMARY KEY,
		org_id TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL,
		deposit_type TEXT NOT NULL,
		balance TEXT NOT NULL DEFAULT '0',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Warehouse items (current quantity projection)
	CREATE TABLE IF NOT EXISTS warehouse_items (
		warehouse_id TEXT NOT NULL,
		item_id TEXT NOT NULL,
		current_quantity TEXT NOT NULL DEFAULT '0',
		safe_quantity TEXT NOT NULL DEFAULT '0',
		updated_at TEXT NOT NULL,
		PRIMARY KEY (warehouse_id, item_id)
	);

	-- Stock entries (append-only)
	CREATE TABLE IF NOT EXISTS stock_entries (
		id TEXT PRIMARY KEY,
		org_id TEXT NOT NULL DEFAULT '',
		warehouse_id TEXT NOT NULL,
		item_id TEXT NOT NULL,
		entry_date TEXT NOT NULL,
		period TEXT NOT NULL,
		entry_type TEXT NOT NULL,
		quantity TEXT NOT NULL,
		unit_price TEXT NOT NULL,
		amount TEXT NOT NULL,
		note TEXT,
		reference_type TEXT,
		reference_id TEXT,
		reference_line INTEGER NOT NULL DEFAULT 0,
		reverses_id TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_stock_entries_item_date
		ON stock_entries(warehouse_id, item_id, entry_date);
	CREATE INDEX IF NOT EXISTS idx_stock_entries_reference
		ON stock_entries(reference_type, reference_id);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_stock_entries_reverses
		ON stock_entries(reverses_id) WHERE reverses_id IS NOT NULL;

	-- Monthly closing snapshot
	CREATE TABLE IF NOT EXISTS monthly_closings (
		code TEXT PRIMARY KEY,
		warehouse_id TEXT NOT NULL,
		item_id TEXT NOT NULL,
		period TEXT NOT NULL,
		opening_quantity TEXT NOT NULL,
		opening_amount TEXT NOT NULL,
		in_quantity TEXT NOT NULL,
		in_amount TEXT NOT NULL,
		out_quantity TEXT NOT NULL,
		out_amount TEXT NOT NULL,
		cal_quantity TEXT NOT NULL,
		cal_amount TEXT NOT NULL,
		actual_quantity TEXT NOT NULL,
		actual_unit_price TEXT NOT NULL,
		actual_amount TEXT NOT NULL,
		diff_quantity TEXT NOT NULL,
		diff_amount TEXT NOT NULL,
		counted BOOLEAN NOT NULL DEFAULT FALSE,
		is_closed BOOLEAN NOT NULL DEFAULT FALSE,
		closed_at TEXT,
		closed_by TEXT,
		updated_at TEXT NOT NULL,
		UNIQUE(warehouse_id, item_id, period)
	);

	CREATE INDEX IF NOT EXISTS idx_closings_warehouse_period
		ON monthly_closings(warehouse_id, period);

	-- Balance entries (append-only)
	CREATE TABLE IF NOT EXISTS balance_entries (
		id TEXT PRIMARY KEY,
		customer_id TEXT NOT NULL REFERENCES customers(id),
		entry_date TEXT NOT NULL,
		entry_type TEXT NOT NULL,
		amount TEXT NOT NULL,
		balance_after TEXT NOT NULL,
		reference_type TEXT,
		reference_id TEXT,
		reverses_id TEXT,
		note TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_balance_entries_customer_date
		ON balance_entries(customer_id, entry_date);
	CREATE INDEX IF NOT EXISTS idx_balance_entries_reference
		ON balance_entries(reference_type, reference_id);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_balance_entries_reverses
		ON balance_entries(reverses_id) WHERE reverses_id IS NOT NULL;

	-- Manual deposit / adjustment documents
	CREATE TABLE IF NOT EXISTS balance_postings (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		customer_id TEXT NOT NULL REFERENCES customers(id),
		amount TEXT NOT NULL,
		posting_date TEXT NOT NULL,
		note TEXT,
		entry_id TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_balance_postings_customer
		ON balance_postings(customer_id, kind);

	-- Orders
	CREATE TABLE IF NOT EXISTS orders (
		order_no TEXT PRIMARY KEY,
		org_id TEXT NOT NULL DEFAULT '',
		customer_id TEXT NOT NULL REFERENCES customers(id),
		requested_date TEXT NOT NULL,
		delivery_status TEXT NOT NULL,
		payment_status TEXT NOT NULL,
		deposit_type TEXT NOT NULL,
		taxable_amt TEXT NOT NULL,
		tax_free_amt TEXT NOT NULL,
		supply_amt TEXT NOT NULL,
		vat_amt TEXT NOT NULL,
		total_amt TEXT NOT NULL,
		total_qty TEXT NOT NULL,
		vehicle TEXT,
		driver TEXT,
		delivery_amt TEXT NOT NULL DEFAULT '0',
		delivery_date TEXT,
		note TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_orders_customer
		ON orders(customer_id, requested_date);
	CREATE INDEX IF NOT EXISTS idx_orders_status
		ON orders(delivery_status);

	CREATE TABLE IF NOT EXISTS order_items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		order_no TEXT NOT NULL REFERENCES orders(order_no),
		line INTEGER NOT NULL,
		item_id TEXT NOT NULL,
		warehouse_id TEXT NOT NULL,
		unit_price TEXT NOT NULL,
		quantity TEXT NOT NULL,
		taxable BOOLEAN NOT NULL DEFAULT TRUE,
		supply_amt TEXT NOT NULL,
		vat_amt TEXT NOT NULL,
		total_amt TEXT NOT NULL,
		returnable_qty TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_order_items_order
		ON order_items(order_no, line);

	-- Warehouse transfers (create-only)
	CREATE TABLE IF NOT EXISTS warehouse_transfers (
		code TEXT PRIMARY KEY,
		org_id TEXT NOT NULL DEFAULT '',
		transfer_date TEXT NOT NULL,
		from_warehouse TEXT NOT NULL,
		to_warehouse TEXT NOT NULL,
		note TEXT,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS warehouse_transfer_items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		transfer_code TEXT NOT NULL REFERENCES warehouse_transfers(code),
		line INTEGER NOT NULL,
		item_id TEXT NOT NULL,
		quantity TEXT NOT NULL,
		unit_price TEXT NOT NULL,
		amount TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transfer_items_code
		ON warehouse_transfer_items(transfer_code, line);

	-- Returns
	CREATE TABLE IF NOT EXISTS order_returns (
		id TEXT PRIMARY KEY,
		order_no TEXT NOT NULL,
		order_item_id INTEGER NOT NULL REFERENCES order_items(id),
		item_id TEXT NOT NULL,
		customer_id TEXT NOT NULL,
		quantity TEXT NOT NULL,
		unit_price TEXT NOT NULL,
		supply_amt TEXT NOT NULL,
		vat_amt TEXT NOT NULL,
		total_amt TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'unapproved',
		reason TEXT,
		approved_at TEXT,
		approved_by TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_returns_order
		ON order_returns(order_no);
	CREATE INDEX IF NOT EXISTS idx_returns_status
		ON order_returns(status, created_at);

	-- Holidays (org-specific and global)
	CREATE TABLE IF NOT EXISTS holidays (
		id TEXT PRIMARY KEY,
		org_id TEXT NOT NULL DEFAULT '',
		date TEXT NOT NULL,
		name TEXT NOT NULL,
		recurring BOOLEAN DEFAULT FALSE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_holidays_org_date
		ON holidays(org_id, date);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_holidays_unique
		ON holidays(org_id, date, name);
`
