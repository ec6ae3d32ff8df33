package warehouse

import (
	"fmt"

	"github.com/afonsolelis/etl-completa-airflow/internal/storage"
)

// Warehouse table names.
const (
	TableTime           = "dim_time"
	TableCustomer       = "dim_customer"
	TableProduct        = "dim_product"
	TableFactSales      = "fact_sales"
	TableDailySales     = "agg_daily_sales"
	TableProductMetrics = "agg_product_metrics"
	TableAuditLog       = "etl_audit_log"
)

// Tables lists every warehouse table in creation order.
var Tables = []string{TableTime, TableProduct, TableCustomer, TableFactSales, TableDailySales, TableProductMetrics, TableAuditLog}

// dialect holds the SQL that differs between backends.
type dialect struct {
	name string
	ddl  []string
	// clear empties table; resetIdentity restarts its surrogate key sequence.
	clear func(table string, resetIdentity bool) []string
}

func dialectFor(name string) (dialect, error) {
	switch name {
	case storage.Postgres:
		return postgresDialect, nil
	case storage.SQLite:
		return sqliteDialect, nil
	case storage.MSSQL:
		return mssqlDialect, nil
	}
	return dialect{}, fmt.Errorf("warehouse: unsupported dialect %q", name)
}

var postgresDialect = dialect{
	name: storage.Postgres,
	ddl: []string{
		`CREATE TABLE IF NOT EXISTS dim_time (
			date_key INTEGER PRIMARY KEY,
			full_date DATE,
			year INTEGER,
			month INTEGER,
			day INTEGER,
			quarter INTEGER,
			day_of_week INTEGER,
			month_name VARCHAR(20),
			day_name VARCHAR(20),
			is_weekend BOOLEAN
		)`,
		`CREATE TABLE IF NOT EXISTS dim_product (
			product_key SERIAL PRIMARY KEY,
			product_id INTEGER,
			product_name VARCHAR(255),
			category VARCHAR(100),
			brand VARCHAR(100),
			unit_price DECIMAL(10,2),
			cost_price DECIMAL(10,2),
			profit_margin DECIMAL(7,2),
			margin_category VARCHAR(20),
			price_category VARCHAR(20),
			created_date TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_date TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS dim_customer (
			customer_key SERIAL PRIMARY KEY,
			customer_id INTEGER,
			customer_name VARCHAR(255),
			email VARCHAR(255),
			city VARCHAR(100),
			country VARCHAR(100),
			customer_segment VARCHAR(50),
			registration_date DATE,
			is_valid_email BOOLEAN,
			created_date TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_date TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS fact_sales (
			sale_key SERIAL PRIMARY KEY,
			sale_id INTEGER,
			customer_key INTEGER NOT NULL REFERENCES dim_customer(customer_key),
			product_key INTEGER NOT NULL REFERENCES dim_product(product_key),
			date_key INTEGER NOT NULL REFERENCES dim_time(date_key),
			quantity INTEGER,
			unit_price DECIMAL(10,2),
			total_amount DECIMAL(10,2),
			is_discounted BOOLEAN,
			sale_category VARCHAR(20),
			created_date TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS agg_daily_sales (
			date_key INTEGER PRIMARY KEY,
			total_revenue DECIMAL(12,2),
			total_orders INTEGER,
			avg_order_value DECIMAL(10,2),
			unique_customers INTEGER,
			created_date TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS agg_product_metrics (
			product_key INTEGER,
			period_start DATE,
			period_end DATE,
			total_quantity INTEGER,
			total_revenue DECIMAL(12,2),
			total_sales INTEGER,
			avg_sale_value DECIMAL(10,2),
			created_date TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (product_key, period_start)
		)`,
		`CREATE TABLE IF NOT EXISTS etl_audit_log (
			log_id SERIAL PRIMARY KEY,
			run_id VARCHAR(36),
			process_name VARCHAR(100),
			start_time TIMESTAMP,
			end_time TIMESTAMP,
			status VARCHAR(20),
			records_processed INTEGER,
			error_message TEXT,
			created_date TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
	},
	clear: func(table string, resetIdentity bool) []string {
		if resetIdentity {
			return []string{fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", table)}
		}
		return []string{fmt.Sprintf("TRUNCATE TABLE %s", table)}
	},
}

var sqliteDialect = dialect{
	name: storage.SQLite,
	ddl: []string{
		`CREATE TABLE IF NOT EXISTS dim_time (
			date_key INTEGER PRIMARY KEY,
			full_date DATE,
			year INTEGER,
			month INTEGER,
			day INTEGER,
			quarter INTEGER,
			day_of_week INTEGER,
			month_name TEXT,
			day_name TEXT,
			is_weekend BOOLEAN
		)`,
		`CREATE TABLE IF NOT EXISTS dim_product (
			product_key INTEGER PRIMARY KEY AUTOINCREMENT,
			product_id INTEGER,
			product_name TEXT,
			category TEXT,
			brand TEXT,
			unit_price REAL,
			cost_price REAL,
			profit_margin REAL,
			margin_category TEXT,
			price_category TEXT,
			created_date TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_date TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS dim_customer (
			customer_key INTEGER PRIMARY KEY AUTOINCREMENT,
			customer_id INTEGER,
			customer_name TEXT,
			email TEXT,
			city TEXT,
			country TEXT,
			customer_segment TEXT,
			registration_date DATE,
			is_valid_email BOOLEAN,
			created_date TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_date TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS fact_sales (
			sale_key INTEGER PRIMARY KEY AUTOINCREMENT,
			sale_id INTEGER,
			customer_key INTEGER NOT NULL REFERENCES dim_customer(customer_key),
			product_key INTEGER NOT NULL REFERENCES dim_product(product_key),
			date_key INTEGER NOT NULL REFERENCES dim_time(date_key),
			quantity INTEGER,
			unit_price REAL,
			total_amount REAL,
			is_discounted BOOLEAN,
			sale_category TEXT,
			created_date TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS agg_daily_sales (
			date_key INTEGER PRIMARY KEY,
			total_revenue REAL,
			total_orders INTEGER,
			avg_order_value REAL,
			unique_customers INTEGER,
			created_date TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS agg_product_metrics (
			product_key INTEGER,
			period_start DATE,
			period_end DATE,
			total_quantity INTEGER,
			total_revenue REAL,
			total_sales INTEGER,
			avg_sale_value REAL,
			created_date TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (product_key, period_start)
		)`,
		`CREATE TABLE IF NOT EXISTS etl_audit_log (
			log_id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT,
			process_name TEXT,
			start_time TIMESTAMP,
			end_time TIMESTAMP,
			status TEXT,
			records_processed INTEGER,
			error_message TEXT,
			created_date TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
	},
	clear: func(table string, resetIdentity bool) []string {
		out := []string{fmt.Sprintf("DELETE FROM %s", table)}
		if resetIdentity {
			out = append(out, fmt.Sprintf("DELETE FROM sqlite_sequence WHERE name = '%s'", table))
		}
		return out
	},
}

var mssqlDialect = dialect{
	name: storage.MSSQL,
	ddl: []string{
		`IF OBJECT_ID(N'dim_time', N'U') IS NULL
		CREATE TABLE dim_time (
			date_key INT PRIMARY KEY,
			full_date DATE,
			year INT,
			month INT,
			day INT,
			quarter INT,
			day_of_week INT,
			month_name NVARCHAR(20),
			day_name NVARCHAR(20),
			is_weekend BIT
		)`,
		`IF OBJECT_ID(N'dim_product', N'U') IS NULL
		CREATE TABLE dim_product (
			product_key INT IDENTITY(1,1) PRIMARY KEY,
			product_id INT,
			product_name NVARCHAR(255),
			category NVARCHAR(100),
			brand NVARCHAR(100),
			unit_price DECIMAL(10,2),
			cost_price DECIMAL(10,2),
			profit_margin DECIMAL(7,2),
			margin_category NVARCHAR(20),
			price_category NVARCHAR(20),
			created_date DATETIME2 DEFAULT SYSUTCDATETIME(),
			updated_date DATETIME2 DEFAULT SYSUTCDATETIME()
		)`,
		`IF OBJECT_ID(N'dim_customer', N'U') IS NULL
		CREATE TABLE dim_customer (
			customer_key INT IDENTITY(1,1) PRIMARY KEY,
			customer_id INT,
			customer_name NVARCHAR(255),
			email NVARCHAR(255),
			city NVARCHAR(100),
			country NVARCHAR(100),
			customer_segment NVARCHAR(50),
			registration_date DATE,
			is_valid_email BIT,
			created_date DATETIME2 DEFAULT SYSUTCDATETIME(),
			updated_date DATETIME2 DEFAULT SYSUTCDATETIME()
		)`,
		`IF OBJECT_ID(N'fact_sales', N'U') IS NULL
		CREATE TABLE fact_sales (
			sale_key INT IDENTITY(1,1) PRIMARY KEY,
			sale_id INT,
			customer_key INT NOT NULL REFERENCES dim_customer(customer_key),
			product_key INT NOT NULL REFERENCES dim_product(product_key),
			date_key INT NOT NULL REFERENCES dim_time(date_key),
			quantity INT,
			unit_price DECIMAL(10,2),
			total_amount DECIMAL(10,2),
			is_discounted BIT,
			sale_category NVARCHAR(20),
			created_date DATETIME2 DEFAULT SYSUTCDATETIME()
		)`,
		`IF OBJECT_ID(N'agg_daily_sales', N'U') IS NULL
		CREATE TABLE agg_daily_sales (
			date_key INT PRIMARY KEY,
			total_revenue DECIMAL(12,2),
			total_orders INT,
			avg_order_value DECIMAL(10,2),
			unique_customers INT,
			created_date DATETIME2 DEFAULT SYSUTCDATETIME()
		)`,
		`IF OBJECT_ID(N'agg_product_metrics', N'U') IS NULL
		CREATE TABLE agg_product_metrics (
			product_key INT NOT NULL,
			period_start DATE NOT NULL,
			period_end DATE,
			total_quantity INT,
			total_revenue DECIMAL(12,2),
			total_sales INT,
			avg_sale_value DECIMAL(10,2),
			created_date DATETIME2 DEFAULT SYSUTCDATETIME(),
			PRIMARY KEY (product_key, period_start)
		)`,
		`IF OBJECT_ID(N'etl_audit_log', N'U') IS NULL
		CREATE TABLE etl_audit_log (
			log_id INT IDENTITY(1,1) PRIMARY KEY,
			run_id NVARCHAR(36),
			process_name NVARCHAR(100),
			start_time DATETIME2,
			end_time DATETIME2,
			status NVARCHAR(20),
			records_processed INT,
			error_message NVARCHAR(MAX),
			created_date DATETIME2 DEFAULT SYSUTCDATETIME()
		)`,
	},
	clear: func(table string, resetIdentity bool) []string {
		if !resetIdentity {
			return []string{fmt.Sprintf("DELETE FROM %s", table)}
		}
		// RESEED 0 makes the next identity 1 once the table has held rows.
		return []string{
			fmt.Sprintf("DELETE FROM %s", table),
			fmt.Sprintf("DBCC CHECKIDENT ('%s', RESEED, 0)", table),
		}
	},
}
