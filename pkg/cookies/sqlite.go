package cookies

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"

	_ "modernc.org/sqlite"
)

const (
	chromiumQuery = `SELECT name, value, host_key, path FROM cookies WHERE host_key LIKE ?`
	firefoxQuery  = `SELECT name, value, host, path FROM moz_cookies WHERE host LIKE ?`
)

func readChromium(ctx context.Context, path, domain string) ([]Cookie, error) {
	return querySQLite(ctx, path, chromiumQuery, domain)
}

func readFirefox(ctx context.Context, path, domain string) ([]Cookie, error) {
	return querySQLite(ctx, path, firefoxQuery, domain)
}

// querySQLite opens the browser database read-only and immutable so a
// running browser's lock does not block the read.
func querySQLite(ctx context.Context, path, query, domain string) ([]Cookie, error) {
	dsn := (&url.URL{Scheme: "file", Path: path, RawQuery: "mode=ro&immutable=1"}).String()
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, query, "%"+domain+"%")
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", path, err)
	}
	defer rows.Close()

	var out []Cookie
	for rows.Next() {
		var name, value, host, cpath string
		if err := rows.Scan(&name, &value, &host, &cpath); err != nil {
			return nil, fmt.Errorf("scan %s: %w", path, err)
		}
		// Chromium stores most values encrypted with an empty plaintext column.
		if value == "" {
			continue
		}
		out = append(out, normalize(name, value, host, cpath))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", path, err)
	}
	return out, nil
}
