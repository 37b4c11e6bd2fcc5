// SPDX-License-Identifier: Apache-2.0

package testutils

import "net/url"

// replaceDBName swaps the path component (database name) of a Postgres
// connection URL, leaving every other part of the URL untouched.
func replaceDBName(connStr, dbName string) (string, error) {
	u, err := url.Parse(connStr)
	if err != nil {
		return "", err
	}
	u.Path = "/" + dbName
	return u.String(), nil
}
