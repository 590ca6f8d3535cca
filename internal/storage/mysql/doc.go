// Package mysql provides the MySQL-backed wallet store together with its
// connection pool setup and embedded schema migrations.
package mysql
