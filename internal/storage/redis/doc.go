// Package redis offers Redis-backed caching for immutable chain metadata such
// as token decimals and symbols.
package redis
