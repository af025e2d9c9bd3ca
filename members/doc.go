// Package members provides the insurance member table as a tool. The table
// lives either in memory or in Postgres (via pgx); both stores answer the
// same name and id lookups.
package members
