// Package migrator applies versioned SQL migrations from layered directories.
//
// Features:
//   - Resolves a base migrations directory plus extra override directories into
//     an explicit application order (extras in reverse, base last)
//   - Loads migration files named `<version>_<description>.sql`, with optional
//     `.up.sql` and `.down.sql` reversible variants, from any vfs filesystem
//   - Tracks applied versions with checksums in a ledger table inside the
//     target database, and applies outstanding migrations once
//   - Renders failed migrations with the source path, full SQL and the
//     position of the error within it
package migrator
