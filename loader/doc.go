// Package loader resolves named SQL queries out of JSON query files.
//
// A query file maps possibly-nested keys to either a literal SQL string or
// a relative path ending in .sql whose file content is substituted in:
//
//	{
//	  "user": {
//	    "by_id": "SELECT * FROM users WHERE id = ?",
//	    "report": "reports/user_report.sql"
//	  }
//	}
//
// Lookup keys use dotted syntax: "user.by_id" addresses the nested object.
// The resolved query text is rewritten for the target engine's native
// placeholder syntax before it is returned.
//
// The loader also syncs query files between per-engine directories, the
// operation behind the CLI sync subcommand.
package loader
