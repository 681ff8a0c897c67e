package sqlbridge

import (
	"strconv"
	"strings"
)

// Rewrite replaces each configured generic placeholder token with the
// engine's native token, via literal substitution over the whole query
// string. The substitution is not SQL-aware: token text appearing inside
// string literals or comments is rewritten too. Tokens already equal to the
// native form are left alone.
func Rewrite(query string, tokens []string, native string) string {
	for _, tok := range tokens {
		if tok == "" || tok == native {
			continue
		}
		query = strings.ReplaceAll(query, tok, native)
	}
	return query
}

// RewriteNumbered converts %s and ? placeholders to numbered $1, $2, ...
// markers, scanning left to right and numbering each occurrence in scan
// order rather than by distinct placeholder identity. It assumes
// placeholders are used positionally and appear in the exact order their
// bound values are supplied.
//
// Example:
//
//	RewriteNumbered("SELECT * FROM t WHERE id = %s AND n = ?")
//	// => "SELECT * FROM t WHERE id = $1 AND n = $2"
func RewriteNumbered(query string) string {
	var b strings.Builder
	b.Grow(len(query))

	n := 0
	for i := 0; i < len(query); {
		switch {
		case strings.HasPrefix(query[i:], "%s"):
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			i += 2
		case query[i] == '?':
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			i++
		default:
			b.WriteByte(query[i])
			i++
		}
	}
	return b.String()
}

// RewriteFor applies the rewrite appropriate to the engine: numbered markers
// for engines that require them, literal token substitution otherwise. An
// empty token list disables rewriting for non-numbered engines.
func RewriteFor(engine Engine, query string, tokens []string) string {
	if engine.Numbered() {
		return RewriteNumbered(query)
	}
	if len(tokens) == 0 {
		return query
	}
	return Rewrite(query, tokens, engine.Placeholder())
}
