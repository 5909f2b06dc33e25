// Package template substitutes delimiter-bounded expressions in display
// templates with values looked up in a context.
//
// An expression is a field name optionally followed by a conversion and a
// format spec, as in "{current line number:>4}" or "{message!r}". The format
// spec follows the conventional mini-language:
//
//	[[fill]align][sign][#][0][width][,|_][.precision][type]
//
// Expressions that fail to evaluate either abort the substitution or are
// replaced by an empty string and logged, depending on the engine's
// FailurePolicy.
package template
