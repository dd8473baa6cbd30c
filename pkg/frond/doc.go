/*
Package frond provides a small HTML fragment template engine with template
inheritance. Templates are named units of text containing directives for
variable interpolation, loops, conditionals, partial inclusion, and
helper/filter pipelines. A child template can extend a parent and override
named block regions, with blocks nested arbitrarily deep.

Rendering never fails: missing templates, helpers, filters, and partials
degrade to inline diagnostic comments in the output, and malformed
directives are logged and skipped. Compiled templates are cached per
source-store generation, and a LoadCoordinator deduplicates concurrent
loads from an external template provider so the provider is hit at most
once per process lifetime.
*/
package frond
