/*
Package engine manages a set of ClearSilver templates for an application.

An Engine compiles templates on demand through the compiler package and keeps
the compiled forms in a cache keyed by template name and a BLAKE2b digest of
the source, so a changed source is recompiled on its next use and an
unchanged one never is. The Engine is itself the compiler's TemplateLoader,
which means includes and lvar/evar templates share the cache.

Sources come from a compiler.ResourceLoader. FSLoader serves any fs.FS or a
directory on disk, MapLoader serves sources held in memory, and the store
package serves them from sqlite. Loaders that can enumerate their templates
implement Lister, which Refresh uses to precompile everything and report
broken templates up front.

Watch follows the template directory with fsnotify and refreshes the engine
whenever a template file changes, enabling edits without a restart.
*/
package engine
