// Package build provides the canonical build pipeline for blogbuilder.
//
// Every command that produces output routes through Service. A run parses
// the export, canonicalizes and names posts, rehomes their media, renders
// the site, writes the sitemap and audits the result. Everything is
// written into a sibling staging directory that replaces the output
// directory only when every stage succeeded.
package build
