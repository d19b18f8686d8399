// Package site renders canonical posts into a static HTML tree.
//
// Every page shares one layout (templates/layout.html) and one value set
// built from config.SiteConfig, so header, navigation and footer are the
// same on every page type. Text values are escaped by html/template; only
// post bodies and Markdown rendered page content pass through as raw HTML.
package site
