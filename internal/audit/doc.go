// Package audit verifies a built site independently of the build that
// produced it.
//
// The auditor re-reads every posts/*.html page and reports posts whose
// visible text is empty or minimal, images whose local target is missing,
// and img tags without a src. It never modifies pages.
package audit
