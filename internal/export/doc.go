// Package export reads blog export documents (WordPress WXR / RSS 2.0) into
// raw post records.
//
// The reader streams the document and keeps every item in document order.
// It performs no validation beyond XML well-formedness: absent fields stay
// nil and are judged later by the post package. A document that is not
// well-formed XML yields a MalformedInputError and no records at all.
package export
